package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider calls a local Ollama server's generate API.
type OllamaProvider struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

var _ ModelProvider = (*OllamaProvider)(nil)

// NewOllamaProvider creates a provider against an Ollama server.
func NewOllamaProvider(baseURL, defaultModel string, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Complete sends a non-streaming generate request.
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	modelID := req.ModelID
	if modelID == "" {
		modelID = p.defaultModel
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  modelID,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
	})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("executor: marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("executor: build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("executor: generate request: %w", err)
	}
	defer resp.Body.Close()

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return CompletionResponse{}, fmt.Errorf("executor: decode generate response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Error != "" {
		return CompletionResponse{}, fmt.Errorf("executor: generate failed (status %d): %s", resp.StatusCode, parsed.Error)
	}

	return CompletionResponse{Output: parsed.Response}, nil
}
