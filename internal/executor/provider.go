// Package executor runs approved prompt-chain tools: it resolves each
// step's template against the execution inputs and earlier outputs, calls
// the model provider under the step's timeout, and records terminal
// results for every step and for the execution itself.
package executor

import (
	"context"
	"fmt"

	"github.com/psd401/toolhub/internal/config"
)

// CompletionRequest is a single model invocation.
type CompletionRequest struct {
	ModelID string
	System  string
	Prompt  string
}

// CompletionResponse carries the model's output text.
type CompletionResponse struct {
	Output string
}

// ModelProvider abstracts the external model API. Implementations must
// honor ctx cancellation and deadlines.
type ModelProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// NoopProvider echoes a deterministic response without calling any
// external API. Used as the default provider and in tests.
type NoopProvider struct{}

var _ ModelProvider = NoopProvider{}

// Complete returns a canned response derived from the prompt.
func (NoopProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}
	return CompletionResponse{
		Output: fmt.Sprintf("[noop:%s] %s", req.ModelID, truncate(req.Prompt, 200)),
	}, nil
}

// NewProvider builds the provider selected by configuration.
func NewProvider(cfg config.Config) (ModelProvider, error) {
	switch cfg.ModelProvider {
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.ModelTimeout), nil
	case "ollama":
		return NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.ModelTimeout), nil
	case "noop":
		return NoopProvider{}, nil
	default:
		return nil, fmt.Errorf("executor: unknown model provider %q", cfg.ModelProvider)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
