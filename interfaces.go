package toolhub

import (
	"context"

	"github.com/psd401/toolhub/internal/executor"
)

// ModelProvider generates completions for chat messages and prompt-chain
// steps. When provided via WithModelProvider, replaces the config-selected
// provider. The plain-argument signature avoids forcing internal types on
// external consumers; New() wraps it in an adapter.
type ModelProvider interface {
	Complete(ctx context.Context, modelID, system, prompt string) (string, error)
}

// providerAdapter bridges the public ModelProvider to the internal interface.
type providerAdapter struct {
	p ModelProvider
}

func (a *providerAdapter) Complete(ctx context.Context, req executor.CompletionRequest) (executor.CompletionResponse, error) {
	out, err := a.p.Complete(ctx, req.ModelID, req.System, req.Prompt)
	if err != nil {
		return executor.CompletionResponse{}, err
	}
	return executor.CompletionResponse{Output: out}, nil
}
