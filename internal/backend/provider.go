// Package backend sends the transformed message list to the configured
// model provider and returns the assistant text plus token usage. The
// transformation pipeline completes before any call here happens.
package backend

import (
	"context"
	"fmt"

	"github.com/kayz/promptgate/internal/config"
	"github.com/kayz/promptgate/internal/preset"
	"github.com/kayz/promptgate/internal/prompt"
)

// Usage is the token accounting reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Reply is one completed generation.
type Reply struct {
	Text  string
	Model string
	Usage Usage
}

// Provider generates a completion for an ordered message list.
type Provider interface {
	Name() string
	Generate(ctx context.Context, messages []prompt.Message, sampler preset.Sampler) (Reply, error)
}

// New builds a provider from config.
func New(cfg config.BackendConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return newOpenAIProvider(cfg), nil
	case "anthropic":
		return newAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown backend provider %q", cfg.Provider)
	}
}
