package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/kayz/promptgate/internal/config"
	"github.com/kayz/promptgate/internal/preset"
	"github.com/kayz/promptgate/internal/prompt"
)

type anthropicProvider struct {
	client *anthropic.Client
	model  string
}

func newAnthropicProvider(cfg config.BackendConfig) *anthropicProvider {
	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicProvider{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		model:  cfg.Model,
	}
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) Generate(ctx context.Context, messages []prompt.Message, sampler preset.Sampler) (Reply, error) {
	system, converted := anthropicMessages(messages)

	maxTokens := sampler.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		Messages:  converted,
		System:    system,
		MaxTokens: maxTokens,
	}
	if sampler.Temperature != nil {
		temp := float32(*sampler.Temperature)
		req.Temperature = &temp
	}
	if sampler.TopP != nil {
		topP := float32(*sampler.TopP)
		req.TopP = &topP
	}

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return Reply{}, fmt.Errorf("anthropic completion: %w", err)
	}
	if len(resp.Content) == 0 {
		return Reply{}, fmt.Errorf("anthropic completion: empty content")
	}

	return Reply{
		Text:  resp.Content[0].GetText(),
		Model: string(resp.Model),
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// anthropicMessages hoists system-role content into the system parameter,
// which is where that API expects it; user and assistant messages convert
// directly.
func anthropicMessages(messages []prompt.Message) (string, []anthropic.Message) {
	var system []string
	converted := make([]anthropic.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case prompt.RoleSystem:
			system = append(system, msg.Content)
		case prompt.RoleAssistant:
			converted = append(converted, anthropic.NewAssistantTextMessage(msg.Content))
		default:
			converted = append(converted, anthropic.NewUserTextMessage(msg.Content))
		}
	}
	return strings.Join(system, "\n"), converted
}
