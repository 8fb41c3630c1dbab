package backend

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/kayz/promptgate/internal/config"
	"github.com/kayz/promptgate/internal/preset"
	"github.com/kayz/promptgate/internal/prompt"
)

// openAIProvider covers the OpenAI API and every compatible server via a
// custom base URL.
type openAIProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIProvider(cfg config.BackendConfig) *openAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) Generate(ctx context.Context, messages []prompt.Message, sampler preset.Sampler) (Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: openAIMessages(messages),
	}
	if sampler.Temperature != nil {
		req.Temperature = float32(*sampler.Temperature)
	}
	if sampler.TopP != nil {
		req.TopP = float32(*sampler.TopP)
	}
	if sampler.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*sampler.FrequencyPenalty)
	}
	if sampler.PresencePenalty != nil {
		req.PresencePenalty = float32(*sampler.PresencePenalty)
	}
	if sampler.MaxTokens > 0 {
		req.MaxTokens = sampler.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Reply{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("openai completion: empty choices")
	}

	return Reply{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func openAIMessages(messages []prompt.Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case prompt.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case prompt.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return converted
}
