package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"

	"github.com/drususdark/audit-inventory-mvp/internal/config"
)

// openAICompatible serves DeepSeek, Groq and OpenAI, which all expose the
// OpenAI chat completions API.
type openAICompatible struct {
	name   ProviderName
	model  string
	client *openai.Client
}

func newOpenAICompatible(name ProviderName, pc config.ProviderConfig) *openAICompatible {
	clientConfig := openai.DefaultConfig(pc.Key)
	if pc.BaseURL != "" {
		clientConfig.BaseURL = pc.BaseURL
	}
	return &openAICompatible{
		name:   name,
		model:  pc.Model,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (p *openAICompatible) Name() ProviderName { return p.name }

func (p *openAICompatible) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", &ProviderError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
		}
		return "", eris.Wrapf(err, "llm: %s chat completion", p.name)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &ProviderError{Provider: p.name, Body: "empty choices"}
	}
	return resp.Choices[0].Message.Content, nil
}
