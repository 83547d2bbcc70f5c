package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/drususdark/audit-inventory-mvp/pkg/anthropic"
)

const anthropicMaxTokens = 2048

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(client anthropic.Client, model string) *anthropicProvider {
	return &anthropicProvider{client: client, model: model}
}

func (p *anthropicProvider) Name() ProviderName { return Anthropic }

func (p *anthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	temp := Temperature
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   anthropicMaxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		var statusErr *anthropic.StatusError
		if errors.As(err, &statusErr) {
			return "", &ProviderError{Provider: Anthropic, StatusCode: statusErr.StatusCode, Body: statusErr.Body}
		}
		return "", eris.Wrap(err, "llm: anthropic create message")
	}
	resp.Usage.LogCost(p.model, "score")

	text := resp.Text()
	if text == "" {
		return "", &ProviderError{Provider: Anthropic, Body: "empty content"}
	}
	return text, nil
}
