package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/drususdark/audit-inventory-mvp/pkg/gemini"
)

type geminiProvider struct {
	client gemini.Client
}

func (p *geminiProvider) Name() ProviderName { return Gemini }

// Complete sends the system instruction and prompt as a single user part;
// the API has no separate system role in this request shape.
func (p *geminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	temp := Temperature
	resp, err := p.client.GenerateContent(ctx, gemini.GenerateContentRequest{
		Contents: []gemini.Content{{
			Parts: []gemini.Part{{Text: req.System + "\n\n" + req.Prompt}},
		}},
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:      &temp,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Provider: Gemini, StatusCode: apiErr.StatusCode, Body: apiErr.Body}
		}
		return "", eris.Wrap(err, "llm: gemini generate content")
	}

	text := resp.Text()
	if text == "" {
		return "", &ProviderError{Provider: Gemini, Body: "empty candidates"}
	}
	return text, nil
}
