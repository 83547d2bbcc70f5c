// Package llm sends a single scoring prompt to one of the supported AI
// providers and returns the raw completion text.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ProviderName identifies an AI provider. The set is closed.
type ProviderName string

const (
	DeepSeek  ProviderName = "deepseek"
	Groq      ProviderName = "groq"
	Gemini    ProviderName = "gemini"
	OpenAI    ProviderName = "openai"
	Anthropic ProviderName = "anthropic"
)

// DefaultProvider is used when no provider is configured.
const DefaultProvider = DeepSeek

// ProviderNames lists every supported provider.
func ProviderNames() []ProviderName {
	return []ProviderName{DeepSeek, Groq, Gemini, OpenAI, Anthropic}
}

// ParseProviderName normalizes a configured provider name. An empty string
// selects DefaultProvider.
func ParseProviderName(s string) (ProviderName, error) {
	name := ProviderName(strings.ToLower(strings.TrimSpace(s)))
	if name == "" {
		return DefaultProvider, nil
	}
	for _, p := range ProviderNames() {
		if p == name {
			return p, nil
		}
	}
	return "", eris.Errorf("llm: unknown provider %q", s)
}

// Temperature is the sampling temperature used for every scoring request.
const Temperature = 0.3

// Request is one scoring exchange: a system instruction and a user prompt.
// Providers always ask for a JSON-only answer.
type Request struct {
	System string
	Prompt string
}

// Provider sends a Request and returns the completion content verbatim.
type Provider interface {
	Name() ProviderName
	Complete(ctx context.Context, req Request) (string, error)
}

// ConfigurationError reports a missing credential for the selected provider.
type ConfigurationError struct {
	Provider   ProviderName
	Credential string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("llm: %s is not configured (%s is empty)", e.Provider, e.Credential)
}

// ProviderError reports a non-success response or a response without content.
type ProviderError struct {
	Provider   ProviderName
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("llm: %s returned no content: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("llm: %s returned %d: %s", e.Provider, e.StatusCode, e.Body)
}
