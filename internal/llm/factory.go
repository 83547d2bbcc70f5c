package llm

import (
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/drususdark/audit-inventory-mvp/internal/config"
	"github.com/drususdark/audit-inventory-mvp/pkg/anthropic"
	"github.com/drususdark/audit-inventory-mvp/pkg/gemini"
)

// credentialEnv names the variable operators set for each provider key.
var credentialEnv = map[ProviderName]string{
	DeepSeek:  "DEEPSEEK_API_KEY",
	Groq:      "GROQ_API_KEY",
	Gemini:    "GEMINI_API_KEY",
	OpenAI:    "OPENAI_API_KEY",
	Anthropic: "ANTHROPIC_API_KEY",
}

// New builds the provider selected by name. A missing credential yields a
// *ConfigurationError before any network I/O.
func New(name ProviderName, cfg config.AIConfig) (Provider, error) {
	pc, err := providerConfig(name, cfg)
	if err != nil {
		return nil, err
	}
	if pc.Key == "" {
		return nil, &ConfigurationError{Provider: name, Credential: credentialEnv[name]}
	}

	switch name {
	case DeepSeek, Groq, OpenAI:
		return newOpenAICompatible(name, pc), nil
	case Gemini:
		var opts []gemini.Option
		if pc.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(pc.BaseURL))
		}
		if pc.Model != "" {
			opts = append(opts, gemini.WithModel(pc.Model))
		}
		return &geminiProvider{client: gemini.NewClient(pc.Key, opts...)}, nil
	case Anthropic:
		var opts []option.RequestOption
		if pc.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(pc.BaseURL))
		}
		return newAnthropicProvider(anthropic.NewClient(pc.Key, opts...), pc.Model), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", name)
	}
}

func providerConfig(name ProviderName, cfg config.AIConfig) (config.ProviderConfig, error) {
	switch name {
	case DeepSeek:
		return cfg.DeepSeek, nil
	case Groq:
		return cfg.Groq, nil
	case Gemini:
		return cfg.Gemini, nil
	case OpenAI:
		return cfg.OpenAI, nil
	case Anthropic:
		return cfg.Anthropic, nil
	default:
		return config.ProviderConfig{}, eris.Errorf("llm: unknown provider %q", name)
	}
}
