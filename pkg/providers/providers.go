package providers

import (
	"context"
	"fmt"
)

// Client completes a prompt with a chat model
type Client interface {
	Complete(ctx context.Context, model, system, prompt string) (string, error)
}

type ProviderParams struct {
	BaseURL string
	APIKey  string
}

type ProviderOption func(*ProviderParams)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *ProviderParams) {
		p.BaseURL = baseURL
	}
}

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *ProviderParams) {
		p.APIKey = apiKey
	}
}

// New creates the client for a provider name, "openai" or "gemini"
func New(ctx context.Context, provider string, opts ...ProviderOption) (Client, error) {
	switch provider {
	case "openai", "":
		return OpenAi(ctx, opts...), nil
	case "gemini":
		return Gemini(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
