package backend

import (
	"context"
	"fmt"
)

// Options selects and configures a concrete provider.
type Options struct {
	Provider string // "anthropic", "openai", "gemini", "ollama", "lmstudio"
	Model    string
	APIKey   string
	BaseURL  string
}

// New selects a provider by configuration. The caller holds only the
// Backend interface afterwards.
func New(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Provider {
	case "anthropic":
		return NewAnthropic(opts.APIKey, opts.Model, opts.BaseURL)
	case "openai":
		return NewOpenAI(opts.APIKey, opts.Model, opts.BaseURL)
	case "gemini":
		return NewGemini(ctx, opts.Model)
	case "ollama":
		return NewOllama(opts.Model, opts.BaseURL), nil
	case "lmstudio":
		return NewLMStudio(opts.Model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown backend provider %q (supported: anthropic, openai, gemini, ollama, lmstudio)", opts.Provider)
	}
}
