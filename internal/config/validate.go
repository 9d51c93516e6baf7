package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidProvider indicates an unsupported backend provider
	ErrInvalidProvider = errors.New("invalid backend provider")

	// ErrEmptyModel indicates a missing model name
	ErrEmptyModel = errors.New("empty model name")

	// ErrEmptyInclude indicates no include patterns
	ErrEmptyInclude = errors.New("empty include patterns")

	// ErrInvalidConcurrency indicates a non-positive concurrency limit
	ErrInvalidConcurrency = errors.New("invalid concurrency")

	// ErrInvalidRetries indicates a negative retry count
	ErrInvalidRetries = errors.New("invalid max_retries")

	// ErrEmptyOutputDir indicates a missing output directory
	ErrEmptyOutputDir = errors.New("empty output dir")
)

var validProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"gemini":    true,
	"ollama":    true,
	"lmstudio":  true,
}

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	provider := strings.ToLower(cfg.Backend.Provider)
	if !validProviders[provider] {
		errs = append(errs, fmt.Errorf("%w: got '%s' (supported: anthropic, openai, gemini, ollama, lmstudio)", ErrInvalidProvider, cfg.Backend.Provider))
	}
	if cfg.Backend.Model == "" {
		errs = append(errs, ErrEmptyModel)
	}
	if len(cfg.Project.Include) == 0 {
		errs = append(errs, ErrEmptyInclude)
	}
	if cfg.Generation.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("%w: must be positive, got %d", ErrInvalidConcurrency, cfg.Generation.Concurrency))
	}
	if cfg.Generation.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%w: must be non-negative, got %d", ErrInvalidRetries, cfg.Generation.MaxRetries))
	}
	if cfg.Output.Dir == "" {
		errs = append(errs, ErrEmptyOutputDir)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

