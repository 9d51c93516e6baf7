package backend

import (
	"context"
	"errors"

	genai "google.golang.org/genai"
)

// GeminiBackend wraps the official genai client. The client reads
// GEMINI_API_KEY from the environment when no key is supplied.
type GeminiBackend struct {
	cli   *genai.Client
	model string
}

// NewGemini creates a Gemini backend.
func NewGemini(ctx context.Context, model string) (*GeminiBackend, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiBackend{cli: cli, model: model}, nil
}

func (b *GeminiBackend) Name() string  { return "gemini/" + b.model }
func (b *GeminiBackend) Model() string { return b.model }

func (b *GeminiBackend) Complete(ctx context.Context, req Request) (string, error) {
	full := systemPrompt + "\n\n" + req.Prompt + "\n\n" + req.Context

	resp, err := b.cli.Models.GenerateContent(ctx, b.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		nil,
	)
	if err != nil {
		// The genai transport surfaces rate limits and server errors as
		// APIError values with an HTTP status code.
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", statusError(apiErr.Code, apiErr.Message)
		}
		return "", transportError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Kind: FailureTransient, Message: "empty response"}
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
