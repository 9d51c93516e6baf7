package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOllamaBaseURL   = "http://localhost:11434/v1"
	defaultLMStudioBaseURL = "http://localhost:1234/v1"

	systemPrompt = "You are a technical documentation expert. Write precise, " +
		"well-structured Markdown documentation for the code you are given."
)

// OpenAIBackend speaks the Chat Completions API. It also serves Ollama and
// LM Studio, which expose OpenAI-compatible endpoints behind a different
// base URL.
type OpenAIBackend struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAI creates a backend for the hosted OpenAI API.
func NewOpenAI(apiKey, model, baseURL string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai backend requires an API key")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIBackend{name: "openai", baseURL: baseURL, apiKey: apiKey, model: model, client: &http.Client{}}, nil
}

// NewOllama creates a backend for a local Ollama server. No API key is
// required; the placeholder satisfies servers that validate the header.
func NewOllama(model, baseURL string) *OpenAIBackend {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OpenAIBackend{name: "ollama", baseURL: baseURL, apiKey: "ollama", model: model, client: &http.Client{}}
}

// NewLMStudio creates a backend for a local LM Studio server.
func NewLMStudio(model, baseURL string) *OpenAIBackend {
	if baseURL == "" {
		baseURL = defaultLMStudioBaseURL
	}
	return &OpenAIBackend{name: "lmstudio", baseURL: baseURL, apiKey: "lm-studio", model: model, client: &http.Client{}}
}

func (b *OpenAIBackend) Name() string  { return b.name + "/" + b.model }
func (b *OpenAIBackend) Model() string { return b.model }

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	payload := chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: req.Prompt + "\n\n" + req.Context},
		},
		MaxTokens: req.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(b.baseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		var parsed chatResponse
		message := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &parsed) == nil && parsed.Error != nil {
			message = parsed.Error.Message
		}
		return "", statusError(resp.StatusCode, message)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &Error{Kind: FailureTransient, Message: "malformed response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Kind: FailureTransient, Message: "empty response"}
	}
	return parsed.Choices[0].Message.Content, nil
}
