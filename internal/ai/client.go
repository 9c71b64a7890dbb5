package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the service replies without content.
var ErrEmptyCompletion = errors.New("completion has no content")

// Prompt is a structured request for task content.
type Prompt struct {
	System      string
	User        string
	Temperature float64
}

// Completer sends a prompt to a language model and returns the raw reply
// text, which is expected to be a JSON document.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// MistralClient calls Mistral's OpenAI-compatible chat-completions endpoint.
type MistralClient struct {
	client *openai.Client
	model  string
}

// NewMistralClient creates a client. timeout bounds each HTTP exchange.
func NewMistralClient(apiKey, baseURL, model string, timeout time.Duration) *MistralClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &MistralClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends the prompt in JSON mode and returns the first choice's content.
func (c *MistralClient) Complete(ctx context.Context, p Prompt) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: float32(p.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("failed to call completion endpoint: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
