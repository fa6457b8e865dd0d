package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jonathan/evidentia/internal/types"
)

// OpenAIBackend implements Backend over the OpenAI chat completions API.
type OpenAIBackend struct {
	client      *openai.Client
	temperature float32
}

// NewOpenAIBackend creates a backend for the given API key.
func NewOpenAIBackend(apiKey string) *OpenAIBackend {
	return NewOpenAIBackendWithConfig(openai.DefaultConfig(apiKey))
}

// NewOpenAIBackendWithConfig allows overriding the base URL, mainly for tests.
func NewOpenAIBackendWithConfig(cfg openai.ClientConfig) *OpenAIBackend {
	return &OpenAIBackend{client: openai.NewClientWithConfig(cfg), temperature: 0.2}
}

// Generate sends one chat completion request. Only image parts are supported.
func (b *OpenAIBackend) Generate(ctx context.Context, model, prompt string, parts []types.InlineData, jsonMode bool) (string, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(parts) == 0 {
		msg.Content = prompt
	} else {
		msg.MultiContent = []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
		for _, p := range parts {
			if !strings.HasPrefix(p.MIMEType, "image/") {
				return "", fmt.Errorf("openai backend: unsupported part type %s", p.MIMEType)
			}
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    []openai.ChatCompletionMessage{msg},
		Temperature: b.temperature,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; the HTTP client holds no long-lived resources.
func (b *OpenAIBackend) Close() error {
	return nil
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Cause: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: err.Error(), Cause: err}
	}
	return fmt.Errorf("failed to generate content: %w", err)
}
