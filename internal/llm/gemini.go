package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"github.com/jonathan/evidentia/internal/types"
)

// GeminiBackend implements Backend for Google Gemini
type GeminiBackend struct {
	client      *genai.Client
	temperature float32
}

// NewGeminiBackend creates a new Gemini backend
func NewGeminiBackend(ctx context.Context, apiKey string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiBackend{client: client, temperature: 0.2}, nil
}

// Generate issues one GenerateContent request.
func (b *GeminiBackend) Generate(ctx context.Context, modelName, prompt string, parts []types.InlineData, jsonMode bool) (string, error) {
	model := b.client.GenerativeModel(modelName)
	model.SetTemperature(b.temperature)
	if jsonMode {
		model.ResponseMIMEType = "application/json"
	}

	req := make([]genai.Part, 0, len(parts)+1)
	req = append(req, genai.Text(prompt))
	for _, p := range parts {
		req = append(req, genai.Blob{MIMEType: p.MIMEType, Data: p.Data})
	}

	resp, err := model.GenerateContent(ctx, req...)
	if err != nil {
		return "", geminiError(err)
	}
	return extractTextFromResponse(resp)
}

// Close releases resources held by the client
func (b *GeminiBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// geminiError converts SDK errors into *APIError, keeping the structured
// retry delay when the service sends one.
func geminiError(err error) error {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		out := &APIError{StatusCode: ae.HTTPCode(), Message: err.Error(), Cause: err}
		if out.StatusCode <= 0 && ae.GRPCStatus() != nil {
			switch ae.GRPCStatus().Code() {
			case codes.ResourceExhausted:
				out.StatusCode = http.StatusTooManyRequests
			case codes.Unavailable:
				out.StatusCode = http.StatusServiceUnavailable
			case codes.InvalidArgument:
				out.StatusCode = http.StatusBadRequest
			case codes.PermissionDenied, codes.Unauthenticated:
				out.StatusCode = http.StatusForbidden
			}
		}
		if ri := ae.Details().RetryInfo; ri != nil && ri.GetRetryDelay() != nil {
			out.RetryAfter = ri.GetRetryDelay().AsDuration()
		}
		return out
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		out := &APIError{StatusCode: ge.Code, Message: ge.Message, Cause: err}
		if out.Message == "" {
			out.Message = err.Error()
		}
		out.RetryAfter = parseRetryAfterHeader(ge.Header.Get("Retry-After"))
		return out
	}

	return fmt.Errorf("failed to generate content: %w", err)
}

// parseRetryAfterHeader reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfterHeader(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", ErrEmptyResponse
	}

	return strings.Join(parts, ""), nil
}
