package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/evidentia/internal/logging"
	"github.com/jonathan/evidentia/internal/metrics"
	"github.com/jonathan/evidentia/internal/types"
)

// Options control a single generation call.
type Options struct {
	// JSONMode asks the backend for JSON output. Code fences are stripped
	// from the reply either way.
	JSONMode bool
	// Model overrides the tier's model when set.
	Model string
	Tier  ModelTier
}

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateText sends a text-only prompt.
	GenerateText(ctx context.Context, prompt string, opts Options) (string, error)
	// GenerateTextWithParts sends a prompt followed by inline binary parts.
	GenerateTextWithParts(ctx context.Context, prompt string, parts []types.InlineData, opts Options) (string, error)
	// Configured reports whether a backend credential is present.
	Configured() bool
	// Model returns the default model name
	Model() string
	// Close releases any resources held by the client
	Close() error
}

// Backend performs one request against a model provider, without retries.
type Backend interface {
	Generate(ctx context.Context, model, prompt string, parts []types.InlineData, jsonMode bool) (string, error)
	Close() error
}

// Gateway implements Client over a Backend with bounded retry.
type Gateway struct {
	backend Backend
	config  *Config
	retry   RetryPolicy
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) GatewayOption {
	return func(g *Gateway) {
		if p.Sleep == nil {
			p.Sleep = sleepContext
		}
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		g.retry = p
	}
}

// NewGateway wraps backend. A nil backend yields an unconfigured gateway whose
// calls fail with ErrMissingCredential.
func NewGateway(backend Backend, config *Config, opts ...GatewayOption) *Gateway {
	if config == nil {
		config = DefaultConfig()
	}
	g := &Gateway{backend: backend, config: config, retry: DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewClient creates a gateway for the configured provider. An empty apiKey
// returns an unconfigured gateway rather than an error so callers can fall
// back to demo mode.
func NewClient(ctx context.Context, config *Config, apiKey string) (*Gateway, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if apiKey == "" {
		return NewGateway(nil, config), nil
	}

	var backend Backend
	var err error
	switch config.Provider {
	case ProviderOpenAI:
		backend = NewOpenAIBackend(apiKey)
	default:
		backend, err = NewGeminiBackend(ctx, apiKey)
	}
	if err != nil {
		return nil, err
	}
	return NewGateway(backend, config), nil
}

// GenerateText sends a text-only prompt.
func (g *Gateway) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	return g.generate(ctx, prompt, nil, opts)
}

// GenerateTextWithParts sends a prompt followed by inline binary parts.
func (g *Gateway) GenerateTextWithParts(ctx context.Context, prompt string, parts []types.InlineData, opts Options) (string, error) {
	return g.generate(ctx, prompt, parts, opts)
}

// Configured reports whether a backend is present.
func (g *Gateway) Configured() bool {
	return g.backend != nil
}

// Model returns the standard-tier model name.
func (g *Gateway) Model() string {
	return g.config.GetModel(TierStandard)
}

// Close releases resources held by the backend
func (g *Gateway) Close() error {
	if g.backend != nil {
		return g.backend.Close()
	}
	return nil
}

func (g *Gateway) generate(ctx context.Context, prompt string, parts []types.InlineData, opts Options) (string, error) {
	if g.backend == nil {
		metrics.ModelCalls.WithLabelValues("missing_credential").Inc()
		return "", ErrMissingCredential
	}

	model := opts.Model
	if model == "" {
		tier := opts.Tier
		if tier == "" {
			tier = TierStandard
		}
		model = g.config.GetModel(tier)
	}
	if model == "" {
		return "", fmt.Errorf("no model configured for tier %s", opts.Tier)
	}

	var lastErr error
	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		text, err := g.backend.Generate(ctx, model, prompt, parts, opts.JSONMode)
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyResponse
		}
		if err == nil {
			metrics.ModelCalls.WithLabelValues("ok").Inc()
			return CleanJSONBlock(text), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.ModelCalls.WithLabelValues("canceled").Inc()
			return "", ctxErr
		}
		if errors.Is(err, ErrMissingCredential) {
			metrics.ModelCalls.WithLabelValues("missing_credential").Inc()
			return "", err
		}

		lastErr = err
		if attempt == g.retry.MaxAttempts || !IsTransient(err) {
			break
		}

		delay := g.retry.Delay(err, attempt)
		logging.Log.WithFields(logrus.Fields{
			"model":   model,
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warnf("transient model error, retrying: %v", err)
		metrics.ModelRetries.Inc()
		if err := g.retry.Sleep(ctx, delay); err != nil {
			metrics.ModelCalls.WithLabelValues("canceled").Inc()
			return "", err
		}
	}

	outcome := "error"
	if IsTransient(lastErr) {
		outcome = "transient_exhausted"
	}
	metrics.ModelCalls.WithLabelValues(outcome).Inc()
	return "", lastErr
}
