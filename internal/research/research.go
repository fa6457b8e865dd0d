// Package research looks up claims on the open web. One Provider is active at
// a time, selected by configuration; it can be wrapped with a result cache and
// a request limiter.
package research

import (
	"context"
	"errors"
)

// Provider names accepted in configuration.
const (
	ProviderNone    = "none"
	ProviderGoogle  = "google"
	ProviderSerpAPI = "serpapi"
	ProviderTavily  = "tavily"
)

// DefaultResultCount bounds results per query.
const DefaultResultCount = 5

// ErrUnavailable is returned by providers that cannot answer a query, for
// example when the backend rejects the key or returns a malformed payload.
var ErrUnavailable = errors.New("search unavailable")

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain,omitempty"`
}

// Provider runs web searches. Search returns at most n results in ranking
// order; a nil slice with a nil error means the query matched nothing.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// Settings selects and authenticates a provider.
type Settings struct {
	Provider     string
	SearchAPIKey string
	TavilyAPIKey string
	GoogleAPIKey string
	GoogleCX     string
}

// Configured reports whether s names a provider with the credentials it needs.
func (s Settings) Configured() bool {
	switch s.Provider {
	case ProviderSerpAPI:
		return s.SearchAPIKey != ""
	case ProviderTavily:
		return s.tavilyKey() != ""
	case ProviderGoogle:
		return s.googleKey() != "" && s.GoogleCX != ""
	}
	return false
}

func (s Settings) tavilyKey() string {
	if s.TavilyAPIKey != "" {
		return s.TavilyAPIKey
	}
	return s.SearchAPIKey
}

func (s Settings) googleKey() string {
	if s.GoogleAPIKey != "" {
		return s.GoogleAPIKey
	}
	return s.SearchAPIKey
}

// New builds the provider named by s. It returns nil and no error when search
// is not configured.
func New(ctx context.Context, s Settings) (Provider, error) {
	if !s.Configured() {
		return nil, nil
	}
	switch s.Provider {
	case ProviderSerpAPI:
		return NewSerpAPIProvider(s.SearchAPIKey), nil
	case ProviderTavily:
		return NewTavilyProvider(s.tavilyKey()), nil
	case ProviderGoogle:
		return NewGoogleProvider(ctx, s.googleKey(), s.GoogleCX)
	}
	return nil, nil
}

// clampCount keeps n within what the backends accept.
func clampCount(n int) int {
	if n <= 0 {
		return DefaultResultCount
	}
	if n > 10 {
		return 10
	}
	return n
}
