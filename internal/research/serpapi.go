package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// DefaultSerpAPIURL is the SerpAPI search endpoint.
const DefaultSerpAPIURL = "https://serpapi.com/search"

// SerpAPIProvider searches Google results through SerpAPI.
type SerpAPIProvider struct {
	apiKey  string
	baseURL string
	client  *retryablehttp.Client
}

// NewSerpAPIProvider creates a provider using apiKey.
func NewSerpAPIProvider(apiKey string) *SerpAPIProvider {
	return &SerpAPIProvider{
		apiKey:  apiKey,
		baseURL: DefaultSerpAPIURL,
		client:  newSearchClient(),
	}
}

// WithBaseURL overrides the endpoint.
func (p *SerpAPIProvider) WithBaseURL(u string) *SerpAPIProvider {
	p.baseURL = u
	return p
}

// Name implements Provider.
func (p *SerpAPIProvider) Name() string { return ProviderSerpAPI }

// Search implements Provider.
func (p *SerpAPIProvider) Search(ctx context.Context, query string, n int) ([]Result, error) {
	n = clampCount(n)

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid serpapi url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("api_key", p.apiKey)
	q.Set("num", strconv.Itoa(n))
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build serpapi request: %w", err)
	}
	body, err := doSearch(ctx, p.client, req, "serpapi")
	if err != nil {
		return nil, err
	}

	var results []Result
	gjson.GetBytes(body, "organic_results").ForEach(func(_, r gjson.Result) bool {
		link := r.Get("link").String()
		results = append(results, Result{
			Title:   r.Get("title").String(),
			Link:    link,
			Snippet: r.Get("snippet").String(),
			Domain:  DomainOf(link),
		})
		return len(results) < n
	})
	return results, nil
}

// newSearchClient returns a quiet retrying client for search backends.
func newSearchClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 2
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	return client
}

// doSearch executes req and returns the body of a 2xx JSON response.
func doSearch(ctx context.Context, client *retryablehttp.Client, req *retryablehttp.Request, name string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", ErrUnavailable, name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: HTTP status %d", ErrUnavailable, name, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s: malformed response", ErrUnavailable, name)
	}
	return body, nil
}
