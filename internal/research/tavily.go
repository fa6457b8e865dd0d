package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/jonathan/evidentia/internal/textutil"
)

// DefaultTavilyURL is the Tavily search endpoint.
const DefaultTavilyURL = "https://api.tavily.com/search"

// tavilySnippetLength caps Tavily page content used as a snippet.
const tavilySnippetLength = 200

// TavilyProvider searches with the Tavily API.
type TavilyProvider struct {
	apiKey  string
	baseURL string
	client  *retryablehttp.Client
}

// NewTavilyProvider creates a provider using apiKey.
func NewTavilyProvider(apiKey string) *TavilyProvider {
	return &TavilyProvider{
		apiKey:  apiKey,
		baseURL: DefaultTavilyURL,
		client:  newSearchClient(),
	}
}

// WithBaseURL overrides the endpoint.
func (p *TavilyProvider) WithBaseURL(u string) *TavilyProvider {
	p.baseURL = u
	return p
}

// Name implements Provider.
func (p *TavilyProvider) Name() string { return ProviderTavily }

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

// Search implements Provider.
func (p *TavilyProvider) Search(ctx context.Context, query string, n int) ([]Result, error) {
	n = clampCount(n)

	payload, err := json.Marshal(tavilyRequest{
		APIKey:      p.apiKey,
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tavily request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := doSearch(ctx, p.client, req, "tavily")
	if err != nil {
		return nil, err
	}

	var results []Result
	gjson.GetBytes(body, "results").ForEach(func(_, r gjson.Result) bool {
		link := r.Get("url").String()
		results = append(results, Result{
			Title:   r.Get("title").String(),
			Link:    link,
			Snippet: textutil.Truncate(r.Get("content").String(), tavilySnippetLength),
			Domain:  DomainOf(link),
		})
		return len(results) < n
	})
	return results, nil
}
