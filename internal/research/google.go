package research

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// GoogleProvider searches with the Programmable Search Engine JSON API.
type GoogleProvider struct {
	svc *customsearch.Service
	cx  string
}

// NewGoogleProvider creates a provider for search engine cx. Extra client
// options are appended after the API key; tests use them to point the
// service at a local server.
func NewGoogleProvider(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*GoogleProvider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &GoogleProvider{svc: svc, cx: cx}, nil
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return ProviderGoogle }

// Search implements Provider.
func (p *GoogleProvider) Search(ctx context.Context, query string, n int) ([]Result, error) {
	n = clampCount(n)
	resp, err := p.svc.Cse.List().Cx(p.cx).Q(query).Num(int64(n)).Context(ctx).Do()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: google: %w", ErrUnavailable, err)
	}

	var results []Result
	for _, item := range resp.Items {
		if len(results) == n {
			break
		}
		results = append(results, Result{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
			Domain:  DomainOf(item.Link),
		})
	}
	return results, nil
}
