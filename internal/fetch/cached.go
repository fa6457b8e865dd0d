package fetch

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long a fetched page's text is reused.
const DefaultCacheTTL = 15 * time.Minute

// CachedFetcher wraps Text with an in-memory cache keyed by URL.
type CachedFetcher struct {
	cache   *gocache.Cache
	options *Options
	fetch   func(ctx context.Context, urlStr string, opts *Options) (string, error)
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL time.Duration
	Options  *Options
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{
		CacheTTL: DefaultCacheTTL,
		Options:  DefaultOptions(),
	}
}

// NewCachedFetcher creates a new cached fetcher.
func NewCachedFetcher(config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	if config.Options == nil {
		config.Options = DefaultOptions()
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	return &CachedFetcher{
		cache:   gocache.New(config.CacheTTL, 2*config.CacheTTL),
		options: config.Options,
		fetch:   Text,
	}
}

// CachedResult is page text with cache metadata.
type CachedResult struct {
	URL       string
	Text      string
	FromCache bool
}

// Fetch returns the page text, from cache when fresh. Failures are not cached.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*CachedResult, error) {
	if v, ok := f.cache.Get(urlStr); ok {
		return &CachedResult{URL: urlStr, Text: v.(string), FromCache: true}, nil
	}

	text, err := f.fetch(ctx, urlStr, f.options)
	if err != nil {
		return nil, err
	}
	f.cache.SetDefault(urlStr, text)
	return &CachedResult{URL: urlStr, Text: text}, nil
}

// FetchMultiple fetches URLs in order. Failed fetches are nil in the result
// slice with the error at the same index.
func (f *CachedFetcher) FetchMultiple(ctx context.Context, urls []string) ([]*CachedResult, []error) {
	results := make([]*CachedResult, len(urls))
	errs := make([]error, len(urls))
	for i, u := range urls {
		results[i], errs[i] = f.Fetch(ctx, u)
	}
	return results, errs
}

// InvalidateCache drops a cached page, forcing a re-fetch on next request.
func (f *CachedFetcher) InvalidateCache(urlStr string) {
	f.cache.Delete(urlStr)
}
