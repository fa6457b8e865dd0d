package research

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jonathan/evidentia/internal/metrics"
)

// DefaultCacheTTL is how long search results are reused.
const DefaultCacheTTL = 30 * time.Minute

// CachedProvider memoizes successful searches by provider, query, and count.
// Failures are not cached.
type CachedProvider struct {
	next  Provider
	cache *gocache.Cache
}

// NewCachedProvider wraps next with a TTL cache.
func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedProvider{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Name implements Provider.
func (p *CachedProvider) Name() string { return p.next.Name() }

// Search implements Provider.
func (p *CachedProvider) Search(ctx context.Context, query string, n int) ([]Result, error) {
	key := fmt.Sprintf("%s|%d|%s", p.next.Name(), n, query)
	if cached, found := p.cache.Get(key); found {
		metrics.SearchQueries.WithLabelValues(p.next.Name(), "cached").Inc()
		return cached.([]Result), nil
	}

	results, err := p.next.Search(ctx, query, n)
	if err != nil {
		metrics.SearchQueries.WithLabelValues(p.next.Name(), "error").Inc()
		return nil, err
	}
	metrics.SearchQueries.WithLabelValues(p.next.Name(), "ok").Inc()
	p.cache.SetDefault(key, results)
	return results, nil
}

// Flush drops every cached result.
func (p *CachedProvider) Flush() {
	p.cache.Flush()
}
