package research

import (
	"context"

	"golang.org/x/time/rate"
)

// LimitedProvider spaces out queries to stay within a backend's quota.
type LimitedProvider struct {
	next    Provider
	limiter *rate.Limiter
}

// NewLimitedProvider allows perSecond queries with the given burst.
func NewLimitedProvider(next Provider, perSecond float64, burst int) *LimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &LimitedProvider{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Name implements Provider.
func (p *LimitedProvider) Name() string { return p.next.Name() }

// Search waits for a token, then delegates. A done context ends the wait.
func (p *LimitedProvider) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return p.next.Search(ctx, query, n)
}
