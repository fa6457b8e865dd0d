package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	results []Result
	err     error
	calls   int
	queries []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, query string, n int) ([]Result, error) {
	f.calls++
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > n {
		return f.results[:n], nil
	}
	return f.results, nil
}

func TestSettings_Configured(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		expected bool
	}{
		{"none", Settings{Provider: ProviderNone, SearchAPIKey: "k"}, false},
		{"empty provider", Settings{SearchAPIKey: "k"}, false},
		{"serpapi with key", Settings{Provider: ProviderSerpAPI, SearchAPIKey: "k"}, true},
		{"serpapi without key", Settings{Provider: ProviderSerpAPI, TavilyAPIKey: "t"}, false},
		{"tavily with own key", Settings{Provider: ProviderTavily, TavilyAPIKey: "t"}, true},
		{"tavily with shared key", Settings{Provider: ProviderTavily, SearchAPIKey: "k"}, true},
		{"google needs cx", Settings{Provider: ProviderGoogle, GoogleAPIKey: "g"}, false},
		{"google complete", Settings{Provider: ProviderGoogle, GoogleAPIKey: "g", GoogleCX: "cx"}, true},
		{"unknown provider", Settings{Provider: "bing", SearchAPIKey: "k"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.Configured())
		})
	}
}

func TestNew(t *testing.T) {
	p, err := New(context.Background(), Settings{Provider: ProviderNone})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = New(context.Background(), Settings{Provider: ProviderSerpAPI, SearchAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderSerpAPI, p.Name())

	p, err = New(context.Background(), Settings{Provider: ProviderTavily, TavilyAPIKey: "t"})
	require.NoError(t, err)
	assert.Equal(t, ProviderTavily, p.Name())

	p, err = New(context.Background(), Settings{Provider: ProviderGoogle, GoogleAPIKey: "g", GoogleCX: "cx"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, p.Name())
}

func TestClampCount(t *testing.T) {
	assert.Equal(t, DefaultResultCount, clampCount(0))
	assert.Equal(t, 3, clampCount(3))
	assert.Equal(t, 10, clampCount(50))
}

func TestCachedProvider(t *testing.T) {
	inner := &fakeProvider{name: "fake", results: []Result{{Title: "A", Link: "https://a.example.com"}}}
	p := NewCachedProvider(inner, 0)

	first, err := p.Search(context.Background(), "claim one", 5)
	require.NoError(t, err)
	second, err := p.Search(context.Background(), "claim one", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "fake", p.Name())

	_, err = p.Search(context.Background(), "claim one", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "different count is a different key")

	p.Flush()
	_, err = p.Search(context.Background(), "claim one", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestCachedProvider_DoesNotCacheErrors(t *testing.T) {
	inner := &fakeProvider{name: "fake", err: errors.New("quota")}
	p := NewCachedProvider(inner, 0)

	_, err := p.Search(context.Background(), "q", 5)
	assert.Error(t, err)
	_, err = p.Search(context.Background(), "q", 5)
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestLimitedProvider(t *testing.T) {
	inner := &fakeProvider{name: "fake", results: []Result{{Title: "A"}}}
	p := NewLimitedProvider(inner, 1000, 2)

	for i := 0; i < 3; i++ {
		res, err := p.Search(context.Background(), "q", 5)
		require.NoError(t, err)
		assert.Len(t, res, 1)
	}
	assert.Equal(t, 3, inner.calls)
}

func TestLimitedProvider_CanceledWait(t *testing.T) {
	inner := &fakeProvider{name: "fake"}
	p := NewLimitedProvider(inner, 0.001, 1)

	_, err := p.Search(context.Background(), "first", 5)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Search(ctx, "second", 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}
