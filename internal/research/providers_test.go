package research

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestSerpAPIProvider_Search(t *testing.T) {
	var gotQuery, gotKey, gotNum string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("api_key")
		gotNum = r.URL.Query().Get("num")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic_results": [
			{"title": "FTC warns of wire scams", "link": "https://www.consumer.ftc.gov/a", "snippet": "Never wire money"},
			{"title": "IC3 report", "link": "https://www.ic3.gov/b", "snippet": "Annual report"},
			{"title": "Third", "link": "https://example.org/c", "snippet": "c"}
		]}`))
	}))
	defer server.Close()

	p := NewSerpAPIProvider("serp-key").WithBaseURL(server.URL)
	results, err := p.Search(context.Background(), "wire transfer scam", 2)

	require.NoError(t, err)
	assert.Equal(t, "wire transfer scam", gotQuery)
	assert.Equal(t, "serp-key", gotKey)
	assert.Equal(t, "2", gotNum)
	require.Len(t, results, 2)
	assert.Equal(t, Result{
		Title:   "FTC warns of wire scams",
		Link:    "https://www.consumer.ftc.gov/a",
		Snippet: "Never wire money",
		Domain:  "ftc.gov",
	}, results[0])
	assert.Equal(t, "ic3.gov", results[1].Domain)
}

func TestSerpAPIProvider_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"search_metadata": {"status": "Success"}}`))
	}))
	defer server.Close()

	results, err := NewSerpAPIProvider("k").WithBaseURL(server.URL).Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSerpAPIProvider_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error": "Invalid API key"}`},
		{"malformed body", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			_, err := NewSerpAPIProvider("k").WithBaseURL(server.URL).Search(context.Background(), "q", 5)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestTavilyProvider_Search(t *testing.T) {
	var got tavilyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"results": [
			{"title": "AP fact check", "url": "https://apnews.com/article/x", "content": "` + strings.Repeat("y", 300) + `"}
		]}`))
	}))
	defer server.Close()

	p := NewTavilyProvider("tv-key").WithBaseURL(server.URL)
	results, err := p.Search(context.Background(), "viral claim", 0)

	require.NoError(t, err)
	assert.Equal(t, tavilyRequest{APIKey: "tv-key", Query: "viral claim", SearchDepth: "basic", MaxResults: DefaultResultCount}, got)
	require.Len(t, results, 1)
	assert.Equal(t, "https://apnews.com/article/x", results[0].Link)
	assert.Equal(t, "apnews.com", results[0].Domain)
	assert.Len(t, results[0].Snippet, tavilySnippetLength)
}

func TestTavilyProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewTavilyProvider("k").WithBaseURL(server.URL).Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGoogleProvider_Search(t *testing.T) {
	var gotCX, gotQ, gotNum string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCX = r.URL.Query().Get("cx")
		gotQ = r.URL.Query().Get("q")
		gotNum = r.URL.Query().Get("num")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [
			{"title": "Reuters fact check", "link": "https://www.reuters.com/fact-check/1", "snippet": "False claim"}
		]}`))
	}))
	defer server.Close()

	p, err := NewGoogleProvider(context.Background(), "g-key", "engine-1",
		option.WithEndpoint(server.URL+"/"), option.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "unnamed source claim", 3)
	require.NoError(t, err)
	assert.Equal(t, "engine-1", gotCX)
	assert.Equal(t, "unnamed source claim", gotQ)
	assert.Equal(t, "3", gotNum)
	require.Len(t, results, 1)
	assert.Equal(t, "reuters.com", results[0].Domain)
	assert.Equal(t, "False claim", results[0].Snippet)
}

func TestGoogleProvider_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "quota"}}`))
	}))
	defer server.Close()

	p, err := NewGoogleProvider(context.Background(), "g-key", "cx",
		option.WithEndpoint(server.URL+"/"), option.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrUnavailable)
}
