package main

import (
	"context"
	"fmt"

	"github.com/jonathan/evidentia/internal/config"
	"github.com/jonathan/evidentia/internal/fetch"
	"github.com/jonathan/evidentia/internal/ingestion"
	"github.com/jonathan/evidentia/internal/llm"
	"github.com/jonathan/evidentia/internal/media"
	"github.com/jonathan/evidentia/internal/pipeline"
	"github.com/jonathan/evidentia/internal/research"
	"github.com/jonathan/evidentia/internal/server"
)

// services are the long-lived collaborators built from the configuration.
type services struct {
	client  *llm.Gateway
	fetcher *fetch.CachedFetcher
	runner  *pipeline.Runner
}

func (s *services) Close() {
	_ = s.client.Close()
}

// newServices wires the model gateway, search, link fetching, normalization
// and media analysis into a pipeline runner.
func newServices(ctx context.Context, cfg *config.Config) (*services, error) {
	provider, _ := llm.ParseProvider(cfg.Model.Provider)
	model := cfg.Model.Name
	if provider == llm.ProviderOpenAI && model == llm.DefaultGeminiConfig().GetModel(llm.TierStandard) {
		model = ""
	}
	client, err := llm.NewClient(ctx, llm.ConfigFor(provider, model), cfg.Model.APIKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	search, err := newSearch(ctx, cfg.Search)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	fetcher := newFetcher(cfg.Fetch)
	normalizer := ingestion.New(ingestion.Options{
		Codec:            ingestion.NewFFmpeg(),
		FetchLink:        fetchText(fetcher),
		KeyframeInterval: cfg.Analysis.KeyframeInterval,
	})

	var analyzer *media.Analyzer
	if client.Configured() {
		analyzer = media.New(client, media.Options{
			MaxFrames: cfg.Analysis.MaxKeyframes,
			Parallel:  cfg.Analysis.MediaParallelism,
		})
	}

	runner := pipeline.New(pipeline.Deps{
		Client:     client,
		Search:     search,
		Normalizer: normalizer,
		Media:      analyzer,
	}, pipeline.Config{
		Timeout:         cfg.Analysis.Timeout,
		MaxSearchClaims: cfg.Analysis.MaxSearchClaims,
		ResultsPerClaim: cfg.Analysis.ResultsPerClaim,
		Thresholds:      cfg.Thresholds,
	})

	return &services{client: client, fetcher: fetcher, runner: runner}, nil
}

// newSearch builds the configured provider behind a rate limit and a result
// cache. It returns nil when search is not configured.
func newSearch(ctx context.Context, sc config.SearchConfig) (research.Provider, error) {
	base, err := research.New(ctx, sc.Settings())
	if err != nil {
		return nil, fmt.Errorf("failed to create search provider: %w", err)
	}
	if base == nil {
		return nil, nil
	}
	p := base
	if sc.RequestsPerSecond > 0 {
		p = research.NewLimitedProvider(p, sc.RequestsPerSecond, 1)
	}
	return research.NewCachedProvider(p, sc.CacheTTL), nil
}

func newFetcher(fc config.FetchConfig) *fetch.CachedFetcher {
	opts := fetch.DefaultOptions()
	opts.Timeout = fc.Timeout
	opts.UseBrowser = fc.UseBrowser
	if fc.RespectRobots {
		opts.Robots = fetch.NewRobotsChecker(opts.UserAgent, fc.Timeout)
	}
	return fetch.NewCachedFetcher(&fetch.CachedFetcherConfig{Options: opts})
}

func fetchText(f *fetch.CachedFetcher) ingestion.LinkFetcher {
	return func(ctx context.Context, url string) (string, error) {
		res, err := f.Fetch(ctx, url)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	}
}

// statusInfo reports which backends are configured without exposing keys.
func statusInfo(cfg *config.Config) server.StatusInfo {
	return server.StatusInfo{
		ModelProvider:    cfg.Model.Provider,
		ModelKeyPresent:  cfg.Model.APIKey() != "",
		ModelNamePresent: cfg.Model.Name != "",
		SearchProvider:   cfg.Search.Provider,
		SearchKeyPresent: cfg.Search.APIKey != "" || cfg.Search.GoogleAPIKey != "",
		TavilyKeyPresent: cfg.Search.TavilyAPIKey != "",
		StorePresent:     cfg.Storage.DatabaseURL != "" || cfg.Storage.SQLitePath != "",
	}
}
