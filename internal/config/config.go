// Package config loads evidentia settings from defaults, a config file, the
// environment and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/evidentia/internal/llm"
	"github.com/jonathan/evidentia/internal/report"
	"github.com/jonathan/evidentia/internal/research"
)

// EnvPrefix prefixes every environment override, e.g. EVIDENTIA_SERVER_PORT.
const EnvPrefix = "EVIDENTIA"

// DefaultConfigPath is read when no --config flag is given.
const DefaultConfigPath = "~/.evidentia/config.yaml"

// Config is the effective configuration.
type Config struct {
	Model      ModelConfig       `mapstructure:"model" yaml:"model"`
	Search     SearchConfig      `mapstructure:"search" yaml:"search"`
	Analysis   AnalysisConfig    `mapstructure:"analysis" yaml:"analysis"`
	Thresholds report.Thresholds `mapstructure:"thresholds" yaml:"thresholds"`
	Storage    StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Server     ServerConfig      `mapstructure:"server" yaml:"server"`
	Fetch      FetchConfig       `mapstructure:"fetch" yaml:"fetch"`
	Log        LogConfig         `mapstructure:"log" yaml:"log"`
}

// ModelConfig selects the model backend.
type ModelConfig struct {
	Provider     string `mapstructure:"provider" yaml:"provider"`
	Name         string `mapstructure:"name" yaml:"name"`
	GeminiAPIKey string `mapstructure:"gemini_api_key" yaml:"gemini_api_key"`
	OpenAIAPIKey string `mapstructure:"openai_api_key" yaml:"openai_api_key"`
}

// APIKey returns the key for the selected provider.
func (m ModelConfig) APIKey() string {
	if p, _ := llm.ParseProvider(m.Provider); p == llm.ProviderOpenAI {
		return m.OpenAIAPIKey
	}
	return m.GeminiAPIKey
}

// SearchConfig selects the external search backend.
type SearchConfig struct {
	Provider     string `mapstructure:"provider" yaml:"provider"`
	APIKey       string `mapstructure:"api_key" yaml:"api_key"`
	TavilyAPIKey string `mapstructure:"tavily_api_key" yaml:"tavily_api_key"`
	GoogleAPIKey string `mapstructure:"google_api_key" yaml:"google_api_key"`
	GoogleCX     string `mapstructure:"google_cx" yaml:"google_cx"`
	// RequestsPerSecond throttles outgoing queries; zero disables throttling.
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// Settings converts to the research package's settings.
func (s SearchConfig) Settings() research.Settings {
	return research.Settings{
		Provider:     s.Provider,
		SearchAPIKey: s.APIKey,
		TavilyAPIKey: s.TavilyAPIKey,
		GoogleAPIKey: s.GoogleAPIKey,
		GoogleCX:     s.GoogleCX,
	}
}

// AnalysisConfig bounds one analysis run.
type AnalysisConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxSearchClaims  int           `mapstructure:"max_search_claims" yaml:"max_search_claims"`
	ResultsPerClaim  int           `mapstructure:"results_per_claim" yaml:"results_per_claim"`
	MaxKeyframes     int           `mapstructure:"max_keyframes" yaml:"max_keyframes"`
	KeyframeInterval time.Duration `mapstructure:"keyframe_interval" yaml:"keyframe_interval"`
	MediaParallelism int           `mapstructure:"media_parallelism" yaml:"media_parallelism"`
}

// StorageConfig selects report persistence. Both empty disables it.
type StorageConfig struct {
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port      int    `mapstructure:"port" yaml:"port"`
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir"`
}

// FetchConfig configures link fetching.
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UseBrowser    bool          `mapstructure:"use_browser" yaml:"use_browser"`
	RespectRobots bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
}

// LogConfig configures the module logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider: string(llm.ProviderGemini),
			Name:     llm.DefaultGeminiConfig().GetModel(llm.TierStandard),
		},
		Search: SearchConfig{
			Provider: research.ProviderNone,
			CacheTTL: time.Hour,
		},
		Analysis: AnalysisConfig{
			Timeout:          60 * time.Second,
			MaxSearchClaims:  6,
			ResultsPerClaim:  research.DefaultResultCount,
			MaxKeyframes:     8,
			KeyframeInterval: 5 * time.Second,
			MediaParallelism: 4,
		},
		Thresholds: report.DefaultThresholds(),
		Server: ServerConfig{
			Port:      8080,
			UploadDir: "uploads",
		},
		Fetch: FetchConfig{
			Timeout:       10 * time.Second,
			RespectRobots: true,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// wellKnownEnv are conventional variable names read alongside the
// EVIDENTIA_ prefixed form.
var wellKnownEnv = map[string]string{
	"model.provider":        "MODEL_PROVIDER",
	"model.name":            "GEMINI_MODEL",
	"model.gemini_api_key":  "GEMINI_API_KEY",
	"model.openai_api_key":  "OPENAI_API_KEY",
	"search.provider":       "SEARCH_API_PROVIDER",
	"search.api_key":        "SEARCH_API_KEY",
	"search.tavily_api_key": "TAVILY_API_KEY",
	"search.google_api_key": "GOOGLE_SEARCH_API_KEY",
	"search.google_cx":      "GOOGLE_SEARCH_CX",
	"storage.database_url":  "DATABASE_URL",
	"log.level":             "LOG_LEVEL",
	"log.format":            "LOG_FORMAT",
	"server.port":           "PORT",
}

// Load reads configuration into v and returns the merged result. path may be
// empty, in which case DefaultConfigPath is used when it exists. Flags bound
// to v before calling Load take priority over everything else.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range wellKnownEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	resolved, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %s: %w", path, err)
	}
	if _, statErr := os.Stat(resolved); statErr == nil || explicit {
		v.SetConfigFile(resolved)
		if ext := strings.TrimPrefix(filepath.Ext(resolved), "."); ext == "yml" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", resolved, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	merged := cfg.MergeWithDefaults(Default())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("model.provider", d.Model.Provider)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.gemini_api_key", "")
	v.SetDefault("model.openai_api_key", "")

	v.SetDefault("search.provider", d.Search.Provider)
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.tavily_api_key", "")
	v.SetDefault("search.google_api_key", "")
	v.SetDefault("search.google_cx", "")
	v.SetDefault("search.requests_per_second", d.Search.RequestsPerSecond)
	v.SetDefault("search.cache_ttl", d.Search.CacheTTL)

	v.SetDefault("analysis.timeout", d.Analysis.Timeout)
	v.SetDefault("analysis.max_search_claims", d.Analysis.MaxSearchClaims)
	v.SetDefault("analysis.results_per_claim", d.Analysis.ResultsPerClaim)
	v.SetDefault("analysis.max_keyframes", d.Analysis.MaxKeyframes)
	v.SetDefault("analysis.keyframe_interval", d.Analysis.KeyframeInterval)
	v.SetDefault("analysis.media_parallelism", d.Analysis.MediaParallelism)

	v.SetDefault("thresholds.no_search_cap", d.Thresholds.NoSearchCap)
	v.SetDefault("thresholds.low_checkable_ratio", d.Thresholds.LowCheckableRatio)
	v.SetDefault("thresholds.low_checkable_cap", d.Thresholds.LowCheckableCap)
	v.SetDefault("thresholds.min_cited_claims", d.Thresholds.MinCitedClaims)
	v.SetDefault("thresholds.disputed_ratio", d.Thresholds.DisputedRatio)
	v.SetDefault("thresholds.high_signal", d.Thresholds.HighSignal)
	v.SetDefault("thresholds.manipulated_floor", d.Thresholds.ManipulatedFloor)
	v.SetDefault("thresholds.disputed_floor", d.Thresholds.DisputedFloor)
	v.SetDefault("thresholds.manipulated_minimum", d.Thresholds.ManipulatedMinimum)

	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.sqlite_path", "")

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.upload_dir", d.Server.UploadDir)

	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.use_browser", d.Fetch.UseBrowser)
	v.SetDefault("fetch.respect_robots", d.Fetch.RespectRobots)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := llm.ParseProvider(c.Model.Provider); !ok {
		errs = append(errs, fmt.Errorf("config error: unknown model provider %q", c.Model.Provider))
	}
	switch c.Search.Provider {
	case "", research.ProviderNone, research.ProviderGoogle, research.ProviderSerpAPI, research.ProviderTavily:
	default:
		errs = append(errs, fmt.Errorf("config error: unknown search provider %q", c.Search.Provider))
	}

	nonNegative := map[string]int64{
		"analysis.timeout":           int64(c.Analysis.Timeout),
		"analysis.max_search_claims": int64(c.Analysis.MaxSearchClaims),
		"analysis.results_per_claim": int64(c.Analysis.ResultsPerClaim),
		"analysis.max_keyframes":     int64(c.Analysis.MaxKeyframes),
		"analysis.keyframe_interval": int64(c.Analysis.KeyframeInterval),
		"analysis.media_parallelism": int64(c.Analysis.MediaParallelism),
		"search.cache_ttl":           int64(c.Search.CacheTTL),
		"fetch.timeout":              int64(c.Fetch.Timeout),
	}
	for _, name := range sortedKeys(nonNegative) {
		if nonNegative[name] < 0 {
			errs = append(errs, fmt.Errorf("config error: '%s' must be non-negative", name))
		}
	}
	if c.Search.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("config error: 'search.requests_per_second' must be non-negative"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("config error: 'server.port' out of range: %d", c.Server.Port))
	}
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config error: %w", err))
	}
	return errors.Join(errs...)
}

// MergeWithDefaults returns a copy with zero fields filled from defaults.
// Booleans are never merged because false cannot be told apart from unset.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	fillString(&result.Model.Provider, defaults.Model.Provider)
	fillString(&result.Model.Name, defaults.Model.Name)
	fillString(&result.Search.Provider, defaults.Search.Provider)
	fillString(&result.Server.UploadDir, defaults.Server.UploadDir)
	fillString(&result.Log.Level, defaults.Log.Level)
	fillString(&result.Log.Format, defaults.Log.Format)

	fill(&result.Search.CacheTTL, defaults.Search.CacheTTL)
	fill(&result.Analysis.Timeout, defaults.Analysis.Timeout)
	fill(&result.Analysis.MaxSearchClaims, defaults.Analysis.MaxSearchClaims)
	fill(&result.Analysis.ResultsPerClaim, defaults.Analysis.ResultsPerClaim)
	fill(&result.Analysis.MaxKeyframes, defaults.Analysis.MaxKeyframes)
	fill(&result.Analysis.KeyframeInterval, defaults.Analysis.KeyframeInterval)
	fill(&result.Analysis.MediaParallelism, defaults.Analysis.MediaParallelism)
	fill(&result.Server.Port, defaults.Server.Port)
	fill(&result.Fetch.Timeout, defaults.Fetch.Timeout)

	if result.Thresholds == (report.Thresholds{}) {
		result.Thresholds = defaults.Thresholds
	}
	return result
}

func fillString(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}

func fill[T int | time.Duration](dst *T, def T) {
	if *dst == 0 {
		*dst = def
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const redacted = "********"

// Redacted returns a copy with credentials masked. Empty credentials stay
// empty so a missing key is still visible.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}
	c.Model.GeminiAPIKey = mask(c.Model.GeminiAPIKey)
	c.Model.OpenAIAPIKey = mask(c.Model.OpenAIAPIKey)
	c.Search.APIKey = mask(c.Search.APIKey)
	c.Search.TavilyAPIKey = mask(c.Search.TavilyAPIKey)
	c.Search.GoogleAPIKey = mask(c.Search.GoogleAPIKey)
	c.Storage.DatabaseURL = mask(c.Storage.DatabaseURL)
	return c
}

// YAML renders the redacted configuration.
func (c Config) YAML() (string, error) {
	out, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", fmt.Errorf("error marshaling config: %w", err)
	}
	return string(out), nil
}
