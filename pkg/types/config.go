// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"math"
	"time"
)

// ConfigError reports an invalid engine configuration. It is fatal at
// startup and never produced at request time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// BackendConfig holds the per-backend settings. It is loaded once at process
// start and read-only for the lifetime of the engine.
type BackendConfig struct {
	// Enabled controls whether the backend participates in dispatch at all.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// APIKey is the bearer credential sent with every call.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider's default endpoint base.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// RateLimit is the maximum number of requests per RateWindow.
	RateLimit int `json:"rate_limit" yaml:"rate_limit"`

	// RateWindow is the throttling window for RateLimit (default 1s).
	RateWindow time.Duration `json:"rate_window" yaml:"rate_window"`

	// Timeout is the per-call HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries caps retry attempts on transient failures.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryBaseDelay is the initial backoff delay between retries.
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`
}

// ScorerConfig holds the quality-score weights and freshness decay settings.
type ScorerConfig struct {
	// The four weights must sum to 1.0.
	RelevanceWeight    float64 `json:"relevance_weight" yaml:"relevance_weight"`
	AuthorityWeight    float64 `json:"authority_weight" yaml:"authority_weight"`
	FreshnessWeight    float64 `json:"freshness_weight" yaml:"freshness_weight"`
	CompletenessWeight float64 `json:"completeness_weight" yaml:"completeness_weight"`

	// FreshnessHalfLife is the age at which the freshness score halves
	// (default 365 days).
	FreshnessHalfLife time.Duration `json:"freshness_half_life" yaml:"freshness_half_life"`
}

// RerankConfig holds the semantic reranker settings.
type RerankConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Model is the reranking model identifier (default "gte-rerank").
	Model string `json:"model" yaml:"model"`

	// MaxCandidates caps the batched payload size (default 50).
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates"`

	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// CacheConfig holds the result cache settings.
type CacheConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// TTL maps each search type to its cache lifetime. Missing types fall
	// back to DefaultTTL.
	TTL map[SearchType]time.Duration `json:"ttl" yaml:"ttl"`

	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl"`

	// SweepInterval controls the background eviction sweep; zero disables it.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`

	// StorePath optionally points at a SQLite file for persistence across
	// restarts. Empty means memory-only.
	StorePath string `json:"store_path,omitempty" yaml:"store_path,omitempty"`
}

// LimiterConfig holds the anti-detection settings shared by all backends.
type LimiterConfig struct {
	// JitterMin/JitterMax bound the randomized delay injected before each
	// outbound call. Zero values disable jitter.
	JitterMin time.Duration `json:"jitter_min" yaml:"jitter_min"`
	JitterMax time.Duration `json:"jitter_max" yaml:"jitter_max"`
}

// HealthConfig holds the failover state-machine tunables.
type HealthConfig struct {
	// DegradeAfter is the consecutive-failure count that demotes a backend
	// to Degraded (default 3).
	DegradeAfter int `json:"degrade_after" yaml:"degrade_after"`

	// DisableAfter is the windowed total-failure count that demotes a
	// Degraded backend to Disabled (default 10).
	DisableAfter int `json:"disable_after" yaml:"disable_after"`

	// FailureWindow bounds the window for DisableAfter (default 5m).
	FailureWindow time.Duration `json:"failure_window" yaml:"failure_window"`

	// Cooldown is how long a demoted backend sits out before a probe call
	// is admitted (default 60s).
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`
}

// Config is the root engine configuration.
type Config struct {
	Web   BackendConfig `json:"web" yaml:"web"`
	AI    BackendConfig `json:"ai" yaml:"ai"`
	Agent BackendConfig `json:"agent" yaml:"agent"`

	Scorer  ScorerConfig  `json:"scorer" yaml:"scorer"`
	Rerank  RerankConfig  `json:"rerank" yaml:"rerank"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Limiter LimiterConfig `json:"limiter" yaml:"limiter"`
	Health  HealthConfig  `json:"health" yaml:"health"`

	// OverallTimeout bounds one whole Search call across all backends
	// (default 30s), independent of per-backend timeouts.
	OverallTimeout time.Duration `json:"overall_timeout" yaml:"overall_timeout"`

	// DefaultLimit is applied when a request carries no limit.
	DefaultLimit int `json:"default_limit" yaml:"default_limit"`
}

// DefaultConfig returns the engine defaults. Callers overlay loaded values
// on top and then Validate.
func DefaultConfig() Config {
	backend := BackendConfig{
		Enabled:        true,
		RateLimit:      10,
		RateWindow:     time.Second,
		Timeout:        25 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Second,
	}
	return Config{
		Web:   backend,
		AI:    backend,
		Agent: backend,
		Scorer: ScorerConfig{
			RelevanceWeight:    0.4,
			AuthorityWeight:    0.25,
			FreshnessWeight:    0.15,
			CompletenessWeight: 0.2,
			FreshnessHalfLife:  365 * 24 * time.Hour,
		},
		Rerank: RerankConfig{
			Enabled:       true,
			Model:         "gte-rerank",
			MaxCandidates: 50,
			Timeout:       20 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL: map[SearchType]time.Duration{
				SearchGeneral:  30 * time.Minute,
				SearchAcademic: 2 * time.Hour,
				SearchCompany:  time.Hour,
				SearchPatent:   24 * time.Hour,
			},
			DefaultTTL:    30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Limiter: LimiterConfig{
			JitterMin: 50 * time.Millisecond,
			JitterMax: 250 * time.Millisecond,
		},
		Health: HealthConfig{
			DegradeAfter:  3,
			DisableAfter:  10,
			FailureWindow: 5 * time.Minute,
			Cooldown:      time.Minute,
		},
		OverallTimeout: 30 * time.Second,
		DefaultLimit:   DefaultResultLimit,
	}
}

// Validate checks the configuration. Invalid scorer weights or a missing
// credential on an enabled backend are fatal.
func (c Config) Validate() error {
	sum := c.Scorer.RelevanceWeight + c.Scorer.AuthorityWeight +
		c.Scorer.FreshnessWeight + c.Scorer.CompletenessWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return &ConfigError{
			Field:  "scorer",
			Reason: fmt.Sprintf("weights must sum to 1.0, got %.4f", sum),
		}
	}
	for _, w := range []struct {
		name string
		v    float64
	}{
		{"relevance_weight", c.Scorer.RelevanceWeight},
		{"authority_weight", c.Scorer.AuthorityWeight},
		{"freshness_weight", c.Scorer.FreshnessWeight},
		{"completeness_weight", c.Scorer.CompletenessWeight},
	} {
		if w.v < 0 || w.v > 1 {
			return &ConfigError{Field: "scorer." + w.name, Reason: "must be in [0,1]"}
		}
	}

	for _, b := range []struct {
		name string
		cfg  BackendConfig
	}{
		{"web", c.Web}, {"ai", c.AI}, {"agent", c.Agent},
	} {
		if !b.cfg.Enabled {
			continue
		}
		if b.cfg.APIKey == "" {
			return &ConfigError{Field: b.name + ".api_key", Reason: "required when backend is enabled"}
		}
		if b.cfg.RateLimit <= 0 {
			return &ConfigError{Field: b.name + ".rate_limit", Reason: "must be positive"}
		}
		if b.cfg.Timeout <= 0 {
			return &ConfigError{Field: b.name + ".timeout", Reason: "must be positive"}
		}
	}

	if c.Rerank.Enabled && c.Rerank.APIKey == "" {
		return &ConfigError{Field: "rerank.api_key", Reason: "required when reranking is enabled"}
	}
	if c.Limiter.JitterMax < c.Limiter.JitterMin {
		return &ConfigError{Field: "limiter.jitter_max", Reason: "must be >= jitter_min"}
	}
	if c.OverallTimeout <= 0 {
		return &ConfigError{Field: "overall_timeout", Reason: "must be positive"}
	}
	return nil
}

// TTLFor returns the cache lifetime for a search type.
func (c CacheConfig) TTLFor(t SearchType) time.Duration {
	if ttl, ok := c.TTL[t]; ok && ttl > 0 {
		return ttl
	}
	if c.DefaultTTL > 0 {
		return c.DefaultTTL
	}
	return 30 * time.Minute
}

// Redact returns the first n characters of a secret followed by an ellipsis,
// for status output that must never expose raw credentials.
func Redact(secret string, n int) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= n {
		return secret[:1] + "..."
	}
	return secret[:n] + "..."
}
