// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"

	"github.com/pdiddy/searchhub/pkg/types"
)

// loadConfig overlays viper-managed settings (config file plus SEARCHHUB_*
// environment variables) and loaded secrets on top of the engine defaults.
// Flat keys use underscores: web.api_key, cache.store_path, overall_timeout.
func loadConfig() types.Config {
	cfg := types.DefaultConfig()

	overlayBackend("web", &cfg.Web)
	overlayBackend("ai", &cfg.AI)
	overlayBackend("agent", &cfg.Agent)

	// All three Bocha backends share one platform credential.
	if key := loadedSecrets.Bocha(); key != "" {
		if cfg.Web.APIKey == "" {
			cfg.Web.APIKey = key
		}
		if cfg.AI.APIKey == "" {
			cfg.AI.APIKey = key
		}
		if cfg.Agent.APIKey == "" {
			cfg.Agent.APIKey = key
		}
	}

	overlayScorer(&cfg.Scorer)
	overlayRerank(&cfg.Rerank)
	overlayCache(&cfg.Cache)

	if viper.IsSet("limiter.jitter_min") {
		cfg.Limiter.JitterMin = viper.GetDuration("limiter.jitter_min")
	}
	if viper.IsSet("limiter.jitter_max") {
		cfg.Limiter.JitterMax = viper.GetDuration("limiter.jitter_max")
	}

	if viper.IsSet("health.degrade_after") {
		cfg.Health.DegradeAfter = viper.GetInt("health.degrade_after")
	}
	if viper.IsSet("health.disable_after") {
		cfg.Health.DisableAfter = viper.GetInt("health.disable_after")
	}
	if viper.IsSet("health.failure_window") {
		cfg.Health.FailureWindow = viper.GetDuration("health.failure_window")
	}
	if viper.IsSet("health.cooldown") {
		cfg.Health.Cooldown = viper.GetDuration("health.cooldown")
	}

	if viper.IsSet("overall_timeout") {
		cfg.OverallTimeout = viper.GetDuration("overall_timeout")
	}
	if viper.IsSet("default_limit") {
		cfg.DefaultLimit = viper.GetInt("default_limit")
	}

	return cfg
}

func overlayBackend(prefix string, b *types.BackendConfig) {
	if viper.IsSet(prefix + ".enabled") {
		b.Enabled = viper.GetBool(prefix + ".enabled")
	}
	if v := viper.GetString(prefix + ".api_key"); v != "" {
		b.APIKey = v
	}
	if v := viper.GetString(prefix + ".base_url"); v != "" {
		b.BaseURL = v
	}
	if viper.IsSet(prefix + ".rate_limit") {
		b.RateLimit = viper.GetInt(prefix + ".rate_limit")
	}
	if viper.IsSet(prefix + ".rate_window") {
		b.RateWindow = viper.GetDuration(prefix + ".rate_window")
	}
	if viper.IsSet(prefix + ".timeout") {
		b.Timeout = viper.GetDuration(prefix + ".timeout")
	}
	if viper.IsSet(prefix + ".max_retries") {
		b.MaxRetries = viper.GetInt(prefix + ".max_retries")
	}
	if viper.IsSet(prefix + ".retry_base_delay") {
		b.RetryBaseDelay = viper.GetDuration(prefix + ".retry_base_delay")
	}
}

// overlayScorer exposes the quality weights; Config.Validate still enforces
// that they sum to 1.0.
func overlayScorer(s *types.ScorerConfig) {
	if viper.IsSet("scorer.relevance_weight") {
		s.RelevanceWeight = viper.GetFloat64("scorer.relevance_weight")
	}
	if viper.IsSet("scorer.authority_weight") {
		s.AuthorityWeight = viper.GetFloat64("scorer.authority_weight")
	}
	if viper.IsSet("scorer.freshness_weight") {
		s.FreshnessWeight = viper.GetFloat64("scorer.freshness_weight")
	}
	if viper.IsSet("scorer.completeness_weight") {
		s.CompletenessWeight = viper.GetFloat64("scorer.completeness_weight")
	}
	if viper.IsSet("scorer.freshness_half_life") {
		s.FreshnessHalfLife = viper.GetDuration("scorer.freshness_half_life")
	}
}

func overlayRerank(r *types.RerankConfig) {
	if viper.IsSet("rerank.enabled") {
		r.Enabled = viper.GetBool("rerank.enabled")
	}
	if v := viper.GetString("rerank.api_key"); v != "" {
		r.APIKey = v
	}
	if r.APIKey == "" {
		r.APIKey = loadedSecrets.Rerank()
	}
	if v := viper.GetString("rerank.base_url"); v != "" {
		r.BaseURL = v
	}
	if v := viper.GetString("rerank.model"); v != "" {
		r.Model = v
	}
	if viper.IsSet("rerank.max_candidates") {
		r.MaxCandidates = viper.GetInt("rerank.max_candidates")
	}
	if viper.IsSet("rerank.timeout") {
		r.Timeout = viper.GetDuration("rerank.timeout")
	}
}

func overlayCache(c *types.CacheConfig) {
	if viper.IsSet("cache.enabled") {
		c.Enabled = viper.GetBool("cache.enabled")
	}
	if v := viper.GetString("cache.store_path"); v != "" {
		c.StorePath = v
	}
	if viper.IsSet("cache.default_ttl") {
		c.DefaultTTL = viper.GetDuration("cache.default_ttl")
	}
	if viper.IsSet("cache.sweep_interval") {
		c.SweepInterval = viper.GetDuration("cache.sweep_interval")
	}
	for _, st := range []types.SearchType{
		types.SearchGeneral, types.SearchAcademic, types.SearchPatent, types.SearchCompany,
	} {
		key := "cache.ttl." + string(st)
		if viper.IsSet(key) {
			c.TTL[st] = viper.GetDuration(key)
		}
	}
}
