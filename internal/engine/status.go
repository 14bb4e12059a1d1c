// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"time"

	"github.com/pdiddy/searchhub/internal/metrics"
	"github.com/pdiddy/searchhub/pkg/types"
)

// BackendStatus summarizes one backend's configuration and health for the
// introspection surface. Credentials are always redacted.
type BackendStatus struct {
	Enabled    bool                   `json:"enabled" yaml:"enabled"`
	Endpoint   string                 `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Credential string                 `json:"credential" yaml:"credential"`
	RateLimit  int                    `json:"rate_limit" yaml:"rate_limit"`
	RateWindow time.Duration          `json:"rate_window" yaml:"rate_window"`
	Timeout    time.Duration          `json:"timeout" yaml:"timeout"`
	Health     metrics.HealthSnapshot `json:"health" yaml:"health"`
}

// Status is the read-only introspection view: per-backend health, the
// stats snapshot, and a redacted configuration summary. Callers use it to
// distinguish "empty because nothing matched" from "empty because every
// backend failed".
type Status struct {
	Stats    metrics.StatsSnapshot    `json:"stats" yaml:"stats"`
	Backends map[string]BackendStatus `json:"backends" yaml:"backends"`

	RerankEnabled    bool   `json:"rerank_enabled" yaml:"rerank_enabled"`
	RerankCredential string `json:"rerank_credential" yaml:"rerank_credential"`

	CacheEnabled bool `json:"cache_enabled" yaml:"cache_enabled"`
	CacheEntries int  `json:"cache_entries" yaml:"cache_entries"`
}

// Status returns the current introspection snapshot.
func (e *Engine) Status() Status {
	snap := e.health.Snapshot()

	backends := make(map[string]BackendStatus, 3)
	for name, cfg := range map[string]types.BackendConfig{
		"web": e.cfg.Web, "ai": e.cfg.AI, "agent": e.cfg.Agent,
	} {
		backends[name] = BackendStatus{
			Enabled:    cfg.Enabled,
			Endpoint:   cfg.BaseURL,
			Credential: types.Redact(cfg.APIKey, 6),
			RateLimit:  cfg.RateLimit,
			RateWindow: cfg.RateWindow,
			Timeout:    cfg.Timeout,
			Health:     snap.Backends[name],
		}
	}

	s := Status{
		Stats:            snap.Stats,
		Backends:         backends,
		RerankEnabled:    e.cfg.Rerank.Enabled,
		RerankCredential: types.Redact(e.cfg.Rerank.APIKey, 6),
		CacheEnabled:     e.cache != nil,
	}
	if e.cache != nil {
		s.CacheEntries = e.cache.Len()
	}
	return s
}
