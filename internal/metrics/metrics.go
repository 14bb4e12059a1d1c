// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics tracks aggregate usage statistics and per-backend health.
// The controller observes every adapter call, feeds the failover state
// machine, and exposes read-only snapshots to the dispatcher and the status
// surface.
package metrics

import (
	"sync"
	"time"

	"github.com/pdiddy/searchhub/pkg/types"
)

// State is a backend's eligibility status.
type State int

const (
	Healthy State = iota
	Degraded
	Disabled
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Disabled:
		return "disabled"
	}
	return "unknown"
}

// Error kinds recorded against backends. The zero kind marks success.
const (
	KindAuth      = "auth"
	KindRateLimit = "rate_limited"
	KindTransient = "transient"
	KindParse     = "parse"
)

// emaAlpha is the smoothing factor for the moving-average latencies.
const emaAlpha = 0.1

type backendHealth struct {
	state       State
	consecutive int
	failures    []time.Time // failure timestamps within the window
	lastFailure time.Time
	demotedAt   time.Time
	avgLatency  time.Duration
	calls       int64
}

// HealthSnapshot is the read-only view of one backend's health.
type HealthSnapshot struct {
	State               string        `json:"state" yaml:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures" yaml:"consecutive_failures"`
	LastFailure         time.Time     `json:"last_failure,omitempty" yaml:"last_failure,omitempty"`
	AvgLatency          time.Duration `json:"avg_latency" yaml:"avg_latency"`
	Calls               int64         `json:"calls" yaml:"calls"`
}

// StatsSnapshot is the read-only view of the engine-wide counters.
type StatsSnapshot struct {
	TotalRequests      int64                       `json:"total_requests" yaml:"total_requests"`
	SuccessfulRequests int64                       `json:"successful_requests" yaml:"successful_requests"`
	ErrorCounts        map[string]map[string]int64 `json:"error_counts" yaml:"error_counts"`
	AvgResponseTime    time.Duration               `json:"avg_response_time" yaml:"avg_response_time"`
}

// Snapshot combines stats and per-backend health for the status surface.
type Snapshot struct {
	Stats    StatsSnapshot             `json:"stats" yaml:"stats"`
	Backends map[string]HealthSnapshot `json:"backends" yaml:"backends"`
}

// Controller owns the shared mutable statistics and health state. It is
// created with the engine and safe for concurrent use.
type Controller struct {
	mu  sync.Mutex
	cfg types.HealthConfig

	total      int64
	successful int64
	errCounts  map[string]map[string]int64
	avgLatency time.Duration

	backends map[string]*backendHealth

	// now is swapped by tests to drive cooldown expiry.
	now func() time.Time
}

// NewController builds a controller tracking the named backends.
func NewController(cfg types.HealthConfig, backends ...string) *Controller {
	if cfg.DegradeAfter <= 0 {
		cfg.DegradeAfter = 3
	}
	if cfg.DisableAfter <= 0 {
		cfg.DisableAfter = 10
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = 5 * time.Minute
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	c := &Controller{
		cfg:       cfg,
		errCounts: make(map[string]map[string]int64),
		backends:  make(map[string]*backendHealth),
		now:       time.Now,
	}
	for _, b := range backends {
		c.backends[b] = &backendHealth{state: Healthy}
	}
	return c
}

// RecordRequest counts one completed Search call and folds its duration
// into the moving-average response time.
func (c *Controller) RecordRequest(success bool, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if success {
		c.successful++
	}
	if c.total == 1 {
		c.avgLatency = elapsed
	} else {
		c.avgLatency = time.Duration((1-emaAlpha)*float64(c.avgLatency) + emaAlpha*float64(elapsed))
	}
}

// RecordSuccess marks one successful adapter call. Any success resets the
// consecutive-failure counter and restores a demoted backend to Healthy.
func (c *Controller) RecordSuccess(backend string, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.health(backend)
	h.consecutive = 0
	h.failures = nil
	h.state = Healthy
	c.observeLatency(h, elapsed)
}

// RecordFailure marks one failed adapter call of the given kind and applies
// the state machine: DegradeAfter consecutive failures demote Healthy to
// Degraded; DisableAfter failures within the window demote Degraded to
// Disabled; an auth failure demotes immediately.
func (c *Controller) RecordFailure(backend, kind string, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errCounts[backend] == nil {
		c.errCounts[backend] = make(map[string]int64)
	}
	c.errCounts[backend][kind]++

	h := c.health(backend)
	now := c.now()
	h.consecutive++
	h.lastFailure = now
	h.failures = append(h.failures, now)
	c.pruneWindow(h, now)
	c.observeLatency(h, elapsed)

	switch h.state {
	case Healthy:
		if kind == KindAuth || h.consecutive >= c.cfg.DegradeAfter {
			h.state = Degraded
			h.demotedAt = now
		}
	case Degraded:
		h.demotedAt = now
		if len(h.failures) >= c.cfg.DisableAfter {
			h.state = Disabled
		}
	case Disabled:
		h.demotedAt = now
	}
}

// Eligible reports whether the dispatcher may route a call to the backend.
// Healthy backends are always eligible. Demoted backends become eligible
// again once the cooldown has elapsed; the next admitted call acts as the
// recovery probe, and its outcome either restores or re-demotes the backend.
func (c *Controller) Eligible(backend string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.health(backend)
	if h.state == Healthy {
		return true
	}
	return c.now().Sub(h.demotedAt) >= c.cfg.Cooldown
}

// StateOf returns the backend's current health state.
func (c *Controller) StateOf(backend string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health(backend).state
}

// Snapshot returns a copy of the stats and health for all backends.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	errCounts := make(map[string]map[string]int64, len(c.errCounts))
	for b, kinds := range c.errCounts {
		m := make(map[string]int64, len(kinds))
		for k, v := range kinds {
			m[k] = v
		}
		errCounts[b] = m
	}

	backends := make(map[string]HealthSnapshot, len(c.backends))
	for name, h := range c.backends {
		backends[name] = HealthSnapshot{
			State:               h.state.String(),
			ConsecutiveFailures: h.consecutive,
			LastFailure:         h.lastFailure,
			AvgLatency:          h.avgLatency,
			Calls:               h.calls,
		}
	}

	return Snapshot{
		Stats: StatsSnapshot{
			TotalRequests:      c.total,
			SuccessfulRequests: c.successful,
			ErrorCounts:        errCounts,
			AvgResponseTime:    c.avgLatency,
		},
		Backends: backends,
	}
}

// health must be called with c.mu held.
func (c *Controller) health(backend string) *backendHealth {
	h, ok := c.backends[backend]
	if !ok {
		h = &backendHealth{state: Healthy}
		c.backends[backend] = h
	}
	return h
}

func (c *Controller) pruneWindow(h *backendHealth, now time.Time) {
	cutoff := now.Add(-c.cfg.FailureWindow)
	kept := h.failures[:0]
	for _, t := range h.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	h.failures = kept
}

func (c *Controller) observeLatency(h *backendHealth, elapsed time.Duration) {
	h.calls++
	if h.calls == 1 {
		h.avgLatency = elapsed
		return
	}
	h.avgLatency = time.Duration((1-emaAlpha)*float64(h.avgLatency) + emaAlpha*float64(elapsed))
}
