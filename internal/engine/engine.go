// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine aggregates search results from heterogeneous external
// backends. The dispatcher fans a request out to the eligible backends
// concurrently, absorbs partial failures, scores and deduplicates the
// merged candidates, optionally reranks them semantically, and returns one
// deterministically ordered list.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/searchhub/internal/backend"
	"github.com/pdiddy/searchhub/internal/cache"
	"github.com/pdiddy/searchhub/internal/metrics"
	"github.com/pdiddy/searchhub/internal/ratelimit"
	"github.com/pdiddy/searchhub/internal/rerank"
	"github.com/pdiddy/searchhub/internal/score"
	"github.com/pdiddy/searchhub/pkg/types"
)

// ErrInvalidRequest marks a request rejected before dispatch. No network
// call is made for an invalid request.
var ErrInvalidRequest = errors.New("engine: invalid request")

// routing maps each search intent to the backends it dispatches to, in
// priority order.
var routing = map[types.SearchType][]string{
	types.SearchGeneral:  {"agent", "ai", "web"},
	types.SearchAcademic: {"agent", "ai"},
	types.SearchPatent:   {"agent", "web"},
	types.SearchCompany:  {"agent", "web"},
}

// Reranker is the semantic reordering capability the engine depends on.
// Failures are logged, never escalated.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []types.SearchResult) ([]types.SearchResult, error)
}

// Engine owns the shared engine state: backends, scorer, reranker, cache,
// and the metrics/health controller. Construct once at startup; safe for
// concurrent Search calls.
type Engine struct {
	cfg      types.Config
	backends []backend.Backend
	scorer   *score.Scorer
	reranker Reranker
	cache    *cache.Cache
	health   *metrics.Controller
	log      *zap.Logger
}

// New validates the configuration and wires the full engine: one adapter
// and rate limiter per enabled backend, the scorer, the reranker, the
// result cache (with SQLite persistence when configured), and the metrics
// controller.
func New(cfg types.Config, log *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var backends []backend.Backend
	if cfg.Web.Enabled {
		backends = append(backends, backend.NewWeb(cfg.Web, newLimiter(cfg.Web, cfg.Limiter), log))
	}
	if cfg.AI.Enabled {
		backends = append(backends, backend.NewAI(cfg.AI, newLimiter(cfg.AI, cfg.Limiter), log))
	}
	if cfg.Agent.Enabled {
		backends = append(backends, backend.NewAgent(cfg.Agent, newLimiter(cfg.Agent, cfg.Limiter), log))
	}

	var resultCache *cache.Cache
	if cfg.Cache.Enabled {
		var store *cache.Store
		if cfg.Cache.StorePath != "" {
			s, err := cache.NewStore(cfg.Cache.StorePath)
			if err != nil {
				// Persistence is an optimization; fall back to memory-only.
				log.Warn("cache store unavailable, running memory-only", zap.Error(err))
			} else {
				store = s
			}
		}
		resultCache = cache.New(store, cfg.Cache.SweepInterval, log)
	}

	return newEngine(cfg, backends, rerank.New(cfg.Rerank, log), resultCache, log), nil
}

// newEngine assembles an engine from prebuilt collaborators. Tests inject
// mock backends and rerankers through this path.
func newEngine(cfg types.Config, backends []backend.Backend, reranker Reranker, resultCache *cache.Cache, log *zap.Logger) *Engine {
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name()
	}
	return &Engine{
		cfg:      cfg,
		backends: backends,
		scorer:   score.New(cfg.Scorer),
		reranker: reranker,
		cache:    resultCache,
		health:   metrics.NewController(cfg.Health, names...),
		log:      log,
	}
}

func newLimiter(b types.BackendConfig, l types.LimiterConfig) *ratelimit.Limiter {
	return ratelimit.New(b.RateLimit, b.RateWindow, l.JitterMin, l.JitterMax)
}

// Close releases the engine's background resources.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// fetchOutcome carries one backend's response through the collection
// channel.
type fetchOutcome struct {
	name    string
	results []types.SearchResult
	err     error
}

// Search runs one aggregated search. Backend-local failures are absorbed:
// the call errors only on an invalid request. An empty slice with a nil
// error means either nothing matched or every backend failed; the status
// surface distinguishes the two.
func (e *Engine) Search(ctx context.Context, req types.SearchRequest) ([]types.SearchResult, error) {
	if req.IsEmpty() {
		return nil, fmt.Errorf("%w: empty keyword list", ErrInvalidRequest)
	}
	n := req.Normalized()
	if !n.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown search type %q", ErrInvalidRequest, n.Type)
	}

	start := time.Now()
	log := e.log.With(zap.String("request_id", uuid.NewString()))
	fingerprint := n.Fingerprint()

	if e.cache != nil {
		if cached, hit := e.cache.Get(fingerprint); hit {
			// The fingerprint ignores Limit, so the stored list may be
			// longer than this request allows.
			if len(cached) > n.Limit {
				cached = cached[:n.Limit]
			}
			log.Debug("cache hit", zap.String("fingerprint", fingerprint))
			e.health.RecordRequest(true, time.Since(start))
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.OverallTimeout)
	defer cancel()

	selected := e.selectBackends(n.Type)
	if len(selected) == 0 {
		log.Warn("no eligible backends for request", zap.String("type", string(n.Type)))
		e.health.RecordRequest(false, time.Since(start))
		return []types.SearchResult{}, nil
	}

	merged, okCalls := e.fanOut(ctx, log, selected, n)

	e.scorer.Score(n, merged)
	deduped := deduplicate(merged, e.priorities())
	sortByQuality(deduped, e.priorities())

	if e.reranker != nil && len(deduped) > 1 {
		query := strings.Join(n.Keywords, " ")
		reranked, err := e.reranker.Rerank(ctx, query, deduped)
		if err != nil {
			// Reranking is an enhancement; keep the quality ordering.
			log.Warn("rerank failed, keeping quality order", zap.Error(err))
		} else {
			deduped = reranked
		}
	}

	if len(deduped) > n.Limit {
		deduped = deduped[:n.Limit]
	}
	if deduped == nil {
		deduped = []types.SearchResult{}
	}

	if e.cache != nil && len(deduped) > 0 {
		e.cache.Put(fingerprint, deduped, e.cfg.Cache.TTLFor(n.Type))
	}

	e.health.RecordRequest(okCalls > 0, time.Since(start))
	log.Info("search completed",
		zap.Int("results", len(deduped)),
		zap.Int("backends_ok", okCalls),
		zap.Int("backends_selected", len(selected)),
		zap.Duration("elapsed", time.Since(start)))
	return deduped, nil
}

// fanOut dispatches the request to the selected backends concurrently and
// collects whatever arrives before the overall deadline. Every call's
// outcome is recorded with the metrics controller.
func (e *Engine) fanOut(ctx context.Context, log *zap.Logger, selected []backend.Backend, req types.SearchRequest) (merged []types.SearchResult, okCalls int) {
	ch := make(chan fetchOutcome, len(selected))
	var wg sync.WaitGroup

	for _, b := range selected {
		wg.Add(1)
		go func(b backend.Backend) {
			defer wg.Done()
			callStart := time.Now()
			results, err := b.Fetch(ctx, req)
			elapsed := time.Since(callStart)
			if err != nil {
				e.health.RecordFailure(b.Name(), errorKind(err), elapsed)
			} else {
				e.health.RecordSuccess(b.Name(), elapsed)
			}
			ch <- fetchOutcome{name: b.Name(), results: results, err: err}
		}(b)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	for out := range ch {
		if out.err != nil {
			log.Warn("backend failed",
				zap.String("backend", out.name),
				zap.String("kind", errorKind(out.err)),
				zap.Error(out.err))
			continue
		}
		okCalls++
		merged = append(merged, out.results...)
	}
	return merged, okCalls
}

// selectBackends returns the adapters routed for the search type whose
// health state admits a call right now.
func (e *Engine) selectBackends(t types.SearchType) []backend.Backend {
	routed := routing[t]
	byName := make(map[string]backend.Backend, len(e.backends))
	for _, b := range e.backends {
		byName[b.Name()] = b
	}

	var selected []backend.Backend
	for _, name := range routed {
		b, ok := byName[name]
		if !ok {
			continue
		}
		if !e.health.Eligible(name) {
			continue
		}
		selected = append(selected, b)
	}
	return selected
}

func (e *Engine) priorities() map[string]int {
	p := make(map[string]int, len(e.backends))
	for _, b := range e.backends {
		p[b.Name()] = b.Priority()
	}
	return p
}

// errorKind maps an adapter error onto the stats taxonomy.
func errorKind(err error) string {
	switch {
	case errors.Is(err, backend.ErrAuth):
		return metrics.KindAuth
	case errors.Is(err, backend.ErrRateLimited):
		return metrics.KindRateLimit
	case errors.Is(err, backend.ErrParse):
		return metrics.KindParse
	default:
		return metrics.KindTransient
	}
}

// sortByQuality orders results by quality score descending, breaking ties
// by provider priority (agent > ai > web) and then original provider rank.
// The sort is stable, so the final order is deterministic for fixed inputs
// regardless of backend arrival order.
func sortByQuality(results []types.SearchResult, priority map[string]int) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		if priority[a.Provider] != priority[b.Provider] {
			return priority[a.Provider] > priority[b.Provider]
		}
		return a.Rank < b.Rank
	})
}
