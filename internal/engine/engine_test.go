// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/searchhub/internal/backend"
	"github.com/pdiddy/searchhub/internal/cache"
	"github.com/pdiddy/searchhub/pkg/types"
)

// --- mocks ---

type mockBackend struct {
	name     string
	priority int
	results  []types.SearchResult
	err      error
	calls    int32
	blocking bool
}

func (m *mockBackend) Name() string  { return m.name }
func (m *mockBackend) Priority() int { return m.priority }

func (m *mockBackend) Fetch(ctx context.Context, _ types.SearchRequest) ([]types.SearchResult, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.blocking {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", backend.ErrTransient, ctx.Err())
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([]types.SearchResult, len(m.results))
	copy(out, m.results)
	return out, nil
}

func (m *mockBackend) callCount() int32 { return atomic.LoadInt32(&m.calls) }

type mockReranker struct {
	err     error
	reverse bool
	calls   int32
}

func (m *mockReranker) Rerank(_ context.Context, _ string, candidates []types.SearchResult) ([]types.SearchResult, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return candidates, m.err
	}
	out := make([]types.SearchResult, len(candidates))
	copy(out, candidates)
	if m.reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		for i := range out {
			score := 1.0 - float64(i)*0.01
			out[i].RerankScore = &score
		}
	}
	return out, nil
}

func stubResults(provider string, n int) []types.SearchResult {
	results := make([]types.SearchResult, n)
	for i := 0; i < n; i++ {
		results[i] = types.SearchResult{
			Title:    fmt.Sprintf("%s result %d about blockchain", provider, i),
			Snippet:  "cryptocurrency networks and consensus",
			URL:      fmt.Sprintf("https://example.org/%s/%d", provider, i),
			Provider: provider,
			Sources:  provider,
			Rank:     i,
		}
	}
	return results
}

func testConfig() types.Config {
	cfg := types.DefaultConfig()
	cfg.Web.APIKey = "sk-web-key-0001"
	cfg.AI.APIKey = "sk-ai-key-0002"
	cfg.Agent.APIKey = "sk-agent-key-0003"
	cfg.Rerank.APIKey = "sk-rerank-key-0004"
	cfg.Limiter.JitterMin = 0
	cfg.Limiter.JitterMax = 0
	cfg.OverallTimeout = 5 * time.Second
	return cfg
}

func testEngine(backends []backend.Backend, reranker Reranker, withCache bool) *Engine {
	var c *cache.Cache
	if withCache {
		c = cache.New(nil, 0, zap.NewNop())
	}
	return newEngine(testConfig(), backends, reranker, c, zap.NewNop())
}

func searchReq(limit int) types.SearchRequest {
	return types.SearchRequest{
		Keywords: []string{"blockchain", "cryptocurrency"},
		Type:     types.SearchGeneral,
		Limit:    limit,
	}
}

// --- request validation ---

func TestSearchEmptyKeywordsFailsFast(t *testing.T) {
	web := &mockBackend{name: "web", priority: 1, results: stubResults("web", 3)}
	e := testEngine([]backend.Backend{web}, nil, false)

	_, err := e.Search(context.Background(), types.SearchRequest{Keywords: []string{" ", ""}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Search() error = %v, want ErrInvalidRequest", err)
	}
	if web.callCount() != 0 {
		t.Errorf("backend called %d times for invalid request, want 0", web.callCount())
	}
}

func TestSearchUnknownTypeFailsFast(t *testing.T) {
	e := testEngine(nil, nil, false)
	_, err := e.Search(context.Background(), types.SearchRequest{
		Keywords: []string{"x"}, Type: types.SearchType("bogus"),
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Search() error = %v, want ErrInvalidRequest", err)
	}
}

// --- partial failure scenario ---

func TestSearchAbsorbsPartialBackendFailure(t *testing.T) {
	web := &mockBackend{name: "web", priority: 1, results: stubResults("web", 5)}
	ai := &mockBackend{name: "ai", priority: 2, err: fmt.Errorf("%w: HTTP 502", backend.ErrTransient)}
	agent := &mockBackend{name: "agent", priority: 3, err: fmt.Errorf("%w: HTTP 503", backend.ErrTransient)}
	e := testEngine([]backend.Backend{web, ai, agent}, nil, false)

	results, err := e.Search(context.Background(), searchReq(5))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("len(results) = %d, want 5", len(results))
	}
	for _, r := range results {
		if r.Provider != "web" {
			t.Errorf("result provider = %s, want web", r.Provider)
		}
		if r.QualityScore <= 0 || r.QualityScore > 1 {
			t.Errorf("quality score = %f, want in (0,1]", r.QualityScore)
		}
	}

	snap := e.health.Snapshot()
	if snap.Stats.SuccessfulRequests != 1 {
		t.Errorf("successful requests = %d, want 1", snap.Stats.SuccessfulRequests)
	}
	if snap.Stats.ErrorCounts["ai"]["transient"] != 1 {
		t.Errorf("ai failure count = %v, want 1", snap.Stats.ErrorCounts["ai"])
	}
	if snap.Stats.ErrorCounts["agent"]["transient"] != 1 {
		t.Errorf("agent failure count = %v, want 1", snap.Stats.ErrorCounts["agent"])
	}
}

func TestSearchAllBackendsFailReturnsEmptyNotError(t *testing.T) {
	ai := &mockBackend{name: "ai", priority: 2, err: fmt.Errorf("%w: down", backend.ErrTransient)}
	web := &mockBackend{name: "web", priority: 1, err: fmt.Errorf("%w: down", backend.ErrTransient)}
	e := testEngine([]backend.Backend{web, ai}, nil, false)

	results, err := e.Search(context.Background(), searchReq(5))
	if err != nil {
		t.Fatalf("Search() error = %v, want nil", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}

	snap := e.health.Snapshot()
	if snap.Stats.TotalRequests != 1 || snap.Stats.SuccessfulRequests != 0 {
		t.Errorf("requests = %d/%d, want 1 total, 0 successful",
			snap.Stats.SuccessfulRequests, snap.Stats.TotalRequests)
	}
}

// --- deduplication ---

func TestSearchDeduplicatesAcrossBackends(t *testing.T) {
	shared := types.SearchResult{
		Title:   "Blockchain Consensus Mechanisms: A Survey",
		Snippet: "cryptocurrency consensus survey",
		URL:     "https://example.org/survey",
	}
	webCopy := shared
	webCopy.Provider, webCopy.Sources = "web", "web"
	agentCopy := shared
	agentCopy.Provider, agentCopy.Sources = "agent", "agent"
	agentCopy.URL = "https://www.example.org/survey/" // same canonical identity

	web := &mockBackend{name: "web", priority: 1, results: []types.SearchResult{webCopy}}
	agent := &mockBackend{name: "agent", priority: 3, results: []types.SearchResult{agentCopy}}
	e := testEngine([]backend.Backend{web, agent}, nil, false)

	results, err := e.Search(context.Background(), searchReq(10))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 after dedup", len(results))
	}

	r := results[0]
	if r.Sources != "web,agent" && r.Sources != "agent,web" {
		t.Errorf("Sources = %q, want union of both", r.Sources)
	}
	// Both copies score identically, so the merge tie-breaks on provider
	// priority and keeps the agent record.
	if r.Provider != "agent" {
		t.Errorf("merged provider = %s, want agent (priority tie-break)", r.Provider)
	}
}

// --- cache idempotence ---

func TestSearchCacheHitSkipsBackends(t *testing.T) {
	web := &mockBackend{name: "web", priority: 1, results: stubResults("web", 3)}
	e := testEngine([]backend.Backend{web}, nil, true)
	defer e.Close()

	first, err := e.Search(context.Background(), searchReq(3))
	if err != nil {
		t.Fatalf("first Search() error = %v", err)
	}
	second, err := e.Search(context.Background(), searchReq(3))
	if err != nil {
		t.Fatalf("second Search() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("cached result list differs from original")
	}
	if web.callCount() != 1 {
		t.Errorf("backend called %d times, want 1 (second call served from cache)", web.callCount())
	}
}

func TestSearchCacheHitHonorsSmallerLimit(t *testing.T) {
	web := &mockBackend{name: "web", priority: 1, results: stubResults("web", 10)}
	e := testEngine([]backend.Backend{web}, nil, true)
	defer e.Close()

	first, err := e.Search(context.Background(), searchReq(10))
	if err != nil {
		t.Fatalf("first Search() error = %v", err)
	}
	if len(first) != 10 {
		t.Fatalf("len(first) = %d, want 10", len(first))
	}

	// Same fingerprint (Limit is not part of it), smaller limit. The cached
	// list must be truncated, not returned wholesale.
	second, err := e.Search(context.Background(), searchReq(3))
	if err != nil {
		t.Fatalf("second Search() error = %v", err)
	}
	if len(second) != 3 {
		t.Errorf("len(second) = %d, want 3 on cache hit", len(second))
	}
	if web.callCount() != 1 {
		t.Errorf("backend called %d times, want 1", web.callCount())
	}
}

func TestSearchCacheKeyNormalization(t *testing.T) {
	web := &mockBackend{name: "web", priority: 1, results: stubResults("web", 2)}
	e := testEngine([]backend.Backend{web}, nil, true)
	defer e.Close()

	if _, err := e.Search(context.Background(), types.SearchRequest{
		Keywords: []string{"Blockchain", " CRYPTOCURRENCY "}, Type: types.SearchGeneral, Limit: 2,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Search(context.Background(), types.SearchRequest{
		Keywords: []string{"blockchain", "cryptocurrency"}, Type: types.SearchGeneral, Limit: 2,
	}); err != nil {
		t.Fatal(err)
	}
	if web.callCount() != 1 {
		t.Errorf("backend called %d times, want 1 (same fingerprint)", web.callCount())
	}
}

// --- failover ---

func TestFailingBackendExcludedAfterDegradation(t *testing.T) {
	web := &mockBackend{name: "web", priority: 1, err: fmt.Errorf("%w: down", backend.ErrTransient)}
	ai := &mockBackend{name: "ai", priority: 2, results: stubResults("ai", 2)}
	e := testEngine([]backend.Backend{web, ai}, nil, false)

	// Distinct keywords per call so no cache interplay; three failures
	// demote web to degraded.
	for i := 0; i < 3; i++ {
		req := types.SearchRequest{
			Keywords: []string{fmt.Sprintf("query%d", i)},
			Type:     types.SearchGeneral,
		}
		if _, err := e.Search(context.Background(), req); err != nil {
			t.Fatal(err)
		}
	}
	if web.callCount() != 3 {
		t.Fatalf("web called %d times, want 3", web.callCount())
	}

	// Fourth request: web is degraded and inside its cooldown, so only the
	// healthy backend is dispatched.
	if _, err := e.Search(context.Background(), types.SearchRequest{
		Keywords: []string{"query4"}, Type: types.SearchGeneral,
	}); err != nil {
		t.Fatal(err)
	}
	if web.callCount() != 3 {
		t.Errorf("web called %d times after demotion, want still 3", web.callCount())
	}
	if ai.callCount() != 4 {
		t.Errorf("ai called %d times, want 4", ai.callCount())
	}
}

// --- reranking ---

func TestRerankerFallbackKeepsQualityOrder(t *testing.T) {
	agent := &mockBackend{name: "agent", priority: 3, results: stubResults("agent", 3)}
	broken := &mockReranker{err: errors.New("rerank endpoint down")}
	e := testEngine([]backend.Backend{agent}, broken, false)

	got, err := e.Search(context.Background(), searchReq(3))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	// Expected order: quality-sorted, which for identical stubs falls back
	// to original provider rank.
	for i := 1; i < len(got); i++ {
		if got[i-1].QualityScore < got[i].QualityScore {
			t.Errorf("results not quality-sorted at %d: %f < %f",
				i, got[i-1].QualityScore, got[i].QualityScore)
		}
	}
	if atomic.LoadInt32(&broken.calls) != 1 {
		t.Errorf("reranker called %d times, want 1", broken.calls)
	}
}

func TestRerankerReordersResults(t *testing.T) {
	agent := &mockBackend{name: "agent", priority: 3, results: stubResults("agent", 3)}
	rr := &mockReranker{reverse: true}
	e := testEngine([]backend.Backend{agent}, rr, false)

	got, err := e.Search(context.Background(), searchReq(3))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(got))
	}
	if got[0].RerankScore == nil {
		t.Fatal("rerank score not assigned")
	}
	for i := 1; i < len(got); i++ {
		if *got[i-1].RerankScore < *got[i].RerankScore {
			t.Errorf("results not rerank-sorted at %d", i)
		}
	}
}

// --- ordering determinism ---

func TestTieBreakByProviderPriority(t *testing.T) {
	// Identical shapes produce identical quality scores; the agent result
	// differs only in authority baseline, so zero both to force a tie.
	shape := func(provider, title string) types.SearchResult {
		return types.SearchResult{
			Title: title, Snippet: "s", URL: "https://example.org/" + provider,
			Provider: provider, Sources: provider, Rank: 0,
		}
	}
	web := &mockBackend{name: "web", priority: 1, results: []types.SearchResult{shape("web", "Alpha entry")}}
	ai := &mockBackend{name: "ai", priority: 2, results: []types.SearchResult{shape("ai", "Beta entry")}}
	e := testEngine([]backend.Backend{web, ai}, nil, false)

	got, err := e.Search(context.Background(), types.SearchRequest{
		Keywords: []string{"nomatch"}, Type: types.SearchGeneral, Limit: 5,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(got))
	}
	if got[0].QualityScore == got[1].QualityScore && got[0].Provider != "ai" {
		t.Errorf("tie not broken by provider priority: first = %s", got[0].Provider)
	}
}

// --- cancellation ---

func TestOverallTimeoutCancelsSlowBackend(t *testing.T) {
	slow := &mockBackend{name: "agent", priority: 3, blocking: true}
	fast := &mockBackend{name: "web", priority: 1, results: stubResults("web", 2)}

	cfg := testConfig()
	cfg.OverallTimeout = 50 * time.Millisecond
	e := newEngine(cfg, []backend.Backend{fast, slow}, nil, nil, zap.NewNop())

	start := time.Now()
	got, err := e.Search(context.Background(), searchReq(5))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Search() took %v, overall timeout not enforced", elapsed)
	}
	if len(got) != 2 {
		t.Errorf("len(results) = %d, want 2 from the fast backend", len(got))
	}
}

// --- status surface ---

func TestStatusRedactsCredentials(t *testing.T) {
	e := testEngine(nil, nil, false)
	st := e.Status()

	cred := st.Backends["web"].Credential
	if cred == "sk-web-key-0001" {
		t.Fatal("status exposes the raw credential")
	}
	if cred != "sk-web..." {
		t.Errorf("credential = %q, want redacted prefix", cred)
	}
	if st.RerankCredential != "sk-rer..." {
		t.Errorf("rerank credential = %q, want redacted prefix", st.RerankCredential)
	}
}

// --- result limit ---

func TestSearchHonorsLimit(t *testing.T) {
	web := &mockBackend{name: "web", priority: 1, results: stubResults("web", 10)}
	e := testEngine([]backend.Backend{web}, nil, false)

	got, err := e.Search(context.Background(), searchReq(4))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 4 {
		t.Errorf("len(results) = %d, want 4", len(got))
	}
}
