// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/searchhub/pkg/types"
)

func testConfig(baseURL string) types.RerankConfig {
	return types.RerankConfig{
		Enabled:       true,
		APIKey:        "sk-test",
		BaseURL:       baseURL,
		Model:         "gte-rerank",
		MaxCandidates: 50,
		Timeout:       5 * time.Second,
	}
}

func candidates() []types.SearchResult {
	return []types.SearchResult{
		{Title: "First by quality", QualityScore: 0.9},
		{Title: "Second by quality", QualityScore: 0.8},
		{Title: "Third by quality", QualityScore: 0.7},
	}
}

func TestRerankReordersByScore(t *testing.T) {
	var gotBody rerankRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{
				"results": []map[string]any{
					{"index": 2, "relevance_score": 0.99},
					{"index": 0, "relevance_score": 0.40},
					{"index": 1, "relevance_score": 0.70},
				},
			},
		})
	}))
	defer ts.Close()

	rr := New(testConfig(ts.URL), zap.NewNop())
	out, err := rr.Rerank(context.Background(), "query", candidates())
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "gte-rerank", gotBody.Model)
	assert.Equal(t, "query", gotBody.Query)
	assert.Len(t, gotBody.Documents, 3)
	assert.False(t, gotBody.ReturnDocuments)

	assert.Equal(t, "Third by quality", out[0].Title)
	assert.Equal(t, "Second by quality", out[1].Title)
	assert.Equal(t, "First by quality", out[2].Title)
	require.NotNil(t, out[0].RerankScore)
	assert.Equal(t, 0.99, *out[0].RerankScore)
}

func TestRerankFailureKeepsOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	rr := New(testConfig(ts.URL), zap.NewNop())
	out, err := rr.Rerank(context.Background(), "query", candidates())
	assert.Error(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "First by quality", out[0].Title)
	assert.Nil(t, out[0].RerankScore)
}

func TestRerankTimeoutKeepsOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.Timeout = 20 * time.Millisecond
	rr := New(cfg, zap.NewNop())

	out, err := rr.Rerank(context.Background(), "query", candidates())
	assert.Error(t, err)
	assert.Equal(t, "First by quality", out[0].Title)
}

func TestRerankCapsBatch(t *testing.T) {
	var gotDocs int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body rerankRequest
		json.NewDecoder(r.Body).Decode(&body)
		gotDocs = len(body.Documents)
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"results": []map[string]any{{"index": 0, "relevance_score": 0.9}}},
		})
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.MaxCandidates = 2
	rr := New(cfg, zap.NewNop())

	out, err := rr.Rerank(context.Background(), "query", candidates())
	require.NoError(t, err)
	assert.Equal(t, 2, gotDocs)
	assert.Len(t, out, 3)
	// Scored candidate leads; the uncapped tail keeps its relative order.
	assert.Equal(t, "First by quality", out[0].Title)
	assert.Equal(t, "Second by quality", out[1].Title)
	assert.Equal(t, "Third by quality", out[2].Title)
}

func TestRerankDisabledPassesThrough(t *testing.T) {
	cfg := testConfig("http://unreachable.invalid")
	cfg.Enabled = false
	rr := New(cfg, zap.NewNop())

	out, err := rr.Rerank(context.Background(), "query", candidates())
	require.NoError(t, err)
	assert.Equal(t, "First by quality", out[0].Title)
}

func TestRerankSingleCandidateSkipsCall(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer ts.Close()

	rr := New(testConfig(ts.URL), zap.NewNop())
	out, err := rr.Rerank(context.Background(), "query", candidates()[:1])
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.False(t, called)
}
