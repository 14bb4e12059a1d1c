// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/searchhub/internal/ratelimit"
	"github.com/pdiddy/searchhub/pkg/types"
)

// defaultWebSearchBase is the provider's web search endpoint, overridable
// via BackendConfig.BaseURL (tests point it at an httptest server).
const defaultWebSearchBase = "https://api.bochaai.com/v1/web-search"

const webMaxCount = 50

// WebBackend queries the generic web-search provider.
type WebBackend struct {
	client
	baseURL string
}

// NewWeb builds the web-search adapter.
func NewWeb(cfg types.BackendConfig, limiter *ratelimit.Limiter, log *zap.Logger) *WebBackend {
	base := cfg.BaseURL
	if base == "" {
		base = defaultWebSearchBase
	}
	return &WebBackend{
		client:  newClient(cfg, limiter, log.With(zap.String("backend", "web"))),
		baseURL: base,
	}
}

// Name returns the backend identifier.
func (b *WebBackend) Name() string { return "web" }

// Priority returns the tie-break rank (lowest of the three providers).
func (b *WebBackend) Priority() int { return 1 }

type webSearchRequest struct {
	Query     string `json:"query"`
	Freshness string `json:"freshness"`
	Summary   bool   `json:"summary"`
	Count     int    `json:"count"`
}

type webSearchResponse struct {
	Code int `json:"code"`
	Data struct {
		WebPages struct {
			Value []json.RawMessage `json:"value"`
		} `json:"webPages"`
	} `json:"data"`
}

// Fetch queries the web search endpoint and normalizes the page list.
// Individual entries that fail to parse are skipped and counted; the call
// fails only when nothing parses.
func (b *WebBackend) Fetch(ctx context.Context, req types.SearchRequest) ([]types.SearchResult, error) {
	count := req.Normalized().Limit
	if count > webMaxCount {
		count = webMaxCount
	}
	payload := webSearchRequest{
		Query:     buildQuery(req),
		Freshness: freshnessParam(req),
		Summary:   true,
		Count:     count,
	}

	data, err := b.postJSON(ctx, b.baseURL, payload)
	if err != nil {
		return nil, err
	}

	var wsr webSearchResponse
	if err := json.Unmarshal(data, &wsr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if wsr.Code != 200 {
		return nil, fmt.Errorf("%w: provider code %d", ErrTransient, wsr.Code)
	}

	raw := wsr.Data.WebPages.Value
	total := len(raw)
	now := time.Now()
	var results []types.SearchResult
	anomalies := 0

	for i, entry := range raw {
		var page webPage
		if err := json.Unmarshal(entry, &page); err != nil || (page.Name == "" && page.URL == "") {
			anomalies++
			continue
		}
		snippet := page.Snippet
		if page.Summary != "" {
			snippet = page.Summary
		}
		results = append(results, types.SearchResult{
			Title:       page.Name,
			Snippet:     snippet,
			URL:         page.URL,
			Provider:    b.Name(),
			Sources:     b.Name(),
			Rank:        i,
			PublishedAt: parseDate(page.DatePublished),
			Relevance:   positionScore(i, total),
			Authority:   0.6,
			CollectedAt: now,
		})
	}

	if anomalies > 0 {
		b.log.Warn("skipped unparseable web results", zap.Int("skipped", anomalies))
	}
	if total > 0 && len(results) == 0 {
		return nil, fmt.Errorf("%w: 0 of %d web entries parsed", ErrParse, total)
	}
	return results, nil
}
