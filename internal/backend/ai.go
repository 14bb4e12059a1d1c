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

// defaultAISearchBase is the AI-augmented search endpoint, overridable via
// BackendConfig.BaseURL.
const defaultAISearchBase = "https://api.bochaai.com/v1/ai-search"

const aiMaxCount = 20

// AIBackend queries the AI-augmented search provider. Its responses mix
// source webpages with a synthesized answer; both become results.
type AIBackend struct {
	client
	baseURL string
}

// NewAI builds the AI-search adapter.
func NewAI(cfg types.BackendConfig, limiter *ratelimit.Limiter, log *zap.Logger) *AIBackend {
	base := cfg.BaseURL
	if base == "" {
		base = defaultAISearchBase
	}
	return &AIBackend{
		client:  newClient(cfg, limiter, log.With(zap.String("backend", "ai"))),
		baseURL: base,
	}
}

// Name returns the backend identifier.
func (b *AIBackend) Name() string { return "ai" }

// Priority returns the tie-break rank.
func (b *AIBackend) Priority() int { return 2 }

type aiSearchRequest struct {
	Query     string `json:"query"`
	Freshness string `json:"freshness"`
	Count     int    `json:"count"`
	Answer    bool   `json:"answer"`
	Stream    bool   `json:"stream"`
}

// Fetch queries the AI search endpoint. Source messages carry webpage
// objects; answer messages become a single synthetic result with a high
// relevance baseline. Unparseable messages are skipped and counted.
func (b *AIBackend) Fetch(ctx context.Context, req types.SearchRequest) ([]types.SearchResult, error) {
	count := req.Normalized().Limit
	if count > aiMaxCount {
		count = aiMaxCount
	}
	payload := aiSearchRequest{
		Query:     buildQuery(req),
		Freshness: freshnessParam(req),
		Count:     count,
		Answer:    true,
		Stream:    false,
	}

	data, err := b.postJSON(ctx, b.baseURL, payload)
	if err != nil {
		return nil, err
	}

	var mr messagesResponse
	if err := json.Unmarshal(data, &mr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if mr.Code != 200 {
		return nil, fmt.Errorf("%w: provider code %d", ErrTransient, mr.Code)
	}

	now := time.Now()
	var results []types.SearchResult
	anomalies := 0
	candidates := 0

	for _, msg := range mr.Messages {
		if msg.Role != "assistant" {
			continue
		}
		switch msg.Type {
		case "source":
			if msg.ContentType != "webpage" {
				continue
			}
			candidates++
			var page webPage
			if err := decodeContent(msg.Content, &page); err != nil || (page.Name == "" && page.URL == "") {
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
				Rank:        len(results),
				PublishedAt: parseDate(page.DatePublished),
				Relevance:   0.8,
				Authority:   0.7,
				CollectedAt: now,
			})
		case "answer":
			if msg.ContentType != "text" {
				continue
			}
			candidates++
			var text string
			if err := json.Unmarshal(msg.Content, &text); err != nil || text == "" {
				anomalies++
				continue
			}
			results = append(results, types.SearchResult{
				Title:       "AI synthesis: " + buildQuery(req),
				Snippet:     text,
				URL:         "",
				Provider:    b.Name(),
				Sources:     b.Name(),
				Rank:        len(results),
				Relevance:   0.95,
				Authority:   0.6,
				CollectedAt: now,
			})
		}
	}

	if anomalies > 0 {
		b.log.Warn("skipped unparseable ai results", zap.Int("skipped", anomalies))
	}
	if candidates > 0 && len(results) == 0 {
		return nil, fmt.Errorf("%w: 0 of %d ai entries parsed", ErrParse, candidates)
	}
	return results, nil
}
