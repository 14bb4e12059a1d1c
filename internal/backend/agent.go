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

// defaultAgentSearchBase is the agent search endpoint, overridable via
// BackendConfig.BaseURL.
const defaultAgentSearchBase = "https://api.bochaai.com/v1/agent-search"

// agentForType maps a search intent to the provider's specialized agent.
var agentForType = map[types.SearchType]string{
	types.SearchAcademic: "bocha-scholar-agent",
	types.SearchPatent:   "bocha-scholar-agent",
	types.SearchCompany:  "bocha-company-agent",
	types.SearchGeneral:  "bocha-scholar-agent",
}

// AgentBackend queries the agent search provider, which routes a natural
// language query through a domain-specialized agent (academic, company,
// document) and returns authoritative sources.
type AgentBackend struct {
	client
	baseURL string
}

// NewAgent builds the agent-search adapter.
func NewAgent(cfg types.BackendConfig, limiter *ratelimit.Limiter, log *zap.Logger) *AgentBackend {
	base := cfg.BaseURL
	if base == "" {
		base = defaultAgentSearchBase
	}
	return &AgentBackend{
		client:  newClient(cfg, limiter, log.With(zap.String("backend", "agent"))),
		baseURL: base,
	}
}

// Name returns the backend identifier.
func (b *AgentBackend) Name() string { return "agent" }

// Priority returns the tie-break rank (highest of the three providers).
func (b *AgentBackend) Priority() int { return 3 }

type agentSearchRequest struct {
	AgentID    string `json:"agentId"`
	Query      string `json:"query"`
	SearchType string `json:"searchType"`
	Answer     bool   `json:"answer"`
	Stream     bool   `json:"stream"`
}

// Fetch queries the agent search endpoint. Source messages may carry one
// webpage object or a list of them; both are handled. Unparseable entries
// are skipped and counted.
func (b *AgentBackend) Fetch(ctx context.Context, req types.SearchRequest) ([]types.SearchResult, error) {
	n := req.Normalized()
	agentID, ok := agentForType[n.Type]
	if !ok {
		agentID = agentForType[types.SearchGeneral]
	}
	payload := agentSearchRequest{
		AgentID:    agentID,
		Query:      buildQuery(req),
		SearchType: "neural",
		Answer:     false,
		Stream:     false,
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
		if msg.Role != "assistant" || msg.Type != "source" {
			continue
		}

		var pages []webPage
		if err := decodeContent(msg.Content, &pages); err != nil {
			var single webPage
			if err := decodeContent(msg.Content, &single); err != nil {
				candidates++
				anomalies++
				continue
			}
			pages = []webPage{single}
		}

		for _, page := range pages {
			candidates++
			if page.Name == "" && page.URL == "" {
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
				Relevance:   0.85,
				Authority:   0.9,
				CollectedAt: now,
			})
		}
	}

	if anomalies > 0 {
		b.log.Warn("skipped unparseable agent results",
			zap.String("agent", agentID), zap.Int("skipped", anomalies))
	}
	if candidates > 0 && len(results) == 0 {
		return nil, fmt.Errorf("%w: 0 of %d agent entries parsed", ErrParse, candidates)
	}
	return results, nil
}
