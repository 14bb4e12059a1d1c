// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rerank reorders candidates by semantic closeness to the query via
// one batched call to an external reranking endpoint. Reranking is strictly
// an enhancement: any failure falls back to the caller's quality ordering.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/searchhub/pkg/types"
)

// defaultRerankBase is the provider's rerank endpoint, overridable via
// RerankConfig.BaseURL.
const defaultRerankBase = "https://api.bochaai.com/v1/rerank"

// Reranker issues batched semantic reranking calls.
type Reranker struct {
	cfg     types.RerankConfig
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New builds a reranker; the configuration is assumed validated.
func New(cfg types.RerankConfig, log *zap.Logger) *Reranker {
	base := cfg.BaseURL
	if base == "" {
		base = defaultRerankBase
	}
	if cfg.Model == "" {
		cfg.Model = "gte-rerank"
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 50
	}
	return &Reranker{
		cfg:     cfg,
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With(zap.String("component", "rerank")),
	}
}

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

type rerankResponse struct {
	Code int `json:"code"`
	Data struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	} `json:"data"`
}

// Rerank reorders candidates by semantic relevance to the query, assigning
// each a rerank score. The batch is capped at the configured maximum; the
// tail beyond the cap keeps its quality ordering after the reranked head.
// On any failure the input order is returned unchanged and the error is
// returned for logging only — callers must not escalate it.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []types.SearchResult) ([]types.SearchResult, error) {
	if !r.cfg.Enabled || len(candidates) < 2 {
		return candidates, nil
	}

	batch := candidates
	if len(batch) > r.cfg.MaxCandidates {
		batch = batch[:r.cfg.MaxCandidates]
	}

	documents := make([]string, len(batch))
	for i, c := range batch {
		documents[i] = strings.TrimSpace(c.Title + " " + c.Snippet)
	}

	payload := rerankRequest{
		Model:           r.cfg.Model,
		Query:           query,
		Documents:       documents,
		TopN:            len(documents),
		ReturnDocuments: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return candidates, fmt.Errorf("encoding rerank payload: %w", err)
	}

	callCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, r.baseURL, bytes.NewReader(body))
	if err != nil {
		return candidates, fmt.Errorf("creating rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.http.Do(req)
	if err != nil {
		return candidates, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return candidates, fmt.Errorf("rerank endpoint returned HTTP %d", resp.StatusCode)
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return candidates, fmt.Errorf("parsing rerank response: %w", err)
	}
	if rr.Code != 200 || len(rr.Data.Results) == 0 {
		return candidates, fmt.Errorf("rerank endpoint returned code %d with %d results", rr.Code, len(rr.Data.Results))
	}

	// Assign rerank scores by index; unscored candidates keep nil and sort
	// after the scored head by their existing quality order.
	out := make([]types.SearchResult, len(candidates))
	copy(out, candidates)
	for _, item := range rr.Data.Results {
		if item.Index < 0 || item.Index >= len(batch) {
			continue
		}
		score := item.RelevanceScore
		out[item.Index].RerankScore = &score
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].RerankScore, out[j].RerankScore
		switch {
		case si != nil && sj != nil:
			return *si > *sj
		case si != nil:
			return true
		case sj != nil:
			return false
		default:
			return false
		}
	})
	return out, nil
}
