// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score computes the explainable quality score every result is
// ranked by. Four sub-scores (relevance, authority, freshness,
// completeness) are each bounded to [0,1] and combined as a weighted sum
// with configuration-supplied weights.
package score

import (
	"math"
	"strings"
	"time"

	"github.com/pdiddy/searchhub/pkg/types"
)

// authoritativeDomains boost the authority sub-score for results hosted on
// known institutional or registry hosts.
var authoritativeDomains = []string{
	"doi.org", "arxiv.org", "patents.google.com", "patentsview.org",
	"ieee.org", "acm.org", "nature.com", "sciencedirect.com",
	"springer.com", "uspto.gov", "epo.org", "wipo.int",
	".edu", ".gov",
}

// Scorer computes sub-scores and the combined quality score. It is
// stateless after construction and safe for concurrent use.
type Scorer struct {
	cfg types.ScorerConfig
	now func() time.Time
}

// New builds a scorer; the configuration is assumed validated.
func New(cfg types.ScorerConfig) *Scorer {
	if cfg.FreshnessHalfLife <= 0 {
		cfg.FreshnessHalfLife = 365 * 24 * time.Hour
	}
	return &Scorer{cfg: cfg, now: time.Now}
}

// Score fills the four sub-scores and the combined quality score on every
// result in place. Provider-supplied relevance and authority baselines are
// kept when they are higher than the computed values.
func (s *Scorer) Score(req types.SearchRequest, results []types.SearchResult) {
	keywords := req.Normalized().Keywords
	for i := range results {
		r := &results[i]
		r.Relevance = clamp(math.Max(r.Relevance, s.relevance(keywords, r)))
		r.Authority = clamp(s.authority(r))
		r.Freshness = clamp(s.freshness(r))
		r.Completeness = clamp(s.completeness(r))
		r.QualityScore = clamp(
			r.Relevance*s.cfg.RelevanceWeight +
				r.Authority*s.cfg.AuthorityWeight +
				r.Freshness*s.cfg.FreshnessWeight +
				r.Completeness*s.cfg.CompletenessWeight)
	}
}

// relevance measures keyword overlap against the result's title and snippet.
func (s *Scorer) relevance(keywords []string, r *types.SearchResult) float64 {
	if len(keywords) == 0 {
		return 0
	}
	text := strings.ToLower(r.Title + " " + r.Snippet)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matched++
		}
	}
	overlap := float64(matched) / float64(len(keywords))
	// Title hits count extra: a result whose title carries a keyword is a
	// stronger match than a snippet-only hit.
	title := strings.ToLower(r.Title)
	for _, kw := range keywords {
		if strings.Contains(title, kw) {
			overlap += 0.1 / float64(len(keywords))
		}
	}
	return overlap
}

// authority starts from the provider baseline and boosts results hosted on
// known authoritative domains.
func (s *Scorer) authority(r *types.SearchResult) float64 {
	a := r.Authority
	host := strings.ToLower(r.URL)
	for _, domain := range authoritativeDomains {
		if strings.Contains(host, domain) {
			a += 0.2
			break
		}
	}
	return a
}

// freshness decays with result age: 0.5^(age/halfLife). Undated results get
// a neutral 0.5 baseline, or keep a higher provider-supplied value.
func (s *Scorer) freshness(r *types.SearchResult) float64 {
	if r.PublishedAt.IsZero() {
		return math.Max(r.Freshness, 0.5)
	}
	age := s.now().Sub(r.PublishedAt)
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, float64(age)/float64(s.cfg.FreshnessHalfLife))
}

// completeness is the fraction of expected fields populated.
func (s *Scorer) completeness(r *types.SearchResult) float64 {
	fields := 0
	if strings.TrimSpace(r.Title) != "" {
		fields++
	}
	if strings.TrimSpace(r.Snippet) != "" {
		fields++
	}
	if strings.TrimSpace(r.URL) != "" {
		fields++
	}
	if !r.PublishedAt.IsZero() {
		fields++
	}
	return float64(fields) / 4.0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
