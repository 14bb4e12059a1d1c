// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the searchhub engine.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SearchType categorizes the intent of a search request and drives backend
// selection and cache TTL.
type SearchType string

const (
	SearchGeneral  SearchType = "general"
	SearchAcademic SearchType = "academic"
	SearchPatent   SearchType = "patent"
	SearchCompany  SearchType = "company"
)

// Valid reports whether t is one of the known search types.
func (t SearchType) Valid() bool {
	switch t {
	case SearchGeneral, SearchAcademic, SearchPatent, SearchCompany:
		return true
	}
	return false
}

// DefaultResultLimit bounds result lists when the caller does not set one.
const DefaultResultLimit = 10

// SearchRequest holds the parameters of one aggregated search. A request is
// immutable once constructed; Normalized returns a cleaned copy rather than
// mutating in place.
type SearchRequest struct {
	// Keywords is the ordered list of query terms. Duplicates are allowed.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// Type selects the search intent category (default general).
	Type SearchType `json:"type" yaml:"type"`

	// Limit is the maximum number of results to return (default 10).
	Limit int `json:"limit" yaml:"limit"`

	// DateFrom/DateTo optionally restrict results to a publication window.
	DateFrom time.Time `json:"date_from,omitempty" yaml:"date_from,omitempty"`
	DateTo   time.Time `json:"date_to,omitempty" yaml:"date_to,omitempty"`

	// Assignee optionally filters patent results by assignee name.
	Assignee string `json:"assignee,omitempty" yaml:"assignee,omitempty"`

	// Source optionally filters results to a single source domain.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Normalized returns a copy of the request with keywords lowercased and
// trimmed, blank keywords dropped, and defaults applied.
func (r SearchRequest) Normalized() SearchRequest {
	out := r
	out.Keywords = nil
	for _, kw := range r.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out.Keywords = append(out.Keywords, kw)
		}
	}
	if out.Type == "" {
		out.Type = SearchGeneral
	}
	if out.Limit <= 0 {
		out.Limit = DefaultResultLimit
	}
	return out
}

// IsEmpty reports whether the request contains no searchable terms after
// normalization.
func (r SearchRequest) IsEmpty() bool {
	for _, kw := range r.Keywords {
		if strings.TrimSpace(kw) != "" {
			return false
		}
	}
	return true
}

// Fingerprint returns a deterministic cache key derived from the normalized
// keywords, search type, filters, and date range. Requests that differ only
// in keyword case or surrounding whitespace share a fingerprint.
func (r SearchRequest) Fingerprint() string {
	n := r.Normalized()
	h := sha256.New()
	for _, kw := range n.Keywords {
		h.Write([]byte(kw))
		h.Write([]byte{0x1f})
	}
	h.Write([]byte(n.Type))
	h.Write([]byte{0x1f})
	h.Write([]byte(strings.ToLower(n.Assignee)))
	h.Write([]byte{0x1f})
	h.Write([]byte(strings.ToLower(n.Source)))
	h.Write([]byte{0x1f})
	if !n.DateFrom.IsZero() {
		h.Write([]byte(n.DateFrom.UTC().Format("2006-01-02")))
	}
	h.Write([]byte{0x1f})
	if !n.DateTo.IsZero() {
		h.Write([]byte(n.DateTo.UTC().Format("2006-01-02")))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SearchResult is the common shape every backend's raw results are
// normalized into. Sub-scores and the combined quality score are always in
// [0,1]; RerankScore is set only after a successful rerank call.
type SearchResult struct {
	// Title is the result title as returned by the provider.
	Title string `json:"title" yaml:"title"`

	// Snippet is the body excerpt or summary for the result.
	Snippet string `json:"snippet" yaml:"snippet"`

	// URL is the canonical source URL or identifier.
	URL string `json:"url" yaml:"url"`

	// Provider identifies the backend that found this result ("web", "ai",
	// "agent"). After a dedup merge it remains the highest-priority origin.
	Provider string `json:"provider" yaml:"provider"`

	// Sources is the comma-joined union of every backend that returned this
	// result, accumulated during deduplication.
	Sources string `json:"sources" yaml:"sources"`

	// Rank is the zero-based position the provider returned this result at.
	Rank int `json:"rank" yaml:"rank"`

	// PublishedAt is the result's publication date, when known.
	PublishedAt time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	Relevance    float64 `json:"relevance" yaml:"relevance"`
	Authority    float64 `json:"authority" yaml:"authority"`
	Freshness    float64 `json:"freshness" yaml:"freshness"`
	Completeness float64 `json:"completeness" yaml:"completeness"`

	// QualityScore is the weighted combination of the four sub-scores.
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`

	// RerankScore is assigned by the semantic reranker; nil when reranking
	// was skipped or failed.
	RerankScore *float64 `json:"rerank_score,omitempty" yaml:"rerank_score,omitempty"`

	// CollectedAt records when the engine collected this result.
	CollectedAt time.Time `json:"collected_at" yaml:"collected_at"`
}
