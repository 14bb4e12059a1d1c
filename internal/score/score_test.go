// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"testing"
	"time"

	"github.com/pdiddy/searchhub/pkg/types"
)

func testScorer() *Scorer {
	return New(types.ScorerConfig{
		RelevanceWeight:    0.4,
		AuthorityWeight:    0.25,
		FreshnessWeight:    0.15,
		CompletenessWeight: 0.2,
		FreshnessHalfLife:  365 * 24 * time.Hour,
	})
}

func testReq(keywords ...string) types.SearchRequest {
	return types.SearchRequest{Keywords: keywords, Type: types.SearchGeneral}
}

func TestScoresStayInRange(t *testing.T) {
	s := testScorer()
	results := []types.SearchResult{
		{Title: "Blockchain consensus", Snippet: "cryptocurrency networks", URL: "https://arxiv.org/abs/1", Authority: 0.9, PublishedAt: time.Now()},
		{Title: "", Snippet: "", URL: ""},
		{Title: "Unrelated", Snippet: "nothing", URL: "https://example.org", Relevance: 1.5, Authority: 2.0},
	}
	s.Score(testReq("blockchain", "cryptocurrency"), results)

	for i, r := range results {
		for name, v := range map[string]float64{
			"relevance": r.Relevance, "authority": r.Authority,
			"freshness": r.Freshness, "completeness": r.Completeness,
			"quality": r.QualityScore,
		} {
			if v < 0 || v > 1 {
				t.Errorf("result %d %s = %f, want in [0,1]", i, name, v)
			}
		}
	}
}

func TestRelevanceKeywordOverlap(t *testing.T) {
	s := testScorer()
	results := []types.SearchResult{
		{Title: "Blockchain and cryptocurrency explained", Snippet: "both terms", URL: "u"},
		{Title: "Blockchain only", Snippet: "", URL: "u"},
		{Title: "Cooking recipes", Snippet: "pasta", URL: "u"},
	}
	s.Score(testReq("blockchain", "cryptocurrency"), results)

	if results[0].Relevance <= results[1].Relevance {
		t.Errorf("full overlap %f <= partial overlap %f", results[0].Relevance, results[1].Relevance)
	}
	if results[2].Relevance != 0 {
		t.Errorf("no-overlap relevance = %f, want 0", results[2].Relevance)
	}
}

func TestProviderRelevanceKeptWhenHigher(t *testing.T) {
	s := testScorer()
	results := []types.SearchResult{
		{Title: "No keyword match", Snippet: "", URL: "u", Relevance: 0.95},
	}
	s.Score(testReq("blockchain"), results)
	if results[0].Relevance != 0.95 {
		t.Errorf("relevance = %f, want provider-supplied 0.95 kept", results[0].Relevance)
	}
}

func TestAuthorityDomainBoost(t *testing.T) {
	s := testScorer()
	results := []types.SearchResult{
		{Title: "a", URL: "https://arxiv.org/abs/2301.07041", Authority: 0.6},
		{Title: "b", URL: "https://randomblog.example", Authority: 0.6},
	}
	s.Score(testReq("a"), results)
	if results[0].Authority <= results[1].Authority {
		t.Errorf("institutional authority %f <= generic %f", results[0].Authority, results[1].Authority)
	}
}

func TestFreshnessHalfLifeDecay(t *testing.T) {
	s := testScorer()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	results := []types.SearchResult{
		{Title: "today", URL: "u", PublishedAt: now},
		{Title: "one half-life old", URL: "u", PublishedAt: now.Add(-365 * 24 * time.Hour)},
		{Title: "undated", URL: "u"},
	}
	s.Score(testReq("x"), results)

	if results[0].Freshness < 0.99 {
		t.Errorf("fresh result freshness = %f, want ~1.0", results[0].Freshness)
	}
	if diff := results[1].Freshness - 0.5; diff > 0.01 || diff < -0.01 {
		t.Errorf("half-life-old freshness = %f, want ~0.5", results[1].Freshness)
	}
	if results[2].Freshness != 0.5 {
		t.Errorf("undated freshness = %f, want 0.5 baseline", results[2].Freshness)
	}
}

func TestCompletenessFraction(t *testing.T) {
	s := testScorer()
	results := []types.SearchResult{
		{Title: "t", Snippet: "s", URL: "u", PublishedAt: time.Now()},
		{Title: "t", Snippet: "", URL: "u"},
		{},
	}
	s.Score(testReq("x"), results)

	if results[0].Completeness != 1.0 {
		t.Errorf("all fields completeness = %f, want 1.0", results[0].Completeness)
	}
	if results[1].Completeness != 0.5 {
		t.Errorf("half fields completeness = %f, want 0.5", results[1].Completeness)
	}
	if results[2].Completeness != 0 {
		t.Errorf("empty completeness = %f, want 0", results[2].Completeness)
	}
}

func TestQualityIsWeightedSum(t *testing.T) {
	s := testScorer()
	results := []types.SearchResult{
		{Title: "blockchain", Snippet: "s", URL: "https://example.org", PublishedAt: time.Now()},
	}
	s.Score(testReq("blockchain"), results)

	r := results[0]
	want := r.Relevance*0.4 + r.Authority*0.25 + r.Freshness*0.15 + r.Completeness*0.2
	if diff := r.QualityScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("quality = %f, want weighted sum %f", r.QualityScore, want)
	}
}
