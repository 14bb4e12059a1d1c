// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/pdiddy/searchhub/pkg/types"
)

// deduplicate merges results that share a canonical URL or a normalized
// title. The merged result keeps the higher-quality record's content and
// the union of provenance sources.
func deduplicate(results []types.SearchResult, priority map[string]int) []types.SearchResult {
	seen := make(map[string]int) // dedup key → index in deduped
	var deduped []types.SearchResult

	for _, r := range results {
		urlKey := ""
		if c := canonicalURL(r.URL); c != "" {
			urlKey = "url:" + c
		}
		titleKey := ""
		if t := normalizeTitle(r.Title); t != "" {
			titleKey = "title:" + t
		}

		if idx, ok := lookup(seen, urlKey, titleKey); ok {
			deduped[idx] = merge(deduped[idx], r, priority)
			// Re-register both keys so later duplicates of either form
			// still collapse into this entry.
			register(seen, idx, urlKey, titleKey)
			continue
		}

		idx := len(deduped)
		deduped = append(deduped, r)
		register(seen, idx, urlKey, titleKey)
	}
	return deduped
}

func lookup(seen map[string]int, keys ...string) (int, bool) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if idx, ok := seen[k]; ok {
			return idx, true
		}
	}
	return 0, false
}

func register(seen map[string]int, idx int, keys ...string) {
	for _, k := range keys {
		if k != "" {
			seen[k] = idx
		}
	}
}

// merge combines two records of the same identity: the higher-quality one
// wins (provider priority breaks ties), empty fields are filled from the
// loser, and the sources union is preserved.
func merge(a, b types.SearchResult, priority map[string]int) types.SearchResult {
	winner, loser := a, b
	if b.QualityScore > a.QualityScore ||
		(b.QualityScore == a.QualityScore && priority[b.Provider] > priority[a.Provider]) {
		winner, loser = b, a
	}

	if winner.Snippet == "" {
		winner.Snippet = loser.Snippet
	}
	if winner.URL == "" {
		winner.URL = loser.URL
	}
	if winner.PublishedAt.IsZero() {
		winner.PublishedAt = loser.PublishedAt
	}
	winner.Sources = unionSources(winner.Sources, loser.Sources)
	return winner
}

// unionSources merges two comma-joined source lists, preserving order and
// dropping duplicates.
func unionSources(a, b string) string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range []string{a, b} {
		for _, s := range strings.Split(list, ",") {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return strings.Join(out, ",")
}

// canonicalURL reduces a URL to a provider-agnostic identity: lowercased
// host without the www prefix, plus the path without a trailing slash.
// Query strings and fragments are tracking noise and dropped.
func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	path := strings.TrimRight(strings.ToLower(u.Path), "/")
	return host + path
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the
// title with collapsed whitespace.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
