// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend adapts the generic search request to each external search
// provider's wire protocol and normalizes the provider responses into the
// common result shape. Each adapter (Web, AI, Agent) implements the Backend
// interface per the Strategy pattern; the dispatcher holds a slice of them.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/searchhub/internal/httputil"
	"github.com/pdiddy/searchhub/internal/ratelimit"
	"github.com/pdiddy/searchhub/pkg/types"
)

// Backend fetches raw results from a single external search provider.
type Backend interface {
	// Name returns the backend identifier ("web", "ai", "agent").
	Name() string

	// Priority orders tie-breaks between providers; higher wins.
	Priority() int

	// Fetch translates the request into a provider call and returns
	// normalized results. Errors are classified with the package sentinels.
	Fetch(ctx context.Context, req types.SearchRequest) ([]types.SearchResult, error)
}

// Error sentinels for call classification. Adapters wrap these so callers
// can errors.Is across providers.
var (
	// ErrAuth marks a rejected credential. Never retried.
	ErrAuth = errors.New("backend: authentication rejected")

	// ErrRateLimited marks a local throttle timeout or a provider-reported
	// limit that survived the retry budget.
	ErrRateLimited = errors.New("backend: rate limited")

	// ErrTransient marks timeouts, connection failures, and 5xx responses
	// that survived the retry budget.
	ErrTransient = errors.New("backend: transient failure")

	// ErrParse marks a response in which no entry could be parsed.
	ErrParse = errors.New("backend: unparseable response")
)

// client bundles what every adapter needs to place one provider call.
type client struct {
	http    *http.Client
	cfg     types.BackendConfig
	limiter *ratelimit.Limiter
	log     *zap.Logger
}

func newClient(cfg types.BackendConfig, limiter *ratelimit.Limiter, log *zap.Logger) client {
	return client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: limiter,
		log:     log,
	}
}

// postJSON applies the rate-limiter gate, sends an authorized JSON POST
// with a rotated client identity, retries transient failures, and returns
// the response body. The returned error is classified with the package
// sentinels.
func (c *client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(callCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("User-Agent", c.limiter.UserAgent())

	resp, err := httputil.DoWithRetry(callCtx, c.http, req, c.cfg.MaxRetries, c.cfg.RetryBaseDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP 429 after %d retries", ErrRateLimited, c.cfg.MaxRetries)
	default:
		return nil, fmt.Errorf("%w: HTTP %d", ErrTransient, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransient, err)
	}
	return data, nil
}

// webPage is the provider's common webpage result shape, shared by the web
// search response and the source messages of the AI/agent responses.
type webPage struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	Summary       string `json:"summary"`
	DatePublished string `json:"datePublished"`
	SiteName      string `json:"siteName"`
}

// message is one entry of the provider's conversational response envelope
// used by the AI and agent search endpoints.
type message struct {
	Role        string          `json:"role"`
	Type        string          `json:"type"`
	ContentType string          `json:"content_type"`
	Content     json.RawMessage `json:"content"`
}

// messagesResponse is the envelope for the AI and agent search endpoints.
type messagesResponse struct {
	Code     int       `json:"code"`
	Messages []message `json:"messages"`
}

// decodeContent unwraps a message content field, which the provider may
// send either as a JSON value or as a JSON-encoded string containing one.
func decodeContent(raw json.RawMessage, v any) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return json.Unmarshal([]byte(s), v)
	}
	return json.Unmarshal(raw, v)
}

// buildQuery joins the normalized keywords with the request filters into a
// single provider query string.
func buildQuery(req types.SearchRequest) string {
	n := req.Normalized()
	parts := make([]string, 0, len(n.Keywords)+2)
	parts = append(parts, n.Keywords...)
	if n.Assignee != "" {
		parts = append(parts, n.Assignee)
	}
	if n.Source != "" {
		parts = append(parts, "site:"+n.Source)
	}
	return strings.Join(parts, " ")
}

// freshnessParam maps the request date range onto the provider's coarse
// freshness filter.
func freshnessParam(req types.SearchRequest) string {
	if req.DateFrom.IsZero() {
		return "noLimit"
	}
	age := time.Since(req.DateFrom)
	switch {
	case age <= 7*24*time.Hour:
		return "oneWeek"
	case age <= 31*24*time.Hour:
		return "oneMonth"
	case age <= 365*24*time.Hour:
		return "oneYear"
	default:
		return "noLimit"
	}
}

// parseDate accepts the date formats the provider emits.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// positionScore rescales a provider rank to [0.1, 1.0], the relevance
// baseline for providers that do not report one.
func positionScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}
