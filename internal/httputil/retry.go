// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the backend adapters and
// the reranker client.
package httputil

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryBaseDelay is the default initial backoff delay when the caller does
// not supply one. Tests override this to avoid real sleeps.
var RetryBaseDelay = time.Second

const defaultMaxRetries = 2

// Retryable reports whether an HTTP status should be retried: 429 and 5xx
// are transient, everything else (including auth and validation failures)
// is terminal.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes an HTTP request, retrying transient failures
// (connection errors, 429, 5xx) with exponential backoff. Non-transient
// statuses are returned immediately without retrying. After exhausting
// retries the last response (or last connection error) is returned so the
// caller can classify it.
//
// The request body must be replayable: requests built with
// http.NewRequestWithContext and a bytes.Reader carry GetBody and are cloned
// per attempt. A context cancellation during a backoff wait returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int, baseDelay time.Duration) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = RetryBaseDelay
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = baseDelay
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastResp *http.Response
	var lastErr error

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}

		lastResp, lastErr = client.Do(r)
		if lastErr == nil && !Retryable(lastResp.StatusCode) {
			return lastResp, nil
		}
		if ctx.Err() != nil {
			if lastResp != nil {
				lastResp.Body.Close()
			}
			return nil, ctx.Err()
		}
		if attempt >= maxRetries {
			return lastResp, lastErr
		}

		// Drain and close the body before retrying.
		if lastResp != nil {
			io.Copy(io.Discard, lastResp.Body)
			lastResp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}
