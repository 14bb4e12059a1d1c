// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit throttles outbound calls per backend and smooths the
// client's traffic shape. Each backend gets a token bucket sized from its
// configured request ceiling; on top of that the gate injects a small random
// delay and rotates User-Agent strings so the aggregate traffic does not
// look like a single automated client. The jitter is a courtesy measure
// only: it adds to the bucket wait and can never raise the effective rate
// above the configured ceiling.
package ratelimit

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrRateLimited is returned when the context expires before a token
// becomes available.
var ErrRateLimited = errors.New("rate limited: no token available before deadline")

// userAgents is the identity pool rotated across outbound calls.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/121.0",
}

// Limiter gates one backend's outbound calls. It is safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time

	capacity float64
	// refillPerSec is tokens added per second (rate limit / window).
	refillPerSec float64

	jitterMin time.Duration
	jitterMax time.Duration

	rng *rand.Rand
}

// New builds a token bucket allowing limit calls per window, with a random
// extra delay in [jitterMin, jitterMax] per call. A non-positive limit
// defaults to 10 per second.
func New(limit int, window, jitterMin, jitterMax time.Duration) *Limiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{
		tokens:       float64(limit),
		last:         time.Now(),
		capacity:     float64(limit),
		refillPerSec: float64(limit) / window.Seconds(),
		jitterMin:    jitterMin,
		jitterMax:    jitterMax,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until a token is available, then sleeps the jitter delay.
// It returns ErrRateLimited if ctx expires first. The wait is cooperative:
// the goroutine parks on a timer, never spins.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			jitter := l.jitter()
			l.mu.Unlock()
			if jitter > 0 {
				select {
				case <-ctx.Done():
					// The call was never placed; return the held token.
					l.mu.Lock()
					l.tokens++
					if l.tokens > l.capacity {
						l.tokens = l.capacity
					}
					l.mu.Unlock()
					return ErrRateLimited
				case <-time.After(jitter):
				}
			}
			return nil
		}
		// Time until one token refills.
		wait := time.Duration((1 - l.tokens) / l.refillPerSec * float64(time.Second))
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ErrRateLimited
		case <-time.After(wait):
		}
	}
}

// UserAgent returns the next client identity header value from the pool.
func (l *Limiter) UserAgent() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return userAgents[l.rng.Intn(len(userAgents))]
}

func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.last).Seconds()
	l.last = now
	l.tokens += elapsed * l.refillPerSec
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
}

func (l *Limiter) jitter() time.Duration {
	if l.jitterMax <= 0 || l.jitterMax < l.jitterMin {
		return 0
	}
	span := l.jitterMax - l.jitterMin
	if span == 0 {
		return l.jitterMin
	}
	return l.jitterMin + time.Duration(l.rng.Int63n(int64(span)))
}
