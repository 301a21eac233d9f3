// Package ratelimit provides client-side rate limiting for model
// provider APIs using a token bucket with optional 429 backoff.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration for a provider.
type Config struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultLimits provides conservative defaults per provider.
// These sit well below published limits to avoid hitting quotas.
var DefaultLimits = map[string]Config{
	"openai":    {RequestsPerSecond: 5.0, BurstSize: 10},
	"anthropic": {RequestsPerSecond: 2.0, BurstSize: 5},
	"ollama":    {RequestsPerSecond: 20.0, BurstSize: 20}, // Local, limited only to protect the host
}

// Limiter provides rate limiting for provider API requests.
// It uses a token bucket algorithm with optional backoff for 429 responses.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// New creates a rate limiter for the named provider.
func New(provider string) *Limiter {
	cfg, ok := DefaultLimits[provider]
	if !ok {
		// Default fallback
		cfg = Config{RequestsPerSecond: 5.0, BurstSize: 10}
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a rate limiter with custom configuration.
func NewWithConfig(cfg Config) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (l *Limiter) Wait(ctx context.Context) error {
	// First, check for backoff from previous rate limit errors
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}

	// Then wait for the token bucket
	return l.limiter.Wait(ctx)
}

// RecordRateLimitError records a rate limit error and sets a backoff period.
// Call this when receiving a 429 response.
func (l *Limiter) RecordRateLimitError(retryAfterSeconds int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if retryAfterSeconds <= 0 {
		// Default backoff: 30 seconds
		retryAfterSeconds = 30
	}

	l.retryAt = time.Now().Add(time.Duration(retryAfterSeconds) * time.Second)
}

// Allow checks if a request can be made immediately without blocking.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}

	return l.limiter.Allow()
}
