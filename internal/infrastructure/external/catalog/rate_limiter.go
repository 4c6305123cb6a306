package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiter paces outgoing catalog requests with a token bucket and
// enforces the cooldown announced by a 429 Retry-After header.
type RateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time

	mu           sync.Mutex
	blockedUntil time.Time
	hits         int
}

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// BurstSize is the number of requests allowed in a burst.
	BurstSize int

	// DefaultRetryAfter is used when a 429 carries no Retry-After header.
	DefaultRetryAfter time.Duration
}

// DefaultRateLimiterConfig returns defaults that stay well under the
// catalog's rolling 30-second window.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		DefaultRetryAfter: 30 * time.Second,
	}
}

// NewRateLimiter creates a new RateLimiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	limit := rate.Limit(config.RequestsPerSecond)
	if config.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := config.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
}

// RateLimitError is returned while the catalog has asked us to back off.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
}

// RetryAfterDuration reports the cooldown left when the error was created.
func (e *RateLimitError) RetryAfterDuration() time.Duration {
	return e.RetryAfter
}

// Is lets callers match shared.ErrCatalogRateLimited and shared.ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	if _, ok := target.(*RateLimitError); ok {
		return true
	}
	return target == shared.ErrCatalogRateLimited || target == shared.ErrRateLimited
}

// Wait blocks until a token is available. During a Retry-After cooldown it
// fails fast with a RateLimitError instead of waiting.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	remaining := r.blockedUntil.Sub(r.now())
	r.mu.Unlock()

	if remaining > 0 {
		return &RateLimitError{RetryAfter: remaining, Message: "catalog cooldown active"}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// RecordRateLimitHit starts a cooldown of retryAfter.
func (r *RateLimiter) RecordRateLimitHit(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := r.now().Add(retryAfter)
	if until.After(r.blockedUntil) {
		r.blockedUntil = until
	}
	r.hits++
}

// RateLimiterStatus is a point-in-time view of the limiter.
type RateLimiterStatus struct {
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
	Hits         int       `json:"hits"`
	Tokens       float64   `json:"tokens"`
}

// Status returns the current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := RateLimiterStatus{Hits: r.hits, Tokens: r.limiter.Tokens()}
	if r.blockedUntil.After(r.now()) {
		status.BlockedUntil = r.blockedUntil
	}
	return status
}

// Reset clears the cooldown.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blockedUntil = time.Time{}
	r.hits = 0
}
