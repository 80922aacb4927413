package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entry holds a token bucket and its last access time for cleanup.
type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketLimiter is an in-memory limiter backed by golang.org/x/time/rate.
// Each key gets its own bucket refilled at limit tokens per window, holding at
// most burst tokens. It smooths traffic instead of enforcing hard windows and
// only works within a single process. A background goroutine evicts buckets
// that have not been used within 2x the cleanup interval.
type TokenBucketLimiter struct {
	rate            rate.Limit
	burst           int
	limit           int
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	done    chan struct{}
	closed  bool
}

// NewTokenBucketLimiter creates a token bucket limiter. A cleanupInterval of
// zero disables background eviction.
func NewTokenBucketLimiter(limit int, window time.Duration, burst int, cleanupInterval time.Duration, opts ...Option) (*TokenBucketLimiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be greater than zero, got %s", window)
	}
	if burst <= 0 {
		return nil, fmt.Errorf("burst must be greater than zero, got %d", burst)
	}

	o := buildOptions(opts)
	l := &TokenBucketLimiter{
		rate:            rate.Every(window / time.Duration(limit)),
		burst:           burst,
		limit:           limit,
		cleanupInterval: cleanupInterval,
		now:             o.now,
		entries:         make(map[string]*entry),
		done:            make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go l.cleanup()
	}
	return l, nil
}

// CheckAndRecord takes one token from the bucket for key.
func (l *TokenBucketLimiter) CheckAndRecord(ctx context.Context, key Key) (Decision, error) {
	now := l.now()
	k := key.String()

	l.mu.Lock()
	e, exists := l.entries[k]
	if !exists {
		e = &entry{
			limiter: rate.NewLimiter(l.rate, l.burst),
		}
		l.entries[k] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	allowed := e.limiter.AllowN(now, 1)

	tokens := e.limiter.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))

	// Reset is when the bucket will be full again
	tokensNeeded := float64(l.burst) - tokens
	resetAt := now
	if tokensNeeded > 0 {
		resetAt = now.Add(time.Duration(tokensNeeded / float64(l.rate) * float64(time.Second)))
	}

	info := Info{
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	if !allowed {
		// Time until the next token is available
		reservation := e.limiter.ReserveN(now, 1)
		info.RetryAfter = reservation.DelayFrom(now)
		reservation.CancelAt(now)
		return Decision{Verdict: Reject, Info: info}, nil
	}

	return Decision{Verdict: Accept, Info: info}, nil
}

// Close stops the background cleanup goroutine.
func (l *TokenBucketLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.done)
	}
}

func (l *TokenBucketLimiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictStale()
		}
	}
}

// evictStale removes buckets unused for more than 2x the cleanup interval.
func (l *TokenBucketLimiter) evictStale() {
	cutoff := l.now().Add(-2 * l.cleanupInterval)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
