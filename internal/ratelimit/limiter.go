// Package ratelimit provides admission control for HTTP requests. Requests
// are counted per (client address, request path) in fixed windows stored in
// a storage.Store, and the HTTP middleware sets standard rate limit response
// headers and rejects requests over the limit.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"gatekeeper/internal/models"
	"gatekeeper/internal/storage"
)

// Key identifies one rate limit bucket. Two requests share a bucket only if
// both the client and the path match.
type Key struct {
	Client string
	Path   string
}

// String renders the key for use as a storage key. Client addresses never
// contain '|', so the first separator splits the key unambiguously.
func (k Key) String() string {
	return k.Client + "|" + k.Path
}

// Verdict is the outcome of an admission check.
type Verdict int

const (
	Accept Verdict = iota
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Decision is returned by Limiter.CheckAndRecord.
type Decision struct {
	Verdict Verdict
	Info    Info
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Verdict == Accept
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per window
	Remaining  int           // Requests left in the current window
	Count      int64         // Requests seen in the current window, including this one (fixed window only)
	ResetAt    time.Time     // When the current window ends
	RetryAfter time.Duration // How long to wait (meaningful only when rejected)
}

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// CheckAndRecord counts one request against key and decides whether it
	// is admitted. Rejected requests are counted too.
	CheckAndRecord(ctx context.Context, key Key) (Decision, error)

	// Close stops background goroutines and releases resources.
	Close()
}

// Option configures a limiter.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now as the limiter's time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds the limiter selected by cfg.Algorithm. The fixed window
// algorithm counts in store; the token bucket keeps its state in memory and
// ignores store.
func New(cfg models.RateLimitConfig, store storage.Store, opts ...Option) (Limiter, error) {
	switch cfg.Algorithm {
	case models.AlgorithmFixedWindow, "":
		return NewFixedWindowLimiter(store, cfg.Limit, cfg.Window, opts...)
	case models.AlgorithmTokenBucket:
		return NewTokenBucketLimiter(cfg.Limit, cfg.Window, cfg.BurstSize, cfg.CleanupInterval, opts...)
	default:
		return nil, fmt.Errorf("unsupported rate limit algorithm: %s", cfg.Algorithm)
	}
}
