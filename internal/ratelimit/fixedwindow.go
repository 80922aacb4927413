package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/storage"
)

// FixedWindowLimiter admits at most limit requests per key in each window.
// The window for a key starts with its first request and is replaced by a
// new one on the first request after it has run for longer than window.
type FixedWindowLimiter struct {
	store  storage.Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewFixedWindowLimiter creates a limiter over store. The store is owned by
// the caller and is not closed by Close.
func NewFixedWindowLimiter(store storage.Store, limit int, window time.Duration, opts ...Option) (*FixedWindowLimiter, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be greater than zero, got %s", window)
	}

	o := buildOptions(opts)
	return &FixedWindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    o.now,
	}, nil
}

// CheckAndRecord increments the window for key and rejects the request if
// the new count exceeds the limit.
func (l *FixedWindowLimiter) CheckAndRecord(ctx context.Context, key Key) (Decision, error) {
	now := l.now()

	w, err := l.store.Record(ctx, key.String(), now, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to record request: %w", err)
	}

	info := Info{
		Limit:     l.limit,
		Remaining: max(0, l.limit-int(w.Count)),
		Count:     w.Count,
		ResetAt:   w.ResetAt(l.window),
	}

	if w.Count > int64(l.limit) {
		info.RetryAfter = max(0, info.ResetAt.Sub(now))
		return Decision{Verdict: Reject, Info: info}, nil
	}
	return Decision{Verdict: Accept, Info: info}, nil
}

// Close is a no-op; the store belongs to the caller.
func (l *FixedWindowLimiter) Close() {}
