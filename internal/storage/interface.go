package storage

import (
	"context"
	"time"
)

// Store persists fixed rate limit windows keyed by an opaque string. It is
// the only shared mutable state in the service, so every implementation must
// apply Record atomically per key: concurrent callers never observe or
// produce a lost update.
type Store interface {
	// Record applies one request to the window for key at time now. If the
	// current window is older than window it is reset first. The resulting
	// window, including this request, is returned.
	Record(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error)

	// Get returns the stored window for key, or ErrNotFound.
	Get(ctx context.Context, key string) (Window, error)

	// Reset removes the window for key. Resetting an unknown key is not an error.
	Reset(ctx context.Context, key string) error

	// PurgeExpired deletes windows that expired before now and reports how
	// many were removed. Backends with native expiry return 0.
	PurgeExpired(ctx context.Context, now time.Time, window time.Duration) (int, error)

	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases connections and stops background work.
	Close() error
}

// Window is the counter state for one key.
type Window struct {
	Count int64     `json:"count"`
	Start time.Time `json:"start"`
}

// Expired reports whether the window no longer applies at now. A window that
// started exactly window ago is still current.
func (w Window) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(w.Start) > window
}

// ResetAt is the earliest time a new window can start for the key.
func (w Window) ResetAt(window time.Duration) time.Time {
	return w.Start.Add(window)
}

// next is the reference transition used by stores that evaluate in Go.
func (w Window) next(now time.Time, window time.Duration) Window {
	if w.Count == 0 || w.Expired(now, window) {
		return Window{Count: 1, Start: now}
	}
	return Window{Count: w.Count + 1, Start: w.Start}
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
