package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps windows in a process-local map. It is the default store
// and the right choice for a single server instance; windows are lost on
// restart. A background goroutine removes expired windows so the map does
// not grow without bound.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]Window

	window          time.Duration
	cleanupInterval time.Duration
	done            chan struct{}
	closed          bool
}

// NewMemoryStore creates a memory store. When cleanupInterval is positive a
// goroutine purges windows older than window on that interval.
func NewMemoryStore(window, cleanupInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		windows:         make(map[string]Window),
		window:          window,
		cleanupInterval: cleanupInterval,
		done:            make(chan struct{}),
	}
	if cleanupInterval > 0 && window > 0 {
		go m.cleanup()
	}
	return m
}

func (m *MemoryStore) Record(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.windows[key].next(now, window)
	m.windows[key] = w
	return w, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok {
		return Window{}, ErrNotFound
	}
	return w, nil
}

func (m *MemoryStore) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.windows, key)
	return nil
}

func (m *MemoryStore) PurgeExpired(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		if w.Expired(now, window) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked windows.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the background cleanup goroutine.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *MemoryStore) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			removed, _ := m.PurgeExpired(context.Background(), now, m.window)
			if removed > 0 {
				slog.Debug("Purged expired rate limit windows", "store", "memory", "removed", removed)
			}
		}
	}
}
