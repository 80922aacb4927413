package storage

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// runStoreContract exercises behaviour every Store must share. Keys are
// unique per run so external backends can be reused between runs.
func runStoreContract(t *testing.T, store Store, purges bool) {
	t.Helper()
	ctx := context.Background()
	window := time.Minute

	newKey := func() string {
		return "203.0.113.7|/hello/" + uuid.NewString()
	}

	t.Run("first request opens a window", func(t *testing.T) {
		key := newKey()
		w, err := store.Record(ctx, key, testEpoch, window)
		require.NoError(t, err)
		assert.Equal(t, int64(1), w.Count)
		assert.True(t, w.Start.Equal(testEpoch), "start = %v", w.Start)
	})

	t.Run("requests within the window increment", func(t *testing.T) {
		key := newKey()
		for i := 1; i <= 5; i++ {
			w, err := store.Record(ctx, key, testEpoch.Add(time.Duration(i)*time.Second), window)
			require.NoError(t, err)
			assert.Equal(t, int64(i), w.Count)
			assert.True(t, w.Start.Equal(testEpoch.Add(time.Second)))
		}
	})

	t.Run("window boundary is inclusive", func(t *testing.T) {
		key := newKey()
		_, err := store.Record(ctx, key, testEpoch, window)
		require.NoError(t, err)

		w, err := store.Record(ctx, key, testEpoch.Add(window), window)
		require.NoError(t, err)
		assert.Equal(t, int64(2), w.Count)
		assert.True(t, w.Start.Equal(testEpoch))
	})

	t.Run("expired window resets", func(t *testing.T) {
		key := newKey()
		for i := 0; i < 3; i++ {
			_, err := store.Record(ctx, key, testEpoch, window)
			require.NoError(t, err)
		}

		later := testEpoch.Add(window + time.Second)
		w, err := store.Record(ctx, key, later, window)
		require.NoError(t, err)
		assert.Equal(t, int64(1), w.Count)
		assert.True(t, w.Start.Equal(later))
	})

	t.Run("keys are independent", func(t *testing.T) {
		a, b := newKey(), newKey()
		for i := 0; i < 3; i++ {
			_, err := store.Record(ctx, a, testEpoch, window)
			require.NoError(t, err)
		}
		w, err := store.Record(ctx, b, testEpoch, window)
		require.NoError(t, err)
		assert.Equal(t, int64(1), w.Count)
	})

	t.Run("get", func(t *testing.T) {
		key := newKey()
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.Record(ctx, key, testEpoch, window)
		require.NoError(t, err)
		_, err = store.Record(ctx, key, testEpoch.Add(time.Second), window)
		require.NoError(t, err)

		w, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(2), w.Count)
		assert.True(t, w.Start.Equal(testEpoch))
	})

	t.Run("reset", func(t *testing.T) {
		key := newKey()
		for i := 0; i < 4; i++ {
			_, err := store.Record(ctx, key, testEpoch, window)
			require.NoError(t, err)
		}

		require.NoError(t, store.Reset(ctx, key))
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound)

		w, err := store.Record(ctx, key, testEpoch.Add(time.Second), window)
		require.NoError(t, err)
		assert.Equal(t, int64(1), w.Count)

		assert.NoError(t, store.Reset(ctx, newKey()))
	})

	t.Run("concurrent records are not lost", func(t *testing.T) {
		key := newKey()
		const n = 40

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			counts []int64
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w, err := store.Record(ctx, key, testEpoch, window)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				counts = append(counts, w.Count)
				mu.Unlock()
			}()
		}
		wg.Wait()

		require.Len(t, counts, n)
		sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })
		for i, c := range counts {
			assert.Equal(t, int64(i+1), c)
		}
	})

	t.Run("purge expired", func(t *testing.T) {
		stale, fresh := newKey(), newKey()
		_, err := store.Record(ctx, stale, testEpoch, window)
		require.NoError(t, err)
		_, err = store.Record(ctx, fresh, testEpoch.Add(window), window)
		require.NoError(t, err)

		removed, err := store.PurgeExpired(ctx, testEpoch.Add(window+time.Second), window)
		require.NoError(t, err)

		if !purges {
			assert.Zero(t, removed)
			return
		}
		assert.GreaterOrEqual(t, removed, 1)
		_, err = store.Get(ctx, stale)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Get(ctx, fresh)
		assert.NoError(t, err)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestWindow_Expired(t *testing.T) {
	w := Window{Count: 3, Start: testEpoch}

	assert.False(t, w.Expired(testEpoch, time.Minute))
	assert.False(t, w.Expired(testEpoch.Add(time.Minute), time.Minute))
	assert.True(t, w.Expired(testEpoch.Add(time.Minute+time.Microsecond), time.Minute))
	assert.Equal(t, testEpoch.Add(time.Minute), w.ResetAt(time.Minute))
}

func TestWindow_Next(t *testing.T) {
	tests := []struct {
		name      string
		current   Window
		now       time.Time
		wantCount int64
		wantStart time.Time
	}{
		{"empty", Window{}, testEpoch, 1, testEpoch},
		{"current", Window{Count: 2, Start: testEpoch}, testEpoch.Add(30 * time.Second), 3, testEpoch},
		{"boundary", Window{Count: 2, Start: testEpoch}, testEpoch.Add(time.Minute), 3, testEpoch},
		{"expired", Window{Count: 9, Start: testEpoch}, testEpoch.Add(61 * time.Second), 1, testEpoch.Add(61 * time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.current.next(tt.now, time.Minute)
			assert.Equal(t, tt.wantCount, got.Count)
			assert.True(t, got.Start.Equal(tt.wantStart))
		})
	}
}
