package cache

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/folio-mcp/internal/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestGetOrFetch_DeduplicatesConcurrentCalls(t *testing.T) {
	t.Parallel()

	c := New()
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = GetOrFetch(context.Background(), c, "item-list", time.Minute, fetch)
		}(i)
	}

	// Let every goroutine join the flight before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "value", results[i])
	}
}

func TestGetOrFetch_TTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}
	ctx := context.Background()

	v, err := GetOrFetch(ctx, c, "item:a", 10*time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(10 * time.Minute)
	v, err = GetOrFetch(ctx, c, "item:a", 10*time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "an entry exactly ttl old is still fresh")

	clock.Advance(time.Second)
	v, err = GetOrFetch(ctx, c, "item:a", 10*time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "an expired entry triggers a fresh fetch")
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrFetch_PerCallTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}
	ctx := context.Background()

	_, err := GetOrFetch(ctx, c, "repo:a/b", time.Hour, fetch)
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)

	v, err := GetOrFetch(ctx, c, "repo:a/b", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = GetOrFetch(ctx, c, "repo:a/b", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "a shorter window sees the same entry as stale")
}

func TestGetOrFetch_DefaultTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(WithClock(clock.Now), WithDefaultTTL(time.Minute))
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}
	ctx := context.Background()

	_, err := GetOrFetch(ctx, c, "k", 0, fetch)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	v, err := GetOrFetch(ctx, c, "k", 0, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestGetOrFetch_StaleOnError(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	ctx := context.Background()

	_, err := GetOrFetch(ctx, c, "readme:a/b", time.Minute, func(context.Context) (string, error) {
		return "old", nil
	})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	upstream := errors.New(errors.CodeNetwork, "upstream down")
	v, err := GetOrFetch(ctx, c, "readme:a/b", time.Minute, func(context.Context) (string, error) {
		return "", upstream
	})
	require.NoError(t, err)
	assert.Equal(t, "old", v)
}

func TestGetOrFetch_ErrorWithoutStale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
		seed bool
	}{
		{name: "no previous entry", seed: false},
		{name: "stale policy disabled", opts: []Option{WithStaleOnError(false)}, seed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := newFakeClock()
			c := New(append([]Option{WithClock(clock.Now)}, tt.opts...)...)
			ctx := context.Background()
			if tt.seed {
				_, err := GetOrFetch(ctx, c, "k", time.Minute, func(context.Context) (string, error) {
					return "old", nil
				})
				require.NoError(t, err)
				clock.Advance(time.Hour)
			}

			_, err := GetOrFetch(ctx, c, "k", time.Minute, func(context.Context) (string, error) {
				return "", errors.New(errors.CodeNotFound, "gone")
			})
			require.Error(t, err)
			assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
		})
	}
}

func TestGetOrFetch_PendingClearedAfterFailure(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()
	var calls atomic.Int32

	_, err := GetOrFetch(ctx, c, "k", time.Minute, func(context.Context) (string, error) {
		calls.Add(1)
		return "", errors.New(errors.CodeNetwork, "boom")
	})
	require.Error(t, err)

	v, err := GetOrFetch(ctx, c, "k", time.Minute, func(context.Context) (string, error) {
		calls.Add(1)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrFetch_AbandonedCallerDoesNotCancelFetch(t *testing.T) {
	t.Parallel()

	c := New()
	release := make(chan struct{})
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		_, err := GetOrFetch(ctx, c, "k", time.Minute, func(fetchCtx context.Context) (string, error) {
			<-release
			if fetchCtx.Err() != nil {
				return "", fetchCtx.Err()
			}
			return "populated", nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	close(release)

	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)
	v, err := GetOrFetch(context.Background(), c, "k", time.Minute, func(context.Context) (string, error) {
		return "refetched", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "populated", v)
}

func TestGetOrFetch_TypeMismatchIsMiss(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()
	_, err := GetOrFetch(ctx, c, "k", time.Minute, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	v, err := GetOrFetch(ctx, c, "k", time.Minute, func(context.Context) (string, error) { return "s", nil })
	require.NoError(t, err)
	assert.Equal(t, "s", v)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()
	for _, k := range []string{"article:a:meta", "article:a:body", "article:b:meta", "articles:list"} {
		_, err := GetOrFetch(ctx, c, k, time.Minute, func(context.Context) (string, error) { return k, nil })
		require.NoError(t, err)
	}
	assert.Equal(t, 4, c.Len())

	assert.True(t, c.Invalidate("articles:list"))
	assert.False(t, c.Invalidate("articles:list"))
	assert.Equal(t, 2, c.InvalidatePrefix("article:a:"))
	assert.Equal(t, []string{"article:b:meta"}, c.Keys())

	assert.Equal(t, 1, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) { return int(calls.Add(1)), nil }

	_, err := GetOrFetch(ctx, c, "k", time.Hour, fetch)
	require.NoError(t, err)
	c.Invalidate("k")
	v, err := GetOrFetch(ctx, c, "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestInvalidate_DiscardsOverlappingFetch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		invalidate func(c *Cache)
	}{
		{"key", func(c *Cache) { c.Invalidate("article:a:body") }},
		{"prefix", func(c *Cache) { c.InvalidatePrefix("article:a:") }},
		{"clear", func(c *Cache) { c.Clear() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New()
			ctx := context.Background()
			started := make(chan struct{})
			release := make(chan struct{})

			done := make(chan string)
			go func() {
				v, _ := GetOrFetch(ctx, c, "article:a:body", time.Hour, func(context.Context) (string, error) {
					close(started)
					<-release
					return "before", nil
				})
				done <- v
			}()

			<-started
			tt.invalidate(c)
			close(release)
			assert.Equal(t, "before", <-done)

			v, err := GetOrFetch(ctx, c, "article:a:body", time.Hour, func(context.Context) (string, error) {
				return "after", nil
			})
			require.NoError(t, err)
			assert.Equal(t, "after", v)
		})
	}
}
