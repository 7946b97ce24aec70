package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStoreSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStoreWithClock(clock.Now)

	ok, err := s.SetIfAbsent(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetIfAbsent(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second set inside ttl must report present")

	clock.Advance(time.Minute)
	ok, err = s.SetIfAbsent(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "entry expires exactly at ttl")
}

func TestMemoryStoreIncrFixedWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStoreWithClock(clock.Now)

	for i := int64(1); i <= 3; i++ {
		n, err := s.Incr(ctx, "c", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		clock.Advance(3 * time.Minute)
	}

	// 9 minutes in; the window started at the first hit and is still open.
	n, err := s.Incr(ctx, "c", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	clock.Advance(2 * time.Minute)
	n, err = s.Incr(ctx, "c", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "new window after expiry")
}

func TestMemoryStoreLazyExpiryAndDelete(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	s := NewMemoryStoreWithClock(clock.Now)

	_, _ = s.SetIfAbsent(ctx, "a", time.Second)
	_, _ = s.SetIfAbsent(ctx, "b", time.Second)
	clock.Advance(time.Hour)
	assert.Equal(t, 2, s.Len(), "nothing is swept in the background")

	_, _ = s.SetIfAbsent(ctx, "a", time.Second)
	require.NoError(t, s.Delete(ctx, "a"))
	ok, _ := s.SetIfAbsent(ctx, "a", time.Second)
	assert.True(t, ok)
}

func TestMemoryStoreConcurrentSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.SetIfAbsent(ctx, "same", time.Minute)
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisConfig{Address: mr.Addr(), Prefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set if absent", func(t *testing.T) {
		s, mr := newTestRedisStore(t)

		ok, err := s.SetIfAbsent(ctx, "dedup", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, mr.Exists("test:dedup"))

		ok, err = s.SetIfAbsent(ctx, "dedup", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		mr.FastForward(time.Minute + time.Second)
		ok, err = s.SetIfAbsent(ctx, "dedup", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incr attaches ttl once", func(t *testing.T) {
		s, mr := newTestRedisStore(t)

		n, err := s.Incr(ctx, "vel", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, 10*time.Minute, mr.TTL("test:vel"))

		mr.FastForward(5 * time.Minute)
		n, err = s.Incr(ctx, "vel", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.Equal(t, 5*time.Minute, mr.TTL("test:vel"))

		mr.FastForward(6 * time.Minute)
		n, err = s.Incr(ctx, "vel", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("delete", func(t *testing.T) {
		s, mr := newTestRedisStore(t)

		_, err := s.SetIfAbsent(ctx, "gone", time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "gone"))
		assert.False(t, mr.Exists("test:gone"))
	})
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(RedisConfig{Address: addr})
	assert.Error(t, err)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
