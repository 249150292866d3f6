package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 统计临界区内的最大并发
func maxInside(t *testing.T, l Locker, key string, n int) int32 {
	t.Helper()
	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			cur := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	return peak
}

func TestKeyedMutex(t *testing.T) {
	km := NewKeyedMutex()
	assert.Equal(t, int32(1), maxInside(t, km, "p1", 20))
	assert.Equal(t, 0, km.Len())

	t.Run("DifferentKeysDoNotBlock", func(t *testing.T) {
		u1, err := km.Lock(context.Background(), "a")
		require.NoError(t, err)
		defer u1()
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		u2, err := km.Lock(ctx, "b")
		require.NoError(t, err)
		u2()
	})

	t.Run("ContextCancelWhileWaiting", func(t *testing.T) {
		u1, err := km.Lock(context.Background(), "c")
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = km.Lock(ctx, "c")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		u1()
		u1() // 幂等
		assert.Equal(t, 0, km.Len())
	})
}

func TestRedisLocker(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	rl := NewRedisLocker(rdb, "lock:property:", 5*time.Second, nil)
	assert.Equal(t, int32(1), maxInside(t, rl, "p1", 10))
	assert.False(t, s.Exists("lock:property:p1"))

	t.Run("HeldLockTimesOut", func(t *testing.T) {
		unlock, err := rl.Lock(context.Background(), "p2")
		require.NoError(t, err)
		assert.True(t, s.Exists("lock:property:p2"))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = rl.Lock(ctx, "p2")
		assert.True(t, errors.Is(err, ErrNotAcquired))
		unlock()
		assert.False(t, s.Exists("lock:property:p2"))
	})

	t.Run("ReleaseDoesNotStealForeignLock", func(t *testing.T) {
		unlock, err := rl.Lock(context.Background(), "p3")
		require.NoError(t, err)
		// 模拟 TTL 过期后被别人拿走
		require.NoError(t, s.Set("lock:property:p3", "someone-else"))
		unlock()
		v, err := s.Get("lock:property:p3")
		require.NoError(t, err)
		assert.Equal(t, "someone-else", v)
	})
}

func TestChain(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	km := NewKeyedMutex()
	c := Chain{km, NewRedisLocker(rdb, "lk:", time.Second, nil)}
	assert.Equal(t, int32(1), maxInside(t, c, "p", 10))
	assert.Equal(t, 0, km.Len())
	assert.False(t, s.Exists("lk:p"))
}

func TestRetryPolicy(t *testing.T) {
	r := RetryPolicy{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffFactor: 2}
	assert.Equal(t, 10*time.Millisecond, r.NextDelay(0))
	assert.Equal(t, 20*time.Millisecond, r.NextDelay(2))
	assert.Equal(t, 40*time.Millisecond, r.NextDelay(3))
	assert.Equal(t, 50*time.Millisecond, r.NextDelay(10))
}
