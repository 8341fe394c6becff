package ratelimiter

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

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

func newTestLimiter(t *testing.T, rate, burst int) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cache := NewInMemory()
	t.Cleanup(func() { _ = cache.Close() })

	rl := newRateLimiter(Options{MaxRatePerSecond: rate, MaxBurst: burst, Cache: cache, CacheTTL: time.Hour}, clock.Now)
	return rl, clock
}

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 3)

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("a"), "request %d", i)
	}
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are independent")
	assert.Equal(t, 0, rl.Remaining("a"))
}

func TestRateLimiter_RefillsAtRate(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, 2)

	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))

	clock.Advance(500 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	clock.Advance(10 * time.Second)
	assert.Equal(t, 2, rl.Remaining("a"), "capped at burst")
}

func TestRateLimiter_KeepsPartialProgress(t *testing.T) {
	rl, clock := newTestLimiter(t, 5, 1)

	require.True(t, rl.Allow("a"))

	// 5/s is one token per 200ms; polling every 100ms must still earn it.
	clock.Advance(100 * time.Millisecond)
	assert.False(t, rl.Allow("a"))
	clock.Advance(100 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiter_Forget(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 1)

	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))

	rl.Forget("a")
	time.Sleep(time.Millisecond)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiter_GetSourceKey(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, SourceHeaderKey: "X-Forwarded-For"})

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", rl.GetSourceKey(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", rl.GetSourceKey(r))
	assert.Equal(t, 1, rl.GetMaxBurst())
}

func TestInMemory_Expiry(t *testing.T) {
	cache := NewInMemory()
	defer cache.Close()

	require.NoError(t, cache.SetWithExpiration("k", 7, time.Millisecond))
	v, err := cache.Get("k")
	if err == nil {
		assert.Equal(t, 7, v)
	}

	time.Sleep(5 * time.Millisecond)
	_, err = cache.Get("k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set("forever", 1))
	v, err = cache.Get("forever")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
