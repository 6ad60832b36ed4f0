package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterCapsWindow(t *testing.T) {
	limiter := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "venue-1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i)
	}

	ok, err := limiter.Allow(ctx, "venue-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different key has its own budget.
	ok, err = limiter.Allow(ctx, "venue-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterResetsAfterWindow(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "venue-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "venue-1")
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(time.Minute + time.Second)

	ok, err = limiter.Allow(ctx, "venue-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterPrunesExpiredKeys(t *testing.T) {
	limiter := NewMemoryLimiter(5, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
	}
	assert.Len(t, limiter.counts, 3)

	now = now.Add(2 * time.Minute)
	_, err := limiter.Allow(ctx, "d")
	require.NoError(t, err)

	assert.Len(t, limiter.counts, 1)
}
