package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAllowsWithinLimit(t *testing.T) {
	repo := NewMemoryLimiterRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.Allow(ctx, "store-1", "worker", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "call %d should be allowed", i+1)
	}

	allowed, err := repo.Allow(ctx, "store-1", "worker", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryLimiterSeparatePairs(t *testing.T) {
	repo := NewMemoryLimiterRepository()
	ctx := context.Background()

	allowed, err := repo.Allow(ctx, "store-1", "worker", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	// A different target has its own window.
	allowed, err = repo.Allow(ctx, "store-2", "worker", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.Allow(ctx, "store-1", "worker", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryLimiterWindowExpiry(t *testing.T) {
	repo := NewMemoryLimiterRepository()
	ctx := context.Background()

	allowed, err := repo.Allow(ctx, "store-1", "worker", 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _ = repo.Allow(ctx, "store-1", "worker", 1, 20*time.Millisecond)
	assert.False(t, allowed)

	time.Sleep(30 * time.Millisecond)

	allowed, err = repo.Allow(ctx, "store-1", "worker", 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryLimiterZeroLimitMeansUnlimited(t *testing.T) {
	repo := NewMemoryLimiterRepository()
	for i := 0; i < 10; i++ {
		allowed, err := repo.Allow(context.Background(), "store-1", "worker", 0, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := NewRedisLimiterRepository(client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := repo.Allow(ctx, "store-1", "worker", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.Allow(ctx, "store-1", "worker", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Window expiry resets the counter.
	mr.FastForward(2 * time.Minute)
	allowed, err = repo.Allow(ctx, "store-1", "worker", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiterNilClient(t *testing.T) {
	repo := NewRedisLimiterRepository(nil)
	_, err := repo.Allow(context.Background(), "store-1", "worker", 1, time.Minute)
	assert.Error(t, err)
}

type failingLimiter struct {
	calls int
}

func (f *failingLimiter) Allow(ctx context.Context, target, caller string, limit int, window time.Duration) (bool, error) {
	f.calls++
	return false, errors.New("connection refused")
}

func TestFailoverFallsBackOnPrimaryError(t *testing.T) {
	primary := &failingLimiter{}
	fallback := NewMemoryLimiterRepository()
	logger := zerolog.Nop()

	repo := NewFailoverLimiterRepository(primary, fallback, &logger)
	ctx := context.Background()

	allowed, err := repo.Allow(ctx, "store-1", "worker", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, primary.calls)

	// Primary is marked down; subsequent calls skip it entirely.
	allowed, err = repo.Allow(ctx, "store-1", "worker", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, primary.calls)

	allowed, err = repo.Allow(ctx, "store-1", "worker", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestFailoverRecoversWithHealthyPrimary(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	primary := NewRedisLimiterRepository(client)
	fallback := NewMemoryLimiterRepository()
	logger := zerolog.Nop()

	repo := NewFailoverLimiterRepository(primary, fallback, &logger)

	allowed, err := repo.Allow(context.Background(), "store-1", "worker", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	// The shared counter was used, not the in-process one.
	val, err := mr.Get("rate_limit:store-1:worker")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
}
