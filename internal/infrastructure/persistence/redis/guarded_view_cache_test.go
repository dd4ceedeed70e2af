package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/pkg/circuitbreaker"
)

// unreachableViews points at a port nothing listens on.
func unreachableViews(t *testing.T) *UnlockViewCache {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewUnlockViewCache(NewCacheFromClient(client), time.Minute)
}

func TestGuardedViewCache_OpensOnFailures(t *testing.T) {
	ctx := context.Background()
	g := NewGuardedViewCache(unreachableViews(t), nil, circuitbreaker.WithFailureThreshold(2))

	for i := 0; i < 2; i++ {
		_, _, _, err := g.Get(ctx, 1, 2)
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, g.State())

	// Open: reads are misses that never store, and writes are dropped
	// without an error.
	_, gen, ok, err := g.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Negative(t, gen)
	assert.NoError(t, g.Set(ctx, 1, progress.View{CourseID: 2}, gen))

	// Invalidation still reaches Redis.
	assert.Error(t, g.Invalidate(ctx, 1, 2))
}

func TestGuardedViewCache_RecoversWithLiveRedis(t *testing.T) {
	ctx := context.Background()
	views := NewUnlockViewCache(newTestCache(t), 0)
	g := NewGuardedViewCache(views, nil)

	require.NoError(t, views.Invalidate(ctx, 1, 2))
	_, gen, ok, err := g.Get(ctx, 1, 2)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, g.Set(ctx, 1, progress.View{CourseID: 2, Enrolled: true}, gen))
	v, _, ok, err := g.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, v.Enrolled)
	assert.Equal(t, circuitbreaker.StateClosed, g.State())
}
