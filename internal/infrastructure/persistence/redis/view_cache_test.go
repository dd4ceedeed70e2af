package redis

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
)

func TestUnlockViewKey(t *testing.T) {
	assert.Equal(t, "unlock_view:7:3", UnlockViewKey(7, 3))
	assert.Equal(t, "unlock_view_gen:7:3", UnlockViewGenKey(7, 3))
}

// newTestCache connects to REDIS_TEST_ADDR or skips.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return NewCacheFromClient(client)
}

func testView() progress.View {
	return progress.View{
		CourseID: 2,
		Enrolled: true,
		Modules: []progress.ModuleState{
			{Module: course.Module{ID: 10, CourseID: 2, Position: 1}, Unlocked: true, Completed: true},
			{Module: course.Module{ID: 11, CourseID: 2, Position: 2}, Unlocked: true},
		},
		CompletedCount: 1,
		Required:       2,
	}
}

func TestUnlockViewCache_RoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	views := NewUnlockViewCache(newTestCache(t), 0)
	require.NoError(t, views.Invalidate(ctx, 1, 2))

	_, gen, ok, err := views.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	v := testView()
	require.NoError(t, views.Set(ctx, 1, v, gen))

	got, _, ok, err := views.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v, got)

	require.NoError(t, views.Invalidate(ctx, 1, 2))
	_, _, ok, err = views.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnlockViewCache_SetRefusedAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	views := NewUnlockViewCache(newTestCache(t), 0)
	require.NoError(t, views.Invalidate(ctx, 1, 2))

	_, gen, ok, err := views.Get(ctx, 1, 2)
	require.NoError(t, err)
	require.False(t, ok)

	// The view changes while the old one is being built.
	require.NoError(t, views.Invalidate(ctx, 1, 2))
	require.NoError(t, views.Set(ctx, 1, testView(), gen))

	_, next, ok, err := views.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, gen+1, next)

	require.NoError(t, views.Set(ctx, 1, testView(), -1))
	_, _, ok, err = views.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}
