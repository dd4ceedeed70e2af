package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

const (
	// PrefixUnlockView namespaces cached unlock views.
	PrefixUnlockView = "unlock_view:"

	// PrefixUnlockViewGen namespaces the invalidation generation of a view.
	PrefixUnlockViewGen = "unlock_view_gen:"

	// TTLUnlockView bounds how long a view survives a missed invalidation.
	TTLUnlockView = 10 * time.Minute

	// TTLUnlockViewGen must outlive any view build in flight.
	TTLUnlockViewGen = 24 * time.Hour
)

// UnlockViewKey is the key of the cached view for (user, course).
func UnlockViewKey(user shared.UserID, course shared.CourseID) string {
	return fmt.Sprintf("%s%d:%d", PrefixUnlockView, user, course)
}

// UnlockViewGenKey is the key of the generation of (user, course).
func UnlockViewGenKey(user shared.UserID, course shared.CourseID) string {
	return fmt.Sprintf("%s%d:%d", PrefixUnlockViewGen, user, course)
}

// setIfGen stores ARGV[2] under KEYS[1] only while KEYS[2] still holds the
// generation ARGV[1]; a missing generation reads as 0.
var setIfGen = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then gen = '0' end
if gen ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// UnlockViewCache caches progress.View values per (user, course).
type UnlockViewCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewUnlockViewCache creates the cache. A non-positive ttl uses TTLUnlockView.
func NewUnlockViewCache(cache *Cache, ttl time.Duration) *UnlockViewCache {
	if ttl <= 0 {
		ttl = TTLUnlockView
	}
	return &UnlockViewCache{cache: cache, ttl: ttl}
}

// Get returns the cached view and whether it was present. On a miss gen is
// the current generation of (user, course), to be handed back to Set.
func (c *UnlockViewCache) Get(ctx context.Context, user shared.UserID, course shared.CourseID) (v progress.View, gen int64, ok bool, err error) {
	vals, err := c.cache.client.MGet(ctx, UnlockViewKey(user, course), UnlockViewGenKey(user, course)).Result()
	if err != nil {
		return progress.View{}, 0, false, err
	}
	if raw, isStr := vals[1].(string); isStr {
		if gen, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return progress.View{}, 0, false, fmt.Errorf("%w: generation %q", ErrCacheSerialization, raw)
		}
	}
	raw, isStr := vals[0].(string)
	if !isStr {
		return progress.View{}, gen, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return progress.View{}, 0, false, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return v, gen, true, nil
}

// Set stores the view of user unless (user, course) was invalidated since
// the Get that returned gen. A negative gen never stores.
func (c *UnlockViewCache) Set(ctx context.Context, user shared.UserID, v progress.View, gen int64) error {
	if gen < 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	keys := []string{UnlockViewKey(user, v.CourseID), UnlockViewGenKey(user, v.CourseID)}
	return setIfGen.Run(ctx, c.cache.client, keys, strconv.FormatInt(gen, 10), data, c.ttl.Milliseconds()).Err()
}

// Invalidate drops the cached view of (user, course) and bumps its
// generation, so a view built before the change is refused by Set.
func (c *UnlockViewCache) Invalidate(ctx context.Context, user shared.UserID, course shared.CourseID) error {
	genKey := UnlockViewGenKey(user, course)
	_, err := c.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, TTLUnlockViewGen)
		pipe.Del(ctx, UnlockViewKey(user, course))
		return nil
	})
	return err
}

// InvalidateAll drops every cached view.
func (c *UnlockViewCache) InvalidateAll(ctx context.Context) error {
	return c.cache.DeleteByPattern(ctx, PrefixUnlockView+"*")
}
