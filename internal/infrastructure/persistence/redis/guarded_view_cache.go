package redis

import (
	"context"
	"time"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/circuitbreaker"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// GuardedViewCache puts a circuit breaker in front of an UnlockViewCache.
// While the breaker is open reads are misses that hand out a negative
// generation and writes are dropped, so the caller builds views from the
// store without waiting on Redis.
type GuardedViewCache struct {
	next *UnlockViewCache
	cb   *circuitbreaker.CircuitBreaker
	log  *logger.Logger
}

// NewGuardedViewCache wraps views. When the breaker closes again every cached
// view is dropped, since invalidations were lost while Redis was unreachable.
func NewGuardedViewCache(views *UnlockViewCache, log *logger.Logger, opts ...circuitbreaker.Option) *GuardedViewCache {
	if log == nil {
		log = logger.Nop()
	}
	g := &GuardedViewCache{next: views, log: log.With(logger.Component("view-cache"))}
	opts = append([]circuitbreaker.Option{
		circuitbreaker.WithFailureThreshold(3),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithTimeout(15 * time.Second),
		// One read-through probes with both its Get and its Set.
		circuitbreaker.WithMaxHalfOpenRequests(2),
	}, opts...)
	opts = append(opts, circuitbreaker.WithOnStateChange(g.onStateChange))
	g.cb = circuitbreaker.New("redis-view-cache", opts...)
	return g
}

func (g *GuardedViewCache) onStateChange(name string, from, to circuitbreaker.State) {
	g.log.Warn("circuit breaker state changed",
		logger.String("breaker", name),
		logger.String("from", from.String()),
		logger.String("to", to.String()),
	)
	if to != circuitbreaker.StateClosed {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := g.next.InvalidateAll(ctx); err != nil {
			g.log.Error("failed to drop views after recovery", logger.Err(err))
		}
	}()
}

// Get reads through the breaker.
func (g *GuardedViewCache) Get(ctx context.Context, user shared.UserID, course shared.CourseID) (progress.View, int64, bool, error) {
	var (
		v   progress.View
		gen int64
		ok  bool
	)
	err := g.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		v, gen, ok, err = g.next.Get(ctx, user, course)
		return err
	})
	if circuitbreaker.IsRejected(err) {
		return progress.View{}, -1, false, nil
	}
	return v, gen, ok, err
}

// Set writes through the breaker.
func (g *GuardedViewCache) Set(ctx context.Context, user shared.UserID, v progress.View, gen int64) error {
	err := g.cb.Execute(ctx, func(ctx context.Context) error {
		return g.next.Set(ctx, user, v, gen)
	})
	if circuitbreaker.IsRejected(err) {
		return nil
	}
	return err
}

// Invalidate bypasses the breaker: a dropped invalidation could leave a
// stale view behind.
func (g *GuardedViewCache) Invalidate(ctx context.Context, user shared.UserID, course shared.CourseID) error {
	return g.next.Invalidate(ctx, user, course)
}

// State exposes the breaker state.
func (g *GuardedViewCache) State() circuitbreaker.State {
	return g.cb.State()
}
