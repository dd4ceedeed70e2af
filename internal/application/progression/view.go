package progression

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// buildView loads enrollment, completions and bonus ownership in parallel and
// evaluates the unlock rule.
func (s *Service) buildView(ctx context.Context, user shared.UserID, c *course.Course) (progress.View, error) {
	var (
		enrolled  bool
		completed []shared.ModuleID
		owned     bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		enrolled, err = s.isEnrolled(gctx, user, c.ID)
		return err
	})
	g.Go(func() (err error) {
		completed, err = read(gctx, s, func(ctx context.Context) ([]shared.ModuleID, error) {
			return s.progress.CompletedModules(ctx, user, c.ID)
		})
		return err
	})
	if c.Bonus != nil {
		g.Go(func() (err error) {
			owned, err = read(gctx, s, func(ctx context.Context) (bool, error) {
				return s.ledger.Owns(ctx, user, c.ID, c.Bonus.ID)
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return progress.View{}, err
	}

	return progress.ComputeView(progress.UnlockInput{
		Course:      c,
		Enrolled:    enrolled,
		IsCompleted: progress.CompletionSet(completed),
		BonusOwned:  owned,
	}), nil
}

// GetUnlockView returns the unlock view of (user, course), served from the
// view cache when one is configured.
func (s *Service) GetUnlockView(ctx context.Context, user shared.UserID, courseID shared.CourseID) (res ViewResult, err error) {
	ctx, span := s.startSpan(ctx, "GetUnlockView", user, attribute.Int64("course.id", int64(courseID)))
	defer func() { s.finish(span, "GetUnlockView", res.Outcome, err) }()

	if !user.IsValid() || !courseID.IsValid() {
		return ViewResult{Outcome: InvalidInput}, nil
	}

	gen := int64(-1)
	if s.views != nil {
		v, g, ok, cerr := s.views.Get(ctx, user, courseID)
		switch {
		case cerr != nil:
			s.log.Warn("unlock view cache read failed", logger.UserID(int64(user)), logger.CourseID(int64(courseID)), logger.Err(cerr))
		case ok:
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return ViewResult{Outcome: OK, View: v}, nil
		default:
			gen = g
		}
	}

	c, err := s.getCourse(ctx, courseID)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return ViewResult{Outcome: o}, nil
		}
		return ViewResult{}, shared.Infrastructure("progression", "GetUnlockView", err)
	}
	v, err := s.buildView(ctx, user, c)
	if err != nil {
		return ViewResult{}, shared.Infrastructure("progression", "GetUnlockView", err)
	}

	if s.views != nil && gen >= 0 {
		if cerr := s.views.Set(ctx, user, v, gen); cerr != nil {
			s.log.Warn("unlock view cache write failed", logger.UserID(int64(user)), logger.CourseID(int64(courseID)), logger.Err(cerr))
		}
	}
	return ViewResult{Outcome: OK, View: v}, nil
}
