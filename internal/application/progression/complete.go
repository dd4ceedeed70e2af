package progression

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// CompleteModule marks an unlocked module completed and evaluates the course
// rewards. Rewards are evaluated on every call, so a retry after a crash
// between the completion write and the grants still pays out, while the
// ledger keeps each grant at most once.
func (s *Service) CompleteModule(ctx context.Context, cmd CompleteModuleCommand) (res CompleteModuleResult, err error) {
	ctx, span := s.startSpan(ctx, "CompleteModule", cmd.UserID, attribute.Int64("module.id", int64(cmd.ModuleID)))
	defer func() { s.finish(span, "CompleteModule", res.Outcome, err) }()

	if err := validateCommand(cmd); err != nil {
		return CompleteModuleResult{Outcome: InvalidInput}, nil
	}

	m, err := s.getModule(ctx, cmd.ModuleID)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return CompleteModuleResult{Outcome: o}, nil
		}
		return CompleteModuleResult{}, shared.Infrastructure("progression", "CompleteModule", err)
	}
	c, err := s.getCourse(ctx, m.CourseID)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return CompleteModuleResult{Outcome: o}, nil
		}
		return CompleteModuleResult{}, shared.Infrastructure("progression", "CompleteModule", err)
	}
	log := s.log.With(
		logger.UserID(int64(cmd.UserID)),
		logger.CourseID(int64(c.ID)),
		logger.ModuleID(int64(m.ID)),
	)

	before, err := s.buildView(ctx, cmd.UserID, c)
	if err != nil {
		return CompleteModuleResult{}, shared.Infrastructure("progression", "CompleteModule", err)
	}
	if !before.Enrolled {
		return CompleteModuleResult{Outcome: NotEnrolled}, nil
	}
	state, ok := before.Find(m.ID)
	if !ok {
		return CompleteModuleResult{Outcome: NotFound}, nil
	}
	if !state.Unlocked {
		log.Debug("module locked")
		return CompleteModuleResult{Outcome: ModuleLocked, View: before}, nil
	}

	first, err := s.progress.MarkCompleted(ctx, progress.Record{
		User:      cmd.UserID,
		Course:    c.ID,
		Module:    m.ID,
		Status:    progress.StatusCompleted,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return CompleteModuleResult{}, shared.Infrastructure("progression", "CompleteModule", err)
	}

	v, err := s.buildView(ctx, cmd.UserID, c)
	if err != nil {
		return CompleteModuleResult{}, shared.Infrastructure("progression", "CompleteModule", err)
	}
	res = CompleteModuleResult{Outcome: AlreadyDone, View: v, CourseComplete: v.CourseComplete()}
	if first {
		res.Outcome = OK
		s.publish(shared.NewModuleCompletedEvent(cmd.UserID, c.ID, m.ID, res.CourseComplete))
		log.Info("module completed", logger.Bool("course_complete", res.CourseComplete))
	}

	if !res.CourseComplete {
		return res, nil
	}
	if err := s.grantCourseRewards(ctx, cmd.UserID, c, &res); err != nil {
		return res, shared.Infrastructure("progression", "CompleteModule", err)
	}

	bal, err := s.account.Balance(ctx, cmd.UserID)
	if err != nil {
		return res, shared.Infrastructure("progression", "CompleteModule", err)
	}
	res.Balance = bal
	return res, nil
}

// grantCourseRewards attempts CompletionReward and, while time remains on a
// limited course, TimedReward. The grants are independent.
func (s *Service) grantCourseRewards(ctx context.Context, user shared.UserID, c *course.Course, res *CompleteModuleResult) error {
	completion, timed := c.Rewards(s.cfg.Rewards)

	cg, err := s.grant(ctx, user, c.ID, reward.CompletionReward(), completion)
	if err != nil {
		return err
	}
	res.Completion = &cg

	if !c.HasTimeLimit() {
		return nil
	}
	elapsed, err := s.liveElapsed(ctx, user, c.ID)
	if err != nil {
		return err
	}
	if progress.TimeRemaining(c.TimeLimitSeconds, elapsed) <= 0 {
		s.log.Debug("time limit exceeded, no timed reward",
			logger.UserID(int64(user)),
			logger.CourseID(int64(c.ID)),
			logger.Seconds("elapsed", elapsed),
		)
		return nil
	}
	tg, err := s.grant(ctx, user, c.ID, reward.TimedReward(), timed)
	if err != nil {
		return err
	}
	res.Timed = &tg
	return nil
}

// grant runs one ledger grant and announces it when it paid out.
func (s *Service) grant(ctx context.Context, user shared.UserID, courseID shared.CourseID, kind reward.Kind, amount shared.Coins) (RewardResult, error) {
	g, err := s.ledger.Grant(ctx, user, courseID, kind, amount)
	if err != nil {
		return RewardResult{}, err
	}
	if g.Outcome == reward.Granted {
		s.publish(shared.NewRewardGrantedEvent(user, courseID, kind.Key(), g.Amount, g.Balance))
		s.log.Info("reward granted",
			logger.UserID(int64(user)),
			logger.CourseID(int64(courseID)),
			logger.RewardKind(kind.Key()),
			logger.Amount(int64(g.Amount)),
			logger.Balance(int64(g.Balance)),
		)
	}
	return rewardResult(g), nil
}
