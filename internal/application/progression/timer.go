package progression

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// StartTimer resumes the study session of an enrolled user. Starting a
// running session is a no-op reported as AlreadyDone.
func (s *Service) StartTimer(ctx context.Context, cmd TimerCommand) (res TimerResult, err error) {
	ctx, span := s.startSpan(ctx, "StartTimer", cmd.UserID, attribute.Int64("course.id", int64(cmd.CourseID)))
	defer func() { s.finish(span, "StartTimer", res.Outcome, err) }()

	if err := validateCommand(cmd); err != nil {
		return TimerResult{Outcome: InvalidInput}, nil
	}
	c, err := s.getCourse(ctx, cmd.CourseID)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return TimerResult{Outcome: o}, nil
		}
		return TimerResult{}, shared.Infrastructure("progression", "StartTimer", err)
	}
	enrolled, err := s.isEnrolled(ctx, cmd.UserID, cmd.CourseID)
	if err != nil {
		return TimerResult{}, shared.Infrastructure("progression", "StartTimer", err)
	}
	if !enrolled {
		return TimerResult{Outcome: NotEnrolled}, nil
	}

	t, started, err := s.sessions.start(ctx, cmd.UserID, cmd.CourseID)
	if err != nil {
		return TimerResult{}, shared.Infrastructure("progression", "StartTimer", err)
	}
	res = timerResult(t, c.TimeLimitSeconds)
	if !started {
		res.Outcome = AlreadyDone
	}
	return res, nil
}

// Tick adds study seconds to a running session. It touches the store only
// when no session is live, to tell NotEnrolled from a stopped session.
func (s *Service) Tick(ctx context.Context, cmd TickCommand) (res TimerResult, err error) {
	if err := validateCommand(cmd); err != nil {
		return TimerResult{Outcome: InvalidInput}, nil
	}
	t, ok := s.sessions.peek(cmd.UserID, cmd.CourseID)
	if !ok {
		enrolled, err := s.isEnrolled(ctx, cmd.UserID, cmd.CourseID)
		if err != nil {
			return TimerResult{}, shared.Infrastructure("progression", "Tick", err)
		}
		if !enrolled {
			return TimerResult{Outcome: NotEnrolled}, nil
		}
		return TimerResult{Outcome: OK}, nil
	}
	accepted := t.Tick(cmd.Seconds)
	return TimerResult{Outcome: OK, Running: t.Running(), Accepted: accepted, Elapsed: t.Elapsed()}, nil
}

// Pause stops the session and persists the unsaved delta. Pausing a stopped
// session still saves, which writes nothing when the delta is zero.
func (s *Service) Pause(ctx context.Context, cmd TimerCommand) (res TimerResult, err error) {
	ctx, span := s.startSpan(ctx, "Pause", cmd.UserID, attribute.Int64("course.id", int64(cmd.CourseID)))
	defer func() { s.finish(span, "Pause", res.Outcome, err) }()

	if err := validateCommand(cmd); err != nil {
		return TimerResult{Outcome: InvalidInput}, nil
	}
	c, err := s.getCourse(ctx, cmd.CourseID)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return TimerResult{Outcome: o}, nil
		}
		return TimerResult{}, shared.Infrastructure("progression", "Pause", err)
	}

	t, ok := s.sessions.peek(cmd.UserID, cmd.CourseID)
	if !ok {
		enrolled, err := s.isEnrolled(ctx, cmd.UserID, cmd.CourseID)
		if err != nil {
			return TimerResult{}, shared.Infrastructure("progression", "Pause", err)
		}
		if !enrolled {
			return TimerResult{Outcome: NotEnrolled}, nil
		}
		elapsed, err := s.liveElapsed(ctx, cmd.UserID, cmd.CourseID)
		if err != nil {
			return TimerResult{}, shared.Infrastructure("progression", "Pause", err)
		}
		return TimerResult{Outcome: OK, Elapsed: elapsed, Remaining: progress.TimeRemaining(c.TimeLimitSeconds, elapsed)}, nil
	}

	delta, err := t.Pause(ctx, s.timers)
	if err != nil {
		return TimerResult{}, shared.Infrastructure("progression", "Pause", err)
	}
	res = timerResult(t, c.TimeLimitSeconds)
	res.Persisted = delta
	if delta > 0 {
		s.publish(shared.NewTimerPausedEvent(cmd.UserID, cmd.CourseID, delta, res.Elapsed))
	}
	s.log.Debug("timer paused",
		logger.UserID(int64(cmd.UserID)),
		logger.CourseID(int64(cmd.CourseID)),
		logger.Seconds("saved_delta", delta),
		logger.Seconds("elapsed", res.Elapsed),
	)
	return res, nil
}

// GetTimeRemaining reports the time left for the timed reward, using the
// live session total when one exists.
func (s *Service) GetTimeRemaining(ctx context.Context, user shared.UserID, courseID shared.CourseID) (TimeResult, error) {
	if !user.IsValid() || !courseID.IsValid() {
		return TimeResult{Outcome: InvalidInput}, nil
	}
	c, err := s.getCourse(ctx, courseID)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return TimeResult{Outcome: o}, nil
		}
		return TimeResult{}, shared.Infrastructure("progression", "GetTimeRemaining", err)
	}
	elapsed, err := s.liveElapsed(ctx, user, courseID)
	if err != nil {
		return TimeResult{}, shared.Infrastructure("progression", "GetTimeRemaining", err)
	}
	return TimeResult{
		Outcome:   OK,
		Limit:     c.TimeLimitSeconds,
		Elapsed:   elapsed,
		Remaining: progress.TimeRemaining(c.TimeLimitSeconds, elapsed),
	}, nil
}

// Checkpoint saves the unsaved delta of every running session without
// stopping it, and forgets idle stopped sessions. It returns the number of
// sessions written; failures are logged and the first one returned.
func (s *Service) Checkpoint(ctx context.Context) (int, error) {
	var firstErr error
	saved := 0
	for _, t := range s.sessions.snapshot(true) {
		delta, err := t.Save(ctx, s.timers)
		if err != nil {
			s.log.Error("timer checkpoint failed",
				logger.UserID(int64(t.User())), logger.CourseID(int64(t.Course())), logger.Err(err))
			if firstErr == nil {
				firstErr = shared.Infrastructure("progression", "Checkpoint", err)
			}
			continue
		}
		if delta > 0 {
			saved++
		}
	}
	s.sessions.evictStopped()
	return saved, firstErr
}

// FlushAll pauses every live session. It is meant for shutdown.
func (s *Service) FlushAll(ctx context.Context) (int, error) {
	var firstErr error
	paused := 0
	for _, t := range s.sessions.snapshot(false) {
		delta, err := t.Pause(ctx, s.timers)
		if err != nil {
			s.log.Error("timer flush failed",
				logger.UserID(int64(t.User())), logger.CourseID(int64(t.Course())), logger.Err(err))
			if firstErr == nil {
				firstErr = shared.Infrastructure("progression", "FlushAll", err)
			}
			continue
		}
		if delta > 0 {
			paused++
			s.publish(shared.NewTimerPausedEvent(t.User(), t.Course(), delta, t.Elapsed()))
		}
	}
	return paused, firstErr
}

func timerResult(t *progress.Timer, limit int64) TimerResult {
	elapsed := t.Elapsed()
	return TimerResult{
		Outcome:   OK,
		Running:   t.Running(),
		Accepted:  true,
		Elapsed:   elapsed,
		Remaining: progress.TimeRemaining(limit, elapsed),
	}
}
