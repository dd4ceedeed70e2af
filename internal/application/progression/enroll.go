package progression

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// Enroll creates the enrollment and starts the study session. The first
// enrollment zeroes the durable timer; re-enrolling only resumes the session
// with accrued time intact and reports AlreadyDone.
func (s *Service) Enroll(ctx context.Context, cmd EnrollCommand) (res EnrollResult, err error) {
	ctx, span := s.startSpan(ctx, "Enroll", cmd.UserID, attribute.Int64("course.id", int64(cmd.CourseID)))
	defer func() { s.finish(span, "Enroll", res.Outcome, err) }()

	if err := validateCommand(cmd); err != nil {
		return EnrollResult{Outcome: InvalidInput}, nil
	}
	log := s.log.With(logger.UserID(int64(cmd.UserID)), logger.CourseID(int64(cmd.CourseID)))
	log.Debug("enroll")

	c, err := s.getCourse(ctx, cmd.CourseID)
	if err != nil {
		if o, ok := outcomeOf(err); ok {
			return EnrollResult{Outcome: o}, nil
		}
		return EnrollResult{}, shared.Infrastructure("progression", "Enroll", err)
	}

	inserted, err := s.enrollments.EnrollIfAbsent(ctx, progress.Enrollment{
		User:       cmd.UserID,
		Course:     cmd.CourseID,
		EnrolledAt: s.now().UTC(),
	})
	if err != nil {
		return EnrollResult{}, shared.Infrastructure("progression", "Enroll", err)
	}

	var timer *progress.Timer
	if inserted {
		if err := s.timers.ResetTimer(ctx, cmd.UserID, cmd.CourseID); err != nil {
			return EnrollResult{}, shared.Infrastructure("progression", "Enroll", err)
		}
		timer = s.sessions.restart(cmd.UserID, cmd.CourseID, 0)
	} else {
		timer, _, err = s.sessions.start(ctx, cmd.UserID, cmd.CourseID)
		if err != nil {
			return EnrollResult{}, shared.Infrastructure("progression", "Enroll", err)
		}
	}

	v, err := s.buildView(ctx, cmd.UserID, c)
	if err != nil {
		return EnrollResult{}, shared.Infrastructure("progression", "Enroll", err)
	}

	res = EnrollResult{Outcome: OK, View: v, Elapsed: timer.Elapsed()}
	if !inserted {
		res.Outcome = AlreadyDone
		return res, nil
	}
	s.publish(shared.NewEnrolledEvent(cmd.UserID, cmd.CourseID))
	log.Info("enrolled")
	return res, nil
}

// ListEnrollments returns the courses user is enrolled in, by course id.
func (s *Service) ListEnrollments(ctx context.Context, user shared.UserID) (EnrollmentsResult, error) {
	if !user.IsValid() {
		return EnrollmentsResult{Outcome: InvalidInput}, nil
	}
	courses, err := read(ctx, s, func(ctx context.Context) ([]shared.CourseID, error) {
		return s.enrollments.ListEnrolledCourses(ctx, user)
	})
	if err != nil {
		return EnrollmentsResult{}, shared.Infrastructure("progression", "ListEnrollments", err)
	}
	return EnrollmentsResult{Outcome: OK, Courses: courses}, nil
}
