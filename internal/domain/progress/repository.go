package progress

import (
	"context"
	"time"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// Enrollment records that a user may study a course.
type Enrollment struct {
	User       shared.UserID
	Course     shared.CourseID
	EnrolledAt time.Time
}

// Status of a progress record.
type Status string

const (
	StatusNotCompleted Status = "not_completed"
	StatusCompleted    Status = "completed"
)

// Record is the per (user, module) progress record. It is created lazily on
// first completion.
type Record struct {
	User      shared.UserID
	Course    shared.CourseID
	Module    shared.ModuleID
	Status    Status
	UpdatedAt time.Time
}

// TimerRecord is the durable study total for (user, course).
type TimerRecord struct {
	User           shared.UserID
	Course         shared.CourseID
	ElapsedSeconds int64
	UpdatedAt      time.Time
}

// EnrollmentRepository persists enrollments.
type EnrollmentRepository interface {
	IsEnrolled(ctx context.Context, user shared.UserID, course shared.CourseID) (bool, error)

	// EnrollIfAbsent inserts the record unless one exists and reports whether
	// it inserted.
	EnrollIfAbsent(ctx context.Context, e Enrollment) (bool, error)

	ListEnrolledCourses(ctx context.Context, user shared.UserID) ([]shared.CourseID, error)
}

// ProgressRepository persists module completion.
type ProgressRepository interface {
	// MarkCompleted upserts the record as completed and reports whether it
	// was not completed before.
	MarkCompleted(ctx context.Context, r Record) (bool, error)

	CompletedModules(ctx context.Context, user shared.UserID, course shared.CourseID) ([]shared.ModuleID, error)
}

// TimerRepository persists study time.
type TimerRepository interface {
	// GetTimer returns the durable record; a missing record reads as zero.
	GetTimer(ctx context.Context, user shared.UserID, course shared.CourseID) (TimerRecord, error)

	// ResetTimer sets the durable total to zero.
	ResetTimer(ctx context.Context, user shared.UserID, course shared.CourseID) error

	// AddElapsed atomically adds delta to the durable total and returns it.
	AddElapsed(ctx context.Context, user shared.UserID, course shared.CourseID, delta int64) (int64, error)
}
