package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements the enrollment, module progress and timer
// repositories of the progress domain.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollments
// ─────────────────────────────────────────────────────────────────────────────

func (r *ProgressRepository) IsEnrolled(ctx context.Context, user shared.UserID, course shared.CourseID) (bool, error) {
	var ok bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)
	`, int64(user), int64(course)).Scan(&ok)
	if err != nil {
		return false, shared.Infrastructure("postgres", "IsEnrolled", err)
	}
	return ok, nil
}

func (r *ProgressRepository) EnrollIfAbsent(ctx context.Context, e progress.Enrollment) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO enrollments (user_id, course_id, enrolled_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, course_id) DO NOTHING
	`, int64(e.User), int64(e.Course), e.EnrolledAt)
	if err != nil {
		return false, shared.Infrastructure("postgres", "EnrollIfAbsent", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ProgressRepository) ListEnrolledCourses(ctx context.Context, user shared.UserID) ([]shared.CourseID, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT course_id FROM enrollments WHERE user_id = $1 ORDER BY course_id
	`, int64(user))
	if err != nil {
		return nil, shared.Infrastructure("postgres", "ListEnrolledCourses", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, shared.Infrastructure("postgres", "ListEnrolledCourses", err)
	}
	out := make([]shared.CourseID, len(ids))
	for i, id := range ids {
		out[i] = shared.CourseID(id)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Module progress
// ─────────────────────────────────────────────────────────────────────────────

// MarkCompleted upserts the record. Rows already completed are skipped by the
// conflict WHERE clause, so one affected row means a first completion.
func (r *ProgressRepository) MarkCompleted(ctx context.Context, rec progress.Record) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO module_progress (user_id, module_id, course_id, status, updated_at)
		VALUES ($1, $2, $3, 'completed', $4)
		ON CONFLICT (user_id, module_id) DO UPDATE SET
			status = 'completed',
			updated_at = EXCLUDED.updated_at
		WHERE module_progress.status <> 'completed'
	`, int64(rec.User), int64(rec.Module), int64(rec.Course), rec.UpdatedAt)
	if err != nil {
		return false, shared.Infrastructure("postgres", "MarkCompleted", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ProgressRepository) CompletedModules(ctx context.Context, user shared.UserID, course shared.CourseID) ([]shared.ModuleID, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT module_id FROM module_progress
		WHERE user_id = $1 AND course_id = $2 AND status = 'completed'
		ORDER BY module_id
	`, int64(user), int64(course))
	if err != nil {
		return nil, shared.Infrastructure("postgres", "CompletedModules", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, shared.Infrastructure("postgres", "CompletedModules", err)
	}
	out := make([]shared.ModuleID, len(ids))
	for i, id := range ids {
		out[i] = shared.ModuleID(id)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Timers
// ─────────────────────────────────────────────────────────────────────────────

func (r *ProgressRepository) GetTimer(ctx context.Context, user shared.UserID, course shared.CourseID) (progress.TimerRecord, error) {
	rec := progress.TimerRecord{User: user, Course: course}
	err := r.conn.QueryRow(ctx, `
		SELECT elapsed_seconds, updated_at FROM course_timers
		WHERE user_id = $1 AND course_id = $2
	`, int64(user), int64(course)).Scan(&rec.ElapsedSeconds, &rec.UpdatedAt)
	if err != nil && !IsNoRows(err) {
		return progress.TimerRecord{}, shared.Infrastructure("postgres", "GetTimer", err)
	}
	return rec, nil
}

func (r *ProgressRepository) ResetTimer(ctx context.Context, user shared.UserID, course shared.CourseID) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO course_timers (user_id, course_id, elapsed_seconds, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (user_id, course_id) DO UPDATE SET elapsed_seconds = 0, updated_at = NOW()
	`, int64(user), int64(course))
	return shared.Infrastructure("postgres", "ResetTimer", err)
}

// AddElapsed adds delta in one statement so concurrent savers never lose time.
func (r *ProgressRepository) AddElapsed(ctx context.Context, user shared.UserID, course shared.CourseID, delta int64) (int64, error) {
	var total int64
	err := r.conn.QueryRow(ctx, `
		INSERT INTO course_timers (user_id, course_id, elapsed_seconds, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, course_id) DO UPDATE SET
			elapsed_seconds = course_timers.elapsed_seconds + EXCLUDED.elapsed_seconds,
			updated_at = NOW()
		RETURNING elapsed_seconds
	`, int64(user), int64(course), delta).Scan(&total)
	if err != nil {
		return 0, shared.Infrastructure("postgres", "AddElapsed", err)
	}
	return total, nil
}

var (
	_ progress.EnrollmentRepository = (*ProgressRepository)(nil)
	_ progress.ProgressRepository   = (*ProgressRepository)(nil)
	_ progress.TimerRepository      = (*ProgressRepository)(nil)
)
