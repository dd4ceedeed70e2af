package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements course.Catalog.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// GetCourse loads a course with all of its modules.
func (r *CatalogRepository) GetCourse(ctx context.Context, id shared.CourseID) (*course.Course, error) {
	var (
		title                    string
		limit, completion, timed int64
	)
	err := r.conn.QueryRow(ctx, `
		SELECT title, time_limit_seconds, completion_reward, timed_reward
		FROM courses
		WHERE id = $1
	`, int64(id)).Scan(&title, &limit, &completion, &timed)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, shared.Infrastructure("postgres", "GetCourse", err)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, course_id, title, position, is_bonus, unlock_cost
		FROM modules
		WHERE course_id = $1
		ORDER BY position
	`, int64(id))
	if err != nil {
		return nil, shared.Infrastructure("postgres", "GetCourse", err)
	}
	modules, err := pgx.CollectRows(rows, scanModule)
	if err != nil {
		return nil, shared.Infrastructure("postgres", "GetCourse", err)
	}

	c, err := course.New(id, title, limit, shared.Coins(completion), shared.Coins(timed), modules)
	if err != nil {
		return nil, fmt.Errorf("course %d in store is invalid: %w", id, err)
	}
	return c, nil
}

// GetModule loads a single module.
func (r *CatalogRepository) GetModule(ctx context.Context, id shared.ModuleID) (*course.Module, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, course_id, title, position, is_bonus, unlock_cost
		FROM modules
		WHERE id = $1
	`, int64(id))
	if err != nil {
		return nil, shared.Infrastructure("postgres", "GetModule", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanModule)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrModuleNotFound
		}
		return nil, shared.Infrastructure("postgres", "GetModule", err)
	}
	return &m, nil
}

// SaveCourse upserts a course and replaces its modules.
func (r *CatalogRepository) SaveCourse(ctx context.Context, c *course.Course) error {
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO courses (id, title, time_limit_seconds, completion_reward, timed_reward)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				time_limit_seconds = EXCLUDED.time_limit_seconds,
				completion_reward = EXCLUDED.completion_reward,
				timed_reward = EXCLUDED.timed_reward
		`, int64(c.ID), c.Title, c.TimeLimitSeconds, int64(c.CompletionReward), int64(c.TimedReward))
		if err != nil {
			return err
		}

		modules := append([]course.Module(nil), c.Modules...)
		if c.Bonus != nil {
			modules = append(modules, *c.Bonus)
		}
		batch := &pgx.Batch{}
		for _, m := range modules {
			batch.Queue(`
				INSERT INTO modules (id, course_id, title, position, is_bonus, unlock_cost)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE SET
					course_id = EXCLUDED.course_id,
					title = EXCLUDED.title,
					position = EXCLUDED.position,
					is_bonus = EXCLUDED.is_bonus,
					unlock_cost = EXCLUDED.unlock_cost
			`, int64(m.ID), int64(c.ID), m.Title, m.Position, m.IsBonus, int64(m.UnlockCost))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if IsUniqueViolation(err) || IsCheckViolation(err) {
		return shared.NewDomainError("postgres", "SaveCourse", shared.ErrInvalidInput, err.Error())
	}
	return shared.Infrastructure("postgres", "SaveCourse", err)
}

func scanModule(row pgx.CollectableRow) (course.Module, error) {
	var (
		id, courseID, cost int64
		m                  course.Module
	)
	if err := row.Scan(&id, &courseID, &m.Title, &m.Position, &m.IsBonus, &cost); err != nil {
		return course.Module{}, err
	}
	m.ID = shared.ModuleID(id)
	m.CourseID = shared.CourseID(courseID)
	m.UnlockCost = shared.Coins(cost)
	return m, nil
}

var _ course.Catalog = (*CatalogRepository)(nil)
