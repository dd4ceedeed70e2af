package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: Migrations(), tableName: "schema_migrations"}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`, m.tableName))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			mig = &m.migrations[i]
		}
	}
	if mig == nil || mig.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status reports which migrations are applied.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// Migrations returns the embedded migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_catalog", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_progress", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_ledger", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS courses (
    id BIGINT PRIMARY KEY,
    title TEXT NOT NULL,
    time_limit_seconds BIGINT NOT NULL DEFAULT 0,
    completion_reward BIGINT NOT NULL DEFAULT 0,
    timed_reward BIGINT NOT NULL DEFAULT 0,

    CONSTRAINT valid_time_limit CHECK (time_limit_seconds >= 0),
    CONSTRAINT valid_rewards CHECK (completion_reward >= 0 AND timed_reward >= 0)
);

CREATE TABLE IF NOT EXISTS modules (
    id BIGINT PRIMARY KEY,
    course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    is_bonus BOOLEAN NOT NULL DEFAULT FALSE,
    unlock_cost BIGINT NOT NULL DEFAULT 0,

    CONSTRAINT valid_unlock_cost CHECK (unlock_cost >= 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_modules_course_position
    ON modules(course_id, position) WHERE NOT is_bonus;
CREATE UNIQUE INDEX IF NOT EXISTS idx_modules_one_bonus
    ON modules(course_id) WHERE is_bonus;
`

const migration001Down = `
DROP TABLE IF EXISTS modules;
DROP TABLE IF EXISTS courses;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ENROLLMENTS, PROGRESS, TIMERS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS enrollments (
    user_id BIGINT NOT NULL,
    course_id BIGINT NOT NULL REFERENCES courses(id),
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS module_progress (
    user_id BIGINT NOT NULL,
    module_id BIGINT NOT NULL REFERENCES modules(id),
    course_id BIGINT NOT NULL REFERENCES courses(id),
    status VARCHAR(20) NOT NULL DEFAULT 'not_completed',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, module_id),

    CONSTRAINT valid_status CHECK (status IN ('not_completed', 'completed'))
);

CREATE INDEX IF NOT EXISTS idx_module_progress_user_course
    ON module_progress(user_id, course_id) WHERE status = 'completed';

CREATE TABLE IF NOT EXISTS course_timers (
    user_id BIGINT NOT NULL,
    course_id BIGINT NOT NULL REFERENCES courses(id),
    elapsed_seconds BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, course_id),

    CONSTRAINT valid_elapsed CHECK (elapsed_seconds >= 0)
);
`

const migration002Down = `
DROP TABLE IF EXISTS course_timers;
DROP TABLE IF EXISTS module_progress;
DROP TABLE IF EXISTS enrollments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: COIN ACCOUNTS AND REWARD CLAIMS
// ══════════════════════════════════════════════════════════════════════════════

// Course 0 scopes user-level claims (daily login, image interaction), so
// reward_claims.course_id carries no foreign key.
const migration003Up = `
CREATE TABLE IF NOT EXISTS coin_accounts (
    user_id BIGINT PRIMARY KEY,
    balance BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_negative_balance CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS reward_claims (
    id UUID NOT NULL UNIQUE,
    user_id BIGINT NOT NULL,
    course_id BIGINT NOT NULL DEFAULT 0,
    kind_key VARCHAR(64) NOT NULL,
    kind_type VARCHAR(20) NOT NULL,
    amount BIGINT NOT NULL DEFAULT 0,
    claimed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, course_id, kind_key)
);

CREATE INDEX IF NOT EXISTS idx_reward_claims_type
    ON reward_claims(user_id, course_id, kind_type, claimed_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS reward_claims;
DROP TABLE IF EXISTS coin_accounts;
`
