package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_OrderedAndReversible(t *testing.T) {
	migs := Migrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
}

func TestMigrations_LedgerConstraints(t *testing.T) {
	ledger := Migrations()[2].UpSQL
	assert.Contains(t, ledger, "CHECK (balance >= 0)")
	assert.Contains(t, ledger, "PRIMARY KEY (user_id, course_id, kind_key)")
}

func TestPoolOptions_ApplyFallsBackToDefaults(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/db")
	require.NoError(t, err)

	PoolOptions{MaxConns: 25}.apply(cfg)

	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnIdleTime)
}
