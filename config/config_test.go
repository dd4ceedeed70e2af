package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(10), cfg.Rewards.DailyLogin)
	assert.Equal(t, int64(50), cfg.Rewards.CompletionDefault)
	assert.Equal(t, int64(300), cfg.Rewards.TimedDefault)
	assert.Equal(t, "@every 30s", cfg.Timer.CheckpointSpec)
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.Empty(t, cfg.Database.URL)
	assert.True(t, cfg.Redis.Disabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("REWARD_DAILY_LOGIN=15\nAPP_TIMEZONE=Asia/Almaty\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")

	cfg, err := Load()
	// godotenv writes into the process environment.
	t.Cleanup(func() {
		os.Unsetenv("REWARD_DAILY_LOGIN")
		os.Unsetenv("APP_TIMEZONE")
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), cfg.Rewards.DailyLogin)
	assert.Equal(t, "Asia/Almaty", cfg.App.Location.String())
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
}

func TestLoad_PolicyFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[rewards]
daily_login = 20
completion_default = 75
timed_default = 150

[[courses]]
id = 1
title = "Go basics"
time_limit_seconds = 600

  [[courses.modules]]
  id = 10
  position = 0

  [[courses.modules]]
  id = 19
  bonus = true
  unlock_cost = 40
`), 0o600))
	t.Setenv("REWARD_POLICY_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, RewardsConfig{DailyLogin: 20, CompletionDefault: 75, TimedDefault: 150}, cfg.Rewards)
	require.Len(t, cfg.Courses, 1)
	assert.Equal(t, int64(600), cfg.Courses[0].TimeLimitSeconds)
	require.Len(t, cfg.Courses[0].Modules, 2)
	assert.True(t, cfg.Courses[0].Modules[1].Bonus)
	assert.Equal(t, int64(40), cfg.Courses[0].Modules[1].UnlockCost)
}

func TestValidate(t *testing.T) {
	isolate(t)

	t.Run("bad timezone", func(t *testing.T) {
		t.Setenv("APP_TIMEZONE", "Mars/Olympus")
		_, err := Load()
		assert.ErrorContains(t, err, "APP_TIMEZONE")
	})

	t.Run("negative reward", func(t *testing.T) {
		t.Setenv("REWARD_TIMED_DEFAULT", "-1")
		_, err := Load()
		assert.ErrorContains(t, err, "negative")
	})

	t.Run("zero retries", func(t *testing.T) {
		t.Setenv("RETRY_MAX_ATTEMPTS", "0")
		_, err := Load()
		assert.ErrorContains(t, err, "RETRY_MAX_ATTEMPTS")
	})

	t.Run("production needs a database", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, err := Load()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("duplicate course", func(t *testing.T) {
		cfg := &Config{
			App:     AppConfig{Location: time.UTC},
			Retry:   RetryConfig{MaxAttempts: 1},
			Timer:   TimerConfig{CheckpointSpec: "@every 1m"},
			Courses: []CourseSeed{{ID: 1}, {ID: 1}},
		}
		assert.ErrorContains(t, cfg.Validate(), "declared twice")
	})
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("FEATURE_CACHE_UNLOCK_VIEW", "false")
	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureUnlockViewCache))
	assert.True(t, ff.IsEnabled(FeatureTimerCheckpoint))
	assert.False(t, ff.IsEnabled(FeatureAsyncEvents))
	assert.False(t, ff.IsEnabled("no.such.flag"))

	assert.True(t, ff.SetEnabled(FeatureAsyncEvents, true))
	assert.True(t, ff.IsEnabled(FeatureAsyncEvents))
	assert.False(t, ff.SetEnabled("no.such.flag", true))
	assert.Len(t, ff.List(), 5)
}
