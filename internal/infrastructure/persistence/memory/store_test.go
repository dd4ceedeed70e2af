package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

func TestStore_Catalog(t *testing.T) {
	ctx := context.Background()
	s := New()
	c, err := course.New(1, "Go", 0, 0, 0, []course.Module{
		{ID: 11, Position: 1}, {ID: 12, Position: 2}, {ID: 19, IsBonus: true, UnlockCost: 100},
	})
	require.NoError(t, err)
	s.PutCourse(c)

	got, err := s.GetCourse(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, c, got)

	m, err := s.GetModule(ctx, 19)
	require.NoError(t, err)
	assert.True(t, m.IsBonus)

	_, err = s.GetCourse(ctx, 2)
	assert.True(t, shared.IsNotFound(err))
	_, err = s.GetModule(ctx, 99)
	assert.True(t, shared.IsNotFound(err))
}

func TestStore_EnrollIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := New()
	e := progress.Enrollment{User: 1, Course: 2, EnrolledAt: time.Now()}

	ok, err := s.EnrollIfAbsent(ctx, e)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.EnrollIfAbsent(ctx, e)
	require.NoError(t, err)
	assert.False(t, ok)

	enrolled, err := s.IsEnrolled(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, enrolled)

	courses, err := s.ListEnrolledCourses(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []shared.CourseID{2}, courses)
}

func TestStore_MarkCompletedReportsFirstTime(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := progress.Record{User: 1, Course: 2, Module: 3}

	first, err := s.MarkCompleted(ctx, r)
	require.NoError(t, err)
	assert.True(t, first)
	first, err = s.MarkCompleted(ctx, r)
	require.NoError(t, err)
	assert.False(t, first)

	done, err := s.CompletedModules(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []shared.ModuleID{3}, done)
}

func TestStore_TimerAddAndReset(t *testing.T) {
	ctx := context.Background()
	s := New()

	rec, err := s.GetTimer(ctx, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, rec.ElapsedSeconds)

	total, err := s.AddElapsed(ctx, 1, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
	total, err = s.AddElapsed(ctx, 1, 2, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(130), total)

	require.NoError(t, s.ResetTimer(ctx, 1, 2))
	rec, err = s.GetTimer(ctx, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, rec.ElapsedSeconds)
}

func TestStore_AdjustBalanceNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.AdjustBalance(ctx, 1, -1)
	assert.True(t, shared.IsInsufficientFunds(err))

	bal, err := s.AdjustBalance(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, shared.Coins(10), bal)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.AdjustBalance(ctx, 1, 10)
	require.NoError(t, err)

	boom := errors.New("boom")
	claim := reward.NewClaim(1, 2, reward.CompletionReward(), 50, time.Now())
	err = s.WithinTx(ctx, func(ctx context.Context, tx reward.Tx) error {
		ok, err := tx.InsertClaimIfAbsent(ctx, claim)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = tx.AdjustBalance(ctx, 1, 50)
		require.NoError(t, err)
		_, err = tx.AdjustBalance(ctx, 2, 5)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	bal, _ := s.Balance(ctx, 1)
	assert.Equal(t, shared.Coins(10), bal)
	_, ok := s.balances[2]
	assert.False(t, ok)
	has, _ := s.HasClaim(ctx, 1, 2, reward.CompletionReward())
	assert.False(t, has)
}

func TestStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	claim := reward.NewClaim(1, 2, reward.ImageInteraction(4), 20, time.Now())

	err := s.WithinTx(ctx, func(ctx context.Context, tx reward.Tx) error {
		if _, err := tx.InsertClaimIfAbsent(ctx, claim); err != nil {
			return err
		}
		_, err := tx.AdjustBalance(ctx, 1, 20)
		return err
	})
	require.NoError(t, err)

	claims, err := s.ListClaims(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, claim.ID, claims[0].ID)
	bal, _ := s.Balance(ctx, 1)
	assert.Equal(t, shared.Coins(20), bal)
}
