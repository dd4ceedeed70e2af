package reward_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ledger/internal/domain/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-ledger/pkg/timeutil"
)

var testNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func newLedger() (*reward.Ledger, *memory.Store) {
	store := memory.New()
	return reward.NewLedger(store, timeutil.FixedClock(testNow)), store
}

func TestLedger_GrantOnce(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger()

	res, err := l.Grant(ctx, 1, 10, reward.CompletionReward(), 50)
	require.NoError(t, err)
	assert.Equal(t, reward.Granted, res.Outcome)
	assert.Equal(t, shared.Coins(50), res.Balance)

	res, err = l.Grant(ctx, 1, 10, reward.CompletionReward(), 50)
	require.NoError(t, err)
	assert.Equal(t, reward.AlreadyGranted, res.Outcome)
	assert.Equal(t, shared.Coins(0), res.Amount)
	assert.Equal(t, shared.Coins(50), res.Balance)

	bal, err := store.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, shared.Coins(50), bal)
}

func TestLedger_KindsAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()

	_, err := l.Grant(ctx, 1, 10, reward.CompletionReward(), 50)
	require.NoError(t, err)
	res, err := l.Grant(ctx, 1, 10, reward.TimedReward(), 300)
	require.NoError(t, err)
	assert.Equal(t, reward.Granted, res.Outcome)
	assert.Equal(t, shared.Coins(350), res.Balance)

	// Same kind, other course.
	res, err = l.Grant(ctx, 1, 11, reward.CompletionReward(), 50)
	require.NoError(t, err)
	assert.Equal(t, reward.Granted, res.Outcome)
	assert.Equal(t, shared.Coins(400), res.Balance)
}

func TestLedger_ConcurrentGrantsCreditOnce(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger()

	const n = 50
	outcomes := make(chan reward.GrantOutcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Grant(ctx, 1, shared.GlobalScope, reward.ImageInteraction(5), 20)
			if assert.NoError(t, err) {
				outcomes <- res.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	granted := 0
	for o := range outcomes {
		if o == reward.Granted {
			granted++
		}
	}
	assert.Equal(t, 1, granted)

	bal, err := store.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, shared.Coins(20), bal)

	claims, err := l.Claims(ctx, 1, shared.GlobalScope)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, shared.Coins(20), claims[0].Amount)
	assert.Equal(t, testNow, claims[0].ClaimedAt)
}

func TestLedger_GrantRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()

	_, err := l.Grant(ctx, 0, 10, reward.CompletionReward(), 50)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = l.Grant(ctx, 1, 10, reward.CompletionReward(), -1)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = l.Grant(ctx, 1, 10, reward.DailyLogin("yesterday"), 10)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestLedger_ZeroAmountRecordsClaimOnly(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()

	res, err := l.Grant(ctx, 1, 10, reward.TimedReward(), 0)
	require.NoError(t, err)
	assert.Equal(t, reward.Granted, res.Outcome)
	assert.Equal(t, shared.Coins(0), res.Balance)

	res, err = l.Grant(ctx, 1, 10, reward.TimedReward(), 0)
	require.NoError(t, err)
	assert.Equal(t, reward.AlreadyGranted, res.Outcome)
}

func TestLedger_PurchaseInsufficientFundsLeavesNoClaim(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger()
	_, err := store.AdjustBalance(ctx, 1, 100)
	require.NoError(t, err)

	res, err := l.Purchase(ctx, 1, 10, 99, 150)
	require.NoError(t, err)
	assert.Equal(t, reward.InsufficientFunds, res.Outcome)
	assert.Equal(t, shared.Coins(100), res.Balance)

	owned, err := l.Owns(ctx, 1, 10, 99)
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestLedger_PurchaseThenAlreadyOwned(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger()
	_, err := store.AdjustBalance(ctx, 1, 200)
	require.NoError(t, err)

	res, err := l.Purchase(ctx, 1, 10, 99, 150)
	require.NoError(t, err)
	assert.Equal(t, reward.Purchased, res.Outcome)
	assert.Equal(t, shared.Coins(50), res.Balance)

	res, err = l.Purchase(ctx, 1, 10, 99, 150)
	require.NoError(t, err)
	assert.Equal(t, reward.AlreadyOwned, res.Outcome)
	assert.Equal(t, shared.Coins(50), res.Balance)

	owned, err := l.Owns(ctx, 1, 10, 99)
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestLedger_ConcurrentPurchasesDebitOnce(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger()
	_, err := store.AdjustBalance(ctx, 1, 1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	purchased := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Purchase(ctx, 1, 10, 99, 150)
			if assert.NoError(t, err) && res.Outcome == reward.Purchased {
				mu.Lock()
				purchased++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, purchased)
	bal, err := store.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, shared.Coins(850), bal)
}

func TestLedger_LatestDailyLogin(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	day1 := reward.NewLedger(store, timeutil.FixedClock(testNow))
	day2 := reward.NewLedger(store, timeutil.FixedClock(testNow.Add(24*time.Hour)))

	latest, err := day1.Latest(ctx, 1, shared.GlobalScope, reward.KindDailyLogin)
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = day1.Grant(ctx, 1, shared.GlobalScope, reward.DailyLogin("2026-10-17"), 10)
	require.NoError(t, err)
	_, err = day2.Grant(ctx, 1, shared.GlobalScope, reward.DailyLogin("2026-10-18"), 10)
	require.NoError(t, err)

	latest, err = day1.Latest(ctx, 1, shared.GlobalScope, reward.KindDailyLogin)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2026-10-18", latest.Kind.Day)
}
