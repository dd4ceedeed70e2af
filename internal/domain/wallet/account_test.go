package wallet_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/internal/domain/wallet"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/memory"
)

func TestAccount_MissingAccountReadsZero(t *testing.T) {
	acc := wallet.NewAccount(memory.New())

	bal, err := acc.Balance(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, shared.Coins(0), bal)
}

func TestAccount_CreditCreatesAndAccumulates(t *testing.T) {
	ctx := context.Background()
	acc := wallet.NewAccount(memory.New())

	bal, err := acc.Credit(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, shared.Coins(50), bal)

	bal, err = acc.Credit(ctx, 1, 300)
	require.NoError(t, err)
	assert.Equal(t, shared.Coins(350), bal)
}

func TestAccount_RejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	acc := wallet.NewAccount(memory.New())

	for _, amt := range []shared.Coins{0, -5} {
		_, err := acc.Credit(ctx, 1, amt)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = acc.Debit(ctx, 1, amt)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	}
}

func TestAccount_DebitInsufficientLeavesBalance(t *testing.T) {
	ctx := context.Background()
	acc := wallet.NewAccount(memory.New())
	_, err := acc.Credit(ctx, 1, 40)
	require.NoError(t, err)

	res, err := acc.Debit(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, wallet.DebitInsufficientFunds, res.Outcome)
	assert.Equal(t, shared.Coins(40), res.Balance)

	res, err = acc.Debit(ctx, 1, 40)
	require.NoError(t, err)
	assert.Equal(t, wallet.DebitApplied, res.Outcome)
	assert.Equal(t, shared.Coins(0), res.Balance)
}

func TestAccount_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	acc := wallet.NewAccount(memory.New())
	_, err := acc.Credit(ctx, 1, 100)
	require.NoError(t, err)

	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := acc.Debit(ctx, 1, 30)
			if err == nil && res.Outcome == wallet.DebitApplied {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	bal, err := acc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), applied.Load())
	assert.Equal(t, shared.Coins(10), bal)
}

type failingStore struct{}

func (failingStore) Balance(context.Context, shared.UserID) (shared.Coins, error) {
	return 0, assert.AnError
}

func (failingStore) AdjustBalance(context.Context, shared.UserID, shared.Coins) (shared.Coins, error) {
	return 0, assert.AnError
}

func TestAccount_StoreFailureIsInfrastructure(t *testing.T) {
	acc := wallet.NewAccount(failingStore{})

	_, err := acc.Credit(context.Background(), 1, 10)
	assert.True(t, shared.IsInfrastructure(err))
	assert.ErrorIs(t, err, assert.AnError)

	_, err = acc.Debit(context.Background(), 1, 10)
	assert.True(t, shared.IsInfrastructure(err))
}
