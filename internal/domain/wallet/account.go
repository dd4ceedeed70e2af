// Package wallet implements the per-user coin account. Every mutation is a
// single atomic adjust at the store; there is no read-then-write path.
package wallet

import (
	"context"
	"fmt"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// Store is the balance primitive the account needs.
type Store interface {
	// Balance returns the balance; a missing account reads as zero.
	Balance(ctx context.Context, user shared.UserID) (shared.Coins, error)

	// AdjustBalance adds delta in one atomic step and returns the new
	// balance. A negative delta that would take the balance below zero must
	// fail with an error matching shared.ErrInsufficientFunds and change
	// nothing. A positive delta creates the account if needed.
	AdjustBalance(ctx context.Context, user shared.UserID, delta shared.Coins) (shared.Coins, error)
}

// DebitOutcome is the business result of a debit.
type DebitOutcome int

const (
	DebitApplied DebitOutcome = iota
	DebitInsufficientFunds
)

func (o DebitOutcome) String() string {
	switch o {
	case DebitApplied:
		return "applied"
	case DebitInsufficientFunds:
		return "insufficient_funds"
	default:
		return fmt.Sprintf("DebitOutcome(%d)", int(o))
	}
}

// DebitResult reports a debit. Balance is the balance after the attempt.
type DebitResult struct {
	Outcome DebitOutcome
	Balance shared.Coins
}

// Account is the coin account service.
type Account struct {
	store Store
}

// NewAccount creates an account service over store.
func NewAccount(store Store) *Account {
	return &Account{store: store}
}

// Credit adds amount, which must be positive.
func (a *Account) Credit(ctx context.Context, user shared.UserID, amount shared.Coins) (shared.Coins, error) {
	if amount <= 0 {
		return 0, shared.ErrNonPositive
	}
	bal, err := a.store.AdjustBalance(ctx, user, amount)
	if err != nil {
		return 0, shared.Infrastructure("wallet", "Credit", err)
	}
	return bal, nil
}

// Debit subtracts amount only if the balance covers it. An uncovered debit is
// reported as DebitInsufficientFunds, not as an error.
func (a *Account) Debit(ctx context.Context, user shared.UserID, amount shared.Coins) (DebitResult, error) {
	if amount <= 0 {
		return DebitResult{}, shared.ErrNonPositive
	}
	bal, err := a.store.AdjustBalance(ctx, user, -amount)
	if err == nil {
		return DebitResult{Outcome: DebitApplied, Balance: bal}, nil
	}
	if !shared.IsInsufficientFunds(err) {
		return DebitResult{}, shared.Infrastructure("wallet", "Debit", err)
	}
	current, err := a.store.Balance(ctx, user)
	if err != nil {
		return DebitResult{}, shared.Infrastructure("wallet", "Debit", err)
	}
	return DebitResult{Outcome: DebitInsufficientFunds, Balance: current}, nil
}

// Balance reads the current balance.
func (a *Account) Balance(ctx context.Context, user shared.UserID) (shared.Coins, error) {
	bal, err := a.store.Balance(ctx, user)
	if err != nil {
		return 0, shared.Infrastructure("wallet", "Balance", err)
	}
	return bal, nil
}
