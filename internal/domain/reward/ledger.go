package reward

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/internal/domain/wallet"
	"github.com/alem-hub/progress-ledger/pkg/timeutil"
)

// GrantOutcome is the business result of Grant.
type GrantOutcome int

const (
	Granted GrantOutcome = iota
	AlreadyGranted
)

func (o GrantOutcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case AlreadyGranted:
		return "already_granted"
	default:
		return fmt.Sprintf("GrantOutcome(%d)", int(o))
	}
}

// GrantResult reports a grant. Balance is the user's balance afterwards.
type GrantResult struct {
	Outcome GrantOutcome
	Kind    Kind
	Amount  shared.Coins
	Balance shared.Coins
}

// PurchaseOutcome is the business result of Purchase.
type PurchaseOutcome int

const (
	Purchased PurchaseOutcome = iota
	AlreadyOwned
	InsufficientFunds
)

func (o PurchaseOutcome) String() string {
	switch o {
	case Purchased:
		return "purchased"
	case AlreadyOwned:
		return "already_owned"
	case InsufficientFunds:
		return "insufficient_funds"
	default:
		return fmt.Sprintf("PurchaseOutcome(%d)", int(o))
	}
}

// PurchaseResult reports a purchase. Balance is the user's balance afterwards.
type PurchaseResult struct {
	Outcome PurchaseOutcome
	Cost    shared.Coins
	Balance shared.Coins
}

// errPurchaseDenied rolls the claim insert back when the debit is refused.
var errPurchaseDenied = errors.New("reward: purchase denied")

// Ledger grants rewards at most once and sells bonus modules.
type Ledger struct {
	store Store
	now   timeutil.Clock
}

// NewLedger creates a ledger. A nil clock means the system clock.
func NewLedger(store Store, clock timeutil.Clock) *Ledger {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	return &Ledger{store: store, now: clock}
}

// Grant inserts the claim for (user, course, kind) and credits amount in the
// same transaction. If the claim already exists nothing is credited and the
// outcome is AlreadyGranted. A zero amount records the claim without a credit.
func (l *Ledger) Grant(ctx context.Context, user shared.UserID, course shared.CourseID, kind Kind, amount shared.Coins) (GrantResult, error) {
	if err := kind.Validate(); err != nil {
		return GrantResult{}, err
	}
	if !user.IsValid() || amount < 0 {
		return GrantResult{}, shared.NewDomainError("reward", "Grant", shared.ErrInvalidInput, "invalid user or amount")
	}

	res := GrantResult{Kind: kind, Amount: amount}
	claim := NewClaim(user, course, kind, amount, l.now())

	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		inserted, err := tx.InsertClaimIfAbsent(ctx, claim)
		if err != nil {
			return err
		}
		if !inserted {
			res.Outcome = AlreadyGranted
			res.Balance, err = tx.Balance(ctx, user)
			return err
		}
		res.Outcome = Granted
		if amount == 0 {
			res.Balance, err = tx.Balance(ctx, user)
			return err
		}
		res.Balance, err = wallet.NewAccount(tx).Credit(ctx, user, amount)
		return err
	})
	if err != nil {
		return GrantResult{}, shared.Infrastructure("reward", "Grant", err)
	}
	if res.Outcome == AlreadyGranted {
		res.Amount = 0
	}
	return res, nil
}

// Purchase buys the bonus module for cost. The claim insert and the debit
// commit together: a refused debit rolls the claim back, and a second buyer
// blocked on the claim sees AlreadyOwned once the first commits.
func (l *Ledger) Purchase(ctx context.Context, user shared.UserID, course shared.CourseID, module shared.ModuleID, cost shared.Coins) (PurchaseResult, error) {
	kind := BonusModuleUnlock(module)
	if err := kind.Validate(); err != nil {
		return PurchaseResult{}, err
	}
	if !user.IsValid() || cost < 0 {
		return PurchaseResult{}, shared.NewDomainError("reward", "Purchase", shared.ErrInvalidInput, "invalid user or cost")
	}

	res := PurchaseResult{Cost: cost}
	claim := NewClaim(user, course, kind, cost, l.now())

	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		inserted, err := tx.InsertClaimIfAbsent(ctx, claim)
		if err != nil {
			return err
		}
		if !inserted {
			res.Outcome = AlreadyOwned
			res.Balance, err = tx.Balance(ctx, user)
			return err
		}
		if cost == 0 {
			res.Outcome = Purchased
			res.Balance, err = tx.Balance(ctx, user)
			return err
		}
		debit, err := wallet.NewAccount(tx).Debit(ctx, user, cost)
		if err != nil {
			return err
		}
		res.Balance = debit.Balance
		if debit.Outcome == wallet.DebitInsufficientFunds {
			res.Outcome = InsufficientFunds
			return errPurchaseDenied
		}
		res.Outcome = Purchased
		return nil
	})
	if errors.Is(err, errPurchaseDenied) {
		return res, nil
	}
	if err != nil {
		return PurchaseResult{}, shared.Infrastructure("reward", "Purchase", err)
	}
	if res.Outcome == AlreadyOwned {
		res.Cost = 0
	}
	return res, nil
}

// Owns reports whether the bonus module has been bought.
func (l *Ledger) Owns(ctx context.Context, user shared.UserID, course shared.CourseID, module shared.ModuleID) (bool, error) {
	ok, err := l.store.HasClaim(ctx, user, course, BonusModuleUnlock(module))
	if err != nil {
		return false, shared.Infrastructure("reward", "Owns", err)
	}
	return ok, nil
}

// Claims lists the claims of (user, course).
func (l *Ledger) Claims(ctx context.Context, user shared.UserID, course shared.CourseID) ([]Claim, error) {
	claims, err := l.store.ListClaims(ctx, user, course)
	if err != nil {
		return nil, shared.Infrastructure("reward", "Claims", err)
	}
	return claims, nil
}

// Latest returns the most recent claim of a kind type, or nil.
func (l *Ledger) Latest(ctx context.Context, user shared.UserID, course shared.CourseID, typ KindType) (*Claim, error) {
	c, err := l.store.LatestClaim(ctx, user, course, typ)
	if err != nil {
		return nil, shared.Infrastructure("reward", "Latest", err)
	}
	return c, nil
}
