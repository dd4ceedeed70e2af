package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/internal/domain/wallet"
)

// claimNamespace seeds deterministic claim ids.
var claimNamespace = uuid.MustParse("6f1c2a8e-3d4b-5e6f-8a9b-0c1d2e3f4a5b")

// Claim records that a reward was granted (or a bonus module bought).
// Amount is the coins credited, or the cost debited for a bonus unlock.
type Claim struct {
	ID        uuid.UUID
	User      shared.UserID
	Course    shared.CourseID
	Kind      Kind
	Amount    shared.Coins
	ClaimedAt time.Time
}

// ClaimID derives the id of the claim for (user, course, kind). The same
// triple always yields the same id.
func ClaimID(user shared.UserID, course shared.CourseID, kind Kind) uuid.UUID {
	return uuid.NewSHA1(claimNamespace, []byte(fmt.Sprintf("%d/%d/%s", user, course, kind.Key())))
}

// NewClaim builds a claim stamped at.
func NewClaim(user shared.UserID, course shared.CourseID, kind Kind, amount shared.Coins, at time.Time) Claim {
	return Claim{
		ID:        ClaimID(user, course, kind),
		User:      user,
		Course:    course,
		Kind:      kind,
		Amount:    amount,
		ClaimedAt: at.UTC(),
	}
}

// Tx is the transactional view of the store used by one grant or purchase.
// Its balance methods see the transaction's own writes.
type Tx interface {
	wallet.Store

	// InsertClaimIfAbsent inserts c unless a claim with the same (user,
	// course, kind) exists, reporting whether it inserted. It must be an
	// atomic primitive of the store, never a client-side check-then-insert.
	InsertClaimIfAbsent(ctx context.Context, c Claim) (bool, error)
}

// Store persists claims.
type Store interface {
	// WithinTx runs fn in one transaction, committing if fn returns nil and
	// rolling back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	HasClaim(ctx context.Context, user shared.UserID, course shared.CourseID, kind Kind) (bool, error)
	ListClaims(ctx context.Context, user shared.UserID, course shared.CourseID) ([]Claim, error)

	// LatestClaim returns the most recent claim of a kind type, or nil.
	LatestClaim(ctx context.Context, user shared.UserID, course shared.CourseID, typ KindType) (*Claim, error)
}
