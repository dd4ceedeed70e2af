package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-ledger/internal/domain/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository stores coin balances and reward claims. It implements
// wallet.Store and reward.Store.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Balances
// ─────────────────────────────────────────────────────────────────────────────

func (r *LedgerRepository) Balance(ctx context.Context, user shared.UserID) (shared.Coins, error) {
	return balance(ctx, r.conn, user)
}

func (r *LedgerRepository) AdjustBalance(ctx context.Context, user shared.UserID, delta shared.Coins) (shared.Coins, error) {
	return adjustBalance(ctx, r.conn, user, delta)
}

func balance(ctx context.Context, q Querier, user shared.UserID) (shared.Coins, error) {
	var bal int64
	err := q.QueryRow(ctx, `SELECT balance FROM coin_accounts WHERE user_id = $1`, int64(user)).Scan(&bal)
	if err != nil {
		if IsNoRows(err) {
			return 0, nil
		}
		return 0, shared.Infrastructure("postgres", "Balance", err)
	}
	return shared.Coins(bal), nil
}

// adjustBalance applies delta in one statement. Credits upsert the account;
// debits only match rows the balance covers, so a refused debit changes
// nothing and leaves an enclosing transaction usable.
func adjustBalance(ctx context.Context, q Querier, user shared.UserID, delta shared.Coins) (shared.Coins, error) {
	var bal int64
	var err error
	if delta >= 0 {
		err = q.QueryRow(ctx, `
			INSERT INTO coin_accounts (user_id, balance, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				balance = coin_accounts.balance + EXCLUDED.balance,
				updated_at = NOW()
			RETURNING balance
		`, int64(user), int64(delta)).Scan(&bal)
	} else {
		err = q.QueryRow(ctx, `
			UPDATE coin_accounts
			SET balance = balance + $2, updated_at = NOW()
			WHERE user_id = $1 AND balance + $2 >= 0
			RETURNING balance
		`, int64(user), int64(delta)).Scan(&bal)
		if IsNoRows(err) {
			return 0, shared.ErrNoFunds
		}
	}
	if err != nil {
		return 0, shared.Infrastructure("postgres", "AdjustBalance", err)
	}
	return shared.Coins(bal), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Claims
// ─────────────────────────────────────────────────────────────────────────────

// WithinTx runs fn in a transaction. fn's error is returned unwrapped.
func (r *LedgerRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx reward.Tx) error) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

func (r *LedgerRepository) HasClaim(ctx context.Context, user shared.UserID, course shared.CourseID, kind reward.Kind) (bool, error) {
	var ok bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reward_claims WHERE user_id = $1 AND course_id = $2 AND kind_key = $3
		)
	`, int64(user), int64(course), kind.Key()).Scan(&ok)
	if err != nil {
		return false, shared.Infrastructure("postgres", "HasClaim", err)
	}
	return ok, nil
}

func (r *LedgerRepository) ListClaims(ctx context.Context, user shared.UserID, course shared.CourseID) ([]reward.Claim, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, course_id, kind_key, amount, claimed_at
		FROM reward_claims
		WHERE user_id = $1 AND course_id = $2
		ORDER BY claimed_at, kind_key
	`, int64(user), int64(course))
	if err != nil {
		return nil, shared.Infrastructure("postgres", "ListClaims", err)
	}
	claims, err := pgx.CollectRows(rows, scanClaim)
	if err != nil {
		return nil, shared.Infrastructure("postgres", "ListClaims", err)
	}
	return claims, nil
}

func (r *LedgerRepository) LatestClaim(ctx context.Context, user shared.UserID, course shared.CourseID, typ reward.KindType) (*reward.Claim, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, course_id, kind_key, amount, claimed_at
		FROM reward_claims
		WHERE user_id = $1 AND course_id = $2 AND kind_type = $3
		ORDER BY claimed_at DESC, kind_key DESC
		LIMIT 1
	`, int64(user), int64(course), string(typ))
	if err != nil {
		return nil, shared.Infrastructure("postgres", "LatestClaim", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanClaim)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, shared.Infrastructure("postgres", "LatestClaim", err)
	}
	return &c, nil
}

func scanClaim(row pgx.CollectableRow) (reward.Claim, error) {
	var (
		id           uuid.UUID
		user, course int64
		key          string
		amount       int64
		claimedAt    time.Time
	)
	if err := row.Scan(&id, &user, &course, &key, &amount, &claimedAt); err != nil {
		return reward.Claim{}, err
	}
	kind, err := reward.ParseKind(key)
	if err != nil {
		return reward.Claim{}, err
	}
	return reward.Claim{
		ID:        id,
		User:      shared.UserID(user),
		Course:    shared.CourseID(course),
		Kind:      kind,
		Amount:    shared.Coins(amount),
		ClaimedAt: claimedAt.UTC(),
	}, nil
}

// ledgerTx is the reward.Tx over one pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) Balance(ctx context.Context, user shared.UserID) (shared.Coins, error) {
	return balance(ctx, t.tx, user)
}

func (t *ledgerTx) AdjustBalance(ctx context.Context, user shared.UserID, delta shared.Coins) (shared.Coins, error) {
	return adjustBalance(ctx, t.tx, user, delta)
}

// InsertClaimIfAbsent relies on the (user_id, course_id, kind_key) primary
// key. A concurrent insert of the same key blocks until the first
// transaction ends, then reports not inserted if it committed.
func (t *ledgerTx) InsertClaimIfAbsent(ctx context.Context, c reward.Claim) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO reward_claims (id, user_id, course_id, kind_key, kind_type, amount, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, course_id, kind_key) DO NOTHING
	`, c.ID, int64(c.User), int64(c.Course), c.Kind.Key(), string(c.Kind.Type), int64(c.Amount), c.ClaimedAt)
	if err != nil {
		return false, shared.Infrastructure("postgres", "InsertClaimIfAbsent", err)
	}
	return tag.RowsAffected() == 1, nil
}

var (
	_ reward.Store = (*LedgerRepository)(nil)
	_ reward.Tx    = (*ledgerTx)(nil)
)
