package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository owns token balances and their append-only transaction log.
// Every mutating method changes the balance and appends its record in one transaction.
type LedgerRepository interface {
	GetBalance(ctx context.Context, userID string) (*model.TokenBalance, error)
	// Debit subtracts cost only if the balance covers it. ok is false when it does not.
	Debit(ctx context.Context, userID string, cost int, reason string) (balanceAfter int, ok bool, err error)
	// Grant adds amount on top of the balance, creating the row when missing.
	Grant(ctx context.Context, userID string, amount int, reason string) (int, error)
	// Reset sets the balance and the allotment to exactly amount and returns the applied delta.
	Reset(ctx context.Context, userID string, amount int, reason string) (balanceAfter int, delta int, err error)
	// SetPeriod records the billing period the current balance belongs to.
	SetPeriod(ctx context.Context, userID string, start, end time.Time) error
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.TokenTransaction, error)
}

type ledgerRepo struct {
	pool *pgxpool.Pool
}

// NewLedgerRepo creates a new LedgerRepository.
func NewLedgerRepo(pool *pgxpool.Pool) LedgerRepository {
	return &ledgerRepo{pool: pool}
}

func (r *ledgerRepo) GetBalance(ctx context.Context, userID string) (*model.TokenBalance, error) {
	const q = `
        SELECT user_id, balance, allotment, period_start, period_end, updated_at
        FROM token_balances
        WHERE user_id = $1
    `
	var b model.TokenBalance
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&b.UserID,
		&b.Balance,
		&b.Allotment,
		&b.PeriodStart,
		&b.PeriodEnd,
		&b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch balance for user %s: %w", userID, err)
	}
	return &b, nil
}

func (r *ledgerRepo) Debit(ctx context.Context, userID string, cost int, reason string) (int, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, false, fmt.Errorf("starting transaction for debit: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The floor check and the decrement are one statement, so concurrent
	// debits serialize on the row lock and can never overdraw.
	const debitQ = `
        UPDATE token_balances
        SET balance = balance - $2, updated_at = NOW()
        WHERE user_id = $1 AND balance >= $2
        RETURNING balance
    `
	var after int
	if err := tx.QueryRow(ctx, debitQ, userID, cost).Scan(&after); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("debiting %d tokens for user %s: %w", cost, userID, err)
	}
	if err := insertTransaction(ctx, tx, userID, -cost, model.TransactionDebit, reason, after); err != nil {
		return 0, false, err
	}
	const usedQ = `UPDATE user_subscriptions SET tokens_used = tokens_used + $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := tx.Exec(ctx, usedQ, userID, cost); err != nil {
		return 0, false, fmt.Errorf("tracking tokens used for user %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("committing debit for user %s: %w", userID, err)
	}
	return after, true, nil
}

func (r *ledgerRepo) Grant(ctx context.Context, userID string, amount int, reason string) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("starting transaction for grant: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const grantQ = `
        INSERT INTO token_balances (user_id, balance, allotment, updated_at)
        VALUES ($1, $2, $2, NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET balance = token_balances.balance + EXCLUDED.balance,
            allotment = EXCLUDED.allotment,
            updated_at = NOW()
        RETURNING balance
    `
	var after int
	if err := tx.QueryRow(ctx, grantQ, userID, amount).Scan(&after); err != nil {
		return 0, fmt.Errorf("granting %d tokens to user %s: %w", amount, userID, err)
	}
	if err := insertTransaction(ctx, tx, userID, amount, model.TransactionGrant, reason, after); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing grant for user %s: %w", userID, err)
	}
	return after, nil
}

func (r *ledgerRepo) Reset(ctx context.Context, userID string, amount int, reason string) (int, int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("starting transaction for reset: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const ensureQ = `
        INSERT INTO token_balances (user_id, balance, allotment, updated_at)
        VALUES ($1, 0, 0, NOW())
        ON CONFLICT (user_id) DO NOTHING
    `
	if _, err := tx.Exec(ctx, ensureQ, userID); err != nil {
		return 0, 0, fmt.Errorf("ensuring balance row for user %s: %w", userID, err)
	}
	var before int
	const lockQ = `SELECT balance FROM token_balances WHERE user_id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, lockQ, userID).Scan(&before); err != nil {
		return 0, 0, fmt.Errorf("locking balance for user %s: %w", userID, err)
	}
	const resetQ = `UPDATE token_balances SET balance = $2, allotment = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := tx.Exec(ctx, resetQ, userID, amount); err != nil {
		return 0, 0, fmt.Errorf("resetting balance for user %s: %w", userID, err)
	}
	if err := insertTransaction(ctx, tx, userID, amount-before, model.TransactionReset, reason, amount); err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("committing reset for user %s: %w", userID, err)
	}
	return amount, amount - before, nil
}

func (r *ledgerRepo) SetPeriod(ctx context.Context, userID string, start, end time.Time) error {
	const q = `UPDATE token_balances SET period_start = $2, period_end = $3, updated_at = NOW() WHERE user_id = $1`
	tag, err := r.pool.Exec(ctx, q, userID, start, end)
	if err != nil {
		return fmt.Errorf("set balance period for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ledgerRepo) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.TokenTransaction, error) {
	const q = `
        SELECT id, user_id, amount, kind, reason, balance_after, created_at
        FROM token_transactions
        WHERE user_id = $1
        ORDER BY created_at DESC, seq DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var txs []model.TokenTransaction
	for rows.Next() {
		var t model.TokenTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Kind, &t.Reason, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, userID string, amount int, kind model.TransactionKind, reason string, balanceAfter int) error {
	const q = `
        INSERT INTO token_transactions (id, user_id, amount, kind, reason, balance_after)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if _, err := tx.Exec(ctx, q, uuid.NewString(), userID, amount, string(kind), reason, balanceAfter); err != nil {
		return fmt.Errorf("recording %s transaction for user %s: %w", kind, userID, err)
	}
	return nil
}
