package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error)
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*model.UserSubscription, error)
	// UpsertSubscription writes the single subscription row of a user, keyed by user_id.
	UpsertSubscription(ctx context.Context, sub *model.UserSubscription) error
	// UpdateStatus changes the status, and the period end when periodEnd is non-nil.
	UpdateStatus(ctx context.Context, userID string, status model.SubscriptionStatus, periodEnd *time.Time) error
	// StartPeriod marks the subscription active for [start, end) and zeroes tokens_used.
	StartPeriod(ctx context.Context, userID string, start, end time.Time) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `user_id, plan_id, status, current_period_start, current_period_end,
        stripe_customer_id, stripe_subscription_id, stripe_price_id,
        tokens_per_period, tokens_used, created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.UserSubscription, error) {
	var us model.UserSubscription
	err := row.Scan(
		&us.UserID,
		&us.PlanID,
		&us.Status,
		&us.CurrentPeriodStart,
		&us.CurrentPeriodEnd,
		&us.StripeCustomerID,
		&us.StripeSubscriptionID,
		&us.StripePriceID,
		&us.TokensPerPeriod,
		&us.TokensUsed,
		&us.CreatedAt,
		&us.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &us, nil
}

// GetSubscription returns the user's subscription regardless of status.
func (r *subscriptionRepo) GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE user_id = $1`
	us, err := scanSubscription(r.pool.QueryRow(ctx, q, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return us, nil
}

// GetByStripeSubscriptionID resolves the local subscription behind a provider subscription id.
func (r *subscriptionRepo) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*model.UserSubscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE stripe_subscription_id = $1`
	us, err := scanSubscription(r.pool.QueryRow(ctx, q, stripeSubscriptionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %s: %w", stripeSubscriptionID, err)
	}
	return us, nil
}

func (r *subscriptionRepo) UpsertSubscription(ctx context.Context, sub *model.UserSubscription) error {
	const q = `
        INSERT INTO user_subscriptions (
            user_id, plan_id, status, current_period_start, current_period_end,
            stripe_customer_id, stripe_subscription_id, stripe_price_id,
            tokens_per_period, tokens_used, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET plan_id = EXCLUDED.plan_id,
            status = EXCLUDED.status,
            current_period_start = EXCLUDED.current_period_start,
            current_period_end = EXCLUDED.current_period_end,
            stripe_customer_id = EXCLUDED.stripe_customer_id,
            stripe_subscription_id = EXCLUDED.stripe_subscription_id,
            stripe_price_id = EXCLUDED.stripe_price_id,
            tokens_per_period = EXCLUDED.tokens_per_period,
            tokens_used = EXCLUDED.tokens_used,
            updated_at = NOW()
        RETURNING created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q,
		sub.UserID,
		sub.PlanID,
		string(sub.Status),
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.StripePriceID,
		sub.TokensPerPeriod,
		sub.TokensUsed,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert subscription for user %s: %w", sub.UserID, err)
	}
	return nil
}

func (r *subscriptionRepo) UpdateStatus(ctx context.Context, userID string, status model.SubscriptionStatus, periodEnd *time.Time) error {
	const q = `
        UPDATE user_subscriptions
        SET status = $2,
            current_period_end = COALESCE($3::timestamptz, current_period_end),
            updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.pool.Exec(ctx, q, userID, string(status), periodEnd)
	if err != nil {
		return fmt.Errorf("update subscription status for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) StartPeriod(ctx context.Context, userID string, start, end time.Time) error {
	const q = `
        UPDATE user_subscriptions
        SET status = 'active',
            current_period_start = $2,
            current_period_end = $3,
            tokens_used = 0,
            updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.pool.Exec(ctx, q, userID, start, end)
	if err != nil {
		return fmt.Errorf("start new period for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
