package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlanRepository reads the subscription plan catalog.
type PlanRepository interface {
	GetPlanByID(ctx context.Context, planID string) (*model.SubscriptionPlan, error)
	ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error)
}

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) PlanRepository {
	return &planRepo{pool: pool}
}

// GetPlanByID returns the subscription plan with its allotment.
func (r *planRepo) GetPlanByID(ctx context.Context, planID string) (*model.SubscriptionPlan, error) {
	const q = `
        SELECT id, name, stripe_price_id, tokens_per_period, billing_interval, price_cents
        FROM subscription_plans
        WHERE id = $1
    `
	var sp model.SubscriptionPlan
	err := r.pool.QueryRow(ctx, q, planID).Scan(
		&sp.ID,
		&sp.Name,
		&sp.StripePriceID,
		&sp.TokensPerPeriod,
		&sp.Interval,
		&sp.PriceCents,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch plan %s: %w", planID, err)
	}
	return &sp, nil
}

func (r *planRepo) ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	const q = `
        SELECT id, name, stripe_price_id, tokens_per_period, billing_interval, price_cents
        FROM subscription_plans
        ORDER BY price_cents
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []model.SubscriptionPlan
	for rows.Next() {
		var sp model.SubscriptionPlan
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.StripePriceID, &sp.TokensPerPeriod, &sp.Interval, &sp.PriceCents); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		plans = append(plans, sp)
	}
	return plans, rows.Err()
}
