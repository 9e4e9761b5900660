package model

import (
	"fmt"
	"time"
)

// SubscriptionStatus is the local lifecycle state of a user's billing plan.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// UserSubscription is the single subscription row of a user.
type UserSubscription struct {
	UserID               string             `db:"user_id" json:"user_id"`
	PlanID               string             `db:"plan_id" json:"plan_id"`
	Status               SubscriptionStatus `db:"status" json:"status"`
	CurrentPeriodStart   time.Time          `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `db:"current_period_end" json:"current_period_end"`
	StripeCustomerID     *string            `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string            `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	StripePriceID        *string            `db:"stripe_price_id" json:"stripe_price_id,omitempty"`
	TokensPerPeriod      int                `db:"tokens_per_period" json:"tokens_per_period"`
	TokensUsed           int                `db:"tokens_used" json:"tokens_used"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// BillingInterval is the length of one subscription period.
type BillingInterval string

const (
	IntervalMonth     BillingInterval = "month"
	IntervalSixMonths BillingInterval = "six_months"
	IntervalYear      BillingInterval = "year"
)

// AddTo returns t advanced by one interval.
func (i BillingInterval) AddTo(t time.Time) (time.Time, error) {
	switch i {
	case IntervalMonth:
		return t.AddDate(0, 1, 0), nil
	case IntervalSixMonths:
		return t.AddDate(0, 6, 0), nil
	case IntervalYear:
		return t.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown billing interval %q", string(i))
	}
}

// SubscriptionPlan is a catalog entry describing what a plan grants.
type SubscriptionPlan struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	StripePriceID   *string         `db:"stripe_price_id" json:"stripe_price_id,omitempty"`
	TokensPerPeriod int             `db:"tokens_per_period" json:"tokens_per_period"`
	Interval        BillingInterval `db:"billing_interval" json:"billing_interval"`
	PriceCents      int             `db:"price_cents" json:"price_cents"`
}
