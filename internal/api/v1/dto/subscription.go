package dto

import "time"

// SubscriptionCheckoutRequest is the request body for starting a plan checkout.
type SubscriptionCheckoutRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// CheckoutSessionResponse is returned after a checkout session is created.
type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// PortalSessionResponse carries the customer portal URL.
type PortalSessionResponse struct {
	URL string `json:"url"`
}

// SubscriptionResponseDTO is the caller's own subscription.
type SubscriptionResponseDTO struct {
	PlanID             string    `json:"plan_id"`
	Status             string    `json:"status"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	TokensPerPeriod    int       `json:"tokens_per_period"`
	TokensUsed         int       `json:"tokens_used"`
}

// PlanResponseDTO is one purchasable catalog entry.
type PlanResponseDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	TokensPerPeriod int    `json:"tokens_per_period"`
	BillingInterval string `json:"billing_interval"`
	PriceCents      int    `json:"price_cents"`
}

// WebhookAck is the acknowledgement returned to the payment processor.
type WebhookAck struct {
	Received bool `json:"received"`
}
