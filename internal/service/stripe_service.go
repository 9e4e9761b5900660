package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/config"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNoStripeCustomer = errors.New("no stripe customer for user")
)

// StripeAPI is the subset of the Stripe API the service calls.
type StripeAPI interface {
	NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error)
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

type stripeClient struct{}

// NewStripeAPI returns the live Stripe API backed by the package-level key.
func NewStripeAPI(secretKey string) StripeAPI {
	stripe.Key = secretKey
	return stripeClient{}
}

func (stripeClient) NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error) {
	return customerpkg.New(params)
}

func (stripeClient) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return checkoutsession.New(params)
}

func (stripeClient) NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	return billingsession.New(params)
}

// CheckoutSession is what the client needs to redirect into checkout.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// StripeService manages Stripe integration
type StripeService struct {
	cfg      *config.Config
	api      StripeAPI
	userRepo repository.UserRepository
	subSvc   SubscriptionService
	logger   zerolog.Logger
}

// NewStripeService returns the service with a scoped logger.
func NewStripeService(cfg *config.Config, api StripeAPI, userRepo repository.UserRepository, subSvc SubscriptionService, logger zerolog.Logger) *StripeService {
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{cfg: cfg, api: api, userRepo: userRepo, subSvc: subSvc, logger: lg}
}

// ConstructEvent verifies the Stripe-Signature header against the webhook
// secret and decodes the event. Nothing in payload is trusted before this.
func (s *StripeService) ConstructEvent(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Signature verification failed for Stripe webhook")
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return &event, nil
}

// GetOrCreateCustomer ensures a Stripe Customer exists for a user
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Name:     stripe.String(user.Name),
		Metadata: map[string]string{"user_id": user.UserID},
	}
	params.Context = ctx
	cust, err := s.api.NewCustomer(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, user.UserID, cust.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to store stripe customer id in user_profiles")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession starts a subscription checkout for planID. The session
// metadata carries user_id and plan_id, which the reconciler requires.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, planID string) (*CheckoutSession, error) {
	plan, err := s.subSvc.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.StripePriceID == nil || *plan.StripePriceID == "" {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotPurchasable, planID)
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for checkout session")
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	metadata := map[string]string{"user_id": userID, "plan_id": plan.ID}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: plan.StripePriceID, Quantity: stripe.Int64(1)},
		},
		SuccessURL:       stripe.String(s.cfg.StripePortalReturnURL + "?status=success&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:        stripe.String(s.cfg.StripePortalReturnURL + "?status=cancel"),
		Metadata:         metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{Metadata: metadata},
	}
	// Users without a profile row still check out; Stripe collects the email.
	if user != nil {
		customerID, err := s.GetOrCreateCustomer(ctx, user)
		if err != nil {
			return nil, err
		}
		params.Customer = stripe.String(customerID)
	}
	params.Context = ctx

	sess, err := s.api.NewCheckoutSession(params)
	if err != nil {
		s.logger.Error().Err(err).Str("plan_id", planID).Msg("Failed to create Stripe checkout session")
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Str("plan_id", planID).Str("session_id", sess.ID).Msg("Checkout session created")
	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession creates a Stripe Customer Portal session
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	customerID := ""
	if sub, err := s.subSvc.GetSubscription(ctx, userID); err == nil && sub.StripeCustomerID != nil {
		customerID = *sub.StripeCustomerID
	}
	if customerID == "" {
		user, err := s.userRepo.GetUserByID(ctx, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("fetch user: %w", err)
		}
		if user != nil && user.StripeCustomerID != nil {
			customerID = *user.StripeCustomerID
		}
	}
	if customerID == "" {
		return "", ErrNoStripeCustomer
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.cfg.StripePortalReturnURL),
	}
	params.Context = ctx
	sess, err := s.api.NewPortalSession(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}
