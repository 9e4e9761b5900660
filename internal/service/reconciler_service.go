package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

// ErrInvalidBillingEvent marks events that can never be applied as delivered:
// missing metadata, unknown plans, undecodable payloads. These need an operator.
var ErrInvalidBillingEvent = errors.New("invalid billing event")

const (
	eventCheckoutCompleted       stripe.EventType = "checkout.session.completed"
	eventSubscriptionUpdated     stripe.EventType = "customer.subscription.updated"
	eventSubscriptionDeleted     stripe.EventType = "customer.subscription.deleted"
	eventInvoicePaymentSucceeded stripe.EventType = "invoice.payment_succeeded"
	eventInvoicePaymentFailed    stripe.EventType = "invoice.payment_failed"
)

// ReconcilerService applies verified billing events to subscriptions and balances.
type ReconcilerService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// ReconcilerDeps groups the stores the reconciler writes to.
type ReconcilerDeps struct {
	Subscriptions repository.SubscriptionRepository
	Plans         repository.PlanRepository
	Events        repository.EventRepository
	DeadLetters   repository.DLQRepository
	Ledger        LedgerService
}

type reconcilerService struct {
	ReconcilerDeps
	deduplicate bool
	now         func() time.Time
	logger      zerolog.Logger
}

// NewReconcilerService creates a reconciler. With deduplicate set, each event id
// is applied at most once; without it a redelivered renewal resets tokens again.
func NewReconcilerService(deps ReconcilerDeps, deduplicate bool, logger zerolog.Logger) ReconcilerService {
	return &reconcilerService{
		ReconcilerDeps: deps,
		deduplicate:    deduplicate,
		now:            time.Now,
		logger:         logger.With().Str("service", "ReconcilerService").Logger(),
	}
}

func handledEventType(t stripe.EventType) bool {
	switch t {
	case eventCheckoutCompleted, eventSubscriptionUpdated, eventSubscriptionDeleted,
		eventInvoicePaymentSucceeded, eventInvoicePaymentFailed:
		return true
	}
	return false
}

func (s *reconcilerService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	log := s.logger.With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()
	if !handledEventType(event.Type) {
		log.Info().Msg("Ignoring unhandled billing event")
		return nil
	}
	if event.Data == nil {
		return s.fail(ctx, event, fmt.Errorf("%w: event has no data", ErrInvalidBillingEvent))
	}

	claimed := false
	if s.deduplicate && event.ID != "" {
		ok, err := s.Events.ClaimEvent(ctx, event.ID, string(event.Type))
		if err != nil {
			log.Error().Err(err).Msg("Failed to claim billing event")
			return err
		}
		if !ok {
			log.Info().Msg("Billing event already processed, skipping")
			return nil
		}
		claimed = true
	}

	if err := s.apply(ctx, log, event); err != nil {
		if claimed {
			// Drop the claim so the provider's retry is applied.
			if relErr := s.Events.ReleaseEvent(context.WithoutCancel(ctx), event.ID); relErr != nil {
				log.Error().Err(relErr).Msg("Failed to release billing event claim")
			}
		}
		return s.fail(ctx, event, err)
	}
	return nil
}

func (s *reconcilerService) apply(ctx context.Context, log zerolog.Logger, event *stripe.Event) error {
	switch event.Type {
	case eventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return fmt.Errorf("%w: decode checkout session: %v", ErrInvalidBillingEvent, err)
		}
		return s.onCheckoutCompleted(ctx, log, &cs)
	case eventSubscriptionUpdated, eventSubscriptionDeleted:
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			return fmt.Errorf("%w: decode subscription: %v", ErrInvalidBillingEvent, err)
		}
		if event.Type == eventSubscriptionDeleted {
			return s.onSubscriptionDeleted(ctx, log, &ss)
		}
		return s.onSubscriptionUpdated(ctx, log, &ss)
	case eventInvoicePaymentSucceeded, eventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("%w: decode invoice: %v", ErrInvalidBillingEvent, err)
		}
		if event.Type == eventInvoicePaymentFailed {
			return s.onPaymentFailed(ctx, log, &inv)
		}
		return s.onPaymentSucceeded(ctx, log, &inv)
	}
	return nil
}

func (s *reconcilerService) onCheckoutCompleted(ctx context.Context, log zerolog.Logger, cs *stripe.CheckoutSession) error {
	userID := cs.Metadata["user_id"]
	planID := cs.Metadata["plan_id"]
	if userID == "" || planID == "" {
		return fmt.Errorf("%w: checkout session %s is missing user_id or plan_id metadata", ErrInvalidBillingEvent, cs.ID)
	}
	plan, err := s.Plans.GetPlanByID(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: checkout session %s references unknown plan %s", ErrInvalidBillingEvent, cs.ID, planID)
	}
	if err != nil {
		return fmt.Errorf("fetch plan %s: %w", planID, err)
	}

	start := s.now().UTC()
	end, err := plan.Interval.AddTo(start)
	if err != nil {
		return fmt.Errorf("%w: plan %s: %v", ErrInvalidBillingEvent, plan.ID, err)
	}

	sub := &model.UserSubscription{
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             model.SubscriptionActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		StripePriceID:      plan.StripePriceID,
		TokensPerPeriod:    plan.TokensPerPeriod,
		TokensUsed:         0,
	}
	if cs.Customer != nil && cs.Customer.ID != "" {
		sub.StripeCustomerID = stripe.String(cs.Customer.ID)
	}
	if cs.Subscription != nil && cs.Subscription.ID != "" {
		sub.StripeSubscriptionID = stripe.String(cs.Subscription.ID)
	}
	if err := s.Subscriptions.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	if plan.TokensPerPeriod > 0 {
		if _, err := s.Ledger.Grant(ctx, userID, plan.TokensPerPeriod, "subscription activated: "+plan.ID); err != nil {
			return err
		}
		if err := s.Ledger.SetPeriod(ctx, userID, start, end); err != nil {
			return err
		}
	}
	log.Info().Str("user_id", userID).Str("plan_id", plan.ID).Time("period_end", end).Msg("Subscription activated")
	return nil
}

// mapProviderStatus translates a provider subscription status. ok is false for
// statuses that leave the local subscription unchanged.
func mapProviderStatus(status stripe.SubscriptionStatus) (model.SubscriptionStatus, bool) {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return model.SubscriptionActive, true
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return model.SubscriptionPaused, true
	case stripe.SubscriptionStatusCanceled:
		return model.SubscriptionCancelled, true
	case stripe.SubscriptionStatusIncompleteExpired:
		return model.SubscriptionExpired, true
	}
	return "", false
}

func (s *reconcilerService) lookupByProviderID(ctx context.Context, log zerolog.Logger, stripeSubID string) (*model.UserSubscription, error) {
	if stripeSubID == "" {
		log.Warn().Msg("Billing event carries no subscription id, skipping")
		return nil, nil
	}
	sub, err := s.Subscriptions.GetByStripeSubscriptionID(ctx, stripeSubID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("subscription_id", stripeSubID).Msg("No local subscription for billing event, skipping")
		return nil, nil
	}
	return sub, err
}

func (s *reconcilerService) onSubscriptionUpdated(ctx context.Context, log zerolog.Logger, ss *stripe.Subscription) error {
	sub, err := s.lookupByProviderID(ctx, log, ss.ID)
	if err != nil || sub == nil {
		return err
	}
	status, ok := mapProviderStatus(ss.Status)
	if !ok {
		log.Info().Str("provider_status", string(ss.Status)).Str("user_id", sub.UserID).Msg("Provider status leaves subscription unchanged")
		return nil
	}
	var periodEnd *time.Time
	if status == model.SubscriptionActive && ss.Items != nil && len(ss.Items.Data) > 0 && ss.Items.Data[0].CurrentPeriodEnd > 0 {
		end := time.Unix(ss.Items.Data[0].CurrentPeriodEnd, 0).UTC()
		periodEnd = &end
	}
	if err := s.Subscriptions.UpdateStatus(ctx, sub.UserID, status, periodEnd); err != nil {
		return err
	}
	log.Info().Str("user_id", sub.UserID).Str("status", string(status)).Msg("Subscription status updated")
	return nil
}

func (s *reconcilerService) onSubscriptionDeleted(ctx context.Context, log zerolog.Logger, ss *stripe.Subscription) error {
	sub, err := s.lookupByProviderID(ctx, log, ss.ID)
	if err != nil || sub == nil {
		return err
	}
	if err := s.Subscriptions.UpdateStatus(ctx, sub.UserID, model.SubscriptionCancelled, nil); err != nil {
		return err
	}
	log.Info().Str("user_id", sub.UserID).Msg("Subscription cancelled")
	return nil
}

// invoiceSubscriptionID finds the provider subscription an invoice bills for.
func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		return inv.Parent.SubscriptionDetails.Subscription.ID
	}
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line.Subscription != nil && line.Subscription.ID != "" {
				return line.Subscription.ID
			}
		}
	}
	return ""
}

// invoicePeriod returns the service period an invoice pays for, taken from its
// first line that carries one.
func invoicePeriod(inv *stripe.Invoice) (time.Time, time.Time, bool) {
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line.Period != nil && line.Period.End > line.Period.Start {
				return time.Unix(line.Period.Start, 0).UTC(), time.Unix(line.Period.End, 0).UTC(), true
			}
		}
	}
	if inv.PeriodEnd > inv.PeriodStart {
		return time.Unix(inv.PeriodStart, 0).UTC(), time.Unix(inv.PeriodEnd, 0).UTC(), true
	}
	return time.Time{}, time.Time{}, false
}

func (s *reconcilerService) onPaymentSucceeded(ctx context.Context, log zerolog.Logger, inv *stripe.Invoice) error {
	stripeSubID := invoiceSubscriptionID(inv)
	if stripeSubID == "" {
		log.Info().Str("invoice_id", inv.ID).Msg("Invoice has no subscription, skipping")
		return nil
	}
	sub, err := s.lookupByProviderID(ctx, log, stripeSubID)
	if err != nil || sub == nil {
		return err
	}

	start, end, ok := invoicePeriod(inv)
	if !ok {
		plan, err := s.Plans.GetPlanByID(ctx, sub.PlanID)
		if err != nil {
			return fmt.Errorf("fetch plan %s for renewal: %w", sub.PlanID, err)
		}
		start = s.now().UTC()
		if end, err = plan.Interval.AddTo(start); err != nil {
			return fmt.Errorf("%w: plan %s: %v", ErrInvalidBillingEvent, plan.ID, err)
		}
	}

	if err := s.Subscriptions.StartPeriod(ctx, sub.UserID, start, end); err != nil {
		return err
	}
	if _, err := s.Ledger.Reset(ctx, sub.UserID, sub.TokensPerPeriod, "subscription renewed: "+inv.ID); err != nil {
		return err
	}
	if err := s.Ledger.SetPeriod(ctx, sub.UserID, start, end); err != nil {
		return err
	}
	log.Info().Str("user_id", sub.UserID).Int("allotment", sub.TokensPerPeriod).Time("period_end", end).Msg("Subscription renewed")
	return nil
}

func (s *reconcilerService) onPaymentFailed(ctx context.Context, log zerolog.Logger, inv *stripe.Invoice) error {
	stripeSubID := invoiceSubscriptionID(inv)
	if stripeSubID == "" {
		log.Info().Str("invoice_id", inv.ID).Msg("Invoice has no subscription, skipping")
		return nil
	}
	sub, err := s.lookupByProviderID(ctx, log, stripeSubID)
	if err != nil || sub == nil {
		return err
	}
	if err := s.Subscriptions.UpdateStatus(ctx, sub.UserID, model.SubscriptionPaused, nil); err != nil {
		return err
	}
	log.Warn().Str("user_id", sub.UserID).Str("invoice_id", inv.ID).Msg("Payment failed, subscription paused")
	return nil
}

// fail logs err at error level and stores the event for operator follow-up.
func (s *reconcilerService) fail(ctx context.Context, event *stripe.Event, err error) error {
	s.logger.Error().Err(err).
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Bool("invalid", errors.Is(err, ErrInvalidBillingEvent)).
		Msg("Failed to apply billing event")
	if s.DeadLetters == nil {
		return err
	}
	payload := "null"
	if event.Data != nil && len(event.Data.Raw) > 0 {
		payload = string(event.Data.Raw)
	}
	dl := &model.DeadLetterEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		Payload:   payload,
		Error:     err.Error(),
	}
	if dlErr := s.DeadLetters.Create(context.WithoutCancel(ctx), dl); dlErr != nil {
		s.logger.Error().Err(dlErr).Str("event_id", event.ID).Msg("Failed to store dead letter event")
	}
	return err
}
