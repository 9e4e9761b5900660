package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository"

	"github.com/rs/zerolog"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanNotFound         = errors.New("plan not found")
	// ErrPlanNotPurchasable is returned for catalog plans without a provider price.
	ErrPlanNotPurchasable = errors.New("plan has no price reference")
)

// SubscriptionService defines read access to subscriptions and the plan catalog.
type SubscriptionService interface {
	GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error)
	GetPlan(ctx context.Context, planID string) (*model.SubscriptionPlan, error)
	ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error)
}

type subscriptionService struct {
	subs   repository.SubscriptionRepository
	plans  repository.PlanRepository
	logger zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(subs repository.SubscriptionRepository, plans repository.PlanRepository, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		subs:   subs,
		plans:  plans,
		logger: logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

// GetSubscription returns the user's subscription regardless of status.
func (s *subscriptionService) GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error) {
	sub, err := s.subs.GetSubscription(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	return sub, nil
}

// GetPlan returns the details of a subscription plan.
func (s *subscriptionService) GetPlan(ctx context.Context, planID string) (*model.SubscriptionPlan, error) {
	plan, err := s.plans.GetPlanByID(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("plan_id", planID).Msg("Failed to fetch subscription plan")
		return nil, err
	}
	return plan, nil
}

func (s *subscriptionService) ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	plans, err := s.plans.ListPlans(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list subscription plans")
	}
	return plans, err
}
