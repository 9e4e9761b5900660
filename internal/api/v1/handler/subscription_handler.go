package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/api/v1/dto"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/middleware"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingSessions creates hosted billing pages for a user.
type BillingSessions interface {
	CreateCheckoutSession(ctx context.Context, userID, planID string) (*service.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
}

// SubscriptionHandler handles subscription-related endpoints.
type SubscriptionHandler struct {
	billing  BillingSessions
	subSvc   service.SubscriptionService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(billing BillingSessions, subSvc service.SubscriptionService, validate *validator.Validate, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{billing: billing, subSvc: subSvc, validate: validate, logger: logger.With().Str("handler", "subscription").Logger()}
}

// RegisterRoutes registers the subscription endpoints. checkoutMw wraps the
// checkout route only.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware, checkoutMw func(http.Handler) http.Handler) {
	mux.Handle("POST /subscriptions/checkout", checkoutMw(authMiddleware(http.HandlerFunc(h.Checkout))))
	mux.Handle("GET /subscriptions/portal", authMiddleware(http.HandlerFunc(h.Portal)))
	mux.Handle("GET /subscriptions/me", authMiddleware(http.HandlerFunc(h.Me)))
	mux.HandleFunc("GET /subscriptions/plans", h.Plans)
}

// Checkout godoc
// @Summary Initiate a Stripe Checkout session for a plan
// @Description Creates a Stripe Checkout session carrying the user and plan ids and returns its URL.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param subscription body dto.SubscriptionCheckoutRequest true "Subscription checkout request"
// @Success 200 {object} dto.CheckoutSessionResponse
// @Failure 400 {object} dto.ErrorResponse "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {object} dto.ErrorResponse "unknown plan"
// @Failure 422 {object} dto.ErrorResponse "plan cannot be purchased"
// @Failure 429 {string} string "too many requests"
// @Failure 500 {object} dto.ErrorResponse "failed to create checkout session"
// @Router /subscriptions/checkout [post]
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.SubscriptionCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	sess, err := h.billing.CreateCheckoutSession(r.Context(), userID, req.PlanID)
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		writeError(w, h.logger, http.StatusNotFound, "plan not found")
		return
	case errors.Is(err, service.ErrPlanNotPurchasable):
		writeError(w, h.logger, http.StatusUnprocessableEntity, "plan cannot be purchased")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create checkout session")
		writeError(w, h.logger, http.StatusInternalServerError, "failed to create checkout session")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.CheckoutSessionResponse{SessionID: sess.SessionID, URL: sess.URL})
}

// Portal godoc
// @Summary Create a Stripe Customer Portal session
// @Description Generates a Stripe Customer Portal session URL for the authenticated user.
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.PortalSessionResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {object} dto.ErrorResponse "no billing account"
// @Failure 500 {object} dto.ErrorResponse "failed to create portal session"
// @Router /subscriptions/portal [get]
func (h *SubscriptionHandler) Portal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	url, err := h.billing.CreatePortalSession(r.Context(), userID)
	if errors.Is(err, service.ErrNoStripeCustomer) {
		writeError(w, h.logger, http.StatusNotFound, "no billing account")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create portal session")
		writeError(w, h.logger, http.StatusInternalServerError, "failed to create portal session")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.PortalSessionResponse{URL: url})
}

// Me godoc
// @Summary Get the caller's subscription
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.SubscriptionResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {object} dto.ErrorResponse "no subscription"
// @Router /subscriptions/me [get]
func (h *SubscriptionHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	sub, err := h.subSvc.GetSubscription(r.Context(), userID)
	if errors.Is(err, service.ErrSubscriptionNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "no subscription")
		return
	}
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.SubscriptionResponseDTO{
		PlanID:             sub.PlanID,
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		TokensPerPeriod:    sub.TokensPerPeriod,
		TokensUsed:         sub.TokensUsed,
	})
}

// Plans godoc
// @Summary List subscription plans
// @Tags subscriptions
// @Produce json
// @Success 200 {array} dto.PlanResponseDTO
// @Router /subscriptions/plans [get]
func (h *SubscriptionHandler) Plans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.subSvc.ListPlans(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "failed to list plans")
		return
	}
	resp := make([]dto.PlanResponseDTO, 0, len(plans))
	for _, p := range plans {
		if p.StripePriceID == nil {
			continue
		}
		resp = append(resp, dto.PlanResponseDTO{
			ID:              p.ID,
			Name:            p.Name,
			TokensPerPeriod: p.TokensPerPeriod,
			BillingInterval: string(p.Interval),
			PriceCents:      p.PriceCents,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
