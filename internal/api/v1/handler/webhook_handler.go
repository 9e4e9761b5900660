package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/api/v1/dto"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/service"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

// maxWebhookBody caps the billing webhook payload.
const maxWebhookBody = 64 << 10

// EventVerifier checks a webhook signature and decodes the event.
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (*stripe.Event, error)
}

// WebhookHandler receives billing events from Stripe.
type WebhookHandler struct {
	verifier   EventVerifier
	reconciler service.ReconcilerService
	logger     zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(verifier EventVerifier, reconciler service.ReconcilerService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, reconciler: reconciler, logger: logger.With().Str("handler", "webhook").Logger()}
}

// RegisterRoutes registers the webhook endpoint. It is authenticated by
// signature, not by user token.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.Stripe)
}

// Stripe godoc
// @Summary Receive a Stripe billing event
// @Description Verifies the Stripe-Signature header and applies the event to subscriptions and token balances.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} dto.WebhookAck
// @Failure 400 {object} dto.ErrorResponse "invalid signature or event"
// @Failure 500 {object} dto.ErrorResponse "processing failed"
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to read webhook body")
		writeError(w, h.logger, http.StatusBadRequest, "invalid payload")
		return
	}

	event, err := h.verifier.ConstructEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid signature")
		return
	}

	if err := h.reconciler.HandleEvent(r.Context(), event); err != nil {
		if errors.Is(err, service.ErrInvalidBillingEvent) {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, h.logger, http.StatusInternalServerError, "failed to process event")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.WebhookAck{Received: true})
}
