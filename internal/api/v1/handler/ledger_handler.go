package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/api/v1/dto"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/middleware"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// LedgerHandler exposes the caller's token balance.
type LedgerHandler struct {
	ledger   service.LedgerService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger service.LedgerService, validate *validator.Validate, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, validate: validate, logger: logger.With().Str("handler", "ledger").Logger()}
}

// RegisterRoutes mounts token routes
func (h *LedgerHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /tokens/check", authMw(http.HandlerFunc(h.check)))
	mux.Handle("POST /tokens/deduct", authMw(http.HandlerFunc(h.deduct)))
	mux.Handle("GET /tokens/balance", authMw(http.HandlerFunc(h.balance)))
	mux.Handle("GET /tokens/transactions", authMw(http.HandlerFunc(h.transactions)))
}

// check godoc
// @Summary Check whether the caller can afford an operation
// @Tags tokens
// @Accept json
// @Produce json
// @Param request body dto.TokenCheckRequest true "Cost to check"
// @Success 200 {object} dto.TokenCheckResponse
// @Failure 400 {object} dto.ErrorResponse "invalid request"
// @Failure 401 {string} string "unauthorized"
// @Router /tokens/check [post]
func (h *LedgerHandler) check(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.TokenCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.ledger.CheckBalance(r.Context(), userID, req.Cost)
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "failed to check balance")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.TokenCheckResponse{HasTokens: res.Sufficient, Balance: res.CurrentBalance})
}

// deduct godoc
// @Summary Deduct tokens for work already delivered
// @Description Atomically debits cost if the balance covers it. An uncovered cost returns success=false and leaves the balance unchanged.
// @Tags tokens
// @Accept json
// @Produce json
// @Param request body dto.TokenDeductRequest true "Cost and reason"
// @Success 200 {object} dto.TokenDeductResponse
// @Failure 400 {object} dto.ErrorResponse "invalid request"
// @Failure 401 {string} string "unauthorized"
// @Router /tokens/deduct [post]
func (h *LedgerHandler) deduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.TokenDeductRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.ledger.Debit(r.Context(), userID, req.Cost, req.Reason)
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "failed to deduct tokens")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.TokenDeductResponse{Success: res.Success, BalanceAfter: res.BalanceAfter})
}

// balance godoc
// @Summary Get the caller's token balance
// @Tags tokens
// @Produce json
// @Success 200 {object} dto.BalanceResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /tokens/balance [get]
func (h *LedgerHandler) balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	b, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "failed to load balance")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.BalanceResponseDTO{
		Balance:     b.Balance,
		Allotment:   b.Allotment,
		PeriodStart: b.PeriodStart,
		PeriodEnd:   b.PeriodEnd,
	})
}

// transactions godoc
// @Summary List the caller's ledger records, newest first
// @Tags tokens
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} dto.TransactionResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /tokens/transactions [get]
func (h *LedgerHandler) transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	limit, offset := pagination(r)
	txs, err := h.ledger.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	resp := make([]dto.TransactionResponseDTO, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, dto.TransactionResponseDTO{
			ID:           tx.ID,
			Amount:       tx.Amount,
			Kind:         string(tx.Kind),
			Reason:       tx.Reason,
			BalanceAfter: tx.BalanceAfter,
			CreatedAt:    tx.CreatedAt,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *LedgerHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request payload")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}

// pagination reads limit and offset query parameters; bad values become 0.
func pagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
