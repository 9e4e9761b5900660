package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/api/v1/dto"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/middleware"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// GenerationHandler runs metered generation operations and serves their results.
type GenerationHandler struct {
	generation service.GenerationService
	captions   service.CaptionService
	content    service.ContentStore
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(generation service.GenerationService, captions service.CaptionService, content service.ContentStore, validate *validator.Validate, logger zerolog.Logger) *GenerationHandler {
	return &GenerationHandler{
		generation: generation,
		captions:   captions,
		content:    content,
		validate:   validate,
		logger:     logger.With().Str("handler", "generation").Logger(),
	}
}

// RegisterRoutes mounts generation, caption and asset routes
func (h *GenerationHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /generations/{operation}", authMw(http.HandlerFunc(h.generate)))
	mux.Handle("GET /generations/{id}", authMw(http.HandlerFunc(h.getJob)))
	mux.Handle("POST /captions", authMw(http.HandlerFunc(h.generateCaptions)))
	mux.Handle("GET /assets", authMw(http.HandlerFunc(h.listAssets)))
}

// generate godoc
// @Summary Run a metered generation operation
// @Description Checks the balance, calls the generation provider and charges only after success. Video is queued and answered with 202.
// @Tags generations
// @Accept json
// @Produce json
// @Param operation path string true "model | dress | edit | video"
// @Param request body dto.GenerationRequestDTO true "Generation input"
// @Success 200 {object} dto.GenerationResponseDTO
// @Success 202 {object} dto.JobResponseDTO
// @Failure 400 {object} dto.ErrorResponse "invalid request"
// @Failure 401 {string} string "unauthorized"
// @Failure 402 {object} dto.InsufficientTokensResponse "insufficient tokens"
// @Failure 404 {object} dto.ErrorResponse "unknown operation"
// @Failure 502 {object} dto.ErrorResponse "provider failure"
// @Router /generations/{operation} [post]
func (h *GenerationHandler) generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	op := model.Operation(r.PathValue("operation"))
	if !op.Valid() {
		writeError(w, h.logger, http.StatusNotFound, "unknown operation")
		return
	}
	var req dto.GenerationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}
	genReq := service.GenerationRequest{Prompt: req.Prompt, Images: req.Images, AspectRatio: req.AspectRatio}

	var (
		resp *service.GenerationResponse
		err  error
	)
	if op == model.OperationVideo {
		resp, err = h.generation.EnqueueVideo(r.Context(), userID, genReq)
	} else {
		resp, err = h.generation.Run(r.Context(), userID, op, genReq)
	}
	if err != nil {
		h.writeGenerationError(w, err)
		return
	}

	switch resp.Outcome {
	case service.OutcomeInsufficient:
		writeJSON(w, h.logger, http.StatusPaymentRequired, dto.InsufficientTokensResponse{
			Error:    "insufficient tokens",
			Required: resp.Cost,
			Balance:  resp.Balance,
		})
	case service.OutcomeQueued:
		writeJSON(w, h.logger, http.StatusAccepted, jobResponse(resp.Job))
	default:
		out := dto.GenerationResponseDTO{
			Operation:    string(op),
			Cost:         resp.Cost,
			Charged:      resp.Charged,
			BalanceAfter: resp.BalanceAfter,
			ImageBase64:  resp.Result.ImageBase64,
			MimeType:     resp.Result.MimeType,
			URL:          resp.Result.URL,
		}
		if resp.Asset != nil {
			out.AssetID = resp.Asset.ID
		}
		writeJSON(w, h.logger, http.StatusOK, out)
	}
}

func (h *GenerationHandler) writeGenerationError(w http.ResponseWriter, err error) {
	var perr *service.ProviderError
	switch {
	case errors.As(err, &perr):
		writeError(w, h.logger, http.StatusBadGateway, perr.Message)
	case errors.Is(err, service.ErrVideoTimeout):
		writeError(w, h.logger, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, service.ErrUnknownOperation):
		writeError(w, h.logger, http.StatusNotFound, "unknown operation")
	default:
		h.logger.Error().Err(err).Msg("generation failed")
		writeError(w, h.logger, http.StatusInternalServerError, "generation failed")
	}
}

// getJob godoc
// @Summary Get the status of an asynchronous generation job
// @Tags generations
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} dto.JobResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {object} dto.ErrorResponse "job not found"
// @Router /generations/{id} [get]
func (h *GenerationHandler) getJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	job, err := h.generation.GetJob(r.Context(), userID, r.PathValue("id"))
	if errors.Is(err, service.ErrJobNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, jobResponse(job))
}

func jobResponse(job *model.GenerationJob) dto.JobResponseDTO {
	out := dto.JobResponseDTO{
		JobID:     job.ID,
		Operation: string(job.Operation),
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.ResultURL != nil {
		out.ResultURL = *job.ResultURL
	}
	if job.Error != nil {
		out.Error = *job.Error
	}
	return out
}

// generateCaptions godoc
// @Summary Write social captions for a piece of content
// @Description Not metered.
// @Tags captions
// @Accept json
// @Produce json
// @Param request body dto.CaptionRequestDTO true "Content description"
// @Success 200 {object} service.CaptionSet
// @Failure 400 {object} dto.ErrorResponse "invalid request"
// @Failure 401 {string} string "unauthorized"
// @Failure 502 {object} dto.ErrorResponse "provider failure or unparseable output"
// @Router /captions [post]
func (h *GenerationHandler) generateCaptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.CaptionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}
	set, err := h.captions.Generate(r.Context(), userID, service.CaptionRequest{
		Description: req.Description,
		Platforms:   req.Platforms,
		Tone:        req.Tone,
	})
	if errors.Is(err, service.ErrCaptionParse) {
		writeError(w, h.logger, http.StatusBadGateway, err.Error())
		return
	}
	if err != nil {
		h.writeGenerationError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, set)
}

// listAssets godoc
// @Summary List the caller's generated assets
// @Tags assets
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} dto.AssetResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /assets [get]
func (h *GenerationHandler) listAssets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	limit, offset := pagination(r)
	views, err := h.content.ListAssets(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "failed to list assets")
		return
	}
	resp := make([]dto.AssetResponseDTO, 0, len(views))
	for _, v := range views {
		a := dto.AssetResponseDTO{
			ID:          v.ID,
			Operation:   string(v.Operation),
			Prompt:      v.Prompt,
			DownloadURL: v.DownloadURL,
			CreatedAt:   v.CreatedAt,
		}
		if v.Caption != nil {
			a.Caption = *v.Caption
		}
		resp = append(resp, a)
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
