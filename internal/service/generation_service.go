package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrJobNotFound      = errors.New("generation job not found")
)

// GenerationOutcome is the expected-business result of a metered call.
type GenerationOutcome string

const (
	OutcomeCompleted    GenerationOutcome = "completed"
	OutcomeInsufficient GenerationOutcome = "insufficient_tokens"
	OutcomeQueued       GenerationOutcome = "queued"
)

// GenerationResponse is what a metered call produced. Balance is the balance
// seen by the pre-check; BalanceAfter is set when the debit was applied.
type GenerationResponse struct {
	Outcome      GenerationOutcome
	Cost         int
	Balance      int
	Charged      bool
	BalanceAfter int
	Result       *GenerationResult
	Asset        *model.GeneratedAsset
	Job          *model.GenerationJob
}

// JobQueue hands asynchronous jobs to the orchestrator.
type JobQueue interface {
	Send(ctx context.Context, queue string, payload []byte) error
}

// VideoJobMessage is the queue payload of an async video job.
type VideoJobMessage struct {
	JobID string `json:"job_id"`
}

// GenerationService runs metered generation operations: check the balance,
// call the provider, charge only after success, then store the result.
type GenerationService interface {
	Run(ctx context.Context, userID string, op model.Operation, req GenerationRequest) (*GenerationResponse, error)
	EnqueueVideo(ctx context.Context, userID string, req GenerationRequest) (*GenerationResponse, error)
	GetJob(ctx context.Context, userID, jobID string) (*model.GenerationJob, error)
	// ProcessVideoJob drives a queued job to completion or failure.
	ProcessVideoJob(ctx context.Context, jobID string) error
}

type generationService struct {
	ledger     LedgerService
	gateway    GenerationGateway
	store      ContentStore
	jobs       repository.JobRepository
	queue      JobQueue
	videoQueue string
	logger     zerolog.Logger
}

func NewGenerationService(ledger LedgerService, gateway GenerationGateway, store ContentStore, jobs repository.JobRepository, queue JobQueue, videoQueue string, logger zerolog.Logger) GenerationService {
	return &generationService{
		ledger:     ledger,
		gateway:    gateway,
		store:      store,
		jobs:       jobs,
		queue:      queue,
		videoQueue: videoQueue,
		logger:     logger.With().Str("service", "GenerationService").Logger(),
	}
}

func (s *generationService) Run(ctx context.Context, userID string, op model.Operation, req GenerationRequest) (*GenerationResponse, error) {
	cost, ok := op.Cost()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	check, err := s.ledger.CheckBalance(ctx, userID, cost)
	if err != nil {
		return nil, err
	}
	if !check.Sufficient {
		return &GenerationResponse{Outcome: OutcomeInsufficient, Cost: cost, Balance: check.CurrentBalance}, nil
	}

	result, err := s.execute(ctx, op, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("operation", string(op)).Msg("Generation failed, nothing charged")
		return nil, err
	}

	resp := &GenerationResponse{Outcome: OutcomeCompleted, Cost: cost, Balance: check.CurrentBalance, Result: result}
	s.settle(ctx, userID, op, cost, req, resp)
	return resp, nil
}

func (s *generationService) execute(ctx context.Context, op model.Operation, req GenerationRequest) (*GenerationResult, error) {
	if op != model.OperationVideo {
		return s.gateway.GenerateImage(ctx, op, req)
	}
	providerJobID, err := s.gateway.StartVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.gateway.WaitForVideo(ctx, providerJobID)
}

// settle charges for a delivered result and records it. Failures here are
// logged only; the caller already has the result.
func (s *generationService) settle(ctx context.Context, userID string, op model.Operation, cost int, req GenerationRequest, resp *GenerationResponse) {
	bookCtx := context.WithoutCancel(ctx)
	debit, err := s.ledger.Debit(bookCtx, userID, cost, string(op))
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("user_id", userID).Str("operation", string(op)).Msg("Debit failed after successful generation")
	case !debit.Success:
		s.logger.Warn().Str("user_id", userID).Str("operation", string(op)).Msg("Balance spent concurrently, generation delivered uncharged")
	default:
		resp.Charged = true
		resp.BalanceAfter = debit.BalanceAfter
	}

	asset, err := s.store.SaveAsset(bookCtx, userID, op, req, resp.Result)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("operation", string(op)).Msg("Failed to store generated asset")
		return
	}
	resp.Asset = asset
}

func (s *generationService) EnqueueVideo(ctx context.Context, userID string, req GenerationRequest) (*GenerationResponse, error) {
	cost, _ := model.OperationVideo.Cost()
	check, err := s.ledger.CheckBalance(ctx, userID, cost)
	if err != nil {
		return nil, err
	}
	if !check.Sufficient {
		return &GenerationResponse{Outcome: OutcomeInsufficient, Cost: cost, Balance: check.CurrentBalance}, nil
	}

	job := &model.GenerationJob{
		ID:         uuid.NewString(),
		UserID:     userID,
		Operation:  model.OperationVideo,
		Status:     model.JobQueued,
		Prompt:     req.Prompt,
		SourceRefs: req.Images,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(VideoJobMessage{JobID: job.ID})
	if err != nil {
		return nil, fmt.Errorf("marshal video job message: %w", err)
	}
	if err := s.queue.Send(ctx, s.videoQueue, payload); err != nil {
		s.failJob(ctx, job, "could not enqueue job")
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("job_id", job.ID).Msg("Video job queued")
	return &GenerationResponse{Outcome: OutcomeQueued, Cost: cost, Balance: check.CurrentBalance, Job: job}, nil
}

func (s *generationService) GetJob(ctx context.Context, userID, jobID string) (*model.GenerationJob, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *generationService) ProcessVideoJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status == model.JobCompleted || job.Status == model.JobFailed {
		s.logger.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("Job already finished, skipping")
		return nil
	}
	log := s.logger.With().Str("job_id", jobID).Str("user_id", job.UserID).Logger()

	cost, _ := job.Operation.Cost()
	check, err := s.ledger.CheckBalance(ctx, job.UserID, cost)
	if err != nil {
		return err
	}
	if !check.Sufficient {
		s.failJob(ctx, job, "insufficient tokens")
		return nil
	}

	req := GenerationRequest{Prompt: job.Prompt, Images: job.SourceRefs}
	if job.ProviderJobID == nil {
		providerJobID, err := s.gateway.StartVideo(ctx, req)
		if err != nil {
			s.failJob(ctx, job, providerFailureMessage(err))
			return nil
		}
		job.ProviderJobID = &providerJobID
	}
	job.Status = model.JobProcessing
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return err
	}

	result, err := s.gateway.WaitForVideo(ctx, *job.ProviderJobID)
	if err != nil {
		if ctx.Err() != nil {
			// shutting down; the message becomes visible again and is resumed
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("Video generation failed, nothing charged")
		s.failJob(ctx, job, providerFailureMessage(err))
		return nil
	}

	resp := &GenerationResponse{Outcome: OutcomeCompleted, Cost: cost, Result: result}
	s.settle(ctx, job.UserID, job.Operation, cost, req, resp)

	job.Status = model.JobCompleted
	job.ResultURL = &result.URL
	if err := s.jobs.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		return err
	}
	log.Info().Bool("charged", resp.Charged).Msg("Video job completed")
	return nil
}

func (s *generationService) failJob(ctx context.Context, job *model.GenerationJob, msg string) {
	job.Status = model.JobFailed
	job.Error = &msg
	if err := s.jobs.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job failed")
	}
}

// providerFailureMessage is the user-facing text for a failed generation.
func providerFailureMessage(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	if errors.Is(err, ErrVideoTimeout) {
		return ErrVideoTimeout.Error()
	}
	return genericProviderMessage
}
