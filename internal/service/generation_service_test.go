package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
)

func TestRunChargesOnlyAfterSuccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_, _ = env.ledger.Grant(ctx, "u1", 3, "seed")

	resp, err := env.gen.Run(ctx, "u1", model.OperationDressing, GenerationRequest{Prompt: "red dress"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Outcome != OutcomeCompleted || !resp.Charged || resp.BalanceAfter != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Asset == nil || resp.Asset.StoragePath == nil {
		t.Fatalf("expected stored asset, got %+v", resp.Asset)
	}
	if len(env.s3.keys) != 1 || env.s3.keys[0] != *resp.Asset.StoragePath {
		t.Fatalf("expected one upload at %v, got %v", *resp.Asset.StoragePath, env.s3.keys)
	}
}

func TestRunProviderFailureLeavesBalance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_, _ = env.ledger.Grant(ctx, "u1", 3, "seed")
	env.gateway.imageErr = &ProviderError{StatusCode: 503, Message: "model overloaded"}

	_, err := env.gen.Run(ctx, "u1", model.OperationEditing, GenerationRequest{Prompt: "crop"})
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Message != "model overloaded" {
		t.Fatalf("expected provider error with message, got %v", err)
	}
	b, _ := env.ledger.GetBalance(ctx, "u1")
	if b.Balance != 3 {
		t.Fatalf("failed generation must not charge, balance %d", b.Balance)
	}
	txs, _ := env.ledger.ListTransactions(ctx, "u1", 10, 0)
	if len(txs) != 1 {
		t.Fatalf("expected only the seed record, got %d", len(txs))
	}
}

func TestRunStorageFailureKeepsCharge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_, _ = env.ledger.Grant(ctx, "u1", 2, "seed")
	env.s3.err = errors.New("bucket unavailable")

	resp, err := env.gen.Run(ctx, "u1", model.OperationModelCreation, GenerationRequest{Prompt: "model"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !resp.Charged || resp.BalanceAfter != 1 || resp.Asset != nil {
		t.Fatalf("expected charged result without asset, got %+v", resp)
	}
}

func TestRunUnknownOperation(t *testing.T) {
	env := newTestEnv()
	if _, err := env.gen.Run(context.Background(), "u1", "upscale", GenerationRequest{}); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

// balance 1, cost 1: succeeds, leaves 0, and the next check fails.
func TestLastTokenScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_, _ = env.ledger.Grant(ctx, "u1", 1, "seed")

	check, _ := env.ledger.CheckBalance(ctx, "u1", 1)
	if !check.Sufficient {
		t.Fatal("expected sufficient balance")
	}
	resp, err := env.gen.Run(ctx, "u1", model.OperationModelCreation, GenerationRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !resp.Charged || resp.BalanceAfter != 0 {
		t.Fatalf("expected debit to 0, got %+v", resp)
	}
	check, _ = env.ledger.CheckBalance(ctx, "u1", 1)
	if check.Sufficient {
		t.Fatal("expected insufficient balance after spending the last token")
	}
}

// balance 0, video: refused before any remote call, nothing recorded.
func TestEmptyBalanceVideoScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	resp, err := env.gen.Run(ctx, "u1", model.OperationVideo, GenerationRequest{Prompt: "runway"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Outcome != OutcomeInsufficient || resp.Cost != 5 || resp.Balance != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if img, vid := env.gateway.calls(); img != 0 || vid != 0 {
		t.Fatalf("expected no remote calls, got image=%d video=%d", img, vid)
	}
	if txs, _ := env.ledger.ListTransactions(ctx, "u1", 10, 0); len(txs) != 0 {
		t.Fatalf("expected no transaction records, got %d", len(txs))
	}

	queued, err := env.gen.EnqueueVideo(ctx, "u1", GenerationRequest{Prompt: "runway"})
	if err != nil {
		t.Fatalf("EnqueueVideo: %v", err)
	}
	if queued.Outcome != OutcomeInsufficient || len(env.queue.messages) != 0 {
		t.Fatalf("expected no queued job, got %+v", queued)
	}
}

func TestAsyncVideoChargesOnCompletion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_, _ = env.ledger.Grant(ctx, "u1", 6, "seed")

	resp, err := env.gen.EnqueueVideo(ctx, "u1", GenerationRequest{Prompt: "catwalk", Images: map[string]string{"model": "https://cdn.example.com/m.png"}})
	if err != nil {
		t.Fatalf("EnqueueVideo: %v", err)
	}
	if resp.Outcome != OutcomeQueued || resp.Job == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if b, _ := env.ledger.GetBalance(ctx, "u1"); b.Balance != 6 {
		t.Fatalf("queueing must not charge, balance %d", b.Balance)
	}

	var msg VideoJobMessage
	if err := json.Unmarshal(env.queue.messages[0], &msg); err != nil || msg.JobID != resp.Job.ID {
		t.Fatalf("unexpected queue payload %s (%v)", env.queue.messages[0], err)
	}
	if err := env.gen.ProcessVideoJob(ctx, msg.JobID); err != nil {
		t.Fatalf("ProcessVideoJob: %v", err)
	}

	job, err := env.gen.GetJob(ctx, "u1", msg.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != model.JobCompleted || job.ResultURL == nil {
		t.Fatalf("unexpected job %+v", job)
	}
	if b, _ := env.ledger.GetBalance(ctx, "u1"); b.Balance != 1 {
		t.Fatalf("expected video charge of 5, balance %d", b.Balance)
	}

	// a redelivered message is skipped
	if err := env.gen.ProcessVideoJob(ctx, msg.JobID); err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if b, _ := env.ledger.GetBalance(ctx, "u1"); b.Balance != 1 {
		t.Fatalf("finished job must not be charged twice, balance %d", b.Balance)
	}
}

func TestAsyncVideoTimeoutFailsWithoutCharge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_, _ = env.ledger.Grant(ctx, "u1", 5, "seed")
	env.gateway.videoErr = ErrVideoTimeout

	resp, err := env.gen.EnqueueVideo(ctx, "u1", GenerationRequest{Prompt: "catwalk"})
	if err != nil {
		t.Fatalf("EnqueueVideo: %v", err)
	}
	if err := env.gen.ProcessVideoJob(ctx, resp.Job.ID); err != nil {
		t.Fatalf("ProcessVideoJob: %v", err)
	}
	job, _ := env.gen.GetJob(ctx, "u1", resp.Job.ID)
	if job.Status != model.JobFailed || job.Error == nil || *job.Error != ErrVideoTimeout.Error() {
		t.Fatalf("unexpected job %+v", job)
	}
	if b, _ := env.ledger.GetBalance(ctx, "u1"); b.Balance != 5 {
		t.Fatalf("timed out video must not charge, balance %d", b.Balance)
	}
}

func TestGetJobHidesOtherUsersJobs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_, _ = env.ledger.Grant(ctx, "u1", 5, "seed")
	resp, _ := env.gen.EnqueueVideo(ctx, "u1", GenerationRequest{Prompt: "p"})

	if _, err := env.gen.GetJob(ctx, "u2", resp.Job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if _, err := env.gen.GetJob(ctx, "u1", "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
