package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JobRepository tracks asynchronous generation jobs.
type JobRepository interface {
	CreateJob(ctx context.Context, j *model.GenerationJob) error
	GetJob(ctx context.Context, id string) (*model.GenerationJob, error)
	// UpdateJob persists status, provider job id, result and error of j.
	UpdateJob(ctx context.Context, j *model.GenerationJob) error
}

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) JobRepository {
	return &jobRepo{pool: pool}
}

func (r *jobRepo) CreateJob(ctx context.Context, j *model.GenerationJob) error {
	refs, err := json.Marshal(j.SourceRefs)
	if err != nil {
		return fmt.Errorf("marshal source refs: %w", err)
	}
	const q = `
        INSERT INTO generation_jobs (id, user_id, operation, status, prompt, source_refs)
        VALUES ($1, $2, $3, $4, $5, $6::jsonb)
        RETURNING created_at, updated_at
    `
	err = r.pool.QueryRow(ctx, q, j.ID, j.UserID, string(j.Operation), string(j.Status), j.Prompt, string(refs)).
		Scan(&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert generation job for user %s: %w", j.UserID, err)
	}
	return nil
}

func (r *jobRepo) GetJob(ctx context.Context, id string) (*model.GenerationJob, error) {
	const q = `
        SELECT id, user_id, operation, status, prompt, source_refs, provider_job_id, result_url, error, created_at, updated_at
        FROM generation_jobs
        WHERE id = $1
    `
	var j model.GenerationJob
	var rawRefs []byte
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&j.ID,
		&j.UserID,
		&j.Operation,
		&j.Status,
		&j.Prompt,
		&rawRefs,
		&j.ProviderJobID,
		&j.ResultURL,
		&j.Error,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch generation job %s: %w", id, err)
	}
	if len(rawRefs) > 0 {
		if err := json.Unmarshal(rawRefs, &j.SourceRefs); err != nil {
			return nil, fmt.Errorf("unmarshal source_refs for job %s: %w", id, err)
		}
	}
	return &j, nil
}

func (r *jobRepo) UpdateJob(ctx context.Context, j *model.GenerationJob) error {
	const q = `
        UPDATE generation_jobs
        SET status = $2, provider_job_id = $3, result_url = $4, error = $5, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at
    `
	err := r.pool.QueryRow(ctx, q, j.ID, string(j.Status), j.ProviderJobID, j.ResultURL, j.Error).Scan(&j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update generation job %s: %w", j.ID, err)
	}
	return nil
}
