package repository

import (
	"context"
	"fmt"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQRepository stores billing events that failed to apply, for operator follow-up.
type DLQRepository interface {
	Create(ctx context.Context, event *model.DeadLetterEvent) error
}

type dlqRepository struct {
	pool *pgxpool.Pool
}

func NewDLQRepository(pool *pgxpool.Pool) DLQRepository {
	return &dlqRepository{pool: pool}
}

func (r *dlqRepository) Create(ctx context.Context, event *model.DeadLetterEvent) error {
	query := `
        INSERT INTO dead_letter_events (event_id, event_type, payload, error)
        VALUES ($1, $2, $3::jsonb, $4)
        RETURNING id, created_at
    `
	err := r.pool.QueryRow(
		ctx,
		query,
		event.EventID,
		event.EventType,
		event.Payload,
		event.Error,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("store dead letter event %s: %w", event.EventID, err)
	}
	return nil
}
