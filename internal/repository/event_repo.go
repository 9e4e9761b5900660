package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository records which billing events have been applied.
type EventRepository interface {
	// ClaimEvent records eventID and reports false if it was already claimed.
	ClaimEvent(ctx context.Context, eventID, eventType string) (bool, error)
	// ReleaseEvent drops a claim so a redelivery is applied again.
	ReleaseEvent(ctx context.Context, eventID string) error
}

type eventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) EventRepository {
	return &eventRepo{pool: pool}
}

func (r *eventRepo) ClaimEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	const q = `
        INSERT INTO processed_webhook_events (event_id, event_type, processed_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (event_id) DO NOTHING
    `
	tag, err := r.pool.Exec(ctx, q, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *eventRepo) ReleaseEvent(ctx context.Context, eventID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM processed_webhook_events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}
