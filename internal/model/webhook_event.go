package model

import "time"

// DeadLetterEvent is a billing event that could not be applied and needs an operator.
type DeadLetterEvent struct {
	ID        string    `db:"id"`
	EventID   string    `db:"event_id"`
	EventType string    `db:"event_type"`
	Payload   string    `db:"payload"` // raw provider JSON
	Error     string    `db:"error"`
	CreatedAt time.Time `db:"created_at"`
}
