package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/pubsub"

	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

type pubSubBalanceObserver struct {
	publisher pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// NewPubSubBalanceObserver publishes every balance change as JSON to topic.
func NewPubSubBalanceObserver(publisher pubsub.Publisher, topic string, logger zerolog.Logger) BalanceObserver {
	return &pubSubBalanceObserver{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("service", "BalanceNotifier").Logger(),
	}
}

func (o *pubSubBalanceObserver) BalanceChanged(ctx context.Context, change BalanceChange) {
	payload, err := json.Marshal(change)
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to encode balance change")
		return
	}
	// The change is committed; publishing outlives the request context.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	id, err := o.publisher.Publish(pubCtx, o.topic, payload)
	if err != nil {
		o.logger.Warn().Err(err).Str("user_id", change.UserID).Msg("Failed to publish balance change")
		return
	}
	o.logger.Debug().Str("message_id", id).Str("user_id", change.UserID).Msg("Balance change published")
}
