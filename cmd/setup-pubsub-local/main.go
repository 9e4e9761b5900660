package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/config"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/logger"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const retention = 7 * 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on system environment variables.")
	}

	logger := logger.New()
	logger.Info().Msg("Starting Pub/Sub setup for the local emulator")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Failed to load config: %v", err)
	}
	if cfg.GCPProjectID == "" {
		logger.Fatal().Msg("GCP_PROJECT_ID is not set in the environment.")
	}
	if cfg.PubSubEmulatorHost == "" {
		logger.Fatal().Msg("PUBSUB_EMULATOR_HOST must be set for local environment.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID,
		option.WithEndpoint(cfg.PubSubEmulatorHost),
		option.WithoutAuthentication(),
	)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub client: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Msgf("Failed to close pubsub client: %v", err)
		}
	}()

	resetLocalEmulator(ctx, client, logger)
	if err := createResources(ctx, client, logger, cfg.PubSubBalanceTopic); err != nil {
		logger.Fatal().Msgf("Failed to create resources: %v", err)
	}

	logger.Info().Msg("Pub/Sub setup for local environment complete")
}

// resetLocalEmulator deletes every topic and subscription. Only run it against the emulator.
func resetLocalEmulator(ctx context.Context, client *pubsub.Client, logger zerolog.Logger) {
	subs := client.Subscriptions(ctx)
	for {
		sub, err := subs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to list subscriptions: %v", err)
		}
		logger.Info().Str("subscription", sub.ID()).Msg("Deleting subscription")
		if err := sub.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("subscription", sub.ID()).Msg("Failed to delete subscription")
		}
	}

	topics := client.Topics(ctx)
	for {
		topic, err := topics.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to list topics: %v", err)
		}
		logger.Info().Str("topic", topic.ID()).Msg("Deleting topic")
		if err := topic.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("topic", topic.ID()).Msg("Failed to delete topic")
		}
	}
}

// createResources creates the balance topic, its dead-letter topic and a pull
// subscription for each so local consumers can inspect notifications.
func createResources(ctx context.Context, client *pubsub.Client, logger zerolog.Logger, topicID string) error {
	dlqTopic, err := client.CreateTopicWithConfig(ctx, topicID+"-dlq", &pubsub.TopicConfig{RetentionDuration: retention})
	if err != nil {
		return fmt.Errorf("create topic %s-dlq: %w", topicID, err)
	}
	mainTopic, err := client.CreateTopicWithConfig(ctx, topicID, &pubsub.TopicConfig{RetentionDuration: retention})
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topicID, err)
	}
	logger.Info().Str("topic", topicID).Msg("Topics created")

	subs := map[string]pubsub.SubscriptionConfig{
		topicID + "-sub": {
			Topic:       mainTopic,
			AckDeadline: 60 * time.Second,
			RetryPolicy: &pubsub.RetryPolicy{
				MinimumBackoff: 10 * time.Second,
				MaximumBackoff: 600 * time.Second,
			},
			DeadLetterPolicy: &pubsub.DeadLetterPolicy{
				DeadLetterTopic:     dlqTopic.String(),
				MaxDeliveryAttempts: 5,
			},
		},
		topicID + "-dlq-sub": {
			Topic:       dlqTopic,
			AckDeadline: 60 * time.Second,
		},
	}
	for id, subCfg := range subs {
		if _, err := client.CreateSubscription(ctx, id, subCfg); err != nil {
			return fmt.Errorf("create subscription %s: %w", id, err)
		}
		logger.Info().Str("subscription", id).Msg("Subscription created")
	}
	return nil
}
