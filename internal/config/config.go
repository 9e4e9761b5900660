package config

import (
	"context"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"production"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`

	// Content store (Supabase S3-compatible storage)
	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"generated-assets"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Google Cloud
	GCPProjectID           string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost     string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubBalanceTopic     string `envconfig:"PUBSUB_BALANCE_TOPIC" default:"balance-changed"`
	SecretManagerProjectID string `envconfig:"SECRET_MANAGER_PROJECT_ID"`

	// Stripe
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePortalReturnURL string `envconfig:"STRIPE_PORTAL_RETURN_URL" default:"http://localhost:3000/billing"`
	// Claim each webhook event id once so redeliveries cannot grant or reset twice.
	WebhookDeduplicateEvents bool `envconfig:"WEBHOOK_DEDUPLICATE_EVENTS" default:"true"`
	CheckoutRatePerMinute    int  `envconfig:"CHECKOUT_RATE_PER_MINUTE" default:"10"`

	// Generation backend
	GenerationAPIURL            string `envconfig:"GENERATION_API_URL" required:"true"`
	GenerationAPIKey            string `envconfig:"GENERATION_API_KEY"`
	GenerationRequestTimeoutSec int    `envconfig:"GENERATION_REQUEST_TIMEOUT_SEC" default:"120"`

	// Video orchestrator settings
	VideoQueueName       string `envconfig:"VIDEO_QUEUE_NAME" default:"video_queue"`
	VideoPollTimeoutSec  int    `envconfig:"VIDEO_POLL_TIMEOUT_SEC" default:"30"`
	VideoPollMaxMsg      int    `envconfig:"VIDEO_POLL_MAX_MSG" default:"1"`
	VideoStatusPollSec   int    `envconfig:"VIDEO_STATUS_POLL_SEC" default:"10"`
	VideoStatusMaxPolls  int    `envconfig:"VIDEO_STATUS_MAX_POLLS" default:"60"`
	VideoVisibilityTOSec int    `envconfig:"VIDEO_VISIBILITY_TIMEOUT_SEC" default:"900"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SecretLookup fetches the latest value of a named secret.
type SecretLookup func(ctx context.Context, name string) (string, error)

// ResolveSecrets fills empty secret fields through lookup, keyed by their env var name.
func (c *Config) ResolveSecrets(ctx context.Context, lookup SecretLookup) error {
	targets := map[string]*string{
		"STRIPE_SECRET_KEY":     &c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": &c.StripeWebhookSecret,
		"GENERATION_API_KEY":    &c.GenerationAPIKey,
	}
	for name, field := range targets {
		if *field != "" {
			continue
		}
		v, err := lookup(ctx, name)
		if err != nil {
			return fmt.Errorf("resolve secret %s: %w", name, err)
		}
		*field = v
	}
	return nil
}

// Validate reports configuration that the service cannot start without.
func (c *Config) Validate() error {
	if c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is not set")
	}
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is not set")
	}
	return nil
}
