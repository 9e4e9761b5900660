package config

import (
	"context"
	"errors"
	"testing"
)

func TestResolveSecretsFillsOnlyEmptyFields(t *testing.T) {
	cfg := &Config{StripeSecretKey: "sk_env"}
	looked := map[string]bool{}
	err := cfg.ResolveSecrets(context.Background(), func(_ context.Context, name string) (string, error) {
		looked[name] = true
		return "from-sm-" + name, nil
	})
	if err != nil {
		t.Fatalf("ResolveSecrets returned error: %v", err)
	}
	if looked["STRIPE_SECRET_KEY"] {
		t.Fatal("expected STRIPE_SECRET_KEY not to be looked up when already set")
	}
	if cfg.StripeSecretKey != "sk_env" {
		t.Fatalf("expected env value to be kept, got %q", cfg.StripeSecretKey)
	}
	if cfg.StripeWebhookSecret != "from-sm-STRIPE_WEBHOOK_SECRET" {
		t.Fatalf("unexpected webhook secret %q", cfg.StripeWebhookSecret)
	}
	if cfg.GenerationAPIKey != "from-sm-GENERATION_API_KEY" {
		t.Fatalf("unexpected generation key %q", cfg.GenerationAPIKey)
	}
}

func TestResolveSecretsPropagatesError(t *testing.T) {
	cfg := &Config{}
	boom := errors.New("permission denied")
	err := cfg.ResolveSecrets(context.Background(), func(context.Context, string) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
}

func TestValidateRequiresWebhookSecret(t *testing.T) {
	cfg := &Config{StripeSecretKey: "sk_test"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without webhook secret")
	}
	cfg.StripeWebhookSecret = "whsec_test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
