// Package bootstrap opens the external connections shared by the API server
// and the orchestrator and builds the service graph on top of them.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/config"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/pgmq"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/pubsub"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// LoadConfig reads the environment, fills secrets from Secret Manager when a
// project is configured and rejects configurations the service cannot run with.
func LoadConfig(ctx context.Context, logger zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cfg.SecretManagerProjectID != "" {
		secrets, err := service.NewSecretManagerService(ctx, cfg.SecretManagerProjectID)
		if err != nil {
			return nil, err
		}
		defer secrets.Close()

		if err := cfg.ResolveSecrets(ctx, secrets.AccessSecret); err != nil {
			return nil, err
		}
		logger.Info().Str("project", cfg.SecretManagerProjectID).Msg("Secrets resolved from Secret Manager")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Container holds the opened connections and the services built on them.
type Container struct {
	Pool  *pgxpool.Pool
	DB    *sql.DB
	Queue *pgmq.Client

	Ledger        service.LedgerService
	Subscriptions service.SubscriptionService
	Reconciler    service.ReconcilerService
	Stripe        *service.StripeService
	Generation    service.GenerationService
	Captions      service.CaptionService
	Content       service.ContentStore

	publisher *pubsub.PubSubPublisher
	logger    zerolog.Logger
}

// New connects to Postgres, object storage and Pub/Sub and wires the services.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Container, error) {
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("db_port", getPortFromDSN(cfg.DBConnectionString)).Msg("Database connection successful")

	s3Client, err := newS3Client(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	c := &Container{Pool: pool, logger: logger}
	// pgmq speaks database/sql; share the pool instead of opening a second one.
	c.DB = stdlib.OpenDBFromPool(pool)
	c.Queue = pgmq.New(c.DB)

	var observers []service.BalanceObserver
	if cfg.GCPProjectID != "" {
		pub, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.publisher = pub
		observers = append(observers, service.NewPubSubBalanceObserver(pub, cfg.PubSubBalanceTopic, logger))
	} else {
		logger.Warn().Msg("GCP_PROJECT_ID not set, balance change notifications disabled")
	}

	ledgerRepo := repository.NewLedgerRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	planRepo := repository.NewPlanRepo(pool)
	userRepo := repository.NewUserRepo(pool)
	assetRepo := repository.NewAssetRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	c.Ledger = service.NewLedgerService(ledgerRepo, logger, observers...)
	c.Subscriptions = service.NewSubscriptionService(subRepo, planRepo, logger)
	c.Reconciler = service.NewReconcilerService(service.ReconcilerDeps{
		Subscriptions: subRepo,
		Plans:         planRepo,
		Events:        repository.NewEventRepo(pool),
		DeadLetters:   repository.NewDLQRepository(pool),
		Ledger:        c.Ledger,
	}, cfg.WebhookDeduplicateEvents, logger)
	c.Stripe = service.NewStripeService(cfg, service.NewStripeAPI(cfg.StripeSecretKey), userRepo, c.Subscriptions, logger)

	gateway := service.NewGatewayClient(service.GatewayConfig{
		BaseURL:        cfg.GenerationAPIURL,
		APIKey:         cfg.GenerationAPIKey,
		RequestTimeout: time.Duration(cfg.GenerationRequestTimeoutSec) * time.Second,
		PollInterval:   time.Duration(cfg.VideoStatusPollSec) * time.Second,
		MaxPolls:       cfg.VideoStatusMaxPolls,
	}, logger)
	c.Content = service.NewContentStore(assetRepo, s3Client, s3.NewPresignClient(s3Client), cfg.S3Bucket, logger)
	c.Generation = service.NewGenerationService(c.Ledger, gateway, c.Content, jobRepo, c.Queue, cfg.VideoQueueName, logger)
	c.Captions = service.NewCaptionService(gateway, service.NewCaptionParser(), logger)
	return c, nil
}

// Close releases every connection the container opened.
func (c *Container) Close() {
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close Pub/Sub publisher")
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close sql.DB")
		}
	}
	c.Pool.Close()
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := cfg.DBConnectionString
	// Local databases run without TLS; production DSNs carry their own sslmode.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := " "
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if strings.Contains(dsn, "?") {
				separator = "&"
			} else {
				separator = "?"
			}
		}
		dsn += separator + "sslmode=disable"
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DB connection string: %w", err)
	}
	// Transaction poolers (pgbouncer, supavisor) cannot hold server-side prepared statements.
	if cfg.Environment != "development" {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	poolCfg.MaxConns = 25
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open DB pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}
	return pool, nil
}

func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		return nil, fmt.Errorf("load S3 config: %w", err)
	}
	return s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	}), nil
}

// getPortFromDSN extracts the port from a URL-style DSN for startup logs.
func getPortFromDSN(dsn string) string {
	parts := strings.Split(dsn, ":")
	for i, part := range parts {
		if strings.Contains(part, "@") && len(parts) > i+1 {
			portAndDB := strings.Split(parts[i+1], "/")
			if len(portAndDB) > 0 {
				return portAndDB[0]
			}
		}
	}
	return "not_found"
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
