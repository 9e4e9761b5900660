package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/bootstrap"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/logger"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/orchestrator/video"

	"github.com/joho/godotenv"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Orchestrator mode: video")
	flag.Parse()

	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := bootstrap.LoadConfig(ctx, logger)
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	c, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to initialize services: %v", err)
	}
	defer c.Close()
	logger.Info().Msg("Database connection established")

	// Dispatch to the selected orchestrator
	var runErr error
	switch *mode {
	case "video":
		runErr = video.Run(ctx, logger, c.Queue, c.Generation, video.Options{
			QueueName:     cfg.VideoQueueName,
			VisibilitySec: cfg.VideoVisibilityTOSec,
			PollSec:       cfg.VideoPollTimeoutSec,
			MaxMessages:   cfg.VideoPollMaxMsg,
		})
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s orchestrator failed: %v", *mode, runErr)
	}

	logger.Info().Msgf("%s orchestrator stopped gracefully", *mode)
}
