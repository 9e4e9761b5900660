package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/api/v1/router"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/bootstrap"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/logger"

	"github.com/joho/godotenv"
)

// @title Fashion Studio Billing API
// @version 1.0
// @description Token ledger, generation metering and subscription billing
// @host localhost:8080
// @BasePath /v1
// @Schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	cfg, err := bootstrap.LoadConfig(startCtx, logger)
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// 2. Open connections and wire services
	c, err := bootstrap.New(startCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to initialize services: %v", err)
	}
	defer c.Close()

	// 3. Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(cfg, c, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.GenerationRequestTimeoutSec+10) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 4. Start server in a goroutine
	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s\n", err)
		}
	}()

	// 5. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received, exiting...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Msgf("Server forced to shutdown: %v", err)
	}
	logger.Info().Msg("Server shut down gracefully")
}
