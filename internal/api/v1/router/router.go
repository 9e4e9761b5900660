package router

import (
	"net/http"
	"strings"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/docs"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/api/v1/handler"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/bootstrap"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/config"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/swaggo/swag"
)

// New builds the HTTP handler tree over an already wired container.
func New(cfg *config.Config, c *bootstrap.Container, logger zerolog.Logger) http.Handler {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initialized")

	validate := validator.New(validator.WithRequiredStructEnabled())

	webhookHandler := handler.NewWebhookHandler(c.Stripe, c.Reconciler, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(c.Stripe, c.Subscriptions, validate, logger)
	ledgerHandler := handler.NewLedgerHandler(c.Ledger, validate, logger)
	generationHandler := handler.NewGenerationHandler(c.Generation, c.Captions, c.Content, validate, logger)
	healthHandler := handler.NewHealthHandler(c.Pool, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	checkoutLimiter := middleware.RateLimit(middleware.NewRateLimiter(cfg.CheckoutRatePerMinute), middleware.RealIP)

	// Create a subrouter for API v1
	apiV1Mux := http.NewServeMux()
	webhookHandler.RegisterRoutes(apiV1Mux)
	subscriptionHandler.RegisterRoutes(apiV1Mux, authMiddleware, checkoutLimiter)
	ledgerHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	generationHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	healthHandler.RegisterRoutes(apiV1Mux)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// Swagger document registered by the docs package
	mux.HandleFunc("GET /swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
		if err != nil {
			http.Error(w, "swagger doc unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	})

	// Redirect /api/* to /v1/* for backward compatibility
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusMovedPermanently)
	})

	// Redirect all other root-level requests to /v1/{path}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || strings.HasPrefix(r.URL.Path, "/swagger/") || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/v1"+r.URL.Path, http.StatusMovedPermanently)
	})

	corsMw := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(corsMw.Handler(mux))
}

// allowedOrigins opens CORS fully in development and otherwise trusts only
// the origin of the billing return URL.
func allowedOrigins(cfg *config.Config) []string {
	if cfg.Environment == "development" {
		return []string{"*"}
	}
	u := cfg.StripePortalReturnURL
	if i := strings.Index(u, "://"); i >= 0 {
		if j := strings.Index(u[i+3:], "/"); j >= 0 {
			u = u[:i+3+j]
		}
	}
	return []string{u}
}
