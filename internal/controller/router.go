package controller

import (
	"time"

	"github.com/cassiomorais/ledger/internal/infrastructure/config"
	"github.com/cassiomorais/ledger/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/ledger/internal/middleware"
	"github.com/cassiomorais/ledger/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	RedisClient     *redis.Client
	NATSConn        *nats.Conn
	AccountService  *service.AccountService
	TransferService *service.TransferService
	Metrics         *observability.Metrics
	Gatherer        prometheus.Gatherer
	Logger          zerolog.Logger
	CORSConfig      config.CORSConfig
	RateLimit       int
	RequestTimeout  time.Duration
}

func NewRouter(deps RouterDeps) *chi.Mux {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(deps.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.RedisClient, deps.NATSConn)
	accountH := NewAccountController(deps.AccountService)
	transferH := NewTransferController(deps.TransferService)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		// Accounts
		r.Post("/accounts", accountH.Create)
		r.Get("/accounts/{id}", accountH.Get)

		// Transfers
		r.Group(func(r chi.Router) {
			if deps.RateLimit > 0 {
				r.Use(customMW.RateLimit(deps.RateLimit))
			}
			r.Post("/accounts/transfer", transferH.Transfer)
		})

		// Ledger
		r.Get("/ledger/summary", accountH.Summary)
	})

	return r
}
