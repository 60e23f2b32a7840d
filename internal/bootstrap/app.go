package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/ledger/internal/infrastructure/config"
	infraNATS "github.com/cassiomorais/ledger/internal/infrastructure/nats"
	"github.com/cassiomorais/ledger/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/ledger/internal/infrastructure/redis"
	"github.com/cassiomorais/ledger/internal/notification"
	"github.com/cassiomorais/ledger/internal/repository/memory"
	"github.com/cassiomorais/ledger/internal/service"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Redis    *redis.Client // nil unless notifications go through Redis
	NATS     *nats.Conn    // nil unless notifications go through NATS
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	Notifier        notification.Notifier
	AccountService  *service.AccountService
	TransferService *service.TransferService

	tracer *sdktrace.TracerProvider
}

// Options replace pieces New would otherwise build. The zero value loads
// config from the environment and uses a fresh registry.
type Options struct {
	Config   *config.Config
	Registry *prometheus.Registry
}

func New(ctx context.Context, serviceName string, metricsNamespace string, o Options) (*App, error) {
	cfg := o.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout).
		With().Str("service", serviceName).Str("instance_id", cfg.InstanceID).Logger()
	logger.Info().Msg("Starting")

	app := &App{Config: cfg, Logger: logger}

	if obs := cfg.Observability; obs.EnableTracing {
		endpoint := obs.JaegerEndpoint
		if obs.TraceExporter == observability.ExporterOTLP {
			endpoint = obs.OTLPEndpoint
		}
		tp, err := observability.InitTracer(ctx, serviceName, obs.TraceExporter, endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			logger.Info().Str("exporter", obs.TraceExporter).Str("endpoint", endpoint).Msg("Tracing enabled")
		}
	}

	app.Registry = o.Registry
	if app.Registry == nil {
		app.Registry = prometheus.NewRegistry()
		if cfg.Observability.EnableMetrics {
			app.Registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
	}
	app.Metrics = observability.NewMetrics(metricsNamespace, app.Registry)
	logger.Info().Msg("Metrics initialized")

	if err := app.initNotifier(ctx); err != nil {
		app.Close()
		return nil, err
	}

	store := memory.NewAccountRepository()
	app.AccountService = service.NewAccountService(store, logger, app.Metrics)
	app.TransferService = service.NewTransferService(store, app.Notifier, logger, app.Metrics)

	return app, nil
}

func (a *App) initNotifier(ctx context.Context) error {
	ncfg := a.Config.Notification

	var (
		publisher notification.Publisher
		target    string
	)
	switch ncfg.Sink {
	case config.SinkRedis:
		if err := a.ConnectRedis(ctx); err != nil {
			return err
		}
		producer := infraRedis.NewStreamProducer(a.Redis, ncfg.Stream, ncfg.StreamMaxLen)
		publisher, target = producer, producer.Stream()
	case config.SinkNATS:
		conn, err := infraNATS.Connect(&a.Config.NATS, a.Logger)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		a.NATS = conn
		a.Logger.Info().Str("url", conn.ConnectedUrl()).Msg("Connected to NATS")
		pub := infraNATS.NewPublisher(conn, a.Config.NATS.Subject)
		publisher, target = pub, pub.Subject()
	default:
		a.Notifier = notification.NewLogNotifier(a.Logger)
		a.Logger.Info().Msg("Notifications go to the log")
		return nil
	}

	a.Notifier = notification.NewStreamNotifier(publisher, notification.StreamConfig{
		Name:             "notification_" + ncfg.Sink,
		MaxAttempts:      ncfg.MaxAttempts,
		RetryDelay:       ncfg.RetryDelay,
		MaxRetryDelay:    ncfg.MaxRetryDelay,
		BreakerThreshold: ncfg.CircuitBreakerThreshold,
		BreakerTimeout:   ncfg.CircuitBreakerTimeout,
	}, a.Logger, a.Metrics)
	a.Logger.Info().Str("sink", ncfg.Sink).Str("target", target).Msg("Notifications published")
	return nil
}

// ConnectRedis opens the Redis client if it is not open yet.
func (a *App) ConnectRedis(ctx context.Context) error {
	if a.Redis != nil {
		return nil
	}
	client, err := infraRedis.NewClient(ctx, &a.Config.Redis)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.Redis = client
	a.Logger.Info().Str("addr", a.Config.Redis.RedisAddr()).Msg("Connected to Redis")
	return nil
}

func (a *App) Close() {
	infraNATS.Close(a.NATS)
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.tracer != nil {
		if err := observability.Shutdown(context.Background(), a.tracer); err != nil {
			a.Logger.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}
}
