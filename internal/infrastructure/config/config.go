package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/ledger/internal/infrastructure/observability"
	"github.com/spf13/viper"
)

// Notification sinks
const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkNATS  = "nats"
)


type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Redis         RedisConfig         `mapstructure:"redis"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Notification  NotificationConfig  `mapstructure:"notification"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	Subject        string        `mapstructure:"subject"`
	ClientName     string        `mapstructure:"client_name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
}

type NotificationConfig struct {
	Sink                    string        `mapstructure:"sink"`
	Stream                  string        `mapstructure:"stream"`
	StreamMaxLen            int64         `mapstructure:"stream_max_len"`
	MaxAttempts             uint          `mapstructure:"max_attempts"`
	RetryDelay              time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay           time.Duration `mapstructure:"max_retry_delay"`
	CircuitBreakerThreshold uint32        `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
}

// WorkerConfig drives the notification stream consumer in cmd/worker.
type WorkerConfig struct {
	ConsumerGroup string        `mapstructure:"consumer_group"`
	BatchSize     int64         `mapstructure:"batch_size"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
	ClaimMinIdle  time.Duration `mapstructure:"claim_min_idle"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	TraceExporter  string `mapstructure:"trace_exporter"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// LEDGER_SERVER_PORT overrides server.port
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ledger")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit cannot be negative"))
	}

	switch c.Notification.Sink {
	case SinkLog:
	case SinkRedis:
		if c.Redis.Host == "" {
			errs = append(errs, fmt.Errorf("redis.host is required for the redis notification sink"))
		}
		if c.Redis.Port <= 0 {
			errs = append(errs, fmt.Errorf("redis.port must be positive"))
		}
		if c.Notification.Stream == "" {
			errs = append(errs, fmt.Errorf("notification.stream is required for the redis notification sink"))
		}
		if c.Notification.MaxAttempts == 0 {
			errs = append(errs, fmt.Errorf("notification.max_attempts must be positive"))
		}
	case SinkNATS:
		if c.NATS.URL == "" {
			errs = append(errs, fmt.Errorf("nats.url is required for the nats notification sink"))
		}
		if c.NATS.Subject == "" {
			errs = append(errs, fmt.Errorf("nats.subject is required for the nats notification sink"))
		}
		if c.Notification.MaxAttempts == 0 {
			errs = append(errs, fmt.Errorf("notification.max_attempts must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("notification.sink must be one of %q, %q, %q, got %q",
			SinkLog, SinkRedis, SinkNATS, c.Notification.Sink))
	}

	if c.Observability.EnableTracing {
		switch c.Observability.TraceExporter {
		case observability.ExporterJaeger:
			if c.Observability.JaegerEndpoint == "" {
				errs = append(errs, fmt.Errorf("observability.jaeger_endpoint is required for the jaeger exporter"))
			}
		case observability.ExporterOTLP:
			if c.Observability.OTLPEndpoint == "" {
				errs = append(errs, fmt.Errorf("observability.otlp_endpoint is required for the otlp exporter"))
			}
		default:
			errs = append(errs, fmt.Errorf("observability.trace_exporter must be %q or %q, got %q",
				observability.ExporterJaeger, observability.ExporterOTLP, c.Observability.TraceExporter))
		}
	}

	if c.Worker.ConsumerGroup == "" {
		errs = append(errs, fmt.Errorf("worker.consumer_group is required"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}
	if c.Worker.BlockDuration < 0 {
		errs = append(errs, fmt.Errorf("worker.block_duration cannot be negative"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.rate_limit", 600)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject", "ledger.notifications")
	v.SetDefault("nats.client_name", "ledger")
	v.SetDefault("nats.connect_timeout", "2s")
	v.SetDefault("nats.max_reconnects", 10)

	// Notification defaults
	v.SetDefault("notification.sink", SinkLog)
	v.SetDefault("notification.stream", "ledger:notifications")
	v.SetDefault("notification.stream_max_len", 100000)
	v.SetDefault("notification.max_attempts", 3)
	v.SetDefault("notification.retry_delay", "50ms")
	v.SetDefault("notification.max_retry_delay", "1s")
	v.SetDefault("notification.circuit_breaker_threshold", 5)
	v.SetDefault("notification.circuit_breaker_timeout", "30s")

	// Worker defaults
	v.SetDefault("worker.consumer_group", "notification-relay")
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.block_duration", "5s")
	v.SetDefault("worker.claim_min_idle", "1m")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.trace_exporter", observability.ExporterJaeger)
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.otlp_endpoint", "localhost:4317")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	v.SetDefault("instance_id", "ledger-1")
}

// Brokered reports whether notifications leave the process through a
// broker a worker can consume.
func (n NotificationConfig) Brokered() bool {
	return n.Sink == SinkRedis || n.Sink == SinkNATS
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
