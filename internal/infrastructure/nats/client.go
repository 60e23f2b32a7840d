package nats

import (
	"fmt"
	"time"

	"github.com/cassiomorais/ledger/internal/infrastructure/config"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Connect dials NATS with reconnect handling that reports through logger.
func Connect(cfg *config.NATSConfig, logger zerolog.Logger) (*nats.Conn, error) {
	logger = logger.With().Str("component", "nats").Logger()

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = nats.DefaultTimeout
	}

	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.Timeout(timeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// Close drains pending publishes before closing.
func Close(conn *nats.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
	}
}
