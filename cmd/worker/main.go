package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/ledger/internal/bootstrap"
	"github.com/cassiomorais/ledger/internal/infrastructure/config"
	infraNATS "github.com/cassiomorais/ledger/internal/infrastructure/nats"
	infraRedis "github.com/cassiomorais/ledger/internal/infrastructure/redis"
	"github.com/cassiomorais/ledger/internal/notification"
	"golang.org/x/sync/errgroup"
)

// The worker consumes the notifications the API publishes and hands each one
// to the delivery channel. notification.sink picks Redis Streams or NATS.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "ledger-worker", "ledger_worker", bootstrap.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if !app.Config.Notification.Brokered() {
		app.Logger.Warn().
			Str("sink", app.Config.Notification.Sink).
			Msg("Notification sink has nothing to consume, worker exiting")
		return
	}

	deliver := notification.LogDelivery(app.Logger)

	g, gCtx := errgroup.WithContext(ctx)
	switch app.Config.Notification.Sink {
	case config.SinkNATS:
		sub, err := infraNATS.Subscribe(gCtx, app.NATS, app.Config.NATS.Subject, app.Config.Worker.ConsumerGroup,
			infraNATS.HandlerFunc(deliver), app.Logger)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Failed to subscribe")
			app.Close()
			os.Exit(1)
		}
		app.Logger.Info().
			Str("subject", sub.Subject).
			Str("queue", sub.Queue).
			Msg("Worker started, listening for notifications...")
		g.Go(func() error {
			<-gCtx.Done()
			return sub.Unsubscribe()
		})
	case config.SinkRedis:
		relay, err := redisRelay(ctx, app, deliver)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Failed to start stream relay")
			app.Close()
			os.Exit(1)
		}
		g.Go(func() error {
			return relay.Run(gCtx)
		})
	}

	if err := g.Wait(); err != nil {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func redisRelay(ctx context.Context, app *bootstrap.App, deliver notification.DeliverFunc) (*notification.Relay, error) {
	if err := app.ConnectRedis(ctx); err != nil {
		return nil, err
	}

	workerCfg := app.Config.Worker
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		app.Config.Notification.Stream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	app.Logger.Info().
		Str("stream", consumer.Stream()).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for notifications...")

	return notification.NewRelay(
		consumer,
		deliver,
		notification.RelayConfig{ClaimMinIdle: workerCfg.ClaimMinIdle},
		app.Logger,
		app.Metrics,
	), nil
}
