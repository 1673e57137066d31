package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/taskdispatch/internal/config"
	"github.com/baechuer/taskdispatch/internal/infrastructure/db/postgres"
	rabbitmq "github.com/baechuer/taskdispatch/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/taskdispatch/internal/logger"
)

// cmd/outbox is a standalone process running only the claim -> publish ->
// settle loop, so it can be scaled independently of the HTTP surface and
// the broker consumer.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("db pool init failed")
	}
	defer pool.Close()

	{
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			zlog.Fatal().Err(err).Msg("db ping failed")
		}
	}

	repo := postgres.New(pool)

	queues := []string{cfg.TasksQueueHigh, cfg.TasksQueueMedium, cfg.TasksQueueLow}

	var pub *rabbitmq.Publisher
	for i := 0; i < 15; i++ {
		pub, err = rabbitmq.NewPublisher(cfg.RabbitMQURL, queues, cfg.RetryDelaysSecond)
		if err == nil {
			break
		}
		zlog.Warn().Err(err).Msg("rabbitmq publisher init failed, retrying in 2s...")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		zlog.Fatal().Err(err).Msg("rabbitmq publisher init failed after retries")
	}
	defer func() { _ = pub.Close() }()

	zlog.Info().
		Dur("poll_interval", cfg.OutboxPollInterval).
		Int("batch_size", cfg.OutboxBatchSize).
		Int("max_attempts", cfg.OutboxMaxAttempts).
		Msg("outbox worker starting")

	repo.StartOutboxWorker(ctx, pub, cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.OutboxMaxAttempts)

	<-ctx.Done()
	zlog.Info().Msg("outbox worker stopped")
}
