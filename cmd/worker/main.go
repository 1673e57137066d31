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
	"github.com/baechuer/taskdispatch/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/taskdispatch/internal/logger"
)

type sysClock struct{}

func (sysClock) Now() time.Time { return time.Now().UTC() }

// cmd/worker is the standalone broker consumer: it claims a task off one of
// the three priority queues, executes it, and settles it, retrying or
// dead-lettering the message per the priority-routed retry protocol.
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

	var w *rabbitmq.Worker
	for i := 0; i < 15; i++ {
		w, err = rabbitmq.NewWorker(cfg.RabbitMQURL, cfg.WorkerQueues, cfg.WorkerPrefetch, repo, sysClock{}, cfg.MaxRetries, cfg.RetryDelaysSecond)
		if err == nil {
			break
		}
		zlog.Warn().Err(err).Msg("rabbitmq worker init failed, retrying in 2s...")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		zlog.Fatal().Err(err).Msg("rabbitmq worker init failed after retries")
	}
	defer func() { _ = w.Close() }()

	if err := w.Start(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("failed to start consuming")
	}

	zlog.Info().Strs("queues", cfg.WorkerQueues).Int("prefetch", cfg.WorkerPrefetch).Msg("worker consuming")

	<-ctx.Done()
	zlog.Info().Msg("worker shutting down")
}
