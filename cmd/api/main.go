package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	go_redis "github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/taskdispatch/internal/application/task"
	"github.com/baechuer/taskdispatch/internal/config"
	"github.com/baechuer/taskdispatch/internal/infrastructure/caching/redis"
	"github.com/baechuer/taskdispatch/internal/infrastructure/db/postgres"
	rabbitpub "github.com/baechuer/taskdispatch/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/taskdispatch/internal/logger"
	"github.com/baechuer/taskdispatch/internal/transport/http/handlers"
	"github.com/baechuer/taskdispatch/internal/transport/http/router"
)

type sysClock struct{}

func (sysClock) Now() time.Time { return time.Now().UTC() }

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

	queueNames := []string{cfg.TasksQueueHigh, cfg.TasksQueueMedium, cfg.TasksQueueLow}

	var pub task.Publisher
	var rabbit *rabbitpub.Publisher
	if cfg.RabbitMQEnabled {
		var p *rabbitpub.Publisher
		for i := 0; i < 15; i++ {
			p, err = rabbitpub.NewPublisher(cfg.RabbitMQURL, queueNames, cfg.RetryDelaysSecond)
			if err == nil {
				break
			}
			zlog.Warn().Err(err).Msg("rabbitmq publisher init failed, retrying in 2s...")
			time.Sleep(2 * time.Second)
		}
		if err != nil {
			zlog.Fatal().Err(err).Msg("rabbitmq publisher init failed after retries")
		}
		rabbit = p
		pub = p
	}

	var rc *redis.Client
	var cache task.Cache
	var rawRedis *go_redis.Client
	if cfg.RedisURL != "" {
		c, err := redis.New(cfg.RedisURL)
		if err != nil {
			zlog.Warn().Err(err).Msg("redis connect failed, continuing without cache")
		} else {
			rc = c
			cache = c
			rawRedis = c.GetRawClient()
			zlog.Info().Msg("redis cache ready")
		}
	}

	queues := task.Queues{High: cfg.TasksQueueHigh, Medium: cfg.TasksQueueMedium, Low: cfg.TasksQueueLow}
	svc := task.New(repo, sysClock{}, cache, pub, queues, 30*time.Second)

	h := handlers.NewTasksHandler(svc, sysClock{})
	z := handlers.NewHealthHandler()

	httpHandler := router.New(h, z, pool, rawRedis)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpHandler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		<-ctx.Done()
		zlog.Info().Msg("shutting down api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	defer func() {
		if rabbit != nil {
			_ = rabbit.Close()
		}
		if rc != nil {
			_ = rc.Close()
		}
	}()

	zlog.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal().Err(err).Msg("server crashed")
	}
}
