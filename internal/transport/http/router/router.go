package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/taskdispatch/internal/transport/http/handlers"
	authmw "github.com/baechuer/taskdispatch/internal/transport/http/middleware"
)

func New(
	h *handlers.TasksHandler,
	z *handlers.HealthHandler,
	pool *pgxpool.Pool,
	rdb *redis.Client,
) http.Handler {
	r := chi.NewRouter()

	r.Use(authmw.RequestID)
	r.Use(authmw.Metrics)
	r.Use(authmw.SecurityHeaders)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(authmw.AccessLog)

	r.Get("/healthz", z.Healthz)
	r.Get("/readyz", readyzHandler(pool, rdb))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tasks", h.Create)
		r.Get("/tasks", h.List)
		r.Get("/tasks/{task_id}", h.Get)
		r.Get("/tasks/{task_id}/status", h.GetStatus)
		r.Delete("/tasks/{task_id}", h.Cancel)
	})

	return r
}

// readyzHandler checks database (and, if configured, cache) connectivity.
func readyzHandler(pool *pgxpool.Pool, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allHealthy := true

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				checks["database"] = "unhealthy: " + err.Error()
				allHealthy = false
			} else {
				checks["database"] = "healthy"
			}
		} else {
			checks["database"] = "not_configured"
			allHealthy = false
		}

		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unhealthy: " + err.Error()
				allHealthy = false
			} else {
				checks["redis"] = "healthy"
			}
		} else {
			checks["redis"] = "not_configured"
		}

		checks["status"] = "ready"
		if !allHealthy {
			checks["status"] = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(checks)
	}
}
