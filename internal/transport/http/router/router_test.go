package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/baechuer/taskdispatch/internal/application/task"
	"github.com/baechuer/taskdispatch/internal/domain"
	"github.com/baechuer/taskdispatch/internal/transport/http/handlers"
)

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

type stubRepo struct{ byID map[string]*domain.Task }

func (s *stubRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound("task not found")
	}
	return t, nil
}
func (s *stubRepo) List(ctx context.Context, f task.ListFilter) ([]*domain.Task, error) {
	return nil, nil
}
func (s *stubRepo) WithTx(ctx context.Context, fn func(tr task.TxTaskRepo) error) error {
	return fn(&stubTxRepo{repo: s})
}
func (s *stubRepo) CancelIfCancellable(ctx context.Context, id string, now time.Time) (bool, error) {
	return false, nil
}

type stubTxRepo struct{ repo *stubRepo }

func (s *stubTxRepo) Create(ctx context.Context, t *domain.Task) error {
	s.repo.byID[t.ID] = t
	return nil
}

func (s *stubTxRepo) UpdateStatus(ctx context.Context, t *domain.Task) error {
	s.repo.byID[t.ID] = t
	return nil
}
func (s *stubTxRepo) InsertOutbox(ctx context.Context, msg task.OutboxMessage) error { return nil }

func TestRouter_Routing(t *testing.T) {
	clock := stubClock{t: time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)}
	repo := &stubRepo{byID: map[string]*domain.Task{}}
	svc := task.New(repo, clock, nil, nil, task.Queues{High: "tasks.high", Medium: "tasks.medium", Low: "tasks.low"}, 0)

	h := handlers.NewTasksHandler(svc, clock)
	z := handlers.NewHealthHandler()

	r := New(h, z, nil, nil)

	t.Run("list_tasks_returns_200", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/tasks", nil)
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("get_task_with_invalid_id_returns_422", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/tasks/not-a-uuid", nil)
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("healthz_returns_200", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("readyz_without_db_returns_503", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/readyz", nil)
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}
