package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/baechuer/taskdispatch/internal/application/task"
	"github.com/baechuer/taskdispatch/internal/domain"
)

type mockClock struct{ t time.Time }

func (m mockClock) Now() time.Time { return m.t }

type mockTxRepo struct{ repo *mockRepo }

func (tx *mockTxRepo) Create(ctx context.Context, t *domain.Task) error {
	tx.repo.byID[t.ID] = t
	return nil
}

func (tx *mockTxRepo) UpdateStatus(ctx context.Context, t *domain.Task) error {
	tx.repo.byID[t.ID] = t
	return nil
}
func (tx *mockTxRepo) InsertOutbox(ctx context.Context, msg task.OutboxMessage) error { return nil }

type mockRepo struct {
	byID map[string]*domain.Task
}

func newMockRepo() *mockRepo { return &mockRepo{byID: map[string]*domain.Task{}} }

func (m *mockRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound("task not found")
	}
	return t, nil
}

func (m *mockRepo) List(ctx context.Context, f task.ListFilter) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range m.byID {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(tr task.TxTaskRepo) error) error {
	return fn(&mockTxRepo{repo: m})
}

func (m *mockRepo) CancelIfCancellable(ctx context.Context, id string, now time.Time) (bool, error) {
	t, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	if !domain.CanTransition(t.Status, domain.StatusCancelled) {
		return false, nil
	}
	t.Status = domain.StatusCancelled
	return true, nil
}

func newTestHandler(now time.Time, repo *mockRepo) *TasksHandler {
	svc := task.New(repo, mockClock{t: now}, nil, nil, task.Queues{High: "tasks.high", Medium: "tasks.medium", Low: "tasks.low"}, 0)
	return NewTasksHandler(svc, mockClock{t: now})
}

func withTaskID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("task_id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestTasksHandler_Get(t *testing.T) {
	now := time.Now().UTC()

	t.Run("return_422_on_invalid_uuid", func(t *testing.T) {
		h := newTestHandler(now, newMockRepo())
		req := httptest.NewRequest("GET", "/tasks/invalid-uuid", nil)
		req = withTaskID(req, "invalid-uuid")

		rr := httptest.NewRecorder()
		h.Get(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "validation_error")
	})

	t.Run("return_404_when_missing", func(t *testing.T) {
		h := newTestHandler(now, newMockRepo())
		id := "550e8400-e29b-41d4-a716-446655440000"
		req := httptest.NewRequest("GET", "/tasks/"+id, nil)
		req = withTaskID(req, id)

		rr := httptest.NewRecorder()
		h.Get(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestTasksHandler_Create(t *testing.T) {
	now := time.Now().UTC()
	h := newTestHandler(now, newMockRepo())

	body := `{"title":"render thumbnail","description":"resize","priority":"HIGH"}`
	req := httptest.NewRequest("POST", "/tasks", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"PENDING"`)
}

func TestTasksHandler_List_RejectsUnknownStatus(t *testing.T) {
	h := newTestHandler(time.Now().UTC(), newMockRepo())

	req := httptest.NewRequest("GET", "/tasks?status=NOT_A_STATUS", nil)
	rr := httptest.NewRecorder()

	h.List(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestTasksHandler_List_RejectsOutOfRangeLimitAndOffset(t *testing.T) {
	cases := []struct {
		name  string
		query string
	}{
		{"limit_zero", "limit=0"},
		{"limit_above_max", "limit=101"},
		{"limit_not_an_integer", "limit=abc"},
		{"negative_offset", "offset=-1"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(time.Now().UTC(), newMockRepo())
			req := httptest.NewRequest("GET", "/tasks?"+tt.query, nil)
			rr := httptest.NewRecorder()

			h.List(rr, req)

			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		})
	}
}

func TestTasksHandler_List_AcceptsBoundaryLimits(t *testing.T) {
	h := newTestHandler(time.Now().UTC(), newMockRepo())

	req := httptest.NewRequest("GET", "/tasks?limit=100&offset=0", nil)
	rr := httptest.NewRecorder()

	h.List(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTasksHandler_Cancel(t *testing.T) {
	now := time.Now().UTC()

	t.Run("cancels_pending_task", func(t *testing.T) {
		repo := newMockRepo()
		tk, err := domain.NewTask("t", "d", domain.PriorityLow, now)
		assert.NoError(t, err)
		tk.Status = domain.StatusPending
		repo.byID[tk.ID] = tk

		h := newTestHandler(now, repo)
		req := httptest.NewRequest("DELETE", "/tasks/"+tk.ID, nil)
		req = withTaskID(req, tk.ID)

		rr := httptest.NewRecorder()
		h.Cancel(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"status":"CANCELLED"`)
	})

	t.Run("conflict_once_in_progress", func(t *testing.T) {
		repo := newMockRepo()
		tk, err := domain.NewTask("t", "d", domain.PriorityLow, now)
		assert.NoError(t, err)
		tk.Status = domain.StatusInProgress
		repo.byID[tk.ID] = tk

		h := newTestHandler(now, repo)
		req := httptest.NewRequest("DELETE", "/tasks/"+tk.ID, nil)
		req = withTaskID(req, tk.ID)

		rr := httptest.NewRecorder()
		h.Cancel(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}
