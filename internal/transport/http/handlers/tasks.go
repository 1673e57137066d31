package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/taskdispatch/internal/application/task"
	"github.com/baechuer/taskdispatch/internal/domain"
	appCtx "github.com/baechuer/taskdispatch/internal/pkg/context"
	"github.com/baechuer/taskdispatch/internal/transport/http/dto"
	authmw "github.com/baechuer/taskdispatch/internal/transport/http/middleware"
	"github.com/baechuer/taskdispatch/internal/transport/http/response"
	"github.com/baechuer/taskdispatch/internal/transport/http/validate"
)

// requestCtx carries the inbound request id (set by middleware.RequestID)
// into the application layer for log correlation; it never appears on the
// wire.
func requestCtx(r *http.Request) context.Context {
	return task.WithRequestID(r.Context(), appCtx.GetRequestID(r.Context()))
}

const (
	minLimit = 1
	maxLimit = 100
)

type Clock interface{ Now() time.Time }

type TasksHandler struct {
	svc   *task.Service
	clock Clock
}

func NewTasksHandler(svc *task.Service, clock Clock) *TasksHandler {
	return &TasksHandler{svc: svc, clock: clock}
}

// Create handles POST /tasks.
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskReq
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.Err(w, r, domain.ErrValidationMeta("invalid json body", map[string]string{
			"body": "malformed JSON or invalid fields",
		}))
		return
	}

	cmd := task.CreateCmd{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.Priority(strings.ToUpper(strings.TrimSpace(req.Priority))),
	}

	t, err := h.svc.Create(requestCtx(r), cmd)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	authmw.TasksCreatedTotal.WithLabelValues(string(t.Priority)).Inc()
	response.Data(w, http.StatusCreated, dto.ToTaskResp(t))
}

// Get handles GET /tasks/{task_id}.
func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	if !validate.IsUUID(id) {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"task_id": "must be uuid",
		}))
		return
	}

	t, err := h.svc.Get(requestCtx(r), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, dto.ToTaskResp(t))
}

// GetStatus handles GET /tasks/{task_id}/status, a lightweight polling endpoint.
func (h *TasksHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	if !validate.IsUUID(id) {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"task_id": "must be uuid",
		}))
		return
	}

	t, err := h.svc.Get(requestCtx(r), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, dto.ToTaskStatusResp(t))
}

// List handles GET /tasks with limit/offset/status/priority filters.
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 20
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < minLimit || v > maxLimit {
			response.Err(w, r, domain.ErrValidationMeta("invalid query param", map[string]string{
				"limit": "must be an integer between 1 and 100",
			}))
			return
		}
		limit = v
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			response.Err(w, r, domain.ErrValidationMeta("invalid query param", map[string]string{
				"offset": "must be a non-negative integer",
			}))
			return
		}
		offset = v
	}

	filter := task.ListFilter{
		Limit:    limit,
		Offset:   offset,
		Status:   domain.TaskStatus(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		Priority: domain.Priority(strings.ToUpper(strings.TrimSpace(q.Get("priority")))),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		response.Err(w, r, domain.ErrValidationMeta("invalid query param", map[string]string{
			"status": "unrecognized task status",
		}))
		return
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		response.Err(w, r, domain.ErrValidationMeta("invalid query param", map[string]string{
			"priority": "unrecognized task priority",
		}))
		return
	}

	tasks, err := h.svc.List(requestCtx(r), filter)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, dto.ToTaskListResp(tasks, filter.Limit, filter.Offset))
}

// Cancel handles DELETE /tasks/{task_id}.
func (h *TasksHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	if !validate.IsUUID(id) {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"task_id": "must be uuid",
		}))
		return
	}

	t, err := h.svc.Cancel(requestCtx(r), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, dto.ToTaskResp(t))
}
