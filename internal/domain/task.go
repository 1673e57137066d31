package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Task is the unit of work dispatched through the outbox and worker pipeline.
type Task struct {
	ID          string
	Title       string
	Description string
	Priority    Priority

	Status TaskStatus

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	Result string
	Error  string
}

func NewTask(title, description string, priority Priority, now time.Time) (*Task, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if title == "" || utf8.RuneCountInString(title) > 255 {
		return nil, ErrValidation("title is required and must be <= 255 chars")
	}
	if utf8.RuneCountInString(description) > 10_000 {
		return nil, ErrValidation("description must be <= 10000 chars")
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, ErrValidationMeta("invalid priority", map[string]string{"priority": string(priority)})
	}

	return &Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusNew,
		CreatedAt:   now.UTC(),
	}, nil
}

// legalTransitions is the DAG of status transitions a task may take.
var legalTransitions = map[TaskStatus]map[TaskStatus]bool{
	StatusNew:        {StatusPending: true, StatusCancelled: true},
	StatusPending:    {StatusInProgress: true, StatusCancelled: true},
	StatusInProgress: {StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge in the DAG.
func CanTransition(from, to TaskStatus) bool {
	edges, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Cancel moves a task to CANCELLED. Only legal while the task has not started executing.
func (t *Task) Cancel(now time.Time) error {
	if !CanTransition(t.Status, StatusCancelled) {
		return ErrConflict("task cannot be cancelled from status " + string(t.Status))
	}
	n := now.UTC()
	t.Status = StatusCancelled
	t.FinishedAt = &n
	return nil
}

// MarkPending moves a freshly created task from NEW to PENDING, inside the
// same transaction that enqueues its outbox dispatch row.
func (t *Task) MarkPending(now time.Time) error {
	if !CanTransition(t.Status, StatusPending) {
		return ErrConflict("task cannot move to pending from status " + string(t.Status))
	}
	t.Status = StatusPending
	return nil
}
