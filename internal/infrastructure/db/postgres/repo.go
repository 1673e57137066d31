package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baechuer/taskdispatch/internal/application/task"
	"github.com/baechuer/taskdispatch/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var priority, status string
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &priority, &status,
		&t.CreatedAt, &t.StartedAt, &t.FinishedAt, &t.Result, &t.Error,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound("task not found")
	}
	if err != nil {
		return nil, err
	}
	t.Priority = domain.Priority(priority)
	t.Status = domain.TaskStatus(status)
	if !t.Status.Valid() {
		return nil, domain.ErrValidation("invalid status in db")
	}
	return &t, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, getTaskSQL, id))
}

func (r *Repo) List(ctx context.Context, f task.ListFilter) ([]*domain.Task, error) {
	where := []string{"1=1"}
	args := []any{}
	argN := 1

	add := func(cond string, val any) {
		where = append(where, fmt.Sprintf(cond, argN))
		args = append(args, val)
		argN++
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Priority != "" {
		add("priority = $%d", string(f.Priority))
	}

	query := `
SELECT id, title, description, priority, status,
       created_at, started_at, finished_at, result, error
FROM tasks
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY created_at DESC
LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CancelIfCancellable implements the exactly-once conditional transition:
// it matches a row only while the task has not yet been claimed by a worker.
func (r *Repo) CancelIfCancellable(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, cancelIfCancellableSQL, id, now.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Claim performs `PENDING -> IN_PROGRESS` for the worker loop. A RowsAffected
// of 0 means another worker (or a concurrent cancel) already moved the task.
func (r *Repo) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, claimTaskSQL, id, now.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Complete performs `IN_PROGRESS -> COMPLETED`. A RowsAffected of 0 means the
// task was no longer IN_PROGRESS (already completed, failed or cancelled).
func (r *Repo) Complete(ctx context.Context, id, result string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, completeTaskSQL, id, result, now.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Fail performs `IN_PROGRESS -> FAILED`. A RowsAffected of 0 means the task
// was no longer IN_PROGRESS (already completed, failed or cancelled).
func (r *Repo) Fail(ctx context.Context, id, errMsg string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, failTaskSQL, id, errMsg, now.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
