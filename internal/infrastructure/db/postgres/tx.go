package postgres

import (
	"context"
	"fmt"

	"github.com/baechuer/taskdispatch/internal/application/task"
	"github.com/baechuer/taskdispatch/internal/domain"
	"github.com/jackc/pgx/v5"
)

type txRepo struct {
	tx pgx.Tx
}

func (r *Repo) WithTx(ctx context.Context, fn func(tr task.TxTaskRepo) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *txRepo) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.tx.Exec(ctx, insertTaskSQL, t.ID, t.Title, t.Description, string(t.Priority), string(t.Status), t.CreatedAt)
	return err
}

func (r *txRepo) UpdateStatus(ctx context.Context, t *domain.Task) error {
	_, err := r.tx.Exec(ctx, updateTaskStatusSQL, t.ID, string(t.Status), t.StartedAt, t.FinishedAt, t.Result, t.Error)
	return err
}

func (r *txRepo) InsertOutbox(ctx context.Context, msg task.OutboxMessage) error {
	_, err := r.tx.Exec(ctx, insertOutboxSQL, msg.TaskID, msg.RoutingKey, string(msg.Body), msg.CreatedAt)
	return err
}
