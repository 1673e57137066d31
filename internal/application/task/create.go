package task

import (
	"context"
	"encoding/json"

	"github.com/baechuer/taskdispatch/internal/domain"
	zlog "github.com/rs/zerolog/log"
)

type CreateCmd struct {
	Title       string
	Description string
	Priority    domain.Priority
}

// Create inserts a task, moves it to PENDING and enqueues its dispatch
// message in the same transaction, so a crash mid-way never leaves a task
// stranded in NEW with no outbox row to recover it. Once committed it
// attempts a best-effort direct publish. The outbox publisher is the path
// of record; this attempt is purely a latency optimization and its failure
// changes nothing.
func (s *Service) Create(ctx context.Context, cmd CreateCmd) (*domain.Task, error) {
	now := s.clock.Now()
	t, err := domain.NewTask(cmd.Title, cmd.Description, cmd.Priority, now)
	if err != nil {
		return nil, err
	}

	var routingKey string
	var body []byte

	err = s.repo.WithTx(ctx, func(r TxTaskRepo) error {
		if err := r.Create(ctx, t); err != nil {
			return err
		}

		if err := t.MarkPending(s.clock.Now()); err != nil {
			return err
		}
		if err := r.UpdateStatus(ctx, t); err != nil {
			return err
		}

		routingKey = s.queues.forPriority(string(t.Priority))
		body, err = json.Marshal(TaskCreatedPayload{
			TaskID:   t.ID,
			Priority: string(t.Priority),
		})
		if err != nil {
			return err
		}

		return r.InsertOutbox(ctx, OutboxMessage{
			TaskID:     t.ID,
			RoutingKey: routingKey,
			Body:       body,
			CreatedAt:  s.clock.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.pub != nil {
		if pubErr := s.pub.PublishEvent(ctx, routingKey, TaskCreatedPayload{TaskID: t.ID, Priority: string(t.Priority)}); pubErr != nil {
			zlog.Warn().Err(pubErr).Str("task_id", t.ID).Str("routing_key", routingKey).Str("trace_id", TraceIDFromContext(ctx)).
				Msg("best-effort direct publish failed, outbox will retry")
		}
	}

	return t, nil
}
