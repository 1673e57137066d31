package task

import (
	"context"

	"github.com/baechuer/taskdispatch/internal/domain"
	zlog "github.com/rs/zerolog/log"
)

// Cancel attempts `NEW|PENDING -> CANCELLED` via a single conditional UPDATE.
// If zero rows matched — because the worker already claimed the task, or it
// was already terminal — the row is re-read to tell a stale 404 apart from a
// genuine 409: the decision this spec's cancel-path race resolves to is to
// never report success on a transition that did not happen.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Task, error) {
	ok, err := s.repo.CancelIfCancellable(ctx, id, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if !ok {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, domain.ErrConflict("task cannot be cancelled from status " + string(current.Status))
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKeyTask(id)); err != nil {
			zlog.Warn().Err(err).Str("task_id", id).Msg("cache invalidate failed")
		}
	}

	return s.repo.GetByID(ctx, id)
}
