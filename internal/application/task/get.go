package task

import (
	"context"

	"github.com/baechuer/taskdispatch/internal/domain"
	zlog "github.com/rs/zerolog/log"
)

func cacheKeyTask(id string) string { return "task:v1:" + id }

// Get reads a task, trying the cache first when one is configured.
func (s *Service) Get(ctx context.Context, id string) (*domain.Task, error) {
	key := cacheKeyTask(id)

	if s.cache != nil {
		var cached domain.Task
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			zlog.Warn().Err(err).Str("key", key).Msg("cache get failed")
		} else if found {
			return &cached, nil
		}
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, t, s.ttlDetails); err != nil {
			zlog.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}

	return t, nil
}
