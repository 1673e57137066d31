package task

import (
	"context"

	"github.com/baechuer/taskdispatch/internal/domain"
)

// List returns a page of tasks, most recently created first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*domain.Task, error) {
	f.Normalize()
	return s.repo.List(ctx, f)
}
