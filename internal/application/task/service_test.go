package task

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/baechuer/taskdispatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

type memRepo struct {
	byID    map[string]*domain.Task
	outbox  []OutboxMessage
	failTx  bool
}

func newMemRepo() *memRepo { return &memRepo{byID: map[string]*domain.Task{}} }

func (m *memRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound("task not found")
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) List(ctx context.Context, f ListFilter) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range m.byID {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) WithTx(ctx context.Context, fn func(tr TxTaskRepo) error) error {
	if m.failTx {
		return assertErr
	}
	return fn(&memTx{m})
}

func (m *memRepo) CancelIfCancellable(ctx context.Context, id string, now time.Time) (bool, error) {
	t, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	if t.Status != domain.StatusNew && t.Status != domain.StatusPending {
		return false, nil
	}
	t.Status = domain.StatusCancelled
	t.FinishedAt = &now
	return true, nil
}

var assertErr = domain.ErrConflict("forced tx failure")

type memTx struct{ m *memRepo }

func (tx *memTx) Create(ctx context.Context, t *domain.Task) error {
	tx.m.byID[t.ID] = t
	return nil
}

func (tx *memTx) UpdateStatus(ctx context.Context, t *domain.Task) error {
	tx.m.byID[t.ID] = t
	return nil
}

func (tx *memTx) InsertOutbox(ctx context.Context, msg OutboxMessage) error {
	tx.m.outbox = append(tx.m.outbox, msg)
	return nil
}

type mockCache struct{ store map[string]any }

func newMockCache() *mockCache { return &mockCache{store: map[string]any{}} }

func (c *mockCache) Get(ctx context.Context, key string, dest any) (bool, error) { return false, nil }
func (c *mockCache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	c.store[key] = val
	return nil
}
func (c *mockCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.store, k)
	}
	return nil
}

type recordingPublisher struct{ calls []string }

func (p *recordingPublisher) PublishEvent(ctx context.Context, routingKey string, payload any) error {
	p.calls = append(p.calls, routingKey)
	return nil
}

func testQueues() Queues { return Queues{High: "tasks.high", Medium: "tasks.medium", Low: "tasks.low"} }

func TestService_Create(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	pub := &recordingPublisher{}
	svc := New(repo, fakeClock{t: now}, newMockCache(), pub, testQueues(), 0)

	task, err := svc.Create(context.Background(), CreateCmd{Title: "resize", Priority: domain.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, task.Status)
	require.Len(t, repo.outbox, 1)
	assert.Equal(t, "tasks.high", repo.outbox[0].RoutingKey)
	assert.Equal(t, []string{"tasks.high"}, pub.calls)
}

func TestService_Cancel(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	svc := New(repo, fakeClock{t: now}, newMockCache(), nil, testQueues(), 0)

	t.Run("cancels_pending_task", func(t *testing.T) {
		repo.byID["t1"] = &domain.Task{ID: "t1", Status: domain.StatusPending}
		task, err := svc.Cancel(context.Background(), "t1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, task.Status)
	})

	t.Run("conflict_once_in_progress", func(t *testing.T) {
		repo.byID["t2"] = &domain.Task{ID: "t2", Status: domain.StatusInProgress}
		_, err := svc.Cancel(context.Background(), "t2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "conflict")
	})
}

func TestService_List_FiltersByStatusAndPriority(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	svc := New(repo, fakeClock{t: now}, newMockCache(), nil, testQueues(), 0)

	repo.byID["a"] = &domain.Task{ID: "a", Status: domain.StatusPending, Priority: domain.PriorityHigh, CreatedAt: now}
	repo.byID["b"] = &domain.Task{ID: "b", Status: domain.StatusCompleted, Priority: domain.PriorityLow, CreatedAt: now}

	out, err := svc.List(context.Background(), ListFilter{Status: domain.StatusPending})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}
