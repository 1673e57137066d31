package task

import (
	"context"
	"time"

	"github.com/baechuer/taskdispatch/internal/domain"
)

type Clock interface{ Now() time.Time }

// ListFilter narrows a List call to a status/priority/pagination window.
type ListFilter struct {
	Limit    int
	Offset   int
	Status   domain.TaskStatus
	Priority domain.Priority
}

func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// TaskRepo is the task store's read/write surface used outside a transaction.
type TaskRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, f ListFilter) ([]*domain.Task, error)
	WithTx(ctx context.Context, fn func(tr TxTaskRepo) error) error

	// CancelIfCancellable performs `UPDATE tasks SET status='CANCELLED', finished_at=$now
	// WHERE id=$id AND status IN ('NEW','PENDING')` and reports whether it matched a row.
	CancelIfCancellable(ctx context.Context, id string, now time.Time) (bool, error)
}

// TxTaskRepo is the task store's surface used inside a single transaction,
// pairing the initial insert and the NEW->PENDING transition with its
// outbox dispatch row so a crash between them can never strand a task.
type TxTaskRepo interface {
	Create(ctx context.Context, t *domain.Task) error
	UpdateStatus(ctx context.Context, t *domain.Task) error
	InsertOutbox(ctx context.Context, msg OutboxMessage) error
}

// OutboxMessage is the row a service writes alongside a task mutation.
type OutboxMessage struct {
	TaskID     string
	RoutingKey string
	Body       []byte
	CreatedAt  time.Time
}

// Publisher is a best-effort, low-latency publish path attempted right
// after commit. Its failure is logged, never fatal: the outbox guarantees
// eventual delivery regardless of whether this call succeeds.
type Publisher interface {
	PublishEvent(ctx context.Context, routingKey string, payload any) error
}

// Cache is an optional read-through cache for task lookups.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
