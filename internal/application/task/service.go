package task

import "time"

// Queues names the three priority-routed primary queues a task's outbox
// message can land on.
type Queues struct {
	High   string
	Medium string
	Low    string
}

func (q Queues) forPriority(priority string) string {
	switch priority {
	case "HIGH":
		return q.High
	case "LOW":
		return q.Low
	default:
		return q.Medium
	}
}

// Service wires the task store, the optional cache, and the best-effort
// direct publisher behind the use cases in this package.
type Service struct {
	repo   TaskRepo
	cache  Cache
	pub    Publisher
	clock  Clock
	queues Queues

	ttlDetails time.Duration
}

func New(repo TaskRepo, clock Clock, cache Cache, pub Publisher, queues Queues, ttlDetails time.Duration) *Service {
	if ttlDetails == 0 {
		ttlDetails = 30 * time.Second
	}
	return &Service{
		repo:       repo,
		cache:      cache,
		pub:        pub,
		clock:      clock,
		queues:     queues,
		ttlDetails: ttlDetails,
	}
}
