package domain

import "time"

// OutboxEvent is a durable, at-least-once record of a message that must
// eventually reach the broker. Rows are written in the same transaction
// as the task state change they describe.
type OutboxEvent struct {
	ID         int64
	TaskID     string
	RoutingKey string
	Payload    []byte

	Status        OutboxStatus
	Attempts      int
	NextAttemptAt time.Time
	LastError     string

	CreatedAt time.Time
	SentAt    *time.Time
}
