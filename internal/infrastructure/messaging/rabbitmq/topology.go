package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DLQName = "tasks.dlq"

// RetryQueueName is the per-primary-queue, per-delay lane a failed message
// waits in before landing back on its primary queue via that lane's DLX.
func RetryQueueName(primary string, delaySeconds int) string {
	return fmt.Sprintf("%s.retry.%ds", primary, delaySeconds)
}

// Declare idempotently builds the full topology: the three priority queues,
// the dead-letter queue, and one TTL-bound retry lane per configured delay
// for each priority queue. Each retry lane dead-letters back onto its
// primary queue once its message-level TTL elapses.
func Declare(ch *amqp.Channel, primaryQueues []string, retryDelaysSeconds []int) error {
	for _, q := range append(append([]string{}, primaryQueues...), DLQName) {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	for _, primary := range primaryQueues {
		for _, delay := range retryDelaysSeconds {
			name := RetryQueueName(primary, delay)
			args := amqp.Table{
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": primary,
				"x-message-ttl":             delay * 1000,
			}
			if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
				return fmt.Errorf("declare retry queue %s: %w", name, err)
			}
		}
	}
	return nil
}
