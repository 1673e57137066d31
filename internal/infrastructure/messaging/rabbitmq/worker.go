package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/baechuer/taskdispatch/internal/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// TaskStore is the worker's view of the task store: component A's
// conditional-update claim/complete/fail operations.
type TaskStore interface {
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	Complete(ctx context.Context, id, result string, now time.Time) (bool, error)
	Fail(ctx context.Context, id, errMsg string, now time.Time) (bool, error)
}

// Clock decouples the worker's notion of "now" for tests.
type Clock interface{ Now() time.Time }

// channelPublisher is the slice of *amqp.Channel that handleDelivery needs
// to republish a delivery to a primary queue, a retry lane, or the DLQ.
// Extracted so the retry/DLQ protocol can be driven by a fake in tests
// without a live broker connection.
type channelPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Executor runs the (stubbed) task body. Production deployments would
// replace this with a registry keyed by task type; this spec performs no
// real computation, so the default executor simply echoes the task id.
type Executor func(ctx context.Context, taskID string) (result string, err error)

func DefaultExecutor(ctx context.Context, taskID string) (string, error) {
	return "ok:" + taskID, nil
}

// taskMessage is the flat wire body the publisher/outbox produces for a
// dispatch message: {"task_id": "...", "priority": "..."}.
type taskMessage struct {
	TaskID   string `json:"task_id"`
	Priority string `json:"priority"`
}

// Worker consumes the three priority queues and drives each task through
// claim -> execute -> complete/fail, with the retry/DLQ protocol on failure.
type Worker struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	publish channelPublisher
	queues  []string
	store   TaskStore
	clock   Clock
	execute Executor

	maxRetries  int
	retryDelays []int
}

func NewWorker(rabbitURL string, queues []string, prefetch int, store TaskStore, clock Clock, maxRetries int, retryDelays []int) (*Worker, error) {
	conn, err := amqp.Dial(rabbitURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := Declare(ch, queues, retryDelays); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Worker{
		conn:        conn,
		ch:          ch,
		publish:     ch,
		queues:      queues,
		store:       store,
		clock:       clock,
		execute:     DefaultExecutor,
		maxRetries:  maxRetries,
		retryDelays: retryDelays,
	}, nil
}

func (w *Worker) Close() error {
	if w.ch != nil {
		_ = w.ch.Close()
	}
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// Start launches one consumer goroutine per configured queue.
func (w *Worker) Start(ctx context.Context) error {
	for _, q := range w.queues {
		msgs, err := w.ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", q, err)
		}
		queueName := q
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					w.handleDelivery(ctx, queueName, msg)
				}
			}
		}()
	}
	return nil
}

func retryCountOf(headers amqp.Table) int {
	if v, ok := headers["x-retry-count"].(int32); ok {
		return int(v)
	}
	if v, ok := headers["x-retry-count"].(int); ok {
		return v
	}
	return 0
}

func (w *Worker) delayFor(retryCount int) int {
	if len(w.retryDelays) == 0 {
		return 1
	}
	idx := retryCount
	if idx >= len(w.retryDelays) {
		idx = len(w.retryDelays) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return w.retryDelays[idx]
}

func (w *Worker) publishTo(queue string, msg amqp.Delivery, headers amqp.Table) error {
	return w.publish.Publish("", queue, false, false, amqp.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		MessageId:    msg.MessageId,
		DeliveryMode: amqp.Persistent,
	})
}

func (w *Worker) toDLQ(msg amqp.Delivery) {
	if err := w.publishTo(DLQName, msg, msg.Headers); err != nil {
		logger.Logger.Error().Err(err).Msg("failed to publish to dlq, nacking")
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

// retryOrDLQ is the infrastructure-failure path: republish immediately to
// the same primary queue, bounded by maxRetries, else to the DLQ.
func (w *Worker) retryOrDLQ(queueName string, msg amqp.Delivery, retryCount int) {
	if retryCount >= w.maxRetries {
		w.toDLQ(msg)
		return
	}
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retry-count"] = int32(retryCount + 1)
	if err := w.publishTo(queueName, msg, headers); err != nil {
		logger.Logger.Error().Err(err).Msg("failed to republish for infra retry, nacking")
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

// delayedRetryOrDLQ is the execution-failure path: the delayed retry lane
// (or the DLQ once retries are exhausted) for a task whose DB state is
// already terminal, purely to leave an operational trail.
func (w *Worker) delayedRetryOrDLQ(queueName string, msg amqp.Delivery, retryCount int) {
	if retryCount >= w.maxRetries {
		w.toDLQ(msg)
		return
	}
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retry-count"] = int32(retryCount + 1)
	lane := RetryQueueName(queueName, w.delayFor(retryCount))
	if err := w.publishTo(lane, msg, headers); err != nil {
		logger.Logger.Error().Err(err).Msg("failed to publish to retry lane, nacking")
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

func (w *Worker) handleDelivery(ctx context.Context, queueName string, msg amqp.Delivery) {
	retryCount := retryCountOf(msg.Headers)

	var env taskMessage
	if err := json.Unmarshal(msg.Body, &env); err != nil || env.TaskID == "" {
		logger.Logger.Error().Err(err).Str("queue", queueName).Msg("malformed task message")
		w.toDLQ(msg)
		return
	}
	taskID := env.TaskID

	execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	claimed, err := w.store.Claim(execCtx, taskID, w.clock.Now())
	if err != nil {
		logger.Logger.Error().Err(err).Str("task_id", taskID).Msg("claim failed, treating as infra failure")
		w.retryOrDLQ(queueName, msg, retryCount)
		return
	}
	if !claimed {
		logger.Logger.Info().Str("task_id", taskID).Msg("task not claimable, skipping (already handled)")
		_ = msg.Ack(false)
		return
	}

	result, execErr := w.execute(execCtx, taskID)
	if execErr != nil {
		matched, err := w.store.Fail(execCtx, taskID, execErr.Error(), w.clock.Now())
		if err != nil {
			logger.Logger.Error().Err(err).Str("task_id", taskID).Msg("persisting failure failed, treating as infra failure")
			w.retryOrDLQ(queueName, msg, retryCount)
			return
		}
		if !matched {
			logger.Logger.Info().Str("task_id", taskID).Msg("task no longer in_progress, skipping fail transition")
			_ = msg.Ack(false)
			return
		}
		logger.Logger.Warn().Err(execErr).Str("task_id", taskID).Msg("task execution failed")
		w.delayedRetryOrDLQ(queueName, msg, retryCount)
		return
	}

	matched, err := w.store.Complete(execCtx, taskID, result, w.clock.Now())
	if err != nil {
		logger.Logger.Error().Err(err).Str("task_id", taskID).Msg("persisting completion failed, treating as infra failure")
		w.retryOrDLQ(queueName, msg, retryCount)
		return
	}
	if !matched {
		logger.Logger.Info().Str("task_id", taskID).Msg("task no longer in_progress, skipping complete transition")
		_ = msg.Ack(false)
		return
	}

	logger.Logger.Info().Str("task_id", taskID).Str("queue", queueName).Msg("task completed")
	_ = msg.Ack(false)
}
