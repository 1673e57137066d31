package postgres

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/baechuer/taskdispatch/internal/logger"
	"github.com/jackc/pgx/v5"
)

const insertOutboxSQL = `
INSERT INTO task_outbox (
  task_id, routing_key, body, created_at, status, next_attempt_at
) VALUES ($1, $2, $3::jsonb, $4, 'NEW', $4)
`

const selectOutboxClaimsSQL = `
SELECT id, task_id, routing_key, body, attempts
FROM task_outbox
WHERE status = 'NEW'
  AND next_attempt_at <= NOW()
ORDER BY created_at ASC
LIMIT $1
FOR UPDATE SKIP LOCKED
`

const reserveOutboxClaimSQL = `
UPDATE task_outbox SET next_attempt_at = $2 WHERE id = $1
`

const markOutboxSentSQL = `
UPDATE task_outbox SET status = 'SENT', sent_at = $2, last_error = NULL WHERE id = $1
`

const markOutboxRetrySQL = `
UPDATE task_outbox SET attempts = attempts + 1, next_attempt_at = $2, last_error = $3
WHERE id = $1
`

const markOutboxFailedSQL = `
UPDATE task_outbox SET status = 'FAILED', attempts = attempts + 1, last_error = $2 WHERE id = $1
`

// OutboxPublisher is the minimal broker-facing surface the outbox loop needs.
type OutboxPublisher interface {
	Publish(ctx context.Context, routingKey string, bodyJSON []byte) error
}

type outboxRow struct {
	ID         int64
	TaskID     string
	RoutingKey string
	Body       []byte
	Attempts   int
}

// backoff mirrors the exponential-with-jitter schedule capped at 60s.
func backoff(attempts int) time.Duration {
	base := math.Min(60.0, 0.5*math.Pow(2, float64(attempts)))
	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
	return time.Duration(base*float64(time.Second)) + jitter
}

// StartOutboxWorker runs the claim -> publish -> settle loop until ctx is
// cancelled. The claim transaction is short: the slow network call happens
// outside any lock, with a near-future next_attempt_at as an in-flight
// reservation so a second replica cannot double-claim the same row.
func (r *Repo) StartOutboxWorker(ctx context.Context, pub OutboxPublisher, pollInterval time.Duration, batchSize, maxAttempts int) {
	go func() {
		time.Sleep(time.Duration(rand.Intn(1000)) * time.Millisecond)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.processOutboxBatch(ctx, pub, batchSize, maxAttempts); err != nil {
					logger.Logger.Error().Err(err).Msg("outbox batch failed")
				}
			}
		}
	}()
}

func (r *Repo) processOutboxBatch(ctx context.Context, pub OutboxPublisher, limit, maxAttempts int) error {
	if limit <= 0 {
		limit = 20
	}

	claimCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.BeginTx(claimCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(claimCtx) }()

	rows, err := tx.Query(claimCtx, selectOutboxClaimsSQL, limit)
	if err != nil {
		return err
	}

	var batch []outboxRow
	for rows.Next() {
		var item outboxRow
		if err := rows.Scan(&item.ID, &item.TaskID, &item.RoutingKey, &item.Body, &item.Attempts); err != nil {
			rows.Close()
			return err
		}
		batch = append(batch, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(batch) == 0 {
		return tx.Commit(claimCtx)
	}

	reservation := time.Now().UTC().Add(30 * time.Second)
	for _, item := range batch {
		if _, err := tx.Exec(claimCtx, reserveOutboxClaimSQL, item.ID, reservation); err != nil {
			return err
		}
	}

	if err := tx.Commit(claimCtx); err != nil {
		return err
	}

	for _, item := range batch {
		r.processSingleItem(ctx, pub, item, maxAttempts)
	}
	return nil
}

func (r *Repo) processSingleItem(ctx context.Context, pub OutboxPublisher, item outboxRow, maxAttempts int) {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := pub.Publish(pubCtx, item.RoutingKey, item.Body)

	resCtx, cancelRes := context.WithTimeout(ctx, 3*time.Second)
	defer cancelRes()

	if err != nil {
		errMsg := err.Error()
		if item.Attempts+1 >= maxAttempts {
			_, _ = r.pool.Exec(resCtx, markOutboxFailedSQL, item.ID, errMsg)
			logger.Logger.Error().Err(err).Int64("outbox_id", item.ID).Str("task_id", item.TaskID).
				Int("attempts", item.Attempts+1).Msg("outbox message exhausted retries")
			return
		}
		nextAt := time.Now().UTC().Add(backoff(item.Attempts + 1))
		_, _ = r.pool.Exec(resCtx, markOutboxRetrySQL, item.ID, nextAt, errMsg)
		logger.Logger.Warn().Err(err).Int64("outbox_id", item.ID).Str("task_id", item.TaskID).
			Time("next_attempt_at", nextAt).Msg("outbox publish failed, retrying")
		return
	}

	_, _ = r.pool.Exec(resCtx, markOutboxSentSQL, item.ID, time.Now().UTC())
}
