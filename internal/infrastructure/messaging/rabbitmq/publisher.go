package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	zlog "github.com/rs/zerolog/log"
)

const publishWait = 150 * time.Millisecond

// Publisher sends task dispatch messages directly to a priority queue on the
// default exchange (routing key == queue name). It holds one lazily
// reconnected channel behind a mutex and uses publisher confirms plus the
// mandatory flag so an unroutable message surfaces as an error instead of
// vanishing silently.
type Publisher struct {
	url string

	queues      []string
	retryDelays []int

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

// NewPublisher dials url and idempotently declares the priority
// queues, DLQ, and retry lanes so a publish-only process (the api or the
// outbox worker) can bring up the topology even if the consumer worker
// hasn't started yet.
func NewPublisher(url string, queues []string, retryDelays []int) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("missing rabbitmq url")
	}
	p := &Publisher{url: url, queues: queues, retryDelays: retryDelays}
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if len(p.queues) > 0 {
		if err := Declare(ch, p.queues, p.retryDelays); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return err
		}
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

// PublishEvent implements task.Publisher: the best-effort direct path.
func (p *Publisher) PublishEvent(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, routingKey, body)
}

// Publish implements postgres.OutboxPublisher: the durable outbox path,
// given an already-serialized JSON body.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if routingKey == "" {
		return errors.New("missing routingKey")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.conn == nil || p.conn.IsClosed() {
		_ = p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return fmt.Errorf("rabbitmq reconnect failed: %w", err)
		}
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	}

	if err := p.ch.PublishWithContext(ctx, "", routingKey, true, false, pub); err != nil {
		return err
	}

	timer := time.NewTimer(publishWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ret := <-p.returnCh:
			zlog.Error().
				Str("rk", routingKey).
				Int("code", int(ret.ReplyCode)).
				Str("reason", ret.ReplyText).
				Msg("rabbitmq publish returned (mandatory, no route)")
			return fmt.Errorf("rabbitmq returned: %d %s", ret.ReplyCode, ret.ReplyText)

		case conf := <-p.confirmCh:
			if !conf.Ack {
				return errors.New("rabbitmq publish not acked")
			}
			return nil

		case <-timer.C:
			zlog.Warn().Str("rk", routingKey).Msg("rabbitmq confirm/return timeout window elapsed")
			return nil
		}
	}
}

func (p *Publisher) closeLocked() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}
