package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/room-reservation/internal/model"
)

// AuditWriter stores one audit row.
type AuditWriter interface {
	Append(ctx context.Context, e model.AuditEntry) error
}

// ErrMalformed marks messages that can never be stored.
var ErrMalformed = errors.New("malformed event")

// Consumer drains QueueName into the audit log.
type Consumer struct {
	url   string
	audit AuditWriter
}

// NewConsumer returns a Consumer reading from the broker at url.
func NewConsumer(url string, audit AuditWriter) *Consumer {
	return &Consumer{url: url, audit: audit}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("audit-consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("audit-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("audit-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if !c.process(ctx, d) && !sleep(ctx, time.Second) {
				return ctx.Err()
			}
		}
	}
}

// process handles one delivery and settles it.  Malformed messages are
// dropped; a failed audit write is requeued so the event survives a store
// outage.  It returns false when the store failed and the caller should
// pause before taking the next message.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) bool {
	err := c.Handle(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
		return true
	case errors.Is(err, ErrMalformed):
		log.Error().Err(err).Str("message_id", d.MessageId).Msg("audit-consumer: dropping malformed message")
		_ = d.Nack(false, false)
		return true
	default:
		log.Warn().Err(err).Str("message_id", d.MessageId).Bool("redelivered", d.Redelivered).Msg("audit-consumer: audit write failed; requeueing")
		_ = d.Nack(false, true)
		return false
	}
}

// Handle decodes one message body and appends it to the audit log.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Action == "" || ev.EntityType == "" {
		return fmt.Errorf("%w: no action or entity type", ErrMalformed)
	}
	if err := c.audit.Append(ctx, AuditEntryFor(ev)); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// AuditEntryFor maps an event onto an audit row.
func AuditEntryFor(ev Event) model.AuditEntry {
	e := model.AuditEntry{
		Action:     ev.Action,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Details:    string(ev.Details),
		IPAddress:  ev.IPAddress,
		CreatedAt:  ev.OccurredAt,
	}
	if ev.ActorID != 0 {
		id := ev.ActorID
		e.UserID = &id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}
