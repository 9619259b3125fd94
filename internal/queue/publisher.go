package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher sends events to QueueName on the default exchange.  The AMQP
// connection is opened lazily and reopened after a failure, so a broker
// outage only costs the events published while it lasts.
type Publisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url.  No connection is
// made until the first Publish.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// Publish marshals ev and publishes it as a persistent message.  Errors are
// returned so the caller can log them; the connection is dropped and
// reopened on the next call.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Action,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", QueueName, false, false, pub); err != nil {
		p.closeLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

// LogPublisher writes events to the application log instead of a broker.
// It is used when RABBITMQ_URL is not configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev Event) error {
	log.Info().
		Str("event_id", ev.ID).
		Str("action", ev.Action).
		Str("entity_type", ev.EntityType).
		Str("entity_id", ev.EntityID).
		Uint64("actor_id", ev.ActorID).
		Msg("event")
	return nil
}
