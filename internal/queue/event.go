// Package queue defines the domain events exchanged over RabbitMQ and the
// publisher and consumer that move them.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueName is the durable queue carrying every domain event.
const QueueName = "reservation.events"

// Actions recorded in the audit log.
const (
	ActionReservationCreated = "reservation.created"
	ActionReservationUpdated = "reservation.updated"
	ActionReservationDeleted = "reservation.deleted"
	ActionUserCreated        = "user.created"
	ActionUserUpdated        = "user.updated"
	ActionUserDeleted        = "user.deleted"
	ActionSettingsUpdated    = "settings.updated"
)

// Event is published after a successful mutation.  It carries enough
// information for the audit consumer to write a log row without querying
// the primary tables.
type Event struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	ActorID    uint64          `json:"actor_id,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent builds an Event with a fresh id.  details is marshalled to JSON;
// a value that cannot be marshalled is dropped.  The client IP is taken
// from ctx when the transport attached one.
func NewEvent(ctx context.Context, action, entityType, entityID string, actorID uint64, details any, at time.Time) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		IPAddress:  ClientIP(ctx),
		OccurredAt: at.UTC(),
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			ev.Details = b
		}
	}
	return ev
}

type ipKey struct{}

// WithClientIP attaches the caller's address to ctx for later events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// ClientIP returns the address stored by WithClientIP, or "".
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey{}).(string)
	return ip
}
