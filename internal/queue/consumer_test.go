package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/model"
)

type memAudit struct {
	entries []model.AuditEntry
	err     error
}

func (m *memAudit) Append(_ context.Context, e model.AuditEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

// acks records how each delivery was settled.
type acks struct {
	acked    int
	dropped  int
	requeued int
}

func (a *acks) Ack(uint64, bool) error { a.acked++; return nil }

func (a *acks) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.requeued++
	} else {
		a.dropped++
	}
	return nil
}

func (a *acks) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func TestHandleWritesAuditEntry(t *testing.T) {
	ctx := WithClientIP(context.Background(), "10.0.0.7")
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ev := NewEvent(ctx, ActionReservationCreated, "reservation", "00000000000000aa", 3, map[string]string{"area": "A"}, at)
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	audit := &memAudit{}
	require.NoError(t, NewConsumer("", audit).Handle(context.Background(), body))

	require.Len(t, audit.entries, 1)
	e := audit.entries[0]
	assert.Equal(t, ActionReservationCreated, e.Action)
	assert.Equal(t, "reservation", e.EntityType)
	assert.Equal(t, "00000000000000aa", e.EntityID)
	require.NotNil(t, e.UserID)
	assert.Equal(t, uint64(3), *e.UserID)
	assert.Equal(t, "10.0.0.7", e.IPAddress)
	assert.JSONEq(t, `{"area":"A"}`, e.Details)
	assert.True(t, at.Equal(e.CreatedAt))
}

func TestHandleRejectsMalformed(t *testing.T) {
	c := NewConsumer("", &memAudit{})
	assert.ErrorIs(t, c.Handle(context.Background(), []byte("{")), ErrMalformed)
	assert.ErrorIs(t, c.Handle(context.Background(), []byte(`{"id":"x"}`)), ErrMalformed)
}

func TestProcessSettlesDeliveries(t *testing.T) {
	body, err := json.Marshal(Event{ID: "e1", Action: ActionReservationDeleted, EntityType: "reservation"})
	require.NoError(t, err)
	audit := &memAudit{err: errors.New("connection refused")}
	c := NewConsumer("", audit)
	a := &acks{}
	ctx := context.Background()

	// store down: the event is kept on the queue
	assert.False(t, c.process(ctx, amqp.Delivery{Acknowledger: a, Body: body}))
	assert.Equal(t, 1, a.requeued)
	assert.Empty(t, audit.entries)

	// garbage is dropped even while the store is down
	assert.True(t, c.process(ctx, amqp.Delivery{Acknowledger: a, Body: []byte("{")}))
	assert.Equal(t, 1, a.dropped)

	audit.err = nil
	assert.True(t, c.process(ctx, amqp.Delivery{Acknowledger: a, Body: body, Redelivered: true}))
	assert.Equal(t, 1, a.acked)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, ActionReservationDeleted, audit.entries[0].Action)
}

func TestAuditEntryWithoutActor(t *testing.T) {
	e := AuditEntryFor(Event{Action: ActionSettingsUpdated, EntityType: "settings"})
	assert.Nil(t, e.UserID)
	assert.False(t, e.CreatedAt.IsZero())
}
