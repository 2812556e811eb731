package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chaletbook/internal/domain/shared/events"
)

// EventRecord is one encoded domain event as stored for the relay. ID is
// stable across redeliveries and becomes the CloudEvent id.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Outbox accepts records inside the command's unit of work. Flush runs after
// the command succeeded.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// JSONEventEncoder marshals the event struct as the payload.
type JSONEventEncoder struct {
	NewID func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("outbox: encode %s: %w", ev.EventName(), err)
	}
	newID := e.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return EventRecord{
		ID:         newID(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{"content-type": "application/json"},
	}, nil
}

// Publisher is what handlers use to write events: an outbox plus the
// encoder for its records. A nil Outbox drops events.
type Publisher struct {
	Outbox  Outbox
	Encoder EventEncoder
}

// Drain moves an aggregate's buffered events into the outbox.
func (p Publisher) Drain(ctx context.Context, source interface{ Drain() []events.DomainEvent }) error {
	return p.Record(ctx, source.Drain()...)
}

func (p Publisher) Record(ctx context.Context, evs ...events.DomainEvent) error {
	if p.Outbox == nil {
		return nil
	}
	enc := p.Encoder
	if enc == nil {
		enc = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := enc.Encode(ev)
		if err != nil {
			return err
		}
		if err := p.Outbox.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
