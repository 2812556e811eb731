package events

import (
	"slices"
	"time"
)

// DomainEvent is a fact an aggregate records; the outbox relays it after commit.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder buffers an aggregate's events until a handler drains them
// into the outbox inside the same unit of work.
type EventRecorder struct {
	pending []DomainEvent
}

// Record appends evs in order. Nil events are ignored.
func (r *EventRecorder) Record(evs ...DomainEvent) {
	for _, ev := range evs {
		if ev != nil {
			r.pending = append(r.pending, ev)
		}
	}
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	return slices.Clone(r.pending)
}

// ClearEvents forgets pending events, used when a change is discarded.
func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}

func (r *EventRecorder) Drain() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}
