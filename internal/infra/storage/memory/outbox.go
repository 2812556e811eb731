package memory

import (
	"context"
	"sync"

	appoutbox "chaletbook/internal/app/outbox"
)

// DefaultFlushedKeep bounds the flushed history of a long-running process.
const DefaultFlushedKeep = 1024

// Outbox keeps records pending until flushed and remembers the most recent
// flushed ones, which stands in for the relay when running without a broker.
type Outbox struct {
	mu      sync.Mutex
	keep    int
	pending []appoutbox.EventRecord
	flushed []appoutbox.EventRecord
}

func NewOutbox() *Outbox {
	return NewOutboxKeeping(DefaultFlushedKeep)
}

// NewOutboxKeeping retains at most keep flushed records, dropping the oldest.
func NewOutboxKeeping(keep int) *Outbox {
	if keep <= 0 {
		keep = DefaultFlushedKeep
	}
	return &Outbox{keep: keep}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushed = append(o.flushed, o.pending...)
	o.pending = nil
	if drop := len(o.flushed) - o.keep; drop > 0 {
		o.flushed = append(o.flushed[:0:0], o.flushed[drop:]...)
	}
	return nil
}

// Flushed returns a copy of every flushed record, oldest first.
func (o *Outbox) Flushed() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.flushed...)
}

// Names lists pending and flushed event names in recording order.
func (o *Outbox) Names() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.flushed)+len(o.pending))
	for _, r := range o.flushed {
		out = append(out, r.Name)
	}
	for _, r := range o.pending {
		out = append(out, r.Name)
	}
	return out
}

var _ appoutbox.Outbox = (*Outbox)(nil)
