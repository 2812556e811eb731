package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"chaletbook/internal/domain/shared/clock"
)

const (
	defaultBatch    = 50
	defaultInterval = 500 * time.Millisecond
	defaultRetry    = 5 * time.Second
	defaultSource   = "app://chaletbook"
)

var (
	ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")
	errPayloadNotJSON      = errors.New("outbox: payload is not JSON")
)

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays committed outbox records to the broker as CloudEvents.
// Several workers may share a store; claims keep them off each other's
// records.
type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Batch       int
	Logger      *slog.Logger
	Clock       clock.Clock
}

// cloudEvent is the structured-mode CloudEvents 1.0 envelope.
type cloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	TraceParent     string          `json:"traceparent,omitempty"`
	Data            json.RawMessage `json:"data"`
}

// Run drains once immediately, then on every tick until ctx ends. A full
// batch is followed by another drain without waiting for the ticker.
func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	log := w.logger().With("worker", w.ID)
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		for {
			n, err := w.Drain(ctx)
			if err != nil {
				log.Error("outbox relay failed", "error", err)
			}
			if err != nil || n < w.batch() {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain relays up to one batch of due records and reports how many it
// handled, failed publishes included.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	owner := w.ID
	if owner == "" {
		owner = uuid.NewString()
	}
	for handled := 0; handled < w.batch(); handled++ {
		rec, err := w.Store.Claim(ctx, owner)
		if err != nil {
			return handled, err
		}
		if rec == nil {
			return handled, nil
		}
		if err := w.relay(ctx, rec); err != nil {
			return handled + 1, err
		}
	}
	return w.batch(), nil
}

func (w *Worker) relay(ctx context.Context, rec *Record) error {
	payload, headers, err := w.envelope(rec)
	if err == nil {
		err = w.Producer.Publish(ctx, w.TopicFor(rec.Name), rec.Aggregate, payload, headers)
	}
	if err != nil {
		w.logger().Warn("outbox publish failed",
			"event_id", rec.ID,
			"event", rec.Name,
			"attempts", rec.Attempts+1,
			"error", err,
		)
		return w.Store.MarkFailed(ctx, rec.ID, w.retryAt(rec.Attempts), err.Error())
	}
	return w.Store.MarkSent(ctx, rec.ID)
}

// envelope uses the outbox id as the CloudEvent id, so a record published
// twice is recognised by consumers.
func (w *Worker) envelope(rec *Record) ([]byte, map[string]string, error) {
	if !json.Valid(rec.Payload) {
		return nil, nil, fmt.Errorf("%w: %s", errPayloadNotJSON, rec.ID)
	}
	source := w.Source
	if source == "" {
		source = defaultSource
	}
	payload, err := json.Marshal(cloudEvent{
		SpecVersion:     "1.0",
		ID:              rec.ID,
		Type:            rec.Name + ".v1",
		Source:          source,
		Subject:         rec.Aggregate,
		Time:            rec.OccurredAt.UTC(),
		DataContentType: "application/json",
		TraceParent:     rec.Headers["traceparent"],
		Data:            rec.Payload,
	})
	if err != nil {
		return nil, nil, err
	}
	headers := make(map[string]string, len(rec.Headers)+1)
	for k, v := range rec.Headers {
		headers[k] = v
	}
	headers["content-type"] = "application/cloudevents+json"
	return payload, headers, nil
}

// TopicFor maps an event name to its topic: reservation.confirmed goes to
// <prefix>reservation.events.v1.
func (w *Worker) TopicFor(name string) string {
	family, _, _ := strings.Cut(name, ".")
	return w.TopicPrefix + family + ".events.v1"
}

func (w *Worker) retryAt(attempts int) time.Time {
	delay := defaultRetry
	switch n := len(w.Backoff); {
	case n == 0:
	case attempts < n:
		delay = w.Backoff[attempts]
	default:
		delay = w.Backoff[n-1]
	}
	return clock.OrSystem(w.Clock).Now().Add(delay)
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return defaultInterval
	}
	return w.Interval
}

func (w *Worker) batch() int {
	if w.Batch <= 0 {
		return defaultBatch
	}
	return w.Batch
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}
