package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/infra/obs"
)

type fakeStore struct {
	mu      sync.Mutex
	pending []*Record
	sent    []string
	failed  map[string]time.Time
}

func (s *fakeStore) Claim(context.Context, string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, nil
	}
	rec := s.pending[0]
	s.pending = s.pending[1:]
	return rec, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, next time.Time, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = map[string]time.Time{}
	}
	s.failed[id] = next
	return nil
}

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	out  []published
	fail bool
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.out = append(p.out, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

var fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func newWorker(store Store, producer Producer) *Worker {
	return &Worker{
		Store:       store,
		Producer:    producer,
		TopicPrefix: "prod.",
		Backoff:     []time.Duration{time.Second, 5 * time.Second},
		Logger:      obs.Discard(),
		Clock:       clock.NewManual(fixedNow),
	}
}

func TestDrainPublishesCloudEvents(t *testing.T) {
	store := &fakeStore{pending: []*Record{
		{ID: "evt-1", Name: "reservation.confirmed", Aggregate: "res-1", Payload: []byte(`{"reservation_id":"res-1"}`), OccurredAt: fixedNow},
		{ID: "evt-2", Name: "availability.block_added", Aggregate: "alpen", Payload: []byte(`{"chalet_id":"alpen"}`), OccurredAt: fixedNow},
	}}
	producer := &fakeProducer{}

	handled, err := newWorker(store, producer).Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, handled)
	require.Equal(t, []string{"evt-1", "evt-2"}, store.sent)

	require.Equal(t, "prod.reservation.events.v1", producer.out[0].topic)
	require.Equal(t, "res-1", producer.out[0].key)
	require.Equal(t, "application/cloudevents+json", producer.out[0].headers["content-type"])
	require.Equal(t, "prod.availability.events.v1", producer.out[1].topic)

	var evt struct {
		ID   string         `json:"id"`
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(producer.out[0].payload, &evt))
	require.Equal(t, "evt-1", evt.ID)
	require.Equal(t, "reservation.confirmed.v1", evt.Type)
	require.Equal(t, "res-1", evt.Data["reservation_id"])
}

func TestDrainSchedulesRetryWithBackoff(t *testing.T) {
	store := &fakeStore{pending: []*Record{
		{ID: "evt-1", Name: "reservation.confirmed", Payload: []byte(`{}`)},
		{ID: "evt-2", Name: "reservation.confirmed", Payload: []byte(`{}`), Attempts: 7},
		{ID: "evt-3", Name: "reservation.confirmed", Payload: []byte(`not json`)},
	}}
	producer := &fakeProducer{fail: true}

	handled, err := newWorker(store, producer).Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, handled)
	require.Empty(t, store.sent)
	require.Equal(t, fixedNow.Add(time.Second), store.failed["evt-1"])
	require.Equal(t, fixedNow.Add(5*time.Second), store.failed["evt-2"])
	require.Contains(t, store.failed, "evt-3")
}

func TestRunRequiresDependencies(t *testing.T) {
	err := (&Worker{}).Run(context.Background())
	require.ErrorIs(t, err, ErrWorkerNotConfigured)
}
