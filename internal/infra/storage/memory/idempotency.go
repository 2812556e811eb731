package memory

import (
	"context"
	"sync"
	"time"

	"chaletbook/internal/app/middleware"
	"chaletbook/internal/domain/shared/clock"
)

// IdempotencyStore keeps first outcomes for ttl and prunes older entries on
// write, so a long-running dev server does not grow without bound.
type IdempotencyStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	clock clock.Clock
	items map[string]middleware.IdempotencyRecord
}

// NewIdempotencyStore returns a store; a ttl <= 0 keeps records forever.
func NewIdempotencyStore(ttl time.Duration, clk clock.Clock) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:   ttl,
		clock: clock.OrSystem(clk),
		items: make(map[string]middleware.IdempotencyRecord),
	}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	if !ok || s.expired(rec, s.clock.Now()) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for k, old := range s.items {
		if s.expired(old, now) {
			delete(s.items, k)
		}
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	s.items[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord, now time.Time) bool {
	return s.ttl > 0 && now.Sub(rec.OccurredAt) >= s.ttl
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
