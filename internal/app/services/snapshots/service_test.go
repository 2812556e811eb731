package snapshots

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/app/bootstrap"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/infra/obs"
	"chaletbook/internal/infra/storage/memory"
)

type fakeStore struct {
	mu   sync.Mutex
	docs map[string]any
	fail string
}

func (s *fakeStore) PutJSON(_ context.Context, key string, v any) (string, error) {
	if key == s.fail {
		return "", errors.New("bucket unreachable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = v
	return "https://cdn.example.com/" + key, nil
}

func newPublisher(store *fakeStore) *Publisher {
	rates := pricing.RateCard{Currency: "EUR", WeekdayRate: 10000, WeekendRate: 12000}
	dir := chalets.NewStaticDirectory([]chalets.Chalet{
		{ID: "alpen", Name: "Alpen", MaxGuests: 4, Rates: rates},
		{ID: "lakeside", Name: "Lakeside", MaxGuests: 6, Rates: rates},
	})
	buses := bootstrap.Build(bootstrap.Deps{
		Store:   memory.NewFactory(),
		Outbox:  memory.NewOutbox(),
		Chalets: dir,
		Clock:   clock.NewManual(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)),
		Hold:    10 * time.Minute,
		Horizon: 30 * 24 * time.Hour,
		Logger:  obs.Discard(),
	})
	return &Publisher{Queries: buses.Queries, Chalets: dir, Store: store}
}

func TestPublishAllUploadsEveryChalet(t *testing.T) {
	store := &fakeStore{docs: map[string]any{}}
	published, err := newPublisher(store).PublishAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, published)

	cal, ok := store.docs["availability/alpen.json"].(dto.Calendar)
	require.True(t, ok)
	require.Equal(t, "alpen", cal.ChaletID)
	require.Equal(t, "2026-04-01", cal.From)
	require.NotEmpty(t, cal.Days)
	require.Contains(t, store.docs, "availability/lakeside.json")
}

func TestPublishAllContinuesPastFailures(t *testing.T) {
	store := &fakeStore{docs: map[string]any{}, fail: "availability/alpen.json"}
	published, err := newPublisher(store).PublishAll(context.Background())
	require.ErrorContains(t, err, "bucket unreachable")
	require.Equal(t, 1, published)
	require.Contains(t, store.docs, "availability/lakeside.json")
}
