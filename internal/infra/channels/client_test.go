package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/app/policies"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/money"
	"chaletbook/internal/infra/config"
)

type recorded struct {
	path string
	key  string
	body map[string]any
	at   time.Time
}

func recorder(t *testing.T, status int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		calls = append(calls, recorded{path: r.URL.Path, key: r.Header.Get("X-Api-Key"), body: body, at: time.Now()})
		mu.Unlock()
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"error":"listing unknown"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func TestPushBookingSendsKeyAndPayload(t *testing.T) {
	srv, calls := recorder(t, http.StatusCreated)
	c, err := New(config.ChannelConfig{Name: "beds24", BaseURL: srv.URL + "/", APIKey: "secret"}, Options{})
	require.NoError(t, err)
	require.Equal(t, DefaultBatchSize, c.BatchSize())

	err = c.PushBooking(context.Background(), policies.ChannelBooking{
		ReservationID: reservation.ReservationID("res-1"),
		Listing:       chalets.ChannelListing{PropertyID: "p-1", RoomID: "r-1"},
		Guest:         reservation.Guest{Name: "Ada", Email: "ada@example.com"},
		CheckIn:       "2026-06-10",
		CheckOut:      "2026-06-12",
		Party:         pricing.Party{Adults: 2, Children: 1},
		Total:         money.Money{Amount: 25000, Currency: "EUR"},
	})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 1)
	require.Equal(t, "/bookings", got[0].path)
	require.Equal(t, "secret", got[0].key)
	require.Equal(t, "res-1", got[0].body["external_id"])
	require.Equal(t, "2026-06-10", got[0].body["arrival"])
	require.Equal(t, float64(2), got[0].body["adults"])
}

func TestErrorsCarryStatusAndBody(t *testing.T) {
	srv, _ := recorder(t, http.StatusUnprocessableEntity)
	c, err := New(config.ChannelConfig{Name: "hostaway", BaseURL: srv.URL, APIKey: "k"}, Options{})
	require.NoError(t, err)

	err = c.PushAvailability(context.Background(), chalets.ChannelListing{PropertyID: "p"}, []policies.DayAvailability{{Date: "2026-06-10", Open: false}})
	require.ErrorContains(t, err, "422")
	require.ErrorContains(t, err, "listing unknown")
}

func TestPushAvailabilityRejectsOversizedChunk(t *testing.T) {
	c, err := New(config.ChannelConfig{Name: "beds24", BaseURL: "http://unused", APIKey: "k", BatchSize: 2}, Options{})
	require.NoError(t, err)
	days := []policies.DayAvailability{{Date: "2026-06-10"}, {Date: "2026-06-11"}, {Date: "2026-06-12"}}
	require.Error(t, c.PushAvailability(context.Background(), chalets.ChannelListing{PropertyID: "p"}, days))
}

func TestCallsAreSpaced(t *testing.T) {
	srv, calls := recorder(t, http.StatusOK)
	spacing := 40 * time.Millisecond
	c, err := New(config.ChannelConfig{Name: "beds24", BaseURL: srv.URL, APIKey: "k"}, Options{MinSpacing: spacing})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.PushAvailability(context.Background(), chalets.ChannelListing{PropertyID: "p"}, []policies.DayAvailability{{Date: "2026-06-10", Open: true}})
		}()
	}
	wg.Wait()

	got := calls()
	require.Len(t, got, 3)
	first, last := got[0].at, got[0].at
	for _, c := range got {
		if c.at.Before(first) {
			first = c.at
		}
		if c.at.After(last) {
			last = c.at
		}
	}
	require.GreaterOrEqual(t, last.Sub(first), spacing)
}

func TestNewValidates(t *testing.T) {
	_, err := New(config.ChannelConfig{Name: "beds24", BaseURL: "http://x"}, Options{})
	require.Error(t, err)
	_, err = NewAll([]config.ChannelConfig{{Name: "beds24", BaseURL: "http://x", APIKey: "k"}, {Name: "", BaseURL: "http://y", APIKey: "k"}}, Options{})
	require.Error(t, err)
}
