package ical

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/daterange"
)

func calendar(events ...string) string {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}
	for _, ev := range events {
		lines = append(lines, "BEGIN:VEVENT")
		lines = append(lines, strings.Split(ev, "\n")...)
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR")
	return strings.Join(lines, "\r\n") + "\r\n"
}

func day(s string) time.Time {
	return daterange.MustParse(s)
}

func TestParseEventForms(t *testing.T) {
	payload := calendar(
		"UID:a\nDTSTART;VALUE=DATE:20260410\nDTEND;VALUE=DATE:20260413\nSUMMARY:Reserved",
		"UID:b\nDTSTART:20260501T140000Z\nDTEND:20260503T100000Z",
		"UID:c\nDTSTART;VALUE=DATE:20260601\nDURATION:P3D",
		"UID:d\nDTSTART:20260701T150000\nDURATION:PT36H",
		"UID:e\nDTSTART;VALUE=DATE:20260801",
		"UID:f\nDTSTART;VALUE=DATE:20260901\nDURATION:P1W",
		"UID:g\nDTSTART:tomorrow",
	)
	items, err := Parse(strings.NewReader(payload), "airbnb", nil)
	require.NoError(t, err)
	require.Len(t, items, 6)

	require.Equal(t, day("2026-04-10"), items[0].Start)
	require.Equal(t, day("2026-04-13"), items[0].End)
	require.Equal(t, "Reserved", items[0].Summary)
	require.Equal(t, "airbnb", items[0].Label)

	require.Equal(t, day("2026-05-01"), items[1].Start)
	require.Equal(t, day("2026-05-03"), items[1].End)

	require.Equal(t, day("2026-06-04"), items[2].End)
	require.Equal(t, day("2026-07-03"), items[3].End)
	require.Equal(t, day("2026-08-02"), items[4].End)
	require.Equal(t, day("2026-09-08"), items[5].End)
}

func TestParseFoldedSummary(t *testing.T) {
	payload := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:x\r\nDTSTART;VALUE=DATE:20260410\r\nSUMMARY:Not\r\n  available\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	items, err := Parse(strings.NewReader(payload), "vrbo", nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Not available", items[0].Summary)
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"P3D":      72 * time.Hour,
		"PT36H":    36 * time.Hour,
		"P1W":      7 * 24 * time.Hour,
		"P1DT12H":  36 * time.Hour,
		"PT90M":    90 * time.Minute,
		"-PT1H":    -time.Hour,
		"p2d":      48 * time.Hour,
		"PT15M30S": 15*time.Minute + 30*time.Second,
	}
	for raw, want := range cases {
		got, err := ParseDuration(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "P", "PT", "3D", "P1Y"} {
		_, err := ParseDuration(raw)
		require.Error(t, err, raw)
	}
}

func newFetcher() *Fetcher {
	return &Fetcher{Timeout: time.Second, Retries: 2, Backoff: time.Millisecond}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(calendar("UID:a\nDTSTART;VALUE=DATE:20260410\nDTEND;VALUE=DATE:20260412")))
	}))
	defer srv.Close()

	items := newFetcher().Fetch(context.Background(), chalets.Feed{Label: "airbnb", URL: srv.URL})
	require.Len(t, items, 1)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, DefaultUserAgent, agent.Load())
}

func TestFetchNotFoundIsEmptyWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	items := newFetcher().Fetch(context.Background(), chalets.Feed{Label: "airbnb", URL: srv.URL})
	require.Empty(t, items)
	require.NotNil(t, items)
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	items := newFetcher().Fetch(context.Background(), chalets.Feed{Label: "airbnb", URL: srv.URL})
	require.Empty(t, items)
	require.Equal(t, int32(3), calls.Load())
}

func TestFetchClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	require.Empty(t, newFetcher().Fetch(context.Background(), chalets.Feed{Label: "x", URL: srv.URL}))
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("X", MaxBodyBytes+10)))
	}))
	defer srv.Close()

	require.Empty(t, newFetcher().Fetch(context.Background(), chalets.Feed{Label: "x", URL: srv.URL}))
}

func TestFetchTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(calendar("UID:a\nDTSTART;VALUE=DATE:20260410")))
	}))
	defer srv.Close()

	f := newFetcher()
	f.Timeout = 50 * time.Millisecond
	items := f.Fetch(context.Background(), chalets.Feed{Label: "x", URL: srv.URL})
	require.Len(t, items, 1)
	require.Equal(t, int32(2), calls.Load())
}
