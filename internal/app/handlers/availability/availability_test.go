package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/dto"
	domainavailability "chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/domain/shared/daterange"
	"chaletbook/internal/domain/shared/money"
	"chaletbook/internal/infra/storage/memory"
)

var start = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// stubFeeds serves fixed intervals per feed label; the "slow" feed blocks
// until the caller gives up and contributes nothing.
type stubFeeds map[string][]domainavailability.ExternalInterval

func (s stubFeeds) Fetch(ctx context.Context, feed chalets.Feed) []domainavailability.ExternalInterval {
	if feed.Label == "slow" {
		select {
		case <-ctx.Done():
		case <-time.After(50 * time.Millisecond):
		}
		return nil
	}
	return s[feed.Label]
}

type mapCache map[string]dto.Calendar

func (c mapCache) Get(key string) (dto.Calendar, bool) {
	v, ok := c[key]
	return v, ok
}

func (c mapCache) Put(key string, v dto.Calendar) { c[key] = v }

type fixture struct {
	store    memory.Factory
	clock    *clock.Manual
	check    *CheckAvailabilityHandler
	calendar *GetCalendarHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewManual(start)
	store := memory.NewFactory()
	feeds := stubFeeds{
		"airbnb": {{
			Start: daterange.MustParse("2026-06-10"),
			End:   daterange.MustParse("2026-06-12"),
			Label: "airbnb",
		}},
	}
	dir := chalets.NewStaticDirectory([]chalets.Chalet{{
		ID:        "alpen",
		Name:      "Alpen",
		MaxGuests: 4,
		Feeds:     []chalets.Feed{{Label: "airbnb", URL: "https://example.com/a.ics"}, {Label: "slow", URL: "https://example.com/s.ics"}},
		Rates:     pricing.RateCard{Currency: "EUR", WeekdayRate: 100, WeekendRate: 150},
	}})
	resolver := &Resolver{UoWFactory: store, Feeds: feeds, Clock: clk}
	return &fixture{
		store:    store,
		clock:    clk,
		check:    &CheckAvailabilityHandler{Chalets: dir, Resolver: resolver},
		calendar: &GetCalendarHandler{Chalets: dir, Resolver: resolver, Cache: mapCache{}},
	}
}

func (f *fixture) save(t *testing.T, id, checkIn, checkOut string, confirm bool) {
	t.Helper()
	stay, err := daterange.ParseRange(checkIn, checkOut)
	require.NoError(t, err)
	r, err := reservation.NewReservation(reservation.CreateParams{
		ID:        reservation.ReservationID(id),
		ChaletID:  "alpen",
		Stay:      stay,
		Guest:     reservation.Guest{Name: "Ada", Email: "ada@example.com"},
		Party:     pricing.Party{Adults: 1},
		Price:     pricing.Quote{Total: money.Must(100, "EUR")},
		CreatedAt: f.clock.Now(),
		Hold:      10 * time.Minute,
	})
	require.NoError(t, err)
	if confirm {
		_, err = r.Confirm("p", reservation.MethodManual, false, f.clock.Now())
		require.NoError(t, err)
	}
	require.NoError(t, f.store.ReservationsRepo.Save(context.Background(), r))
}

func (f *fixture) ask(t *testing.T, checkIn, checkOut string) dto.Availability {
	t.Helper()
	out, err := f.check.Handle(context.Background(), CheckAvailabilityQuery{ChaletID: "alpen", CheckIn: checkIn, CheckOut: checkOut})
	require.NoError(t, err)
	return out
}

func TestConfirmedReservationConflict(t *testing.T) {
	f := newFixture(t)
	f.save(t, "r1", "2026-05-01", "2026-05-04", true)

	out := f.ask(t, "2026-05-03", "2026-05-06")
	require.False(t, out.Available)
	require.Equal(t, []string{"2026-05-03"}, out.ConflictingDates)
	require.Equal(t, []string{"2026-05-03", "2026-05-04", "2026-05-05"}, out.RequestedDates)

	require.True(t, f.ask(t, "2026-05-04", "2026-05-06").Available)
}

func TestFeedConflictDespiteSlowFeed(t *testing.T) {
	f := newFixture(t)
	out := f.ask(t, "2026-06-11", "2026-06-13")
	require.False(t, out.Available)
	require.Equal(t, []string{"2026-06-11"}, out.ConflictingDates)
	require.Contains(t, out.AllBlockedDates, "2026-06-10")
}

func TestSameDayStayBlockedOnArrival(t *testing.T) {
	f := newFixture(t)
	f.save(t, "r1", "2026-04-10", "2026-04-12", true)

	require.False(t, f.ask(t, "2026-04-10", "2026-04-10").Available)
	require.False(t, f.ask(t, "2026-04-11", "2026-04-11").Available)
	require.True(t, f.ask(t, "2026-04-12", "2026-04-12").Available)
}

func TestLapsedHoldStopsBlockingBeforeSweep(t *testing.T) {
	f := newFixture(t)
	f.save(t, "r1", "2026-05-01", "2026-05-03", false)
	require.False(t, f.ask(t, "2026-05-01", "2026-05-02").Available)

	f.clock.Advance(11 * time.Minute)
	require.True(t, f.ask(t, "2026-05-01", "2026-05-02").Available)
}

func TestCheckAvailabilityIsDeterministic(t *testing.T) {
	f := newFixture(t)
	f.save(t, "r1", "2026-05-01", "2026-05-04", true)
	f.save(t, "r2", "2026-05-20", "2026-05-22", false)
	first := f.ask(t, "2026-05-02", "2026-05-21")
	for i := 0; i < 5; i++ {
		require.Equal(t, first, f.ask(t, "2026-05-02", "2026-05-21"))
	}
}

func TestCheckAvailabilityErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.check.Handle(context.Background(), CheckAvailabilityQuery{ChaletID: "nowhere", CheckIn: "2026-05-01", CheckOut: "2026-05-02"})
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.check.Handle(context.Background(), CheckAvailabilityQuery{ChaletID: "alpen", CheckIn: "2026-05-03", CheckOut: "2026-05-02"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCheckAvailabilityEnforcesStayLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.check.Limits = reservation.StayLimits{MaxNights: 7, Horizon: 30 * 24 * time.Hour}

	_, err := f.check.Handle(ctx, CheckAvailabilityQuery{ChaletID: "alpen", CheckIn: "2026-05-01", CheckOut: "2026-05-09"})
	require.Equal(t, "stay_too_long", apperr.From(err).Reason)
	_, err = f.check.Handle(ctx, CheckAvailabilityQuery{ChaletID: "alpen", CheckIn: "2026-05-02", CheckOut: "2026-05-03"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Equal(t, "beyond_horizon", apperr.From(err).Reason)

	require.True(t, f.ask(t, "2026-05-01", "2026-05-08").Available)
}

func TestCalendarReportsSourcesAndCaches(t *testing.T) {
	f := newFixture(t)
	f.save(t, "r1", "2026-06-11", "2026-06-13", false)
	q := GetCalendarQuery{ChaletID: "alpen", From: "2026-06-09", To: "2026-06-14"}

	cal, err := f.calendar.Handle(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, cal.Days, 5)
	require.False(t, cal.Days[0].Blocked)
	require.Equal(t, []string{"feed:airbnb"}, cal.Days[1].Sources)
	require.Equal(t, []string{"feed:airbnb", "hold"}, cal.Days[2].Sources)
	require.Equal(t, []string{"hold"}, cal.Days[3].Sources)

	f.clock.Advance(time.Hour)
	cached, err := f.calendar.Handle(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, cal, cached)

	_, err = f.calendar.Handle(context.Background(), GetCalendarQuery{ChaletID: "alpen", From: "2026-06-14", To: "2026-06-09"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
