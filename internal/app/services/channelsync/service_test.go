package channelsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/app/outbox"
	"chaletbook/internal/app/policies"
	"chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/domain/shared/daterange"
	"chaletbook/internal/domain/shared/money"
	"chaletbook/internal/infra/storage/memory"
)

var start = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type fakeChannel struct {
	name  string
	batch int

	mu       sync.Mutex
	failNext int
	bookings []policies.ChannelBooking
	pushes   [][]policies.DayAvailability
}

func (c *fakeChannel) Name() string   { return c.name }
func (c *fakeChannel) BatchSize() int { return c.batch }

func (c *fakeChannel) PushBooking(_ context.Context, b policies.ChannelBooking) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext > 0 {
		c.failNext--
		return errors.New("503 service unavailable")
	}
	c.bookings = append(c.bookings, b)
	return nil
}

func (c *fakeChannel) PushAvailability(_ context.Context, _ chalets.ChannelListing, days []policies.DayAvailability) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushes = append(c.pushes, days)
	return nil
}

type fixture struct {
	store   memory.Factory
	box     *memory.Outbox
	clock   *clock.Manual
	beds    *fakeChannel
	hostway *fakeChannel
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewManual(start)
	store := memory.NewFactory()
	box := memory.NewOutbox()
	beds := &fakeChannel{name: "beds24", batch: 100}
	hostway := &fakeChannel{name: "hostaway", batch: 0}
	dir := chalets.NewStaticDirectory([]chalets.Chalet{
		{ID: "alpen", Name: "Alpen", MaxGuests: 4, Channels: map[string]chalets.ChannelListing{
			"beds24": {PropertyID: "p-1", RoomID: "r-1"},
		}},
		{ID: "lakeside", Name: "Lakeside", MaxGuests: 6, Channels: map[string]chalets.ChannelListing{
			"beds24":   {PropertyID: "p-2", RoomID: "r-2"},
			"hostaway": {PropertyID: "h-2"},
		}},
	})
	return &fixture{
		store:   store,
		box:     box,
		clock:   clk,
		beds:    beds,
		hostway: hostway,
		svc: &Service{
			UoWFactory:    store,
			Chalets:       dir,
			Channels:      []policies.ChannelManager{beds, hostway},
			Clock:         clk,
			Publisher:     outbox.Publisher{Outbox: box},
			HorizonMonths: 1,
		},
	}
}

func (f *fixture) reservation(t *testing.T, id string, chalet chalets.ChaletID, confirm bool) {
	t.Helper()
	stay, err := daterange.ParseRange("2026-05-04", "2026-05-06")
	require.NoError(t, err)
	r, err := reservation.NewReservation(reservation.CreateParams{
		ID:        reservation.ReservationID(id),
		ChaletID:  chalet,
		Stay:      stay,
		Guest:     reservation.Guest{Name: "Ada", Email: "ada@example.com"},
		Party:     pricing.Party{Adults: 2, Children: 1},
		Price:     pricing.Quote{Nights: 2, Total: money.Must(20000, "EUR")},
		CreatedAt: start,
		Hold:      10 * time.Minute,
	})
	require.NoError(t, err)
	if confirm {
		_, err = r.Confirm("pay", reservation.MethodEWallet, false, start)
		require.NoError(t, err)
	}
	require.NoError(t, f.store.ReservationsRepo.Save(context.Background(), r))
}

func TestSyncConfirmedReservationStampsOnlyAfterSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reservation(t, "r1", "lakeside", true)
	f.hostway.failNext = 1

	res, err := f.svc.SyncConfirmedReservation(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.True(t, res.Items[0].Synced)
	require.NotEmpty(t, res.Items[1].Error)

	stored, err := f.store.ReservationsRepo.ByID(ctx, "r1")
	require.NoError(t, err)
	require.True(t, stored.SyncedTo("beds24"))
	require.False(t, stored.SyncedTo("hostaway"))
	require.Len(t, f.beds.bookings, 1)
	require.Equal(t, "2026-05-04", f.beds.bookings[0].CheckIn)
	require.Equal(t, "p-2", f.beds.bookings[0].Listing.PropertyID)

	again, err := f.svc.SyncConfirmedReservation(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, SkipAlreadySent, again.Items[0].Skipped)
	require.True(t, again.Items[1].Synced)
	require.Len(t, f.beds.bookings, 1)
	require.Contains(t, f.box.Names(), "reservation.channel_synced")
}

func TestSyncConfirmedReservationSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reservation(t, "pending", "alpen", false)
	f.reservation(t, "confirmed", "alpen", true)

	res, err := f.svc.SyncConfirmedReservation(ctx, "pending")
	require.NoError(t, err)
	require.Equal(t, SkipNotConfirmed, res.Items[0].Skipped)
	require.Equal(t, SkipNotConfirmed, res.Items[1].Skipped)

	res, err = f.svc.SyncConfirmedReservation(ctx, "confirmed")
	require.NoError(t, err)
	require.True(t, res.Items[0].Synced)
	require.Equal(t, SkipNotWired, res.Items[1].Skipped)
	require.Empty(t, f.hostway.bookings)

	_, err = f.svc.SyncConfirmedReservation(ctx, "missing")
	require.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestSyncUnsyncedRetriesMissingStamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reservation(t, "r1", "lakeside", true)
	f.reservation(t, "r2", "alpen", true)
	f.reservation(t, "r3", "alpen", false)
	f.beds.failNext = 1

	first, err := f.svc.SyncUnsynced(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, first.Attempted)
	require.Equal(t, 1, first.Failed)

	second, err := f.svc.SyncUnsynced(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, second.Attempted)
	require.Equal(t, 1, second.Synced)

	third, err := f.svc.SyncUnsynced(ctx)
	require.NoError(t, err)
	require.Zero(t, third.Attempted)
}

func TestSyncManualBlocksChunksAndDryRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := daterange.ParseRange("2026-04-10", "2026-04-12")
	require.NoError(t, err)
	blocks, err := availability.BlocksForRange("lakeside", r, "maintenance", start)
	require.NoError(t, err)
	_, err = f.store.BlocksRepo.Add(ctx, blocks)
	require.NoError(t, err)
	f.beds.batch = 10

	dry, err := f.svc.SyncManualBlocks(ctx, "lakeside", true)
	require.NoError(t, err)
	require.Len(t, dry.Reports, 2)
	require.Equal(t, 30, dry.Reports[0].DatesSent)
	require.Equal(t, 2, dry.Reports[0].Closed)
	require.Equal(t, 3, dry.Reports[0].Chunks)
	require.Equal(t, 1, dry.Reports[1].Chunks)
	require.Empty(t, f.beds.pushes)

	_, err = f.svc.SyncManualBlocks(ctx, "lakeside", false)
	require.NoError(t, err)
	require.Len(t, f.beds.pushes, 3)
	require.Len(t, f.hostway.pushes, 1)
	closed := map[string]bool{}
	for _, d := range f.hostway.pushes[0] {
		if !d.Open {
			closed[d.Date] = true
		}
	}
	require.Equal(t, map[string]bool{"2026-04-10": true, "2026-04-11": true}, closed)
}

func TestChunk(t *testing.T) {
	days := make([]policies.DayAvailability, 7)
	require.Len(t, Chunk(days, 3), 3)
	require.Len(t, Chunk(days, 0), 1)
	require.Len(t, Chunk(days, 7), 1)
	require.Nil(t, Chunk(nil, 3))
}
