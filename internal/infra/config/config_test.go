package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/domain/reservation"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("CHANNELS", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, 10*time.Minute, cfg.HoldDefault)
	require.Equal(t, 24*time.Hour, cfg.HoldSlowPayment)
	require.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	require.Equal(t, 365*24*time.Hour, cfg.Horizon())
	require.Equal(t, reservation.StayLimits{MaxNights: 30, Horizon: 365 * 24 * time.Hour}, cfg.StayLimits())
	require.False(t, cfg.EventsEnabled())
}

func TestLoadChannels(t *testing.T) {
	t.Setenv("CHANNELS", "Beds24, hostaway")
	t.Setenv("CHANNEL_BEDS24_URL", "https://beds.example.com")
	t.Setenv("CHANNEL_BEDS24_KEY", "k1")
	t.Setenv("CHANNEL_BEDS24_BATCH", "50")
	t.Setenv("CHANNEL_HOSTAWAY_URL", "https://host.example.com")
	t.Setenv("CHANNEL_HOSTAWAY_KEY", "k2")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"beds24", "hostaway"}, cfg.ChannelNames())
	require.Equal(t, 50, cfg.Channels[0].BatchSize)
	require.Equal(t, 100, cfg.Channels[1].BatchSize)

	t.Setenv("CHANNEL_HOSTAWAY_KEY", "")
	_, err = Load()
	require.ErrorContains(t, err, "CHANNEL_HOSTAWAY_KEY")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"driver":    {"STORE_DRIVER", "sqlite"},
		"duration":  {"HOLD_DEFAULT", "ten minutes"},
		"integer":   {"FEED_RETRIES", "many"},
		"boolean":   {"S3_USE_SSL", "maybe"},
		"sync mode": {"CHANNEL_SYNC_MODE", "push"},
		"stay":      {"MAX_STAY_NIGHTS", "0"},
		"horizon":   {"BOOKING_HORIZON_DAYS", "-5"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestValidateStoreRequirements(t *testing.T) {
	base := Config{StoreDriver: StoreMongo, ChannelSyncMode: SyncInline, HoldDefault: time.Minute, HoldSlowPayment: time.Hour, HorizonDays: 30, MaxStayNights: 14, BookingHorizon: 90}
	require.ErrorContains(t, base.Validate(), "MONGO_URI")
	base.MongoURI = "mongodb://localhost"
	require.NoError(t, base.Validate())

	events := base
	events.ChannelSyncMode = SyncEvents
	require.ErrorContains(t, events.Validate(), "KAFKA_BROKERS")
	events.KafkaBrokers = []string{"localhost:9092"}
	require.NoError(t, events.Validate())

	events.StoreDriver = StoreMemory
	require.ErrorContains(t, events.Validate(), "persistent outbox")

	short := base
	short.HoldSlowPayment = time.Second
	require.Error(t, short.Validate())
}

const chaletsYAML = `
holidays: ["01-01", "12-25"]
chalets:
  - id: alpen
    name: Alpen Hut
    max_guests: 4
    feeds:
      - label: airbnb
        url: https://www.airbnb.com/calendar/ical/1.ics
    channels:
      beds24: {property_id: "p-1", room_id: "r-1"}
    rates: {currency: eur, weekday: 10000, weekend: 15000, included_guests: 2, extra_adult: 2000}
  - id: lakeside
    max_guests: 6
    rates: {currency: EUR, weekday: 12000, weekend: 18000}
`

func TestParseChalets(t *testing.T) {
	items, err := ParseChalets(strings.NewReader(chaletsYAML), []string{"beds24"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	alpen := items[0]
	require.Equal(t, "Alpen Hut", alpen.Name)
	require.Equal(t, "EUR", alpen.Rates.Currency)
	require.Len(t, alpen.Feeds, 1)
	listing, ok := alpen.Listing("beds24")
	require.True(t, ok)
	require.Equal(t, "p-1", listing.PropertyID)
	require.Len(t, alpen.Rates.Holidays.Holidays, 2)
	require.True(t, alpen.Rates.Holidays.IsWeekendOrHoliday(time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)))

	require.Equal(t, "lakeside", items[1].Name)
}

func TestParseChaletsValidation(t *testing.T) {
	cases := map[string]string{
		"duplicate id": `
chalets:
  - {id: a, max_guests: 2, rates: {currency: EUR, weekday: 1, weekend: 1}}
  - {id: a, max_guests: 2, rates: {currency: EUR, weekday: 1, weekend: 1}}
`,
		"relative feed": `
chalets:
  - id: a
    max_guests: 2
    feeds: [{label: x, url: /cal.ics}]
    rates: {currency: EUR, weekday: 1, weekend: 1}
`,
		"unknown channel": `
chalets:
  - id: a
    max_guests: 2
    channels: {vrbo: {property_id: p}}
    rates: {currency: EUR, weekday: 1, weekend: 1}
`,
		"zero rate": `
chalets:
  - {id: a, max_guests: 2, rates: {currency: EUR, weekday: 0, weekend: 1}}
`,
		"no guests": `
chalets:
  - {id: a, max_guests: 0, rates: {currency: EUR, weekday: 1, weekend: 1}}
`,
		"unknown field": `
chalets:
  - {id: a, max_guests: 2, colour: red, rates: {currency: EUR, weekday: 1, weekend: 1}}
`,
		"empty": `chalets: []`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseChalets(strings.NewReader(doc), []string{"beds24"})
			require.Error(t, err)
		})
	}
}
