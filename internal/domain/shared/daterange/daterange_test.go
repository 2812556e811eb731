package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDatesBetweenSameDayReturnsSingleDate(t *testing.T) {
	d := MustParse("2026-04-12")
	require.Equal(t, []string{"2026-04-12"}, DatesBetween(d, d))
}

func TestDatesBetweenExcludesEnd(t *testing.T) {
	got := DatesBetween(MustParse("2026-05-30"), MustParse("2026-06-02"))
	require.Equal(t, []string{"2026-05-30", "2026-05-31", "2026-06-01"}, got)
	require.NotContains(t, got, "2026-06-02")
}

func TestDatesBetweenIgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2026, 4, 10, 23, 30, 0, 0, time.UTC)
	end := time.Date(2026, 4, 12, 1, 0, 0, 0, time.UTC)
	require.Equal(t, []string{"2026-04-10", "2026-04-11"}, DatesBetween(start, end))

	// the calendar date is read in the value's own zone, never converted
	loc := time.FixedZone("UTC+3", 3*3600)
	local := time.Date(2026, 4, 10, 1, 0, 0, 0, loc)
	require.Equal(t, "2026-04-10", Format(local))
}

func TestDatesBetweenReversedIsEmpty(t *testing.T) {
	require.Empty(t, DatesBetween(MustParse("2026-04-12"), MustParse("2026-04-10")))
}

func TestNights(t *testing.T) {
	require.Equal(t, 1, Nights(MustParse("2026-04-10"), MustParse("2026-04-10")))
	require.Equal(t, 2, Nights(MustParse("2026-04-10"), MustParse("2026-04-12")))
	require.Equal(t, 2, Nights(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 11, 6, 0, 0, 0, time.UTC)))
	require.Equal(t, 1, Nights(MustParse("2026-04-12"), MustParse("2026-04-10")))
}

func TestNewRejectsCheckoutBeforeCheckin(t *testing.T) {
	_, err := New(MustParse("2026-04-12"), MustParse("2026-04-10"))
	require.ErrorIs(t, err, ErrInvalidRange)

	dr, err := New(MustParse("2026-04-12"), MustParse("2026-04-12"))
	require.NoError(t, err)
	require.True(t, dr.SameDay())
	require.Equal(t, 1, dr.Nights())
}

func TestOverlapsTreatsCheckoutAsFree(t *testing.T) {
	a, _ := ParseRange("2026-04-10", "2026-04-12")
	turnover, _ := ParseRange("2026-04-12", "2026-04-14")
	sameDayCheckout, _ := ParseRange("2026-04-12", "2026-04-12")
	sameDayArrival, _ := ParseRange("2026-04-10", "2026-04-10")

	require.False(t, a.Overlaps(turnover))
	require.False(t, a.Overlaps(sameDayCheckout))
	require.True(t, a.Overlaps(sameDayArrival))
	require.True(t, sameDayArrival.Overlaps(a))
}

func TestIsWeekendOrHoliday(t *testing.T) {
	require.True(t, IsWeekendOrHoliday(MustParse("2026-04-10")))  // Friday
	require.True(t, IsWeekendOrHoliday(MustParse("2026-04-12")))  // Sunday
	require.False(t, IsWeekendOrHoliday(MustParse("2026-04-14"))) // Tuesday
	require.True(t, IsWeekendOrHoliday(MustParse("2026-12-24")))  // Thursday, holiday
	require.True(t, IsWeekendOrHoliday(MustParse("2027-12-24")))

	custom := HolidayCalendar{Holidays: []MonthDay{{time.April, 14}}}
	require.True(t, custom.IsWeekendOrHoliday(MustParse("2026-04-14")))
	require.False(t, custom.IsWeekendOrHoliday(MustParse("2026-12-24")))
}
