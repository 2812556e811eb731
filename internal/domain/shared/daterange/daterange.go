package daterange

import (
	"errors"
	"math"
	"time"
)

// Layout is the wire and storage format for calendar dates.
const Layout = "2006-01-02"

const day = 24 * time.Hour

var (
	ErrInvalidRange = errors.New("daterange: checkout must not be before checkin")
	ErrInvalidDate  = errors.New("daterange: invalid calendar date")
)

// DateRange represents the nights [CheckIn, CheckOut). A range whose ends are
// equal is a same-day stay that occupies the single night CheckIn.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Normalize(checkIn), CheckOut: Normalize(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// ParseRange builds a range from two YYYY-MM-DD strings.
func ParseRange(checkIn, checkOut string) (DateRange, error) {
	in, err := Parse(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := Parse(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if dr.CheckOut.Before(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) SameDay() bool {
	return Normalize(dr.CheckIn).Equal(Normalize(dr.CheckOut))
}

func (dr DateRange) Nights() int {
	return Nights(dr.CheckIn, dr.CheckOut)
}

// Dates lists the occupied nights.
func (dr DateRange) Dates() []string {
	return DatesBetween(dr.CheckIn, dr.CheckOut)
}

// LastNight is the final occupied night of the range.
func (dr DateRange) LastNight() time.Time {
	if dr.SameDay() {
		return Normalize(dr.CheckIn)
	}
	return Normalize(dr.CheckOut).Add(-day)
}

// Overlaps reports whether the two ranges share at least one night.
func (dr DateRange) Overlaps(other DateRange) bool {
	a0, a1 := Normalize(dr.CheckIn), dr.LastNight()
	b0, b1 := Normalize(other.CheckIn), other.LastNight()
	return !a0.After(b1) && !b0.After(a1)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Normalize(t)
	return !t.Before(Normalize(dr.CheckIn)) && !t.After(dr.LastNight())
}

func (dr DateRange) String() string {
	return Format(dr.CheckIn) + ".." + Format(dr.CheckOut)
}

// Normalize returns midnight UTC of the calendar date t shows in its own
// location. The date itself is never shifted between zones.
func Normalize(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Parse(value string) (time.Time, error) {
	t, err := time.Parse(Layout, value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func MustParse(value string) time.Time {
	t, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return t
}

func Format(t time.Time) string {
	return Normalize(t).Format(Layout)
}

// DatesBetween enumerates each night from start inclusive to end exclusive.
// When both fall on the same date the single date start is returned. An end
// before start yields no dates.
func DatesBetween(start, end time.Time) []string {
	from, to := Normalize(start), Normalize(end)
	if from.Equal(to) {
		return []string{from.Format(Layout)}
	}
	if to.Before(from) {
		return []string{}
	}
	out := make([]string, 0, int(to.Sub(from)/day))
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(Layout))
	}
	return out
}

// Nights is the ceiling of the day difference, never less than one.
func Nights(start, end time.Time) int {
	diff := end.Sub(start).Hours() / 24
	n := int(math.Ceil(diff))
	if n < 1 {
		return 1
	}
	return n
}

// DaysBetween counts calendar days from start to end, ignoring time of day.
func DaysBetween(start, end time.Time) int {
	return int(Normalize(end).Sub(Normalize(start)) / day)
}
