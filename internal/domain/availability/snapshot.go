package availability

import (
	"sort"
	"time"

	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/daterange"
)

const (
	SourceReservation = "reservation"
	SourceHold        = "hold"
	SourceManual      = "manual"
	feedSourcePrefix  = "feed:"
)

func FeedSource(label string) string {
	return feedSourcePrefix + label
}

// ExternalInterval is a booking read from a third-party calendar feed.
type ExternalInterval struct {
	Start   time.Time
	End     time.Time
	Label   string
	Summary string
}

// Interval is one blocking occupancy of nights [Range.CheckIn, Range.CheckOut).
type Interval struct {
	Range  daterange.DateRange
	Source string
}

// Snapshot is the union of every blocking source for one chalet at one instant.
type Snapshot struct {
	sources  map[string][]string
	arrivals map[string]struct{}
}

type Result struct {
	Available        bool
	ConflictingDates []string
	RequestedDates   []string
}

type Day struct {
	Date    string
	Blocked bool
	Sources []string
}

// Build unions the intervals. The result is independent of input order.
func Build(intervals []Interval) *Snapshot {
	s := &Snapshot{
		sources:  make(map[string][]string),
		arrivals: make(map[string]struct{}),
	}
	for _, iv := range intervals {
		dates := daterange.DatesBetween(iv.Range.CheckIn, iv.Range.CheckOut)
		if len(dates) == 0 {
			continue
		}
		s.arrivals[dates[0]] = struct{}{}
		for _, d := range dates {
			s.addSource(d, iv.Source)
		}
	}
	for d := range s.sources {
		sort.Strings(s.sources[d])
	}
	return s
}

func (s *Snapshot) addSource(date, source string) {
	for _, existing := range s.sources[date] {
		if existing == source {
			return
		}
	}
	s.sources[date] = append(s.sources[date], source)
}

func (s *Snapshot) Blocked(date string) bool {
	_, ok := s.sources[date]
	return ok
}

// IsArrival reports whether some blocking interval starts on date.
func (s *Snapshot) IsArrival(date string) bool {
	_, ok := s.arrivals[date]
	return ok
}

// Check answers whether stay can be booked. A same-day stay is also refused
// on a date where another stay begins, even though that night would otherwise
// be free.
func (s *Snapshot) Check(stay daterange.DateRange) Result {
	requested := stay.Dates()
	res := Result{RequestedDates: requested, ConflictingDates: []string{}}
	if stay.SameDay() {
		d := requested[0]
		if s.Blocked(d) || s.IsArrival(d) {
			res.ConflictingDates = append(res.ConflictingDates, d)
		}
		res.Available = len(res.ConflictingDates) == 0
		return res
	}
	for _, d := range requested {
		if s.Blocked(d) {
			res.ConflictingDates = append(res.ConflictingDates, d)
		}
	}
	sort.Strings(res.ConflictingDates)
	res.Available = len(res.ConflictingDates) == 0
	return res
}

// BlockedBetween lists blocked dates in [from, to), sorted.
func (s *Snapshot) BlockedBetween(from, to time.Time) []string {
	lo, hi := daterange.Format(from), daterange.Format(to)
	out := make([]string, 0)
	for d := range s.sources {
		if d >= lo && d < hi {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// Calendar renders each night in [from, to) with the sources blocking it.
func (s *Snapshot) Calendar(from, to time.Time) []Day {
	if !daterange.Normalize(to).After(daterange.Normalize(from)) {
		return []Day{}
	}
	dates := daterange.DatesBetween(from, to)
	out := make([]Day, 0, len(dates))
	for _, d := range dates {
		src := s.sources[d]
		out = append(out, Day{Date: d, Blocked: len(src) > 0, Sources: append([]string(nil), src...)})
	}
	return out
}

// Window is the range reported as allBlockedDates: from the earlier of today
// and check-in, to the later of check-out and today+horizon.
func Window(today time.Time, stay daterange.DateRange, horizon time.Duration) (time.Time, time.Time) {
	from := daterange.Normalize(today)
	if in := daterange.Normalize(stay.CheckIn); in.Before(from) {
		from = in
	}
	to := daterange.Normalize(today.Add(horizon))
	if out := daterange.Normalize(stay.CheckOut); out.After(to) {
		to = out
	}
	return from, to
}

// ReservationIntervals keeps only reservations blocking at now. Pending
// reservations whose hold lapsed are dropped whatever their stored status.
func ReservationIntervals(rs []*reservation.Reservation, now time.Time) []Interval {
	out := make([]Interval, 0, len(rs))
	for _, r := range rs {
		if r == nil || !r.IsBlocking(now) {
			continue
		}
		src := SourceReservation
		if r.Status == reservation.StatusPending {
			src = SourceHold
		}
		out = append(out, Interval{Range: r.Stay, Source: src})
	}
	return out
}

func BlockIntervals(blocks []ManualBlock) []Interval {
	out := make([]Interval, 0, len(blocks))
	for _, b := range blocks {
		d := daterange.Normalize(b.Date)
		out = append(out, Interval{Range: daterange.DateRange{CheckIn: d, CheckOut: d.AddDate(0, 0, 1)}, Source: SourceManual})
	}
	return out
}

func ExternalIntervals(items []ExternalInterval) []Interval {
	out := make([]Interval, 0, len(items))
	for _, it := range items {
		r := daterange.DateRange{CheckIn: daterange.Normalize(it.Start), CheckOut: daterange.Normalize(it.End)}
		if r.Validate() != nil {
			continue
		}
		out = append(out, Interval{Range: r, Source: FeedSource(it.Label)})
	}
	return out
}
