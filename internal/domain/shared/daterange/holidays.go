package daterange

import "time"

// MonthDay identifies a recurring calendar day regardless of year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// DefaultHolidays are the fixed-date national holidays priced at the weekend rate.
var DefaultHolidays = []MonthDay{
	{time.January, 1},
	{time.May, 1},
	{time.August, 15},
	{time.November, 1},
	{time.November, 11},
	{time.December, 24},
	{time.December, 25},
	{time.December, 26},
	{time.December, 31},
}

// HolidayCalendar classifies dates for pricing. It is never consulted for availability.
type HolidayCalendar struct {
	Holidays []MonthDay
}

func (c HolidayCalendar) IsWeekendOrHoliday(t time.Time) bool {
	t = Normalize(t)
	switch t.Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return true
	}
	holidays := c.Holidays
	if holidays == nil {
		holidays = DefaultHolidays
	}
	for _, h := range holidays {
		if t.Month() == h.Month && t.Day() == h.Day {
			return true
		}
	}
	return false
}

// IsWeekendOrHoliday uses DefaultHolidays.
func IsWeekendOrHoliday(t time.Time) bool {
	return HolidayCalendar{}.IsWeekendOrHoliday(t)
}
