package pricing

import (
	"errors"
	"fmt"

	"chaletbook/internal/domain/shared/daterange"
	"chaletbook/internal/domain/shared/money"
)

var (
	ErrCurrencyUnset = errors.New("pricing: currency must be defined")
	ErrInvalidRates  = errors.New("pricing: nightly rates must be positive")
	ErrInvalidParty  = errors.New("pricing: at least one adult required")
)

// RateCard holds nightly prices in minor currency units.
type RateCard struct {
	Currency          string
	WeekdayRate       int64
	WeekendRate       int64
	IncludedGuests    int
	ExtraAdultRate    int64
	ExtraChildRate    int64
	ChildFreeUnderAge int
	Holidays          daterange.HolidayCalendar
}

func (c RateCard) Validate() error {
	if _, err := money.Currency(c.Currency); err != nil {
		return fmt.Errorf("%w: %v", ErrCurrencyUnset, err)
	}
	if c.WeekdayRate <= 0 || c.WeekendRate <= 0 {
		return ErrInvalidRates
	}
	if c.ExtraAdultRate < 0 || c.ExtraChildRate < 0 || c.IncludedGuests < 0 {
		return fmt.Errorf("%w: surcharges cannot be negative", ErrInvalidRates)
	}
	return nil
}

// Party counts guests. Infants are children under the rate card's free-age cutoff.
type Party struct {
	Adults   int `json:"adults" bson:"adults"`
	Children int `json:"children" bson:"children"`
	Infants  int `json:"infants" bson:"infants"`
}

func (p Party) Total() int {
	return p.Adults + p.Children + p.Infants
}

type NightLine struct {
	Date    string      `json:"date" bson:"date"`
	Weekend bool        `json:"weekend" bson:"weekend"`
	Rate    money.Money `json:"rate" bson:"rate"`
}

type Surcharge struct {
	Name   string      `json:"name" bson:"name"`
	Guests int         `json:"guests" bson:"guests"`
	Nights int         `json:"nights" bson:"nights"`
	Amount money.Money `json:"amount" bson:"amount"`
}

// Quote is the priced breakdown of a stay.
type Quote struct {
	Nights     int         `json:"nights" bson:"nights"`
	Lines      []NightLine `json:"lines" bson:"lines"`
	Surcharges []Surcharge `json:"surcharges" bson:"surcharges"`
	Total      money.Money `json:"total" bson:"total"`
}

func (q Quote) Copy() Quote {
	clone := q
	clone.Lines = append([]NightLine(nil), q.Lines...)
	clone.Surcharges = append([]Surcharge(nil), q.Surcharges...)
	return clone
}

// Price computes the weekday/weekend nightly lines plus per-extra-guest surcharges.
func (c RateCard) Price(stay daterange.DateRange, party Party) (Quote, error) {
	if err := c.Validate(); err != nil {
		return Quote{}, err
	}
	if party.Adults < 1 {
		return Quote{}, ErrInvalidParty
	}
	if err := stay.Validate(); err != nil {
		return Quote{}, err
	}

	dates := stay.Dates()
	q := Quote{Nights: len(dates), Lines: make([]NightLine, 0, len(dates))}
	total := money.Zero(c.Currency)
	for _, d := range dates {
		date := daterange.MustParse(d)
		weekend := c.Holidays.IsWeekendOrHoliday(date)
		rate := c.WeekdayRate
		if weekend {
			rate = c.WeekendRate
		}
		line := NightLine{Date: d, Weekend: weekend, Rate: money.Money{Amount: rate, Currency: total.Currency}}
		q.Lines = append(q.Lines, line)
		total.Amount += rate
	}

	extraAdults, extraChildren := c.extraGuests(party)
	if extraAdults > 0 && c.ExtraAdultRate > 0 {
		s := c.surcharge("extra_adult", extraAdults, c.ExtraAdultRate, q.Nights)
		q.Surcharges = append(q.Surcharges, s)
		total.Amount += s.Amount.Amount
	}
	if extraChildren > 0 && c.ExtraChildRate > 0 {
		s := c.surcharge("extra_child", extraChildren, c.ExtraChildRate, q.Nights)
		q.Surcharges = append(q.Surcharges, s)
		total.Amount += s.Amount.Amount
	}
	q.Total = total
	return q, nil
}

// extraGuests fills the included places with adults first.
func (c RateCard) extraGuests(p Party) (adults, children int) {
	adults = p.Adults - c.IncludedGuests
	if adults < 0 {
		adults = 0
	}
	free := c.IncludedGuests - p.Adults
	if free < 0 {
		free = 0
	}
	children = p.Children - free
	if children < 0 {
		children = 0
	}
	return adults, children
}

func (c RateCard) surcharge(name string, guests int, rate int64, nights int) Surcharge {
	return Surcharge{
		Name:   name,
		Guests: guests,
		Nights: nights,
		Amount: money.Money{Amount: rate, Currency: c.Currency}.Times(int64(guests) * int64(nights)),
	}
}
