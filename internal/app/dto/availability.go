package dto

import (
	"chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/chalets"
)

type Availability struct {
	ChaletID         string   `json:"chalet_id"`
	Available        bool     `json:"available"`
	ConflictingDates []string `json:"conflicting_dates"`
	RequestedDates   []string `json:"requested_dates"`
	AllBlockedDates  []string `json:"all_blocked_dates"`
}

type CalendarDay struct {
	Date    string   `json:"date"`
	Blocked bool     `json:"blocked"`
	Sources []string `json:"sources,omitempty"`
}

type Calendar struct {
	ChaletID string        `json:"chalet_id"`
	From     string        `json:"from"`
	To       string        `json:"to"`
	Days     []CalendarDay `json:"days"`
}

func MapCalendarDays(days []availability.Day) []CalendarDay {
	out := make([]CalendarDay, 0, len(days))
	for _, d := range days {
		out = append(out, CalendarDay{Date: d.Date, Blocked: d.Blocked, Sources: d.Sources})
	}
	return out
}

type ChaletSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MaxGuests int      `json:"max_guests"`
	Currency  string   `json:"currency"`
	FromRate  MoneyDTO `json:"from_rate"`
	Channels  []string `json:"channels,omitempty"`
}

func MapChalet(c chalets.Chalet) ChaletSummary {
	rate := c.Rates.WeekdayRate
	if c.Rates.WeekendRate < rate {
		rate = c.Rates.WeekendRate
	}
	channels := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		channels = append(channels, name)
	}
	sortStrings(channels)
	return ChaletSummary{
		ID:        string(c.ID),
		Name:      c.Name,
		MaxGuests: c.MaxGuests,
		Currency:  c.Rates.Currency,
		FromRate:  MoneyDTO{Amount: rate, Currency: c.Rates.Currency},
		Channels:  channels,
	}
}

type ManualBlock struct {
	Date      string `json:"date"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

type ManualBlockCollection struct {
	ChaletID string        `json:"chalet_id"`
	Items    []ManualBlock `json:"items"`
}

type BlockChange struct {
	ChaletID string   `json:"chalet_id"`
	Dates    []string `json:"dates"`
}
