package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/shared/daterange"
)

type chaletsFile struct {
	Holidays []string     `yaml:"holidays"`
	Chalets  []chaletYAML `yaml:"chalets"`
}

type chaletYAML struct {
	ID        string                 `yaml:"id"`
	Name      string                 `yaml:"name"`
	MaxGuests int                    `yaml:"max_guests"`
	Feeds     []feedYAML             `yaml:"feeds"`
	Channels  map[string]listingYAML `yaml:"channels"`
	Rates     ratesYAML              `yaml:"rates"`
}

type feedYAML struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

type listingYAML struct {
	PropertyID string `yaml:"property_id"`
	RoomID     string `yaml:"room_id"`
}

type ratesYAML struct {
	Currency          string `yaml:"currency"`
	Weekday           int64  `yaml:"weekday"`
	Weekend           int64  `yaml:"weekend"`
	IncludedGuests    int    `yaml:"included_guests"`
	ExtraAdult        int64  `yaml:"extra_adult"`
	ExtraChild        int64  `yaml:"extra_child"`
	ChildFreeUnderAge int    `yaml:"child_free_under_age"`
}

// LoadChalets reads the chalet map from a YAML file. knownChannels lists the
// channel names a listing may reference; nil accepts none.
func LoadChalets(path string, knownChannels []string) ([]chalets.Chalet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chalets file: %w", err)
	}
	defer f.Close()
	return ParseChalets(f, knownChannels)
}

// ParseChalets decodes and validates a chalet map.
func ParseChalets(r io.Reader, knownChannels []string) ([]chalets.Chalet, error) {
	var doc chaletsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode chalets: %w", err)
	}
	if len(doc.Chalets) == 0 {
		return nil, errors.New("chalets: at least one chalet is required")
	}

	holidays, err := parseHolidays(doc.Holidays)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(knownChannels))
	for _, name := range knownChannels {
		known[name] = true
	}

	seen := make(map[string]bool, len(doc.Chalets))
	out := make([]chalets.Chalet, 0, len(doc.Chalets))
	var errs []error
	for i, raw := range doc.Chalets {
		id := strings.TrimSpace(raw.ID)
		where := fmt.Sprintf("chalets[%d] (%s)", i, id)
		if id == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", where))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("%s: duplicate id", where))
			continue
		}
		seen[id] = true
		if raw.MaxGuests < 1 {
			errs = append(errs, fmt.Errorf("%s: max_guests must be at least 1", where))
		}

		c := chalets.Chalet{
			ID:        chalets.ChaletID(id),
			Name:      raw.Name,
			MaxGuests: raw.MaxGuests,
			Channels:  make(map[string]chalets.ChannelListing, len(raw.Channels)),
			Rates: pricing.RateCard{
				Currency:          strings.ToUpper(raw.Rates.Currency),
				WeekdayRate:       raw.Rates.Weekday,
				WeekendRate:       raw.Rates.Weekend,
				IncludedGuests:    raw.Rates.IncludedGuests,
				ExtraAdultRate:    raw.Rates.ExtraAdult,
				ExtraChildRate:    raw.Rates.ExtraChild,
				ChildFreeUnderAge: raw.Rates.ChildFreeUnderAge,
				Holidays:          holidays,
			},
		}
		if c.Name == "" {
			c.Name = id
		}
		if err := c.Rates.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		for _, feed := range raw.Feeds {
			u, err := url.Parse(feed.URL)
			if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, fmt.Errorf("%s: feed %q needs an absolute http(s) url", where, feed.Label))
				continue
			}
			label := feed.Label
			if label == "" {
				label = u.Host
			}
			c.Feeds = append(c.Feeds, chalets.Feed{Label: label, URL: feed.URL})
		}
		for name, listing := range raw.Channels {
			name = strings.ToLower(name)
			if !known[name] {
				errs = append(errs, fmt.Errorf("%s: unknown channel %q", where, name))
				continue
			}
			if listing.PropertyID == "" {
				errs = append(errs, fmt.Errorf("%s: channel %q needs property_id", where, name))
				continue
			}
			c.Channels[name] = chalets.ChannelListing{PropertyID: listing.PropertyID, RoomID: listing.RoomID}
		}
		out = append(out, c)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// parseHolidays reads "MM-DD" entries. An empty list keeps the default calendar.
func parseHolidays(raw []string) (daterange.HolidayCalendar, error) {
	if len(raw) == 0 {
		return daterange.HolidayCalendar{}, nil
	}
	cal := daterange.HolidayCalendar{Holidays: make([]daterange.MonthDay, 0, len(raw))}
	for _, s := range raw {
		t, err := time.Parse("01-02", strings.TrimSpace(s))
		if err != nil {
			return daterange.HolidayCalendar{}, fmt.Errorf("invalid holiday %q: want MM-DD", s)
		}
		cal.Holidays = append(cal.Holidays, daterange.MonthDay{Month: t.Month(), Day: t.Day()})
	}
	return cal, nil
}

// ChannelNames lists the configured channel names in declaration order.
func (c Config) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for _, ch := range c.Channels {
		names = append(names, ch.Name)
	}
	return names
}
