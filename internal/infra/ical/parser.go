package ical

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/shared/daterange"
)

const (
	dateLayout     = "20060102"
	utcLayout      = "20060102T150405Z"
	floatingLayout = "20060102T150405"
)

// Parse reads every VEVENT of an iCalendar payload as a booked interval.
// Events whose dates cannot be read are skipped and logged.
func Parse(r io.Reader, label string, logger *slog.Logger) ([]availability.ExternalInterval, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ical: parse calendar: %w", err)
	}
	events := cal.Events()
	out := make([]availability.ExternalInterval, 0, len(events))
	for _, ev := range events {
		start, end, err := eventSpan(ev)
		if err != nil {
			if logger != nil {
				logger.Warn("ical event skipped", "feed", label, "uid", ev.Id(), "error", err)
			}
			continue
		}
		interval := availability.ExternalInterval{Start: start, End: end, Label: label}
		if p := ev.GetProperty(ics.ComponentPropertySummary); p != nil {
			interval.Summary = p.Value
		}
		out = append(out, interval)
	}
	return out, nil
}

// eventSpan resolves the nights an event occupies. DTEND wins over DURATION;
// with neither the event covers its start night only.
func eventSpan(ev *ics.VEvent) (time.Time, time.Time, error) {
	startProp := ev.GetProperty(ics.ComponentPropertyDtStart)
	if startProp == nil {
		return time.Time{}, time.Time{}, errors.New("missing DTSTART")
	}
	start, err := parseWhen(startProp)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("DTSTART: %w", err)
	}

	var end time.Time
	switch {
	case ev.GetProperty(ics.ComponentPropertyDtEnd) != nil:
		end, err = parseWhen(ev.GetProperty(ics.ComponentPropertyDtEnd))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("DTEND: %w", err)
		}
	case ev.GetProperty(ics.ComponentProperty(ics.PropertyDuration)) != nil:
		d, err := ParseDuration(ev.GetProperty(ics.ComponentProperty(ics.PropertyDuration)).Value)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("DURATION: %w", err)
		}
		end = start.Add(d)
	default:
		end = start.AddDate(0, 0, 1)
	}

	startDay := daterange.Normalize(start)
	endDay := daterange.Normalize(end)
	if endDay.Equal(startDay) {
		endDay = startDay.AddDate(0, 0, 1)
	}
	if endDay.Before(startDay) {
		return time.Time{}, time.Time{}, errors.New("end before start")
	}
	return startDay, endDay, nil
}

func parseWhen(p *ics.IANAProperty) (time.Time, error) {
	raw := strings.TrimSpace(p.Value)
	if vals := p.ICalParameters[string(ics.ParameterValue)]; len(vals) > 0 && strings.EqualFold(vals[0], "DATE") {
		return time.ParseInLocation(dateLayout, raw, time.UTC)
	}
	loc := time.UTC
	if tz := p.ICalParameters[string(ics.ParameterTzid)]; len(tz) > 0 {
		if l, err := time.LoadLocation(tz[0]); err == nil {
			loc = l
		}
	}
	switch len(raw) {
	case len(dateLayout):
		return time.ParseInLocation(dateLayout, raw, time.UTC)
	case len(utcLayout):
		return time.Parse(utcLayout, raw)
	case len(floatingLayout):
		return time.ParseInLocation(floatingLayout, raw, loc)
	}
	return time.Time{}, fmt.Errorf("unsupported date %q", raw)
}

var durationPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration reads an RFC 5545 duration such as P3D, PT36H or P1W.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	m := durationPattern.FindStringSubmatch(raw)
	if m == nil || raw == "P" || strings.HasSuffix(raw, "T") {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		total += time.Duration(n) * unit
	}
	if m[1] == "-" {
		total = -total
	}
	return total, nil
}
