package availability

import (
	"context"
	"time"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/queries"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/daterange"
)

const getCalendarKey = "availability.calendar"

// GetCalendarQuery renders per-night availability for widgets. Empty bounds
// default to today and today plus the horizon.
type GetCalendarQuery struct {
	ChaletID string `validate:"required"`
	From     string `validate:"omitempty,datetime=2006-01-02"`
	To       string `validate:"omitempty,datetime=2006-01-02"`
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

// CalendarCache holds rendered calendars for a short, advisory period.
type CalendarCache interface {
	Get(key string) (dto.Calendar, bool)
	Put(key string, value dto.Calendar)
}

type GetCalendarHandler struct {
	Chalets  chalets.Directory
	Resolver *Resolver
	Cache    CalendarCache
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	chalet, err := h.Chalets.ByID(ctx, chalets.ChaletID(q.ChaletID))
	if err != nil {
		return dto.Calendar{}, apperr.NotFound("chalet_not_found", "chalet not found", err)
	}
	now := h.Resolver.Now()
	from, to, err := h.bounds(q, now)
	if err != nil {
		return dto.Calendar{}, err
	}
	key := string(chalet.ID) + "|" + daterange.Format(from) + "|" + daterange.Format(to)
	if h.Cache != nil {
		if cal, ok := h.Cache.Get(key); ok {
			return cal, nil
		}
	}
	snap, err := h.Resolver.Snapshot(ctx, chalet, from, now)
	if err != nil {
		return dto.Calendar{}, err
	}
	cal := dto.Calendar{
		ChaletID: string(chalet.ID),
		From:     daterange.Format(from),
		To:       daterange.Format(to),
		Days:     dto.MapCalendarDays(snap.Calendar(from, to)),
	}
	if h.Cache != nil {
		h.Cache.Put(key, cal)
	}
	return cal, nil
}

func (h *GetCalendarHandler) bounds(q GetCalendarQuery, now time.Time) (time.Time, time.Time, error) {
	from := daterange.Normalize(now)
	to := daterange.Normalize(now.Add(h.Resolver.horizon()))
	var err error
	if q.From != "" {
		if from, err = daterange.Parse(q.From); err != nil {
			return time.Time{}, time.Time{}, apperr.Validation("invalid_date", "from must be YYYY-MM-DD", err)
		}
	}
	if q.To != "" {
		if to, err = daterange.Parse(q.To); err != nil {
			return time.Time{}, time.Time{}, apperr.Validation("invalid_date", "to must be YYYY-MM-DD", err)
		}
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, apperr.Validation("invalid_range", "to must be after from", daterange.ErrInvalidRange)
	}
	if daterange.DaysBetween(from, to) > calendarMaxRange {
		return time.Time{}, time.Time{}, apperr.Validation("range_too_long", "calendar range is limited to 400 days", nil)
	}
	return from, to, nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
