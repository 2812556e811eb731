package availability

import (
	"context"
	"errors"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/queries"
	domainavailability "chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "availability.check"

type CheckAvailabilityQuery struct {
	ChaletID string `validate:"required"`
	CheckIn  string `validate:"required,datetime=2006-01-02"`
	CheckOut string `validate:"required,datetime=2006-01-02"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	Chalets  chalets.Directory
	Resolver *Resolver
	Limits   reservation.StayLimits
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	chalet, err := h.Chalets.ByID(ctx, chalets.ChaletID(q.ChaletID))
	if err != nil {
		return dto.Availability{}, apperr.NotFound("chalet_not_found", "chalet not found", err)
	}
	stay, err := daterange.ParseRange(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Availability{}, apperr.Validation("invalid_range", "check-out must be a date on or after check-in", err)
	}
	if err := h.Limits.Check(stay, h.Resolver.Now()); err != nil {
		return dto.Availability{}, LimitError(err)
	}
	res, blocked, err := h.Check(ctx, chalet, stay)
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.Availability{
		ChaletID:         string(chalet.ID),
		Available:        res.Available,
		ConflictingDates: res.ConflictingDates,
		RequestedDates:   res.RequestedDates,
		AllBlockedDates:  blocked,
	}, nil
}

// Check resolves stay against the current state of the chalet. blocked lists
// every blocked date in the reporting window.
func (h *CheckAvailabilityHandler) Check(ctx context.Context, chalet chalets.Chalet, stay daterange.DateRange) (domainavailability.Result, []string, error) {
	now := h.Resolver.Now()
	from, to := domainavailability.Window(now, stay, h.Resolver.horizon())
	snap, err := h.Resolver.Snapshot(ctx, chalet, from, now)
	if err != nil {
		return domainavailability.Result{}, nil, err
	}
	return snap.Check(stay), snap.BlockedBetween(from, to), nil
}

// LimitError classifies a StayLimits rejection for transports.
func LimitError(err error) error {
	if errors.Is(err, reservation.ErrStayTooLong) {
		return apperr.Validation("stay_too_long", "stay is longer than the chalet accepts", err)
	}
	return apperr.Validation("beyond_horizon", "check-in is too far ahead", err)
}

var _ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
