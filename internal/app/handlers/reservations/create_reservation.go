package reservations

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	availabilityapp "chaletbook/internal/app/handlers/availability"
	"chaletbook/internal/app/middleware"
	"chaletbook/internal/app/outbox"
	"chaletbook/internal/app/policies"
	"chaletbook/internal/app/uow"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/domain/shared/daterange"
)

const createReservationKey = "reservation.create"

const paymentLinkTimeout = 10 * time.Second

type CreateReservationCommand struct {
	ChaletID        string `validate:"required"`
	CheckIn         string `validate:"required,datetime=2006-01-02"`
	CheckOut        string `validate:"required,datetime=2006-01-02"`
	GuestName       string `validate:"required,max=200"`
	GuestEmail      string `validate:"required,email"`
	GuestPhone      string `validate:"max=40"`
	Adults          int    `validate:"min=1"`
	Children        int    `validate:"min=0"`
	Infants         int    `validate:"min=0"`
	IdempotencyKeyV string
}

func (c CreateReservationCommand) Key() string { return createReservationKey }

func (c CreateReservationCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateReservationCommand) DecodeResult(payload []byte) (any, error) {
	return middleware.DecodeJSON[dto.ReservationCreated](payload)
}

// ManagesUnits: the handler commits the insert before re-checking for a racing hold.
func (c CreateReservationCommand) ManagesUnits() {}

type CreateReservationHandler struct {
	UoWFactory   uow.UoWFactory
	Chalets      chalets.Directory
	Availability *availabilityapp.CheckAvailabilityHandler
	Clock        clock.Clock
	Hold         time.Duration
	Limits       reservation.StayLimits
	Publisher    outbox.Publisher
	Payments     policies.PaymentLinkIssuer
	IDGenerator  func() string
	Logger       *slog.Logger
}

func (h *CreateReservationHandler) Handle(ctx context.Context, cmd CreateReservationCommand) (*dto.ReservationCreated, error) {
	now := clock.OrSystem(h.Clock).Now()

	chalet, err := h.Chalets.ByID(ctx, chalets.ChaletID(cmd.ChaletID))
	if err != nil {
		return nil, apperr.NotFound("chalet_not_found", "chalet not found", err)
	}
	stay, err := daterange.ParseRange(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, apperr.Validation("invalid_range", "check-out must be a date on or after check-in", err)
	}
	party := pricing.Party{Adults: cmd.Adults, Children: cmd.Children, Infants: cmd.Infants}
	guest := reservation.Guest{Name: cmd.GuestName, Email: cmd.GuestEmail, Phone: cmd.GuestPhone}
	if err := reservation.ValidateRequest(stay, party, chalet.MaxGuests, h.Limits, now); err != nil {
		return nil, requestError(err)
	}
	if err := guest.Validate(); err != nil {
		return nil, requestError(err)
	}
	quote, err := chalet.Rates.Price(stay, party)
	if err != nil {
		return nil, err
	}

	check, _, err := h.Availability.Check(ctx, chalet, stay)
	if err != nil {
		return nil, err
	}
	if !check.Available {
		return nil, apperr.Conflict("requested dates are not available", check.ConflictingDates)
	}

	res, err := reservation.NewReservation(reservation.CreateParams{
		ID:        reservation.ReservationID(h.newID()),
		ChaletID:  chalet.ID,
		Stay:      stay,
		Guest:     guest,
		Party:     party,
		Price:     quote,
		CreatedAt: now,
		Hold:      h.hold(),
	})
	if err != nil {
		return nil, requestError(err)
	}
	err = uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Reservations().Save(ctx, res); err != nil {
			return err
		}
		return h.Publisher.Drain(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	if lost, conflicting, err := h.lostRace(ctx, res, now); err != nil {
		return nil, err
	} else if lost {
		return nil, h.release(ctx, res, conflicting)
	}

	out := &dto.ReservationCreated{
		ID:             string(res.ID),
		ChaletID:       string(chalet.ID),
		CheckIn:        daterange.Format(stay.CheckIn),
		CheckOut:       daterange.Format(stay.CheckOut),
		TotalPrice:     dto.MapMoney(quote.Total),
		PriceBreakdown: dto.MapQuote(quote),
		HoldExpiresAt:  res.HoldExpiresAt,
	}
	if link, ok := h.issuePaymentLink(ctx, chalet, res); ok {
		out.Payment = &dto.PaymentLinkDTO{Token: link.Token, RedirectURL: link.RedirectURL}
	}
	return out, nil
}

// lostRace re-reads the chalet after the insert committed. When another
// blocking reservation created earlier overlaps, the new one gives way.
func (h *CreateReservationHandler) lostRace(ctx context.Context, res *reservation.Reservation, now time.Time) (bool, []string, error) {
	var (
		lost        bool
		conflicting []string
	)
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		conflicting, err = takenNights(ctx, unit, res, now, func(other *reservation.Reservation) bool {
			return createdBefore(other, res)
		})
		lost = len(conflicting) > 0
		return err
	})
	return lost, conflicting, err
}

// takenNights lists the nights of res that another reservation blocking at
// now occupies. keep narrows which of the others count.
func takenNights(ctx context.Context, unit uow.UnitOfWork, res *reservation.Reservation, now time.Time, keep func(*reservation.Reservation) bool) ([]string, error) {
	active, err := unit.Reservations().ListActive(ctx, res.ChaletID, res.Stay.CheckIn)
	if err != nil {
		return nil, err
	}
	mine := res.Stay.Dates()
	var taken []string
	for _, other := range active {
		if other.ID == res.ID || !other.IsBlocking(now) || !other.Stay.Overlaps(res.Stay) {
			continue
		}
		if keep != nil && !keep(other) {
			continue
		}
		taken = intersect(mine, other.Stay.Dates(), taken)
	}
	sort.Strings(taken)
	return taken, nil
}

func (h *CreateReservationHandler) release(ctx context.Context, res *reservation.Reservation, conflicting []string) error {
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		stored, err := unit.Reservations().ByID(ctx, res.ID)
		if err != nil {
			return err
		}
		if _, err := stored.Cancel("conflict", false, clock.OrSystem(h.Clock).Now()); err != nil {
			return err
		}
		if err := unit.Reservations().Save(ctx, stored); err != nil {
			return err
		}
		return h.Publisher.Drain(ctx, stored)
	})
	if err != nil {
		return err
	}
	h.logger().Warn("reservation lost race to an earlier hold", "reservation_id", res.ID, "chalet_id", res.ChaletID, "dates", conflicting)
	return apperr.Conflict("requested dates were taken by another booking", conflicting)
}

func (h *CreateReservationHandler) issuePaymentLink(ctx context.Context, chalet chalets.Chalet, res *reservation.Reservation) (policies.PaymentLink, bool) {
	if h.Payments == nil {
		return policies.PaymentLink{}, false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), paymentLinkTimeout)
	defer cancel()
	link, err := h.Payments.Issue(ctx, policies.PaymentLinkRequest{
		ReservationID: res.ID,
		Amount:        res.Price.Total,
		Guest:         res.Guest,
		ItemName:      chalet.Name,
		Nights:        res.Price.Nights,
		ExpiresAt:     res.HoldExpiresAt,
	})
	if err != nil {
		h.logger().Warn("payment link issuance failed", "reservation_id", res.ID, "error", err)
		return policies.PaymentLink{}, false
	}
	return link, true
}

func (h *CreateReservationHandler) hold() time.Duration {
	if h.Hold <= 0 {
		return DefaultHold
	}
	return h.Hold
}

func (h *CreateReservationHandler) newID() string {
	if h.IDGenerator != nil {
		return h.IDGenerator()
	}
	return uuid.NewString()
}

func (h *CreateReservationHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func createdBefore(a, b *reservation.Reservation) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func intersect(a, b, into []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, d := range b {
		set[d] = struct{}{}
	}
	seen := make(map[string]struct{}, len(into))
	for _, d := range into {
		seen[d] = struct{}{}
	}
	for _, d := range a {
		if _, ok := set[d]; !ok {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		into = append(into, d)
	}
	return into
}

func requestError(err error) error {
	switch {
	case errors.Is(err, reservation.ErrCheckInPast):
		return apperr.Validation("check_in_past", "check-in cannot be in the past", err)
	case errors.Is(err, reservation.ErrStayTooLong), errors.Is(err, reservation.ErrBeyondHorizon):
		return availabilityapp.LimitError(err)
	case errors.Is(err, reservation.ErrTooManyGuests):
		return apperr.Validation("too_many_guests", "party exceeds the chalet's capacity", err)
	case errors.Is(err, reservation.ErrInvalidParty):
		return apperr.Validation("invalid_party", "at least one adult is required", err)
	case errors.Is(err, reservation.ErrInvalidGuest):
		return apperr.Validation("invalid_guest", "guest name and a valid email are required", err)
	case errors.Is(err, daterange.ErrInvalidRange):
		return apperr.Validation("invalid_range", "check-out must be a date on or after check-in", err)
	}
	return err
}

var _ commands.Handler[CreateReservationCommand, *dto.ReservationCreated] = (*CreateReservationHandler)(nil)
var _ middleware.IdempotentCommand = CreateReservationCommand{}
var _ middleware.UnitManager = CreateReservationCommand{}
