package reservations

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"time"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/middleware"
	"chaletbook/internal/app/outbox"
	"chaletbook/internal/app/policies"
	"chaletbook/internal/app/uow"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/domain/shared/daterange"
)

const (
	DefaultHold     = 10 * time.Minute
	DefaultSlowHold = 24 * time.Hour
)

// Lifecycle applies state transitions to stored reservations. Command
// handlers and payment intake share it so every path enforces the same rules.
type Lifecycle struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
	SlowHold   time.Duration
	Publisher  outbox.Publisher
	Sync       policies.ChannelSyncTrigger
	Logger     *slog.Logger
}

func (l *Lifecycle) now() time.Time {
	return clock.OrSystem(l.Clock).Now()
}

func (l *Lifecycle) slowHold() time.Duration {
	if l.SlowHold <= 0 {
		return DefaultSlowHold
	}
	return l.SlowHold
}

func (l *Lifecycle) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Load reads a reservation in its own read-only unit unless one is open.
func (l *Lifecycle) Load(ctx context.Context, id reservation.ReservationID) (*reservation.Reservation, error) {
	var out *reservation.Reservation
	err := uow.Run(ctx, l.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		r, err := unit.Reservations().ByID(ctx, id)
		if err != nil {
			return classifyLoad(err)
		}
		out = r
		return nil
	})
	return out, err
}

func (l *Lifecycle) ExtendHold(ctx context.Context, id reservation.ReservationID, method reservation.PaymentMethod) (dto.Transition, error) {
	r, changed, err := l.mutate(ctx, id, true, func(r *reservation.Reservation, now time.Time) (bool, error) {
		return r.ExtendHold(method, l.slowHold(), now)
	})
	if err != nil {
		return dto.Transition{}, err
	}
	if changed {
		l.logger().Info("hold updated", "reservation_id", id, "method", method, "hold_expires_at", r.HoldExpiresAt)
	}
	return dto.MapTransition(r, changed), nil
}

// Confirm finalises the reservation and, once committed, asks for it to be
// pushed to the channels.
func (l *Lifecycle) Confirm(ctx context.Context, id reservation.ReservationID, reference string, method reservation.PaymentMethod, partial bool) (dto.Transition, error) {
	r, changed, err := l.mutate(ctx, id, true, func(r *reservation.Reservation, now time.Time) (bool, error) {
		return r.Confirm(reference, method, partial, now)
	})
	if err != nil {
		return dto.Transition{}, err
	}
	if changed {
		l.logger().Info("reservation confirmed", "reservation_id", id, "payment_status", r.Payment.Label())
		if l.Sync != nil {
			middleware.Defer(ctx, func(ctx context.Context) {
				l.Sync.ReservationConfirmed(ctx, id)
			})
		}
	}
	return dto.MapTransition(r, changed), nil
}

func (l *Lifecycle) Cancel(ctx context.Context, id reservation.ReservationID, reason string, refund bool) (dto.Transition, error) {
	r, changed, err := l.mutate(ctx, id, false, func(r *reservation.Reservation, now time.Time) (bool, error) {
		return r.Cancel(reason, refund, now)
	})
	if err != nil {
		return dto.Transition{}, err
	}
	if changed {
		l.logger().Info("reservation cancelled", "reservation_id", id, "payment_status", r.Payment.Label())
	}
	return dto.MapTransition(r, changed), nil
}

// mutate loads, applies and saves in one unit. With revives set, a pending
// reservation whose hold lapsed before the sweeper ran may only move on if
// nobody has taken its nights in the meantime.
func (l *Lifecycle) mutate(ctx context.Context, id reservation.ReservationID, revives bool, apply func(*reservation.Reservation, time.Time) (bool, error)) (*reservation.Reservation, bool, error) {
	var (
		out     *reservation.Reservation
		changed bool
	)
	now := l.now()
	err := uow.Run(ctx, l.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		r, err := unit.Reservations().ByID(ctx, id)
		if err != nil {
			return classifyLoad(err)
		}
		if revives && r.Status == reservation.StatusPending && !r.HoldLive(now) {
			if err := l.checkLapsedHold(ctx, unit, r, now); err != nil {
				return err
			}
		}
		changed, err = apply(r, now)
		if err != nil {
			if errors.Is(err, reservation.ErrInvalidState) {
				return apperr.StateConflict("reservation is "+string(r.Status), err)
			}
			return err
		}
		out = r
		if !changed {
			return nil
		}
		if err := unit.Reservations().Save(ctx, r); err != nil {
			return err
		}
		return l.Publisher.Drain(ctx, r)
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

func (l *Lifecycle) checkLapsedHold(ctx context.Context, unit uow.UnitOfWork, r *reservation.Reservation, now time.Time) error {
	taken, err := takenNights(ctx, unit, r, now, nil)
	if err != nil {
		return err
	}
	blocks, err := unit.Blocks().List(ctx, r.ChaletID, r.Stay.CheckIn, r.Stay.LastNight().AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	for _, b := range blocks {
		taken = append(taken, daterange.Format(b.Date))
	}
	if len(taken) == 0 {
		return nil
	}
	sort.Strings(taken)
	taken = slices.Compact(taken)
	l.logger().Warn("lapsed hold lost its dates",
		"reservation_id", r.ID,
		"chalet_id", r.ChaletID,
		"hold_expired_at", r.HoldExpiresAt,
		"dates", taken,
	)
	return apperr.Conflict("hold expired and the dates were booked by someone else", taken)
}

func classifyLoad(err error) error {
	if errors.Is(err, reservation.ErrNotFound) {
		return apperr.NotFound("reservation_not_found", "reservation not found", err)
	}
	return err
}
