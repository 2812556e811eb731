package reservations

import (
	"context"
	"log/slog"

	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/outbox"
	"chaletbook/internal/app/uow"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/clock"
)

const sweepExpiredKey = "reservation.sweep_expired"

type SweepExpiredCommand struct{}

func (c SweepExpiredCommand) Key() string { return sweepExpiredKey }

// SweepExpiredHandler expires lapsed holds in one batch. Running it again, or
// concurrently, only matches rows that are still pending.
type SweepExpiredHandler struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
	Publisher  outbox.Publisher
	Logger     *slog.Logger
}

func (h *SweepExpiredHandler) Handle(ctx context.Context, _ SweepExpiredCommand) (dto.SweepResult, error) {
	now := clock.OrSystem(h.Clock).Now()
	var expired []reservation.ExpiredHold
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		expired, err = unit.Reservations().ExpireLapsedHolds(ctx, now)
		if err != nil {
			return err
		}
		for _, e := range expired {
			ev := reservation.ReservationExpired{ReservationID: e.ID, ChaletID: string(e.ChaletID), At: now}
			if err := h.Publisher.Record(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dto.SweepResult{}, err
	}
	if len(expired) > 0 && h.Logger != nil {
		h.Logger.Info("expired lapsed holds", "count", len(expired))
	}
	return dto.SweepResult{Expired: len(expired)}, nil
}

var _ commands.Handler[SweepExpiredCommand, dto.SweepResult] = (*SweepExpiredHandler)(nil)
