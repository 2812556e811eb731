package channelsync

import (
	"context"
	"log/slog"

	"chaletbook/internal/app/policies"
	"chaletbook/internal/domain/reservation"
)

// InlineTrigger syncs a reservation in the process that confirmed it.
type InlineTrigger struct {
	Service *Service
	Logger  *slog.Logger
}

func (t InlineTrigger) ReservationConfirmed(ctx context.Context, id reservation.ReservationID) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res, err := t.Service.SyncConfirmedReservation(ctx, id)
	if err != nil {
		logger.Warn("inline channel sync failed", "reservation_id", id, "error", err)
		return
	}
	for _, item := range res.Items {
		if item.Error != "" {
			logger.Warn("channel left unsynced", "reservation_id", id, "channel", item.Channel, "error", item.Error)
		}
	}
}

// EventTrigger leaves the sync to the worker, which consumes the
// reservation.confirmed event relayed from the outbox.
type EventTrigger struct{}

func (EventTrigger) ReservationConfirmed(context.Context, reservation.ReservationID) {}

var (
	_ policies.ChannelSyncTrigger = InlineTrigger{}
	_ policies.ChannelSyncTrigger = EventTrigger{}
)
