package channels

import (
	"context"

	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/services/channelsync"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/reservation"
)

const (
	syncReservationKey = "channels.sync_reservation"
	syncBlocksKey      = "channels.sync_blocks"
	syncPendingKey     = "channels.sync_pending"
)

// The sync commands call external channels and open their own short units,
// so none of them runs inside the transaction middleware.

type SyncReservationCommand struct {
	ReservationID string `validate:"required"`
}

func (c SyncReservationCommand) Key() string { return syncReservationKey }
func (SyncReservationCommand) OperatorOnly() {}
func (SyncReservationCommand) ManagesUnits() {}

type SyncReservationHandler struct {
	Service *channelsync.Service
}

func (h *SyncReservationHandler) Handle(ctx context.Context, cmd SyncReservationCommand) (dto.ReservationSyncResult, error) {
	return h.Service.SyncConfirmedReservation(ctx, reservation.ReservationID(cmd.ReservationID))
}

type SyncManualBlocksCommand struct {
	ChaletID string `validate:"required"`
	DryRun   bool
}

func (c SyncManualBlocksCommand) Key() string { return syncBlocksKey }
func (SyncManualBlocksCommand) OperatorOnly() {}
func (SyncManualBlocksCommand) ManagesUnits() {}

type SyncManualBlocksHandler struct {
	Service *channelsync.Service
}

func (h *SyncManualBlocksHandler) Handle(ctx context.Context, cmd SyncManualBlocksCommand) (dto.BlockSyncResult, error) {
	return h.Service.SyncManualBlocks(ctx, chalets.ChaletID(cmd.ChaletID), cmd.DryRun)
}

// SyncAllManualBlocksCommand is the scheduled variant covering every chalet.
type SyncAllManualBlocksCommand struct{}

func (c SyncAllManualBlocksCommand) Key() string { return syncBlocksKey + "_all" }
func (SyncAllManualBlocksCommand) ManagesUnits() {}

type SyncAllManualBlocksHandler struct {
	Chalets chalets.Directory
	Service *channelsync.Service
}

func (h *SyncAllManualBlocksHandler) Handle(ctx context.Context, _ SyncAllManualBlocksCommand) ([]dto.BlockSyncResult, error) {
	all, err := h.Chalets.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.BlockSyncResult, 0, len(all))
	for _, c := range all {
		res, err := h.Service.SyncManualBlocks(ctx, c.ID, false)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

type SyncPendingCommand struct{}

func (c SyncPendingCommand) Key() string { return syncPendingKey }
func (SyncPendingCommand) OperatorOnly() {}
func (SyncPendingCommand) ManagesUnits() {}

type SyncPendingHandler struct {
	Service *channelsync.Service
}

func (h *SyncPendingHandler) Handle(ctx context.Context, _ SyncPendingCommand) (dto.PendingSyncResult, error) {
	return h.Service.SyncUnsynced(ctx)
}

var _ commands.Handler[SyncReservationCommand, dto.ReservationSyncResult] = (*SyncReservationHandler)(nil)
var _ commands.Handler[SyncManualBlocksCommand, dto.BlockSyncResult] = (*SyncManualBlocksHandler)(nil)
var _ commands.Handler[SyncAllManualBlocksCommand, []dto.BlockSyncResult] = (*SyncAllManualBlocksHandler)(nil)
var _ commands.Handler[SyncPendingCommand, dto.PendingSyncResult] = (*SyncPendingHandler)(nil)
