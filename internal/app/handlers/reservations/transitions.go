package reservations

import (
	"context"
	"strings"

	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/domain/reservation"
)

const (
	extendHoldKey = "reservation.extend_hold"
	confirmKey    = "reservation.confirm"
	cancelKey     = "reservation.cancel"
)

type ExtendHoldCommand struct {
	ReservationID string `validate:"required"`
	Method        string `validate:"required"`
}

func (c ExtendHoldCommand) Key() string { return extendHoldKey }

type ExtendHoldHandler struct {
	Lifecycle *Lifecycle
}

func (h *ExtendHoldHandler) Handle(ctx context.Context, cmd ExtendHoldCommand) (dto.Transition, error) {
	return h.Lifecycle.ExtendHold(ctx, reservation.ReservationID(cmd.ReservationID), reservation.ParseMethod(cmd.Method))
}

type ConfirmReservationCommand struct {
	ReservationID    string `validate:"required"`
	PaymentReference string `validate:"max=200"`
	Method           string
	Partial          bool
}

func (c ConfirmReservationCommand) Key() string { return confirmKey }
func (ConfirmReservationCommand) OperatorOnly() {}

type ConfirmReservationHandler struct {
	Lifecycle *Lifecycle
}

func (h *ConfirmReservationHandler) Handle(ctx context.Context, cmd ConfirmReservationCommand) (dto.Transition, error) {
	method := reservation.ParseMethod(cmd.Method)
	if strings.TrimSpace(cmd.Method) == "" {
		method = reservation.MethodManual
	}
	return h.Lifecycle.Confirm(ctx, reservation.ReservationID(cmd.ReservationID), cmd.PaymentReference, method, cmd.Partial)
}

type CancelReservationCommand struct {
	ReservationID string `validate:"required"`
	Reason        string `validate:"max=60"`
	Refund        bool
}

func (c CancelReservationCommand) Key() string { return cancelKey }
func (CancelReservationCommand) OperatorOnly() {}

type CancelReservationHandler struct {
	Lifecycle *Lifecycle
}

func (h *CancelReservationHandler) Handle(ctx context.Context, cmd CancelReservationCommand) (dto.Transition, error) {
	reason := cmd.Reason
	if strings.TrimSpace(reason) == "" {
		reason = "operator"
	}
	return h.Lifecycle.Cancel(ctx, reservation.ReservationID(cmd.ReservationID), reason, cmd.Refund)
}

var (
	_ commands.Handler[ExtendHoldCommand, dto.Transition]         = (*ExtendHoldHandler)(nil)
	_ commands.Handler[ConfirmReservationCommand, dto.Transition] = (*ConfirmReservationHandler)(nil)
	_ commands.Handler[CancelReservationCommand, dto.Transition]  = (*CancelReservationHandler)(nil)
)
