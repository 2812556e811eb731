package payments

import (
	"context"
	"log/slog"
	"time"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/policies"
	"chaletbook/internal/app/uow"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/clock"
)

const (
	pollPaymentKey          = "payment.poll"
	pollAwaitingPaymentsKey = "payment.poll_awaiting"
	pollTimeout             = 15 * time.Second
)

// PollPaymentCommand asks the provider for the order's state and applies it
// as if it had arrived by webhook.
type PollPaymentCommand struct {
	ReservationID string `validate:"required"`
}

func (c PollPaymentCommand) Key() string { return pollPaymentKey }
func (PollPaymentCommand) OperatorOnly() {}

// Polling talks to the provider; no unit may stay open across that call.
func (PollPaymentCommand) ManagesUnits() {}

type PollPaymentHandler struct {
	Status  policies.PaymentStatusPort
	Process *ProcessPaymentEventHandler
}

func (h *PollPaymentHandler) Handle(ctx context.Context, cmd PollPaymentCommand) (dto.PaymentOutcome, error) {
	if h.Status == nil {
		return dto.PaymentOutcome{}, apperr.Upstream("polling_disabled", "payment polling is not configured", nil)
	}
	id := reservation.ReservationID(cmd.ReservationID)
	if _, err := h.Process.Lifecycle.Load(ctx, id); err != nil {
		return dto.PaymentOutcome{}, err
	}
	pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	ev, err := h.Status.Status(pollCtx, string(id))
	cancel()
	if err != nil {
		return dto.PaymentOutcome{}, apperr.Upstream("provider_unavailable", "payment provider status check failed", err)
	}
	if ev.OrderReference == "" {
		ev.OrderReference = string(id)
	}
	return h.Process.Handle(ctx, ProcessPaymentEventCommand{Event: ev, Source: "poll"})
}

type PollAwaitingPaymentsCommand struct{}

func (c PollAwaitingPaymentsCommand) Key() string { return pollAwaitingPaymentsKey }
func (PollAwaitingPaymentsCommand) ManagesUnits() {}

type PollSummary struct {
	Polled    int `json:"polled"`
	Confirmed int `json:"confirmed"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// PollAwaitingPaymentsHandler polls every pending reservation waiting on a
// slow payment. One failing order never stops the rest.
type PollAwaitingPaymentsHandler struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
	Poll       *PollPaymentHandler
	Logger     *slog.Logger
}

func (h *PollAwaitingPaymentsHandler) Handle(ctx context.Context, _ PollAwaitingPaymentsCommand) (PollSummary, error) {
	now := clock.OrSystem(h.Clock).Now()
	var awaiting []*reservation.Reservation
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		awaiting, err = unit.Reservations().ListAwaitingPayment(ctx, now)
		return err
	})
	if err != nil {
		return PollSummary{}, err
	}

	var summary PollSummary
	for _, r := range awaiting {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Polled++
		out, err := h.Poll.Handle(ctx, PollPaymentCommand{ReservationID: string(r.ID)})
		if err != nil {
			if apperr.KindOf(err) == apperr.KindStateConflict {
				continue
			}
			summary.Failed++
			h.logger().Warn("payment poll failed", "reservation_id", r.ID, "error", err)
			continue
		}
		switch out.Action {
		case ActionConfirmed:
			summary.Confirmed++
		case ActionCancelled:
			summary.Cancelled++
		}
	}
	return summary, nil
}

func (h *PollAwaitingPaymentsHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var _ commands.Handler[PollPaymentCommand, dto.PaymentOutcome] = (*PollPaymentHandler)(nil)
var _ commands.Handler[PollAwaitingPaymentsCommand, PollSummary] = (*PollAwaitingPaymentsHandler)(nil)
