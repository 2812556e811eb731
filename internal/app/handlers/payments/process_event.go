package payments

import (
	"context"
	"fmt"
	"log/slog"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/handlers/reservations"
	"chaletbook/internal/app/policies"
	"chaletbook/internal/domain/reservation"
)

const processPaymentEventKey = "payment.process_event"

const (
	ActionConfirmed = "confirmed"
	ActionExtended  = "extended"
	ActionCancelled = "cancelled"
	ActionIgnored   = "ignored"
)

// ProcessPaymentEventCommand applies a normalised provider notification.
// Source ends up in cancellation labels, e.g. refunded_webhook.
type ProcessPaymentEventCommand struct {
	Event  policies.PaymentEvent
	Source string
}

func (c ProcessPaymentEventCommand) Key() string { return processPaymentEventKey }

type ProcessPaymentEventHandler struct {
	Lifecycle     *reservations.Lifecycle
	AcceptPartial bool
	Logger        *slog.Logger
}

func (h *ProcessPaymentEventHandler) Handle(ctx context.Context, cmd ProcessPaymentEventCommand) (dto.PaymentOutcome, error) {
	ev := cmd.Event
	if ev.OrderReference == "" {
		return dto.PaymentOutcome{}, apperr.Validation("missing_reference", "order reference is required", nil)
	}
	if _, ok := policies.ParsePaymentEventType(string(ev.Type)); !ok {
		return dto.PaymentOutcome{}, apperr.Validation("unknown_event", fmt.Sprintf("unknown payment event type %q", ev.Type), nil)
	}
	id := reservation.ReservationID(ev.OrderReference)
	source := cmd.Source
	if source == "" {
		source = "webhook"
	}
	ignored := dto.PaymentOutcome{Action: ActionIgnored, ReservationID: string(id)}

	switch ev.Type {
	case policies.PaymentRefund, policies.PaymentCancel:
		t, err := h.Lifecycle.Cancel(ctx, id, source, ev.Type == policies.PaymentRefund)
		if err != nil {
			return dto.PaymentOutcome{}, err
		}
		return outcome(ActionCancelled, t), nil

	case policies.PaymentPaid:
		r, err := h.Lifecycle.Load(ctx, id)
		if err != nil {
			return dto.PaymentOutcome{}, err
		}
		partial, ok := h.settlement(ev, r)
		if !ok {
			h.logger().Info("partial payment recorded without confirming", "reservation_id", id, "paid", ev.PaidAmount.String())
			ignored.Status = string(r.Status)
			return ignored, nil
		}
		t, err := h.Lifecycle.Confirm(ctx, id, ev.TransactionReference, ev.Method, partial)
		if err != nil {
			return dto.PaymentOutcome{}, err
		}
		return outcome(ActionConfirmed, t), nil

	case policies.PaymentPending:
		if !ev.Method.IsSlow() {
			return ignored, nil
		}
		t, err := h.Lifecycle.ExtendHold(ctx, id, ev.Method)
		if err != nil {
			return dto.PaymentOutcome{}, err
		}
		return outcome(ActionExtended, t), nil
	}
	// failure and expire: the hold lapses on its own
	return ignored, nil
}

// settlement decides whether a paid event confirms, and whether in part.
// A zero paid amount means the provider reported no amount, taken as full.
func (h *ProcessPaymentEventHandler) settlement(ev policies.PaymentEvent, r *reservation.Reservation) (partial bool, confirm bool) {
	total := ev.TotalAmount
	if total.IsZero() {
		total = r.Price.Total
	}
	paid := ev.PaidAmount
	if paid.IsZero() || paid.Covers(total) {
		return false, true
	}
	if paid.Amount > 0 && h.AcceptPartial {
		return true, true
	}
	return false, false
}

func (h *ProcessPaymentEventHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func outcome(action string, t dto.Transition) dto.PaymentOutcome {
	if !t.Changed {
		action = ActionIgnored
	}
	return dto.PaymentOutcome{Action: action, ReservationID: t.ID, Status: t.Status}
}

var _ commands.Handler[ProcessPaymentEventCommand, dto.PaymentOutcome] = (*ProcessPaymentEventHandler)(nil)
