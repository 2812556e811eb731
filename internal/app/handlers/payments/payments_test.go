package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/handlers/reservations"
	"chaletbook/internal/app/outbox"
	"chaletbook/internal/app/policies"
	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/domain/shared/daterange"
	"chaletbook/internal/domain/shared/money"
	"chaletbook/internal/infra/storage/memory"
)

var start = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type stubStatus struct {
	events map[string]policies.PaymentEvent
	err    error
}

func (s stubStatus) Status(_ context.Context, order string) (policies.PaymentEvent, error) {
	if s.err != nil {
		return policies.PaymentEvent{}, s.err
	}
	return s.events[order], nil
}

type fixture struct {
	clock   *clock.Manual
	store   memory.Factory
	process *ProcessPaymentEventHandler
}

func newFixture(t *testing.T, acceptPartial bool) *fixture {
	t.Helper()
	clk := clock.NewManual(start)
	store := memory.NewFactory()
	return &fixture{
		clock: clk,
		store: store,
		process: &ProcessPaymentEventHandler{
			Lifecycle: &reservations.Lifecycle{
				UoWFactory: store,
				Clock:      clk,
				Publisher:  outbox.Publisher{Outbox: memory.NewOutbox()},
			},
			AcceptPartial: acceptPartial,
		},
	}
}

func (f *fixture) seed(t *testing.T, id string) {
	t.Helper()
	stay, err := daterange.ParseRange("2026-05-04", "2026-05-06")
	require.NoError(t, err)
	r, err := reservation.NewReservation(reservation.CreateParams{
		ID:        reservation.ReservationID(id),
		ChaletID:  "alpen",
		Stay:      stay,
		Guest:     reservation.Guest{Name: "Ada", Email: "ada@example.com"},
		Party:     pricing.Party{Adults: 2},
		Price:     pricing.Quote{Nights: 2, Total: money.Must(20000, "EUR")},
		CreatedAt: f.clock.Now(),
		Hold:      reservations.DefaultHold,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.ReservationsRepo.Save(context.Background(), r))
}

func (f *fixture) status(t *testing.T, id string) (reservation.Status, string) {
	t.Helper()
	r, err := f.store.ReservationsRepo.ByID(context.Background(), reservation.ReservationID(id))
	require.NoError(t, err)
	return r.Status, r.Payment.Label()
}

func event(id string, typ policies.PaymentEventType, method reservation.PaymentMethod, paid int64) policies.PaymentEvent {
	return policies.PaymentEvent{
		OrderReference:       id,
		PaidAmount:           money.Money{Amount: paid, Currency: "EUR"},
		Method:               method,
		TransactionReference: "trx-" + id,
		Type:                 typ,
	}
}

func TestPaidEventConfirms(t *testing.T) {
	f := newFixture(t, false)
	f.seed(t, "r1")
	ctx := context.Background()

	out, err := f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("r1", policies.PaymentPaid, reservation.MethodBankTransfer, 20000)})
	require.NoError(t, err)
	require.Equal(t, ActionConfirmed, out.Action)
	st, label := f.status(t, "r1")
	require.Equal(t, reservation.StatusConfirmed, st)
	require.Equal(t, "paid_bank_transfer", label)

	again, err := f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("r1", policies.PaymentPaid, reservation.MethodBankTransfer, 20000)})
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, again.Action)
	require.Equal(t, "confirmed", again.Status)
}

func TestPaidEventWithoutAmountCountsAsFull(t *testing.T) {
	f := newFixture(t, false)
	f.seed(t, "r1")
	out, err := f.process.Handle(context.Background(), ProcessPaymentEventCommand{
		Event: policies.PaymentEvent{OrderReference: "r1", Type: policies.PaymentPaid, Method: reservation.MethodQRIS},
	})
	require.NoError(t, err)
	require.Equal(t, ActionConfirmed, out.Action)
}

func TestPartialPayment(t *testing.T) {
	strict := newFixture(t, false)
	strict.seed(t, "r1")
	out, err := strict.process.Handle(context.Background(), ProcessPaymentEventCommand{Event: event("r1", policies.PaymentPaid, reservation.MethodBankTransfer, 5000)})
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, out.Action)
	st, _ := strict.status(t, "r1")
	require.Equal(t, reservation.StatusPending, st)

	lenient := newFixture(t, true)
	lenient.seed(t, "r1")
	out, err = lenient.process.Handle(context.Background(), ProcessPaymentEventCommand{Event: event("r1", policies.PaymentPaid, reservation.MethodBankTransfer, 5000)})
	require.NoError(t, err)
	require.Equal(t, ActionConfirmed, out.Action)
	_, label := lenient.status(t, "r1")
	require.Equal(t, "partially_paid_bank_transfer", label)
}

func TestPendingEventExtendsOnlySlowMethods(t *testing.T) {
	f := newFixture(t, false)
	f.seed(t, "card")
	f.seed(t, "wallet")
	ctx := context.Background()

	out, err := f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("card", policies.PaymentPending, reservation.MethodCreditCard, 0)})
	require.NoError(t, err)
	require.Equal(t, ActionExtended, out.Action)
	_, label := f.status(t, "card")
	require.Equal(t, "pending_credit_card_awaiting_confirmation", label)

	out, err = f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("card", policies.PaymentPending, reservation.MethodCreditCard, 0)})
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, out.Action)

	out, err = f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("wallet", policies.PaymentPending, reservation.MethodEWallet, 0)})
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, out.Action)
}

func TestRefundAndFailureEvents(t *testing.T) {
	f := newFixture(t, false)
	f.seed(t, "r1")
	f.seed(t, "r2")
	ctx := context.Background()

	_, err := f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("r1", policies.PaymentPaid, reservation.MethodEWallet, 20000)})
	require.NoError(t, err)
	out, err := f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("r1", policies.PaymentRefund, reservation.MethodEWallet, 0), Source: "webhook"})
	require.NoError(t, err)
	require.Equal(t, ActionCancelled, out.Action)
	_, label := f.status(t, "r1")
	require.Equal(t, "refunded_webhook", label)

	out, err = f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("r2", policies.PaymentFailure, reservation.MethodEWallet, 0)})
	require.NoError(t, err)
	require.Equal(t, ActionIgnored, out.Action)
	st, _ := f.status(t, "r2")
	require.Equal(t, reservation.StatusPending, st)
}

func TestUnknownReservationAndBadEvents(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("ghost", policies.PaymentPaid, reservation.MethodEWallet, 1)})
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("", policies.PaymentPaid, reservation.MethodEWallet, 1)})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.process.Handle(ctx, ProcessPaymentEventCommand{Event: event("ghost", "chargeback", reservation.MethodEWallet, 1)})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestPollAwaitingPayments(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	for _, id := range []string{"paid", "still", "broken", "plain"} {
		f.seed(t, id)
	}
	for _, id := range []string{"paid", "still", "broken"} {
		_, err := f.process.Lifecycle.ExtendHold(ctx, reservation.ReservationID(id), reservation.MethodCreditCard)
		require.NoError(t, err)
	}

	status := stubStatus{events: map[string]policies.PaymentEvent{
		"paid":   event("paid", policies.PaymentPaid, reservation.MethodCreditCard, 20000),
		"still":  event("still", policies.PaymentPending, reservation.MethodCreditCard, 0),
		"broken": {OrderReference: "broken", Type: "mystery"},
	}}
	poll := &PollPaymentHandler{Status: status, Process: f.process}
	batch := &PollAwaitingPaymentsHandler{UoWFactory: f.store, Clock: f.clock, Poll: poll}

	summary, err := batch.Handle(ctx, PollAwaitingPaymentsCommand{})
	require.NoError(t, err)
	require.Equal(t, PollSummary{Polled: 3, Confirmed: 1, Failed: 1}, summary)
	st, label := f.status(t, "paid")
	require.Equal(t, reservation.StatusConfirmed, st)
	require.Equal(t, "paid_credit_card", label)

	down := &PollPaymentHandler{Status: stubStatus{err: errors.New("timeout")}, Process: f.process}
	_, err = down.Handle(ctx, PollPaymentCommand{ReservationID: "still"})
	require.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}
