package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/shared/daterange"
	"chaletbook/internal/domain/shared/money"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newPending(t *testing.T) *Reservation {
	t.Helper()
	stay, err := daterange.ParseRange("2026-05-01", "2026-05-04")
	require.NoError(t, err)
	r, err := NewReservation(CreateParams{
		ID:        "res-1",
		ChaletID:  "alpen",
		Stay:      stay,
		Guest:     Guest{Name: "Ada Guest", Email: "ada@example.com"},
		Party:     pricing.Party{Adults: 2},
		Price:     pricing.Quote{Nights: 3, Total: money.Must(30000, "EUR")},
		CreatedAt: t0,
		Hold:      10 * time.Minute,
	})
	require.NoError(t, err)
	r.ClearEvents()
	return r
}

func TestNewReservationStartsPendingWithHold(t *testing.T) {
	r := newPending(t)
	require.Equal(t, StatusPending, r.Status)
	require.Equal(t, t0.Add(10*time.Minute), r.HoldExpiresAt)
	require.Equal(t, "unpaid", r.Payment.Label())
	require.True(t, r.IsBlocking(t0.Add(9*time.Minute)))
	require.False(t, r.IsBlocking(t0.Add(10*time.Minute)))
}

func TestNewReservationValidatesGuest(t *testing.T) {
	stay, _ := daterange.ParseRange("2026-05-01", "2026-05-04")
	_, err := NewReservation(CreateParams{
		ID: "x", Stay: stay, Guest: Guest{Name: "A", Email: "not-an-email"},
		Party: pricing.Party{Adults: 1}, CreatedAt: t0, Hold: time.Minute,
	})
	require.ErrorIs(t, err, ErrInvalidGuest)
}

func TestValidateRequest(t *testing.T) {
	past, _ := daterange.ParseRange("2026-03-30", "2026-04-02")
	require.ErrorIs(t, ValidateRequest(past, pricing.Party{Adults: 1}, 4, StayLimits{}, t0), ErrCheckInPast)

	today, _ := daterange.ParseRange("2026-04-01", "2026-04-02")
	require.NoError(t, ValidateRequest(today, pricing.Party{Adults: 1}, 4, StayLimits{}, t0))
	require.ErrorIs(t, ValidateRequest(today, pricing.Party{Adults: 3, Children: 2, Infants: 1}, 4, StayLimits{}, t0), ErrTooManyGuests)
	require.ErrorIs(t, ValidateRequest(today, pricing.Party{Children: 2}, 4, StayLimits{}, t0), ErrInvalidParty)
}

func TestStayLimits(t *testing.T) {
	month, _ := daterange.ParseRange("2026-04-01", "2026-05-01")
	require.NoError(t, StayLimits{}.Check(month, t0))
	longer, _ := daterange.ParseRange("2026-04-01", "2026-05-02")
	require.ErrorIs(t, StayLimits{}.Check(longer, t0), ErrStayTooLong)
	require.NoError(t, StayLimits{MaxNights: 60}.Check(longer, t0))

	edge, _ := daterange.ParseRange("2027-04-01", "2027-04-03")
	require.NoError(t, StayLimits{}.Check(edge, t0))
	far, _ := daterange.ParseRange("2027-04-02", "2027-04-03")
	require.ErrorIs(t, StayLimits{}.Check(far, t0), ErrBeyondHorizon)
	require.ErrorIs(t, ValidateRequest(far, pricing.Party{Adults: 1}, 4, StayLimits{}, t0), ErrBeyondHorizon)
	require.ErrorIs(t, StayLimits{Horizon: 7 * 24 * time.Hour}.Check(month, t0.AddDate(0, 0, -8)), ErrBeyondHorizon)
}

func TestConfirmIsIdempotent(t *testing.T) {
	r := newPending(t)
	changed, err := r.Confirm("pay-1", MethodBankTransfer, false, t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, StatusConfirmed, r.Status)
	require.Equal(t, "paid_bank_transfer", r.Payment.Label())
	require.Len(t, r.Drain(), 1)

	changed, err = r.Confirm("pay-2", MethodCreditCard, false, t0.Add(2*time.Minute))
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, "pay-1", r.PaymentReference)
	require.Empty(t, r.PendingEvents())
}

func TestConfirmRejectedAfterTerminalStates(t *testing.T) {
	r := newPending(t)
	_, err := r.Cancel("operator", false, t0)
	require.NoError(t, err)
	_, err = r.Confirm("pay", MethodCash, false, t0)
	require.ErrorIs(t, err, ErrInvalidState)

	e := newPending(t)
	_, err = e.Expire(t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = e.Confirm("pay", MethodCash, false, t0.Add(time.Hour))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestPartialConfirmLabel(t *testing.T) {
	r := newPending(t)
	_, err := r.Confirm("pay", MethodBankTransfer, true, t0)
	require.NoError(t, err)
	require.Equal(t, "partially_paid_bank_transfer", r.Payment.Label())
	require.True(t, r.Payment.IsPaid())
}

func TestSlowPaymentExtensionIsIdempotent(t *testing.T) {
	r := newPending(t)
	changed, err := r.ExtendHold(MethodCreditCard, 24*time.Hour, t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, changed)
	extended := r.HoldExpiresAt
	require.Equal(t, t0.Add(time.Minute+24*time.Hour), extended)
	require.Equal(t, "pending_credit_card_awaiting_confirmation", r.Payment.Label())

	changed, err = r.ExtendHold(MethodCreditCard, 24*time.Hour, t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, extended, r.HoldExpiresAt)
}

func TestFastMethodOnlyRecordsMethod(t *testing.T) {
	r := newPending(t)
	hold := r.HoldExpiresAt
	changed, err := r.ExtendHold(MethodQRIS, 24*time.Hour, t0)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, hold, r.HoldExpiresAt)
	require.Equal(t, MethodQRIS, r.Payment.Method)
	require.Equal(t, OutcomeUnpaid, r.Payment.Outcome)
}

func TestExtendAfterConfirmDoesNotWeakenState(t *testing.T) {
	r := newPending(t)
	_, err := r.Confirm("pay", MethodCreditCard, false, t0)
	require.NoError(t, err)
	changed, err := r.ExtendHold(MethodCreditCard, 24*time.Hour, t0.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, StatusConfirmed, r.Status)
	require.Equal(t, OutcomePaid, r.Payment.Outcome)
}

func TestCancelTransitions(t *testing.T) {
	r := newPending(t)
	_, err := r.Confirm("pay", MethodCreditCard, false, t0)
	require.NoError(t, err)
	changed, err := r.Cancel("webhook", true, t0.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, StatusCancelled, r.Status)
	require.Equal(t, "refunded_webhook", r.Payment.Label())

	changed, err = r.Cancel("webhook", true, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.False(t, changed)

	e := newPending(t)
	_, err = e.Expire(t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = e.Cancel("operator", false, t0.Add(time.Hour))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestExpireRequiresLapsedHold(t *testing.T) {
	r := newPending(t)
	_, err := r.Expire(t0.Add(time.Minute))
	require.ErrorIs(t, err, ErrHoldActive)
	_, err = r.Expire(r.HoldExpiresAt)
	require.ErrorIs(t, err, ErrHoldActive)

	changed, err := r.Expire(r.HoldExpiresAt.Add(time.Nanosecond))
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "expired_hold", r.Payment.Label())

	r = newPending(t)
	changed, err = r.Expire(t0.Add(11 * time.Minute))
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "expired_hold", r.Payment.Label())
}

func TestMarkSyncedStampsOnce(t *testing.T) {
	r := newPending(t)
	r.MarkSynced("beds24", t0)
	r.MarkSynced("beds24", t0.Add(time.Hour))
	require.True(t, r.SyncedTo("beds24"))
	require.False(t, r.SyncedTo("hostaway"))
	require.Equal(t, t0, r.ChannelSync["beds24"])
	require.Len(t, r.PendingEvents(), 1)
}

func TestCloneDoesNotAlias(t *testing.T) {
	r := newPending(t)
	r.MarkSynced("beds24", t0)
	c := r.Clone()
	c.ChannelSync["hostaway"] = t0
	require.False(t, r.SyncedTo("hostaway"))
	require.Empty(t, c.PendingEvents())
}
