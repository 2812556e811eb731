package reservation

import (
	"strings"
)

// PaymentMethod identifies how the guest pays. Only card payments are slow.
type PaymentMethod string

const (
	MethodUnknown          PaymentMethod = "unknown"
	MethodCreditCard       PaymentMethod = "credit_card"
	MethodBankTransfer     PaymentMethod = "bank_transfer"
	MethodEWallet          PaymentMethod = "e_wallet"
	MethodQRIS             PaymentMethod = "qris"
	MethodConvenienceStore PaymentMethod = "convenience_store"
	MethodCash             PaymentMethod = "cash"
	MethodManual           PaymentMethod = "manual"
)

var knownMethods = []PaymentMethod{
	MethodCreditCard,
	MethodBankTransfer,
	MethodEWallet,
	MethodQRIS,
	MethodConvenienceStore,
	MethodCash,
	MethodManual,
	MethodUnknown,
}

// ParseMethod maps a canonical method name; anything else is MethodUnknown.
func ParseMethod(raw string) PaymentMethod {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, m := range knownMethods {
		if string(m) == v {
			return m
		}
	}
	return MethodUnknown
}

// IsSlow reports whether the method needs the extended hold window.
func (m PaymentMethod) IsSlow() bool {
	return m == MethodCreditCard
}

type PaymentOutcome string

const (
	OutcomeUnpaid               PaymentOutcome = "unpaid"
	OutcomeAwaitingConfirmation PaymentOutcome = "awaiting_confirmation"
	OutcomePaid                 PaymentOutcome = "paid"
	OutcomePartiallyPaid        PaymentOutcome = "partially_paid"
	OutcomeRefunded             PaymentOutcome = "refunded"
	OutcomeCancelled            PaymentOutcome = "cancelled"
	OutcomeExpired              PaymentOutcome = "expired"
)

// PaymentState is the structured payment status. Note carries the reason for
// refunded, cancelled and expired outcomes.
type PaymentState struct {
	Method  PaymentMethod
	Outcome PaymentOutcome
	Note    string
}

func Unpaid() PaymentState {
	return PaymentState{Method: MethodUnknown, Outcome: OutcomeUnpaid}
}

func (p PaymentState) IsPaid() bool {
	return p.Outcome == OutcomePaid || p.Outcome == OutcomePartiallyPaid
}

func (p PaymentState) method() PaymentMethod {
	if p.Method == "" {
		return MethodUnknown
	}
	return p.Method
}

// Label renders the legacy free-text status kept by older records and API clients.
func (p PaymentState) Label() string {
	switch p.Outcome {
	case OutcomePaid:
		return "paid_" + string(p.method())
	case OutcomePartiallyPaid:
		return "partially_paid_" + string(p.method())
	case OutcomeAwaitingConfirmation:
		return "pending_" + string(p.method()) + "_awaiting_confirmation"
	case OutcomeRefunded:
		return "refunded_" + noteOr(p.Note, "unspecified")
	case OutcomeCancelled:
		return "cancelled_" + noteOr(p.Note, "unspecified")
	case OutcomeExpired:
		return "expired_" + noteOr(p.Note, "hold")
	default:
		if p.method() != MethodUnknown {
			return "unpaid_" + string(p.method())
		}
		return "unpaid"
	}
}

func (p PaymentState) String() string { return p.Label() }

// ParsePaymentState reads a legacy label back. Unrecognised labels become Unpaid.
func ParsePaymentState(label string) PaymentState {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case l == "" || l == "unpaid":
		return Unpaid()
	case strings.HasPrefix(l, "pending_") && strings.HasSuffix(l, "_awaiting_confirmation"):
		m := strings.TrimSuffix(strings.TrimPrefix(l, "pending_"), "_awaiting_confirmation")
		return PaymentState{Method: ParseMethod(m), Outcome: OutcomeAwaitingConfirmation}
	case strings.HasPrefix(l, "partially_paid_"):
		return PaymentState{Method: ParseMethod(strings.TrimPrefix(l, "partially_paid_")), Outcome: OutcomePartiallyPaid}
	case strings.HasPrefix(l, "paid_"):
		return PaymentState{Method: ParseMethod(strings.TrimPrefix(l, "paid_")), Outcome: OutcomePaid}
	case strings.HasPrefix(l, "unpaid_"):
		return PaymentState{Method: ParseMethod(strings.TrimPrefix(l, "unpaid_")), Outcome: OutcomeUnpaid}
	case strings.HasPrefix(l, "refunded_"):
		return PaymentState{Method: MethodUnknown, Outcome: OutcomeRefunded, Note: strings.TrimPrefix(l, "refunded_")}
	case strings.HasPrefix(l, "cancelled_"):
		return PaymentState{Method: MethodUnknown, Outcome: OutcomeCancelled, Note: strings.TrimPrefix(l, "cancelled_")}
	case strings.HasPrefix(l, "expired_"):
		return PaymentState{Method: MethodUnknown, Outcome: OutcomeExpired, Note: strings.TrimPrefix(l, "expired_")}
	}
	return Unpaid()
}

func noteOr(note, fallback string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return fallback
	}
	return strings.ReplaceAll(strings.ToLower(note), " ", "_")
}
