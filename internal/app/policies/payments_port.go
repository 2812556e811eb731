package policies

import (
	"context"
	"time"

	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/money"
)

type PaymentEventType string

const (
	PaymentPending PaymentEventType = "pending"
	PaymentPaid    PaymentEventType = "paid"
	PaymentRefund  PaymentEventType = "refund"
	PaymentCancel  PaymentEventType = "cancel"
	PaymentFailure PaymentEventType = "failure"
	PaymentExpire  PaymentEventType = "expire"
)

func ParsePaymentEventType(raw string) (PaymentEventType, bool) {
	switch t := PaymentEventType(raw); t {
	case PaymentPending, PaymentPaid, PaymentRefund, PaymentCancel, PaymentFailure, PaymentExpire:
		return t, true
	}
	return "", false
}

// PaymentEvent is a provider notification reduced to what the lifecycle needs.
// A zero TotalAmount means the reservation's own price.
type PaymentEvent struct {
	OrderReference       string
	PaidAmount           money.Money
	TotalAmount          money.Money
	Method               reservation.PaymentMethod
	TransactionReference string
	Type                 PaymentEventType
}

type PaymentLinkRequest struct {
	ReservationID reservation.ReservationID
	Amount        money.Money
	Guest         reservation.Guest
	ItemName      string
	Nights        int
	ExpiresAt     time.Time
}

type PaymentLink struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// PaymentLinkIssuer opens a hosted checkout for a pending reservation.
type PaymentLinkIssuer interface {
	Issue(ctx context.Context, req PaymentLinkRequest) (PaymentLink, error)
}

// PaymentStatusPort asks the provider for the current state of an order.
type PaymentStatusPort interface {
	Status(ctx context.Context, orderReference string) (PaymentEvent, error)
}
