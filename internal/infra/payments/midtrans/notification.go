package midtrans

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"chaletbook/internal/app/policies"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/money"
	"chaletbook/internal/infra/security"
)

var (
	ErrMalformed    = errors.New("midtrans: malformed notification")
	ErrBadSignature = errors.New("midtrans: signature mismatch")
	ErrUnmapped     = errors.New("midtrans: unmapped transaction status")
)

// Notification is the HTTP notification body; unknown fields are ignored.
type Notification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
}

// Decoder verifies and normalises notifications with the merchant server key.
type Decoder struct {
	ServerKey string
}

func (d Decoder) Decode(body []byte) (policies.PaymentEvent, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return policies.PaymentEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n.OrderID == "" || n.TransactionStatus == "" {
		return policies.PaymentEvent{}, fmt.Errorf("%w: order_id and transaction_status are required", ErrMalformed)
	}
	want := security.SHA512Hex(n.OrderID, n.StatusCode, n.GrossAmount, d.ServerKey)
	if d.ServerKey == "" || !security.DigestEqual(want, n.SignatureKey) {
		return policies.PaymentEvent{}, ErrBadSignature
	}
	return n.Event()
}

// Event maps the notification onto the provider-neutral payment event.
func (n Notification) Event() (policies.PaymentEvent, error) {
	typ, ok := EventType(n.TransactionStatus, n.FraudStatus)
	if !ok {
		return policies.PaymentEvent{}, fmt.Errorf("%w: %q", ErrUnmapped, n.TransactionStatus)
	}
	paid := money.Money{}
	if typ == policies.PaymentPaid {
		amount, err := ParseGrossAmount(n.GrossAmount)
		if err != nil {
			return policies.PaymentEvent{}, err
		}
		paid.Amount = amount
	}
	return policies.PaymentEvent{
		OrderReference:       n.OrderID,
		PaidAmount:           paid,
		Method:               Method(n.PaymentType),
		TransactionReference: n.TransactionID,
		Type:                 typ,
	}, nil
}

// EventType follows Midtrans' status table; a captured card payment under
// fraud review stays pending until the challenge is resolved.
func EventType(transactionStatus, fraudStatus string) (policies.PaymentEventType, bool) {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "challenge":
			return policies.PaymentPending, true
		case "deny":
			return policies.PaymentFailure, true
		}
		return policies.PaymentPaid, true
	case "settlement":
		return policies.PaymentPaid, true
	case "pending", "authorize":
		return policies.PaymentPending, true
	case "deny", "failure":
		return policies.PaymentFailure, true
	case "cancel":
		return policies.PaymentCancel, true
	case "expire":
		return policies.PaymentExpire, true
	case "refund", "partial_refund", "chargeback", "partial_chargeback":
		return policies.PaymentRefund, true
	}
	return "", false
}

func Method(paymentType string) reservation.PaymentMethod {
	switch strings.ToLower(paymentType) {
	case "credit_card":
		return reservation.MethodCreditCard
	case "bank_transfer", "echannel", "permata", "bca_klikpay", "bca_klikbca", "bri_epay", "cimb_clicks", "danamon_online":
		return reservation.MethodBankTransfer
	case "gopay", "shopeepay", "akulaku", "kredivo":
		return reservation.MethodEWallet
	case "qris":
		return reservation.MethodQRIS
	case "cstore":
		return reservation.MethodConvenienceStore
	}
	return reservation.MethodUnknown
}

// ParseGrossAmount converts Midtrans' decimal string ("150000.00") into minor units.
func ParseGrossAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: gross_amount %q", ErrMalformed, raw)
	}
	return int64(math.Round(v * 100)), nil
}

// GrossAmount converts minor units to the whole-unit amount Midtrans charges.
// Fractions round up so the settled gross_amount always covers the total.
func GrossAmount(m money.Money) int64 {
	if m.Amount <= 0 {
		return 0
	}
	return (m.Amount + 99) / 100
}
