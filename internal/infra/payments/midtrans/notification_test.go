package midtrans

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/app/policies"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/money"
	"chaletbook/internal/infra/security"
)

func signed(t *testing.T, n Notification, key string) []byte {
	t.Helper()
	n.SignatureKey = security.SHA512Hex(n.OrderID, n.StatusCode, n.GrossAmount, key)
	body, err := json.Marshal(n)
	require.NoError(t, err)
	return body
}

func TestDecodeSettlement(t *testing.T) {
	d := Decoder{ServerKey: "SB-key"}
	ev, err := d.Decode(signed(t, Notification{
		OrderID:           "res-1",
		StatusCode:        "200",
		GrossAmount:       "1500000.00",
		TransactionStatus: "settlement",
		PaymentType:       "bank_transfer",
		TransactionID:     "trx-9",
	}, "SB-key"))
	require.NoError(t, err)
	require.Equal(t, policies.PaymentPaid, ev.Type)
	require.Equal(t, "res-1", ev.OrderReference)
	require.Equal(t, int64(150000000), ev.PaidAmount.Amount)
	require.Equal(t, reservation.MethodBankTransfer, ev.Method)
	require.Equal(t, "trx-9", ev.TransactionReference)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	d := Decoder{ServerKey: "SB-key"}

	_, err := d.Decode([]byte(`{not json`))
	require.ErrorIs(t, err, ErrMalformed)

	body := signed(t, Notification{OrderID: "res-1", StatusCode: "200", GrossAmount: "10.00", TransactionStatus: "settlement"}, "other-key")
	_, err = d.Decode(body)
	require.ErrorIs(t, err, ErrBadSignature)

	body = signed(t, Notification{OrderID: "res-1", StatusCode: "200", GrossAmount: "10.00", TransactionStatus: "mystery"}, "SB-key")
	_, err = d.Decode(body)
	require.ErrorIs(t, err, ErrUnmapped)

	_, err = Decoder{}.Decode(signed(t, Notification{OrderID: "res-1", TransactionStatus: "settlement"}, ""))
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestEventType(t *testing.T) {
	cases := []struct {
		status, fraud string
		want          policies.PaymentEventType
	}{
		{"capture", "accept", policies.PaymentPaid},
		{"capture", "challenge", policies.PaymentPending},
		{"settlement", "", policies.PaymentPaid},
		{"pending", "", policies.PaymentPending},
		{"deny", "", policies.PaymentFailure},
		{"failure", "", policies.PaymentFailure},
		{"cancel", "", policies.PaymentCancel},
		{"expire", "", policies.PaymentExpire},
		{"refund", "", policies.PaymentRefund},
		{"partial_refund", "", policies.PaymentRefund},
	}
	for _, tc := range cases {
		got, ok := EventType(tc.status, tc.fraud)
		require.True(t, ok, tc.status)
		require.Equal(t, tc.want, got, tc.status+"/"+tc.fraud)
	}
}

func TestMethodsAndAmounts(t *testing.T) {
	require.Equal(t, reservation.MethodCreditCard, Method("credit_card"))
	require.Equal(t, reservation.MethodEWallet, Method("gopay"))
	require.Equal(t, reservation.MethodQRIS, Method("qris"))
	require.Equal(t, reservation.MethodConvenienceStore, Method("cstore"))
	require.Equal(t, reservation.MethodUnknown, Method("barter"))

	amount, err := ParseGrossAmount("10000.50")
	require.NoError(t, err)
	require.Equal(t, int64(1000050), amount)
	_, err = ParseGrossAmount("ten")
	require.ErrorIs(t, err, ErrMalformed)

	require.Equal(t, int64(150), GrossAmount(money.Must(15000, "IDR")))
}

func TestChargedGrossCoversFractionalTotal(t *testing.T) {
	total := money.Must(12345, "IDR")
	charged := GrossAmount(total)
	require.Equal(t, int64(124), charged)
	require.Equal(t, int64(0), GrossAmount(money.Must(0, "IDR")))

	ev, err := Decoder{ServerKey: "SB-key"}.Decode(signed(t, Notification{
		OrderID:           "res-1",
		StatusCode:        "200",
		GrossAmount:       fmt.Sprintf("%d.00", charged),
		TransactionStatus: "settlement",
	}, "SB-key"))
	require.NoError(t, err)
	require.True(t, ev.PaidAmount.Covers(total))
}

func TestNewClientNeedsKey(t *testing.T) {
	_, err := NewClient("", false)
	require.ErrorIs(t, err, ErrNotConfigured)
	c, err := NewClient("SB-Mid-server-x", false)
	require.NoError(t, err)
	require.NotNil(t, c)
}
