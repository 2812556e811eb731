package ginserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	paymentsapp "chaletbook/internal/app/handlers/payments"
	"chaletbook/internal/app/policies"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/money"
	"chaletbook/internal/infra/security"
)

const maxNotificationBytes = 1 << 20

// NotificationDecoder verifies a provider notification and normalises it.
type NotificationDecoder interface {
	Decode(body []byte) (policies.PaymentEvent, error)
}

type PaymentHandler struct {
	Commands      commands.Bus
	Midtrans      NotificationDecoder
	WebhookSecret security.SharedSecret
	Logger        *slog.Logger
}

func (h PaymentHandler) MidtransNotification(c *gin.Context) {
	if h.Midtrans == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "disabled"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "rejected", "error": "unreadable body"})
		return
	}
	ev, err := h.Midtrans.Decode(body)
	if err != nil {
		h.log().Warn("midtrans notification rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "rejected", "error": err.Error()})
		return
	}
	h.process(c, ev, "webhook")
}

type webhookRequest struct {
	OrderReference       string `json:"order_reference"`
	Type                 string `json:"type"`
	Method               string `json:"method"`
	PaidAmount           int64  `json:"paid_amount"`
	TotalAmount          int64  `json:"total_amount"`
	Currency             string `json:"currency"`
	TransactionReference string `json:"transaction_reference"`
}

func (h PaymentHandler) Webhook(c *gin.Context) {
	if !h.WebhookSecret.Matches(c.GetHeader("X-Webhook-Secret")) {
		abortUnauthorized(c, "webhook secret required")
		return
	}
	var req webhookRequest
	if err := json.NewDecoder(io.LimitReader(c.Request.Body, maxNotificationBytes)).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "rejected", "error": "invalid payload"})
		return
	}
	typ, ok := policies.ParsePaymentEventType(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"status": "rejected", "error": "unknown event type"})
		return
	}
	ev := policies.PaymentEvent{
		OrderReference:       req.OrderReference,
		PaidAmount:           money.Money{Amount: req.PaidAmount, Currency: req.Currency},
		Method:               reservation.ParseMethod(req.Method),
		TransactionReference: req.TransactionReference,
		Type:                 typ,
	}
	if req.TotalAmount > 0 {
		ev.TotalAmount = money.Money{Amount: req.TotalAmount, Currency: req.Currency}
	}
	h.process(c, ev, "webhook")
}

// process applies the provider retry policy: terminal outcomes answer 2xx or
// 400, anything a redelivery could fix answers 5xx.
func (h PaymentHandler) process(c *gin.Context, ev policies.PaymentEvent, source string) {
	cmd := paymentsapp.ProcessPaymentEventCommand{Event: ev, Source: source}
	out, err := commands.Dispatch[paymentsapp.ProcessPaymentEventCommand, dto.PaymentOutcome](c.Request.Context(), h.Commands, cmd)
	if err == nil {
		h.log().Info("payment event processed", "reservation_id", ev.OrderReference, "type", ev.Type, "action", out.Action)
		c.JSON(http.StatusOK, out)
		return
	}
	if errors.Is(err, reservation.ErrConcurrentModification) {
		h.log().Warn("payment event raced another update", "reservation_id", ev.OrderReference, "type", ev.Type)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "retry", "error": "reservation changed concurrently"})
		return
	}
	switch kind := apperr.KindOf(err); kind {
	case apperr.KindNotFound, apperr.KindStateConflict:
		h.log().Warn("payment event ignored", "reservation_id", ev.OrderReference, "type", ev.Type, "reason", kind, "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": string(kind)})
	case apperr.KindConflict:
		// The hold lapsed and the dates went to another guest; money already
		// taken has to go back by hand.
		h.log().Error("payment event for a lost hold; refund needed",
			"reservation_id", ev.OrderReference, "type", ev.Type, "paid", ev.PaidAmount.String(),
			"transaction_reference", ev.TransactionReference, "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": string(kind)})
	case apperr.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"status": "rejected", "error": apperr.From(err).Message})
	default:
		respondError(c, h.Logger, err)
	}
}

func (h PaymentHandler) log() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var _ PaymentHTTP = PaymentHandler{}
