package midtrans

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gomidtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"chaletbook/internal/app/policies"
)

var ErrNotConfigured = errors.New("midtrans: server key not configured")

// Client issues Snap checkout links and polls the Core API for order status.
type Client struct {
	snap snap.Client
	core coreapi.Client
}

func NewClient(serverKey string, production bool) (*Client, error) {
	if serverKey == "" {
		return nil, ErrNotConfigured
	}
	env := gomidtrans.Sandbox
	if production {
		env = gomidtrans.Production
	}
	c := &Client{}
	c.snap.New(serverKey, env)
	c.core.New(serverKey, env)
	return c, nil
}

func (c *Client) Issue(ctx context.Context, req policies.PaymentLinkRequest) (policies.PaymentLink, error) {
	if err := ctx.Err(); err != nil {
		return policies.PaymentLink{}, err
	}
	gross := GrossAmount(req.Amount)
	if gross <= 0 {
		return policies.PaymentLink{}, fmt.Errorf("midtrans: invalid amount %s", req.Amount.String())
	}
	first, last := splitName(req.Guest.Name)
	order := string(req.ReservationID)
	sreq := &snap.Request{
		TransactionDetails: gomidtrans.TransactionDetails{
			OrderID:  order,
			GrossAmt: gross,
		},
		CustomerDetail: &gomidtrans.CustomerDetails{
			FName: first,
			LName: last,
			Email: req.Guest.Email,
			Phone: req.Guest.Phone,
		},
		Items: &[]gomidtrans.ItemDetails{{
			ID:    order,
			Name:  truncate(fmt.Sprintf("%s, %d nights", req.ItemName, req.Nights), 50),
			Price: gross,
			Qty:   1,
		}},
		CreditCard: &snap.CreditCardDetails{Secure: true},
	}
	resp, merr := c.snap.CreateTransaction(sreq)
	if merr != nil {
		return policies.PaymentLink{}, fmt.Errorf("midtrans snap: %s", merr.Error())
	}
	return policies.PaymentLink{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (c *Client) Status(ctx context.Context, orderReference string) (policies.PaymentEvent, error) {
	if err := ctx.Err(); err != nil {
		return policies.PaymentEvent{}, err
	}
	resp, merr := c.core.CheckTransaction(orderReference)
	if merr != nil {
		return policies.PaymentEvent{}, fmt.Errorf("midtrans status %s: %s", orderReference, merr.Error())
	}
	n := Notification{
		TransactionStatus: resp.TransactionStatus,
		TransactionID:     resp.TransactionID,
		StatusCode:        resp.StatusCode,
		OrderID:           resp.OrderID,
		GrossAmount:       resp.GrossAmount,
		PaymentType:       resp.PaymentType,
		FraudStatus:       resp.FraudStatus,
	}
	if n.OrderID == "" {
		n.OrderID = orderReference
	}
	return n.Event()
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ policies.PaymentLinkIssuer = (*Client)(nil)
var _ policies.PaymentStatusPort = (*Client)(nil)
