package dto

import (
	"sort"
	"time"

	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/daterange"
	"chaletbook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

type NightPrice struct {
	Date    string   `json:"date"`
	Weekend bool     `json:"weekend"`
	Rate    MoneyDTO `json:"rate"`
}

type SurchargeDTO struct {
	Name   string   `json:"name"`
	Guests int      `json:"guests"`
	Nights int      `json:"nights"`
	Amount MoneyDTO `json:"amount"`
}

type PriceBreakdown struct {
	Nights     int            `json:"nights"`
	Lines      []NightPrice   `json:"lines"`
	Surcharges []SurchargeDTO `json:"surcharges"`
	Total      MoneyDTO       `json:"total"`
}

func MapQuote(q pricing.Quote) PriceBreakdown {
	out := PriceBreakdown{
		Nights:     q.Nights,
		Lines:      make([]NightPrice, 0, len(q.Lines)),
		Surcharges: make([]SurchargeDTO, 0, len(q.Surcharges)),
		Total:      MapMoney(q.Total),
	}
	for _, l := range q.Lines {
		out.Lines = append(out.Lines, NightPrice{Date: l.Date, Weekend: l.Weekend, Rate: MapMoney(l.Rate)})
	}
	for _, s := range q.Surcharges {
		out.Surcharges = append(out.Surcharges, SurchargeDTO{Name: s.Name, Guests: s.Guests, Nights: s.Nights, Amount: MapMoney(s.Amount)})
	}
	return out
}

type PaymentLinkDTO struct {
	Token       string `json:"token,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// ReservationCreated is returned to the booking form.
type ReservationCreated struct {
	ID             string          `json:"id"`
	ChaletID       string          `json:"chalet_id"`
	CheckIn        string          `json:"check_in"`
	CheckOut       string          `json:"check_out"`
	TotalPrice     MoneyDTO        `json:"total_price"`
	PriceBreakdown PriceBreakdown  `json:"price_breakdown"`
	HoldExpiresAt  time.Time       `json:"hold_expires_at"`
	Payment        *PaymentLinkDTO `json:"payment,omitempty"`
}

type GuestDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type PartyDTO struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

type ReservationView struct {
	ID               string               `json:"id"`
	ChaletID         string               `json:"chalet_id"`
	CheckIn          string               `json:"check_in"`
	CheckOut         string               `json:"check_out"`
	Nights           int                  `json:"nights"`
	Guest            GuestDTO             `json:"guest"`
	Party            PartyDTO             `json:"party"`
	Status           string               `json:"status"`
	PaymentStatus    string               `json:"payment_status"`
	PaymentMethod    string               `json:"payment_method"`
	PaymentReference string               `json:"payment_reference,omitempty"`
	HoldExpiresAt    *time.Time           `json:"hold_expires_at,omitempty"`
	TotalPrice       MoneyDTO             `json:"total_price"`
	PriceBreakdown   PriceBreakdown       `json:"price_breakdown"`
	ChannelSync      map[string]time.Time `json:"channel_sync"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func MapReservation(r *reservation.Reservation) ReservationView {
	view := ReservationView{
		ID:               string(r.ID),
		ChaletID:         string(r.ChaletID),
		CheckIn:          daterange.Format(r.Stay.CheckIn),
		CheckOut:         daterange.Format(r.Stay.CheckOut),
		Nights:           len(r.Stay.Dates()),
		Guest:            GuestDTO{Name: r.Guest.Name, Email: r.Guest.Email, Phone: r.Guest.Phone},
		Party:            PartyDTO{Adults: r.Party.Adults, Children: r.Party.Children, Infants: r.Party.Infants},
		Status:           string(r.Status),
		PaymentStatus:    r.Payment.Label(),
		PaymentMethod:    string(r.Payment.Method),
		PaymentReference: r.PaymentReference,
		TotalPrice:       MapMoney(r.Price.Total),
		PriceBreakdown:   MapQuote(r.Price),
		ChannelSync:      map[string]time.Time{},
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.Status == reservation.StatusPending {
		hold := r.HoldExpiresAt
		view.HoldExpiresAt = &hold
	}
	for ch, at := range r.ChannelSync {
		view.ChannelSync[ch] = at
	}
	return view
}

type ReservationCollection struct {
	Items []ReservationView `json:"items"`
}

// Transition reports the outcome of a lifecycle command.
type Transition struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Payment string `json:"payment_status"`
	Changed bool   `json:"changed"`
}

func MapTransition(r *reservation.Reservation, changed bool) Transition {
	return Transition{ID: string(r.ID), Status: string(r.Status), Payment: r.Payment.Label(), Changed: changed}
}

type SweepResult struct {
	Expired int `json:"expired"`
}

func sortStrings(v []string) {
	sort.Strings(v)
}
