package reservation

import (
	"time"

	"chaletbook/internal/domain/shared/money"
)

type ReservationRequested struct {
	ReservationID ReservationID `json:"reservation_id"`
	ChaletID      string        `json:"chalet_id"`
	CheckIn       string        `json:"check_in"`
	CheckOut      string        `json:"check_out"`
	Total         money.Money   `json:"total"`
	HoldExpiresAt time.Time     `json:"hold_expires_at"`
	At            time.Time     `json:"at"`
}

func (e ReservationRequested) EventName() string     { return "reservation.requested" }
func (e ReservationRequested) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationRequested) OccurredAt() time.Time { return e.At }

type HoldExtended struct {
	ReservationID ReservationID `json:"reservation_id"`
	Method        PaymentMethod `json:"method"`
	HoldExpiresAt time.Time     `json:"hold_expires_at"`
	At            time.Time     `json:"at"`
}

func (e HoldExtended) EventName() string     { return "reservation.hold_extended" }
func (e HoldExtended) AggregateID() string   { return string(e.ReservationID) }
func (e HoldExtended) OccurredAt() time.Time { return e.At }

type ReservationConfirmed struct {
	ReservationID    ReservationID `json:"reservation_id"`
	ChaletID         string        `json:"chalet_id"`
	CheckIn          string        `json:"check_in"`
	CheckOut         string        `json:"check_out"`
	PaymentReference string        `json:"payment_reference"`
	PaymentStatus    string        `json:"payment_status"`
	Total            money.Money   `json:"total"`
	At               time.Time     `json:"at"`
}

func (e ReservationConfirmed) EventName() string     { return "reservation.confirmed" }
func (e ReservationConfirmed) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationConfirmed) OccurredAt() time.Time { return e.At }

type ReservationCancelled struct {
	ReservationID ReservationID `json:"reservation_id"`
	ChaletID      string        `json:"chalet_id"`
	From          Status        `json:"from"`
	PaymentStatus string        `json:"payment_status"`
	At            time.Time     `json:"at"`
}

func (e ReservationCancelled) EventName() string     { return "reservation.cancelled" }
func (e ReservationCancelled) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationCancelled) OccurredAt() time.Time { return e.At }

type ReservationExpired struct {
	ReservationID ReservationID `json:"reservation_id"`
	ChaletID      string        `json:"chalet_id"`
	At            time.Time     `json:"at"`
}

func (e ReservationExpired) EventName() string     { return "reservation.expired" }
func (e ReservationExpired) AggregateID() string   { return string(e.ReservationID) }
func (e ReservationExpired) OccurredAt() time.Time { return e.At }

type ChannelSynced struct {
	ReservationID ReservationID `json:"reservation_id"`
	Channel       string        `json:"channel"`
	At            time.Time     `json:"at"`
}

func (e ChannelSynced) EventName() string     { return "reservation.channel_synced" }
func (e ChannelSynced) AggregateID() string   { return string(e.ReservationID) }
func (e ChannelSynced) OccurredAt() time.Time { return e.At }
