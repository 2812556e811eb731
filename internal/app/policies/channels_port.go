package policies

import (
	"context"

	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/money"
)

type ChannelBooking struct {
	ReservationID reservation.ReservationID
	Listing       chalets.ChannelListing
	Guest         reservation.Guest
	CheckIn       string
	CheckOut      string
	Party         pricing.Party
	Total         money.Money
}

type DayAvailability struct {
	Date string `json:"date"`
	Open bool   `json:"open"`
}

// ChannelManager pushes local state to one external distribution channel.
type ChannelManager interface {
	Name() string
	BatchSize() int
	PushBooking(ctx context.Context, booking ChannelBooking) error
	PushAvailability(ctx context.Context, listing chalets.ChannelListing, days []DayAvailability) error
}

// ChannelSyncTrigger starts the outbound sync of a confirmed reservation.
// It is best-effort: failures are logged and left for the next sweep.
type ChannelSyncTrigger interface {
	ReservationConfirmed(ctx context.Context, id reservation.ReservationID)
}
