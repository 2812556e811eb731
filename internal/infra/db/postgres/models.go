package postgres

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	domainavailability "chaletbook/internal/domain/availability"
	domainchalets "chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	domainreservation "chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/daterange"
)

type reservationRow struct {
	ID               string           `gorm:"primaryKey;size:64"`
	ChaletID         string           `gorm:"size:64;not null;index:idx_reservations_active,priority:1"`
	CheckIn          datatypes.Date   `gorm:"not null"`
	CheckOut         datatypes.Date   `gorm:"not null;index:idx_reservations_checkout,priority:2"`
	LastNight        datatypes.Date   `gorm:"not null;index:idx_reservations_active,priority:3"`
	GuestName        string           `gorm:"size:200;not null"`
	GuestEmail       string           `gorm:"size:254;not null"`
	GuestPhone       string           `gorm:"size:40"`
	Adults           int              `gorm:"not null"`
	Children         int              `gorm:"not null"`
	Infants          int              `gorm:"not null"`
	Price            datatypes.JSON   `gorm:"type:jsonb;not null"`
	TotalAmount      int64            `gorm:"not null"`
	Currency         string           `gorm:"size:3;not null"`
	Status           string           `gorm:"size:16;not null;index:idx_reservations_active,priority:2;index:idx_reservations_checkout,priority:1;index:idx_reservations_hold,priority:1"`
	PaymentMethod    string           `gorm:"size:32;not null"`
	PaymentOutcome   string           `gorm:"size:32;not null"`
	PaymentNote      string           `gorm:"size:64"`
	PaymentReference string           `gorm:"size:200"`
	HoldExpiresAt    time.Time        `gorm:"not null;index:idx_reservations_hold,priority:2"`
	CreatedAt        time.Time        `gorm:"autoCreateTime:false;not null"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime:false;not null"`
	Version          int64            `gorm:"not null"`
	Syncs            []channelSyncRow `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE"`
}

func (reservationRow) TableName() string { return "reservations" }

type channelSyncRow struct {
	ID            uint      `gorm:"primaryKey"`
	ReservationID string    `gorm:"size:64;not null;uniqueIndex:idx_reservation_channel"`
	Channel       string    `gorm:"size:32;not null;uniqueIndex:idx_reservation_channel"`
	SyncedAt      time.Time `gorm:"not null"`
}

func (channelSyncRow) TableName() string { return "reservation_channel_syncs" }

type manualBlockRow struct {
	ChaletID  string         `gorm:"primaryKey;size:64"`
	Date      datatypes.Date `gorm:"primaryKey"`
	Reason    string         `gorm:"size:200;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime:false;not null"`
}

func (manualBlockRow) TableName() string { return "manual_blocks" }

func newReservationRow(r *domainreservation.Reservation) (reservationRow, error) {
	price, err := json.Marshal(r.Price)
	if err != nil {
		return reservationRow{}, err
	}
	return reservationRow{
		ID:               string(r.ID),
		ChaletID:         string(r.ChaletID),
		CheckIn:          datatypes.Date(r.Stay.CheckIn),
		CheckOut:         datatypes.Date(r.Stay.CheckOut),
		LastNight:        datatypes.Date(r.Stay.LastNight()),
		GuestName:        r.Guest.Name,
		GuestEmail:       r.Guest.Email,
		GuestPhone:       r.Guest.Phone,
		Adults:           r.Party.Adults,
		Children:         r.Party.Children,
		Infants:          r.Party.Infants,
		Price:            datatypes.JSON(price),
		TotalAmount:      r.Price.Total.Amount,
		Currency:         r.Price.Total.Currency,
		Status:           string(r.Status),
		PaymentMethod:    string(r.Payment.Method),
		PaymentOutcome:   string(r.Payment.Outcome),
		PaymentNote:      r.Payment.Note,
		PaymentReference: r.PaymentReference,
		HoldExpiresAt:    r.HoldExpiresAt.UTC(),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		Version:          r.Version,
	}, nil
}

// columns lists the mutable columns written by a versioned update.
func (row reservationRow) columns() map[string]any {
	return map[string]any{
		"status":            row.Status,
		"payment_method":    row.PaymentMethod,
		"payment_outcome":   row.PaymentOutcome,
		"payment_note":      row.PaymentNote,
		"payment_reference": row.PaymentReference,
		"hold_expires_at":   row.HoldExpiresAt,
		"updated_at":        row.UpdatedAt,
		"version":           row.Version,
	}
}

func (row reservationRow) toAggregate() (*domainreservation.Reservation, error) {
	var price pricing.Quote
	if len(row.Price) > 0 {
		if err := json.Unmarshal(row.Price, &price); err != nil {
			return nil, err
		}
	}
	sync := make(map[string]time.Time, len(row.Syncs))
	for _, s := range row.Syncs {
		sync[s.Channel] = s.SyncedAt.UTC()
	}
	return &domainreservation.Reservation{
		ID:       domainreservation.ReservationID(row.ID),
		ChaletID: domainchalets.ChaletID(row.ChaletID),
		Stay: daterange.DateRange{
			CheckIn:  daterange.Normalize(time.Time(row.CheckIn)),
			CheckOut: daterange.Normalize(time.Time(row.CheckOut)),
		},
		Guest:  domainreservation.Guest{Name: row.GuestName, Email: row.GuestEmail, Phone: row.GuestPhone},
		Party:  pricing.Party{Adults: row.Adults, Children: row.Children, Infants: row.Infants},
		Price:  price,
		Status: domainreservation.Status(row.Status),
		Payment: domainreservation.PaymentState{
			Method:  domainreservation.PaymentMethod(row.PaymentMethod),
			Outcome: domainreservation.PaymentOutcome(row.PaymentOutcome),
			Note:    row.PaymentNote,
		},
		PaymentReference: row.PaymentReference,
		HoldExpiresAt:    row.HoldExpiresAt.UTC(),
		ChannelSync:      sync,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
		Version:          row.Version,
	}, nil
}

func (row manualBlockRow) toBlock() domainavailability.ManualBlock {
	return domainavailability.ManualBlock{
		ChaletID:  domainchalets.ChaletID(row.ChaletID),
		Date:      daterange.Normalize(time.Time(row.Date)),
		Reason:    row.Reason,
		CreatedAt: row.CreatedAt.UTC(),
	}
}
