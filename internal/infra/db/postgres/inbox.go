package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type inboxRow struct {
	EventID    string    `gorm:"primaryKey;size:64"`
	Consumer   string    `gorm:"primaryKey;size:64"`
	ReceivedAt time.Time `gorm:"not null"`
}

func (inboxRow) TableName() string { return "inbox_events" }

// InboxStore records which events a consumer has already handled.
type InboxStore struct {
	db       *gorm.DB
	consumer string
}

func NewInboxStore(db *gorm.DB, consumer string) *InboxStore {
	return &InboxStore{db: db, consumer: consumer}
}

// Seen marks eventID as received and reports whether it had been before.
func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	row := inboxRow{EventID: eventID, Consumer: s.consumer, ReceivedAt: time.Now().UTC()}
	out := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if out.Error != nil {
		return false, out.Error
	}
	return out.RowsAffected == 0, nil
}

func (s *InboxStore) Forget(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).
		Where("event_id = ? AND consumer = ?", eventID, s.consumer).
		Delete(&inboxRow{}).Error
}
