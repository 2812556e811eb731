package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chaletbook/internal/app/middleware"
)

type idempotencyRow struct {
	Key        string         `gorm:"primaryKey;size:255"`
	Payload    []byte         `gorm:"type:bytea"`
	Error      datatypes.JSON `gorm:"type:jsonb"`
	OccurredAt time.Time      `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"autoCreateTime:false;not null;index"`
}

func (idempotencyRow) TableName() string { return "idempotency_records" }

// IdempotencyStore keeps replayable command outcomes for ttl. Purge removes
// the rows Get would no longer return.
type IdempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewIdempotencyStore(db *gorm.DB, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &IdempotencyStore{db: db, ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var rows []idempotencyRow
	err := s.db.WithContext(ctx).
		Where("key = ? AND created_at > ?", key, time.Now().UTC().Add(-s.ttl)).
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return middleware.IdempotencyRecord{}, false, err
	}
	row := rows[0]
	rec := middleware.IdempotencyRecord{Key: row.Key, Payload: row.Payload, OccurredAt: row.OccurredAt}
	if len(row.Error) > 0 && string(row.Error) != "null" {
		var failure middleware.RecordedError
		if err := json.Unmarshal(row.Error, &failure); err != nil {
			return middleware.IdempotencyRecord{}, false, err
		}
		rec.Error = &failure
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	if rec.Key == "" {
		return errors.New("postgres: idempotency key required")
	}
	row := idempotencyRow{
		Key:        rec.Key,
		Payload:    rec.Payload,
		OccurredAt: rec.OccurredAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	if rec.Error != nil {
		raw, err := json.Marshal(rec.Error)
		if err != nil {
			return err
		}
		row.Error = datatypes.JSON(raw)
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// Purge deletes records older than the replay window.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	out := s.db.WithContext(ctx).
		Where("created_at <= ?", time.Now().UTC().Add(-s.ttl)).
		Delete(&idempotencyRow{})
	return out.RowsAffected, out.Error
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
