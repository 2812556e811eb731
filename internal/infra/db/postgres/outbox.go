package postgres

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "chaletbook/internal/app/outbox"
	relay "chaletbook/internal/infra/outbox"
)

type outboxRow struct {
	ID            string         `gorm:"primaryKey;size:64"`
	Name          string         `gorm:"size:100;not null"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null"`
	OccurredAt    time.Time      `gorm:"not null"`
	Aggregate     string         `gorm:"size:64"`
	Headers       datatypes.JSON `gorm:"type:jsonb"`
	State         string         `gorm:"size:16;not null;index:idx_outbox_due,priority:1"`
	Attempts      int            `gorm:"not null"`
	NextAttemptAt time.Time      `gorm:"not null;index:idx_outbox_due,priority:2"`
	ClaimedBy     string         `gorm:"size:64"`
	ClaimedAt     *time.Time
	SentAt        *time.Time
	LastError     string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false;not null"`
}

func (outboxRow) TableName() string { return "outbox_events" }

// OutboxStore writes records in the caller's transaction and serves the
// relay with SKIP LOCKED claims, so several workers can share the table.
type OutboxStore struct {
	db *gorm.DB
}

func NewOutboxStore(db *gorm.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	row := outboxRow{
		ID:            record.ID,
		Name:          record.Name,
		Payload:       datatypes.JSON(record.Payload),
		OccurredAt:    record.OccurredAt.UTC(),
		Aggregate:     record.Aggregate,
		Headers:       datatypes.JSON(headers),
		State:         relay.StateNew,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	return conn(ctx, s.db).Create(&row).Error
}

// Flush is a no-op: records become visible to the relay when the transaction commits.
func (s *OutboxStore) Flush(context.Context) error {
	return nil
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*relay.Record, error) {
	now := time.Now().UTC()
	var claimed *relay.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []outboxRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(state IN ? AND next_attempt_at <= ?) OR (state = ? AND claimed_at <= ?)",
				[]string{relay.StateNew, relay.StateFailed}, now, relay.StateClaimed, now.Add(-relay.ClaimTimeout)).
			Order("created_at").
			Limit(1).
			Find(&rows).Error
		if err != nil || len(rows) == 0 {
			return err
		}
		row := rows[0]
		err = tx.Model(&outboxRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"state":      relay.StateClaimed,
			"claimed_by": workerID,
			"claimed_at": now,
		}).Error
		if err != nil {
			return err
		}
		headers := map[string]string{}
		if len(row.Headers) > 0 {
			if err := json.Unmarshal(row.Headers, &headers); err != nil {
				return err
			}
		}
		claimed = &relay.Record{
			ID:         row.ID,
			Name:       row.Name,
			Payload:    []byte(row.Payload),
			OccurredAt: row.OccurredAt,
			Aggregate:  row.Aggregate,
			Headers:    headers,
			Attempts:   row.Attempts,
		}
		return nil
	})
	return claimed, err
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":   relay.StateSent,
		"sent_at": time.Now().UTC(),
	}).Error
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":           relay.StateFailed,
		"next_attempt_at": next.UTC(),
		"last_error":      errMsg,
		"attempts":        gorm.Expr("attempts + 1"),
	}).Error
}

var (
	_ appoutbox.Outbox = (*OutboxStore)(nil)
	_ relay.Store      = (*OutboxStore)(nil)
)
