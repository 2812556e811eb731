package postgres

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainavailability "chaletbook/internal/domain/availability"
	domainchalets "chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/daterange"
)

// BlockRepository keys manual_blocks on (chalet_id, date).
type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// Add inserts row by row with ON CONFLICT DO NOTHING; a zero row count means
// the night was already closed.
func (r *BlockRepository) Add(ctx context.Context, blocks []domainavailability.ManualBlock) ([]domainavailability.ManualBlock, error) {
	db := conn(ctx, r.db)
	added := make([]domainavailability.ManualBlock, 0, len(blocks))
	for _, b := range blocks {
		b.Date = daterange.Normalize(b.Date)
		row := manualBlockRow{
			ChaletID:  string(b.ChaletID),
			Date:      datatypes.Date(b.Date),
			Reason:    b.Reason,
			CreatedAt: b.CreatedAt.UTC(),
		}
		out := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if out.Error != nil {
			return nil, out.Error
		}
		if out.RowsAffected == 1 {
			added = append(added, b)
		}
	}
	return added, nil
}

func (r *BlockRepository) Remove(ctx context.Context, chaletID domainchalets.ChaletID, dates []time.Time) ([]time.Time, error) {
	if len(dates) == 0 {
		return []time.Time{}, nil
	}
	normalized := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		normalized = append(normalized, daterange.Normalize(d))
	}
	var deleted []manualBlockRow
	err := conn(ctx, r.db).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "date"}}}).
		Where("chalet_id = ? AND date IN ?", string(chaletID), normalized).
		Delete(&deleted).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(deleted))
	for _, row := range deleted {
		out = append(out, daterange.Normalize(time.Time(row.Date)))
	}
	return out, nil
}

func (r *BlockRepository) List(ctx context.Context, chaletID domainchalets.ChaletID, from, to time.Time) ([]domainavailability.ManualBlock, error) {
	q := conn(ctx, r.db).Where("chalet_id = ? AND date >= ?", string(chaletID), daterange.Normalize(from))
	if !to.IsZero() {
		q = q.Where("date < ?", daterange.Normalize(to))
	}
	var rows []manualBlockRow
	if err := q.Order("date").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domainavailability.ManualBlock, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toBlock())
	}
	return out, nil
}

var _ domainavailability.BlockRepository = (*BlockRepository)(nil)
