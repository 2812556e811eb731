package postgres

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainchalets "chaletbook/internal/domain/chalets"
	domainreservation "chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/daterange"
)

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) ByID(ctx context.Context, id domainreservation.ReservationID) (*domainreservation.Reservation, error) {
	var row reservationRow
	err := conn(ctx, r.db).Preload("Syncs").Where("id = ?", string(id)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainreservation.ErrNotFound
		}
		return nil, err
	}
	return row.toAggregate()
}

// Save inserts at version zero and otherwise updates only the row still at
// the aggregate's version. Channel stamps are insert-only.
func (r *ReservationRepository) Save(ctx context.Context, res *domainreservation.Reservation) error {
	row, err := newReservationRow(res)
	if err != nil {
		return err
	}
	db := conn(ctx, r.db)
	next := res.Version + 1
	row.Version = next
	if res.Version == 0 {
		if err := db.Omit("Syncs").Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domainreservation.ErrConcurrentModification
			}
			return err
		}
	} else {
		out := db.Model(&reservationRow{}).
			Where("id = ? AND version = ?", row.ID, res.Version).
			Updates(row.columns())
		if out.Error != nil {
			return out.Error
		}
		if out.RowsAffected == 0 {
			return domainreservation.ErrConcurrentModification
		}
	}
	if err := saveSyncs(db, res); err != nil {
		return err
	}
	res.Version = next
	return nil
}

func saveSyncs(db *gorm.DB, res *domainreservation.Reservation) error {
	if len(res.ChannelSync) == 0 {
		return nil
	}
	rows := make([]channelSyncRow, 0, len(res.ChannelSync))
	for ch, at := range res.ChannelSync {
		rows = append(rows, channelSyncRow{ReservationID: string(res.ID), Channel: ch, SyncedAt: at.UTC()})
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reservation_id"}, {Name: "channel"}},
		DoNothing: true,
	}).Create(&rows).Error
}

func (r *ReservationRepository) ListActive(ctx context.Context, chaletID domainchalets.ChaletID, from time.Time) ([]*domainreservation.Reservation, error) {
	return r.find(conn(ctx, r.db).Where("chalet_id = ? AND status IN ? AND last_night >= ?",
		string(chaletID),
		[]string{string(domainreservation.StatusPending), string(domainreservation.StatusConfirmed)},
		daterange.Normalize(from),
	))
}

func (r *ReservationRepository) List(ctx context.Context, filter domainreservation.ListFilter) ([]*domainreservation.Reservation, error) {
	q := conn(ctx, r.db)
	if filter.ChaletID != "" {
		q = q.Where("chalet_id = ?", string(filter.ChaletID))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	return r.find(q)
}

// ExpireLapsedHolds is one UPDATE ... RETURNING over every lapsed, unpaid hold.
func (r *ReservationRepository) ExpireLapsedHolds(ctx context.Context, now time.Time) ([]domainreservation.ExpiredHold, error) {
	now = now.UTC()
	var rows []reservationRow
	err := conn(ctx, r.db).Model(&rows).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "chalet_id"}}}).
		Where("status = ? AND hold_expires_at < ? AND payment_outcome NOT IN ?",
			string(domainreservation.StatusPending),
			now,
			[]string{string(domainreservation.OutcomePaid), string(domainreservation.OutcomePartiallyPaid)},
		).
		Updates(map[string]any{
			"status":          string(domainreservation.StatusExpired),
			"payment_outcome": string(domainreservation.OutcomeExpired),
			"payment_note":    "hold",
			"updated_at":      now,
			"version":         gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return nil, err
	}
	out := make([]domainreservation.ExpiredHold, 0, len(rows))
	for _, row := range rows {
		out = append(out, domainreservation.ExpiredHold{
			ID:       domainreservation.ReservationID(row.ID),
			ChaletID: domainchalets.ChaletID(row.ChaletID),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ReservationRepository) ListConfirmedSince(ctx context.Context, from time.Time) ([]*domainreservation.Reservation, error) {
	return r.find(conn(ctx, r.db).Where("status = ? AND check_out >= ?",
		string(domainreservation.StatusConfirmed), daterange.Normalize(from)))
}

func (r *ReservationRepository) ListAwaitingPayment(ctx context.Context, now time.Time) ([]*domainreservation.Reservation, error) {
	return r.find(conn(ctx, r.db).Where("status = ? AND hold_expires_at > ? AND payment_outcome = ?",
		string(domainreservation.StatusPending), now.UTC(), string(domainreservation.OutcomeAwaitingConfirmation)))
}

func (r *ReservationRepository) find(q *gorm.DB) ([]*domainreservation.Reservation, error) {
	var rows []reservationRow
	if err := q.Preload("Syncs").Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domainreservation.Reservation, 0, len(rows))
	for _, row := range rows {
		res, err := row.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

var _ domainreservation.Repository = (*ReservationRepository)(nil)
