package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"chaletbook/internal/app/uow"
	domainavailability "chaletbook/internal/domain/availability"
	domainreservation "chaletbook/internal/domain/reservation"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

type txKey struct{}

// conn returns the transaction bound to ctx, or base outside a unit.
func conn(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return base.WithContext(ctx)
}

// Factory opens one SQL transaction per unit of work.
type Factory struct {
	DB *gorm.DB

	ReservationsRepo domainreservation.Repository
	BlocksRepo       domainavailability.BlockRepository
}

// Factory returns a unit-of-work factory over the client's repositories.
func (c *Client) Factory() Factory {
	return Factory{
		DB:               c.DB,
		ReservationsRepo: NewReservationRepository(c.DB),
		BlocksRepo:       NewBlockRepository(c.DB),
	}
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.ReservationsRepo == nil || f.BlocksRepo == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx := f.DB.WithContext(ctx).Begin(&sql.TxOptions{ReadOnly: opts.ReadOnly})
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Unit{tx: tx, reservations: f.ReservationsRepo, blocks: f.BlocksRepo}, nil
}

type Unit struct {
	tx *gorm.DB

	reservations domainreservation.Repository
	blocks       domainavailability.BlockRepository
}

func (u *Unit) Reservations() domainreservation.Repository {
	return u.reservations
}

func (u *Unit) Blocks() domainavailability.BlockRepository {
	return u.blocks
}

func (u *Unit) Commit(ctx context.Context) error {
	return u.tx.Commit().Error
}

func (u *Unit) Rollback(ctx context.Context) error {
	return u.tx.Rollback().Error
}

// InjectContext binds the transaction so repositories and the outbox join it.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, txKey{}, u.tx)
}

var _ uow.UoWFactory = Factory{}
