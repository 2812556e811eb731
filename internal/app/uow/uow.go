package uow

import (
	"context"

	domainavailability "chaletbook/internal/domain/availability"
	domainreservation "chaletbook/internal/domain/reservation"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Reservations() domainreservation.Repository
	Blocks() domainavailability.BlockRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
