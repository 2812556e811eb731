package memory

import (
	"context"
	"errors"

	"chaletbook/internal/app/uow"
	domainavailability "chaletbook/internal/domain/availability"
	domainreservation "chaletbook/internal/domain/reservation"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ReservationsRepo domainreservation.Repository
	BlocksRepo       domainavailability.BlockRepository
}

// NewFactory builds a factory over fresh, empty repositories.
func NewFactory() Factory {
	return Factory{
		ReservationsRepo: NewReservationRepository(),
		BlocksRepo:       NewBlockRepository(),
	}
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight transaction boundary. No isolation is provided but
// the abstraction matches the application ports.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ReservationsRepo == nil || f.BlocksRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{reservations: f.ReservationsRepo, blocks: f.BlocksRepo}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
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
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}

var _ uow.UoWFactory = Factory{}
