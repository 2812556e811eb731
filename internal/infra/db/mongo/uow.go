package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"chaletbook/internal/app/uow"
	"chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/reservation"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory opens one session transaction per unit. Writes need majority
// acknowledgement so a hold is never lost on primary failover.
type Factory struct {
	DB               *mongo.Database
	ReservationsRepo reservation.Repository
	BlocksRepo       availability.BlockRepository
}

func (f Factory) txOptions(readOnly bool) *options.TransactionOptions {
	opts := options.Transaction().SetReadPreference(readpref.Primary())
	if readOnly {
		return opts.SetReadConcern(readconcern.Snapshot())
	}
	return opts.SetReadConcern(readconcern.Majority()).SetWriteConcern(writeconcern.Majority())
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.ReservationsRepo == nil || f.BlocksRepo == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	if err := session.StartTransaction(f.txOptions(opts.ReadOnly)); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{session: session, factory: f}, nil
}

// Unit is a running session transaction. Repositories find the session in
// the context InjectContext returns.
type Unit struct {
	session mongo.Session
	factory Factory
	done    bool
}

func (u *Unit) Reservations() reservation.Repository { return u.factory.ReservationsRepo }

func (u *Unit) Blocks() availability.BlockRepository { return u.factory.BlocksRepo }

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
