package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chaletbook/internal/app/middleware"
	appoutbox "chaletbook/internal/app/outbox"
	"chaletbook/internal/app/uow"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/infra/config"
	"chaletbook/internal/infra/db/mongo"
	"chaletbook/internal/infra/db/postgres"
	"chaletbook/internal/infra/obs"
	relay "chaletbook/internal/infra/outbox"
	"chaletbook/internal/infra/storage/memory"
)

// Inbox de-duplicates consumed events.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Stores is the persistence selected by STORE_DRIVER. Relay and Inbox are
// nil for the memory driver.
type Stores struct {
	Driver      string
	UoW         uow.UoWFactory
	Outbox      appoutbox.Outbox
	Relay       relay.Store
	Idempotency middleware.IdempotencyStore
	Inbox       Inbox
	Checks      map[string]obs.Check

	purge func(ctx context.Context) (int64, error)
	close func(ctx context.Context) error
}

// Open connects the configured driver. consumer names the inbox owner.
func Open(ctx context.Context, cfg config.Config, consumer string, clk clock.Clock, logger *slog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		return &Stores{
			Driver:      config.StoreMemory,
			UoW:         memory.NewFactory(),
			Outbox:      memory.NewOutbox(),
			Idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL, clk),
			Checks:      map[string]obs.Check{},
		}, nil

	case config.StoreMongo:
		client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		box := relay.NewMongoStore(client.DB)
		return &Stores{
			Driver:      config.StoreMongo,
			UoW:         client.Factory(),
			Outbox:      box,
			Relay:       box,
			Idempotency: mongo.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
			Inbox:       mongo.NewInboxStore(client.DB, consumer),
			Checks:      map[string]obs.Check{"mongo": client.Ping},
			close:       client.Close,
		}, nil

	case config.StorePostgres:
		client, err := postgres.Open(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := client.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		box := postgres.NewOutboxStore(client.DB)
		idem := postgres.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
		return &Stores{
			Driver:      config.StorePostgres,
			UoW:         client.Factory(),
			Outbox:      box,
			Relay:       box,
			Idempotency: idem,
			Inbox:       postgres.NewInboxStore(client.DB, consumer),
			Checks:      map[string]obs.Check{"postgres": client.Ping},
			purge:       idem.Purge,
			close:       func(context.Context) error { return client.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// PurgeIdempotency removes lapsed idempotency records where the store
// cannot expire them itself.
func (s *Stores) PurgeIdempotency(ctx context.Context) (int64, error) {
	if s.purge == nil {
		return 0, nil
	}
	return s.purge(ctx)
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.close(ctx)
}

var ErrRelayUnavailable = errors.New("db: event relay needs a persistent store")
