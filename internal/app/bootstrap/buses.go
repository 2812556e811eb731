package bootstrap

import (
	"log/slog"
	"time"

	"chaletbook/internal/app/commands"
	availabilityapp "chaletbook/internal/app/handlers/availability"
	blocksapp "chaletbook/internal/app/handlers/blocks"
	channelsapp "chaletbook/internal/app/handlers/channels"
	paymentsapp "chaletbook/internal/app/handlers/payments"
	reservationsapp "chaletbook/internal/app/handlers/reservations"
	"chaletbook/internal/app/middleware"
	"chaletbook/internal/app/outbox"
	"chaletbook/internal/app/policies"
	"chaletbook/internal/app/queries"
	"chaletbook/internal/app/services/channelsync"
	"chaletbook/internal/app/uow"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/clock"
)

// Deps carries the infrastructure both binaries hand to the application layer.
type Deps struct {
	Store          uow.UoWFactory
	Outbox         outbox.Outbox
	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
	Chalets        chalets.Directory
	Feeds          policies.FeedSource
	Channels       []policies.ChannelManager
	PaymentLinks   policies.PaymentLinkIssuer
	PaymentStatus  policies.PaymentStatusPort
	CalendarCache  availabilityapp.CalendarCache
	Clock          clock.Clock

	Hold              time.Duration
	SlowHold          time.Duration
	Horizon           time.Duration
	Limits            reservation.StayLimits
	SyncHorizonMonths int
	InlineChannelSync bool
	AcceptPartial     bool
	IDGenerator       func() string
	Logger            *slog.Logger
}

type Buses struct {
	Commands    commands.Bus
	Queries     queries.Bus
	ChannelSync *channelsync.Service
}

// Build registers every handler and wraps the buses in the middleware chain.
func Build(d Deps) Buses {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := outbox.Publisher{Outbox: d.Outbox, Encoder: outbox.JSONEventEncoder{}}

	syncService := &channelsync.Service{
		UoWFactory:    d.Store,
		Chalets:       d.Chalets,
		Channels:      d.Channels,
		Clock:         d.Clock,
		Publisher:     publisher,
		HorizonMonths: d.SyncHorizonMonths,
		Logger:        logger.With("component", "channelsync"),
	}
	var trigger policies.ChannelSyncTrigger = channelsync.EventTrigger{}
	if d.InlineChannelSync {
		trigger = channelsync.InlineTrigger{Service: syncService, Logger: logger}
	}

	resolver := &availabilityapp.Resolver{
		UoWFactory: d.Store,
		Feeds:      d.Feeds,
		Clock:      d.Clock,
		Horizon:    d.Horizon,
		Logger:     logger.With("component", "availability"),
	}
	checkAvailability := &availabilityapp.CheckAvailabilityHandler{Chalets: d.Chalets, Resolver: resolver, Limits: d.Limits}
	lifecycle := &reservationsapp.Lifecycle{
		UoWFactory: d.Store,
		Clock:      d.Clock,
		SlowHold:   d.SlowHold,
		Publisher:  publisher,
		Sync:       trigger,
		Logger:     logger.With("component", "lifecycle"),
	}
	processPayment := &paymentsapp.ProcessPaymentEventHandler{
		Lifecycle:     lifecycle,
		AcceptPartial: d.AcceptPartial,
		Logger:        logger.With("component", "payments"),
	}
	pollPayment := &paymentsapp.PollPaymentHandler{Status: d.PaymentStatus, Process: processPayment}

	commandBus := commands.NewRegistry()
	commands.Register(commandBus, &reservationsapp.CreateReservationHandler{
		UoWFactory:   d.Store,
		Chalets:      d.Chalets,
		Availability: checkAvailability,
		Clock:        d.Clock,
		Hold:         d.Hold,
		Limits:       d.Limits,
		Publisher:    publisher,
		Payments:     d.PaymentLinks,
		IDGenerator:  d.IDGenerator,
		Logger:       logger.With("component", "reservations"),
	})
	commands.Register(commandBus, &reservationsapp.ExtendHoldHandler{Lifecycle: lifecycle})
	commands.Register(commandBus, &reservationsapp.ConfirmReservationHandler{Lifecycle: lifecycle})
	commands.Register(commandBus, &reservationsapp.CancelReservationHandler{Lifecycle: lifecycle})
	commands.Register(commandBus, &reservationsapp.SweepExpiredHandler{
		UoWFactory: d.Store,
		Clock:      d.Clock,
		Publisher:  publisher,
		Logger:     logger.With("component", "sweeper"),
	})
	commands.Register(commandBus, processPayment)
	commands.Register(commandBus, pollPayment)
	commands.Register(commandBus, &paymentsapp.PollAwaitingPaymentsHandler{
		UoWFactory: d.Store,
		Clock:      d.Clock,
		Poll:       pollPayment,
		Logger:     logger.With("component", "payments"),
	})
	commands.Register(commandBus, &blocksapp.AddManualBlocksHandler{
		UoWFactory: d.Store, Chalets: d.Chalets, Clock: d.Clock, Publisher: publisher,
	})
	commands.Register(commandBus, &blocksapp.RemoveManualBlocksHandler{
		UoWFactory: d.Store, Chalets: d.Chalets, Clock: d.Clock, Publisher: publisher,
	})
	commands.Register(commandBus, &channelsapp.SyncReservationHandler{Service: syncService})
	commands.Register(commandBus, &channelsapp.SyncManualBlocksHandler{Service: syncService})
	commands.Register(commandBus, &channelsapp.SyncAllManualBlocksHandler{Chalets: d.Chalets, Service: syncService})
	commands.Register(commandBus, &channelsapp.SyncPendingHandler{Service: syncService})

	queryBus := queries.NewRegistry()
	queries.Register(queryBus, &availabilityapp.ListChaletsHandler{Chalets: d.Chalets})
	queries.Register(queryBus, checkAvailability)
	queries.Register(queryBus, &availabilityapp.GetCalendarHandler{
		Chalets: d.Chalets, Resolver: resolver, Cache: d.CalendarCache,
	})
	queries.Register(queryBus, &reservationsapp.GetReservationHandler{Lifecycle: lifecycle})
	queries.Register(queryBus, &reservationsapp.ListReservationsHandler{UoWFactory: d.Store})
	queries.Register(queryBus, &blocksapp.ListManualBlocksHandler{UoWFactory: d.Store, Chalets: d.Chalets})

	validator := middleware.NewStructValidator()
	authorizer := middleware.OperatorAuthorizer{}
	commandMiddleware := []middleware.CommandMiddleware{middleware.AfterCommit(logger, 0)}
	if d.Idempotency != nil {
		commandMiddleware = append(commandMiddleware, middleware.Idempotency(d.Idempotency, d.IdempotencyTTL, d.Clock))
	}
	commandMiddleware = append(commandMiddleware,
		middleware.Validation(validator),
		middleware.Authorization(authorizer),
		middleware.Transaction(d.Store, nil),
		middleware.OutboxFlush(d.Outbox),
	)

	return Buses{
		Commands:    middleware.ChainCommands(commandBus, commandMiddleware...),
		Queries:     middleware.ChainQueries(queryBus, middleware.QueryValidation(validator), middleware.QueryAuthorization(authorizer)),
		ChannelSync: syncService,
	}
}
