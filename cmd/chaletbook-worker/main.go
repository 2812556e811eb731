package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chaletbook/internal/app/bootstrap"
	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	channelsapp "chaletbook/internal/app/handlers/channels"
	paymentsapp "chaletbook/internal/app/handlers/payments"
	reservationsapp "chaletbook/internal/app/handlers/reservations"
	"chaletbook/internal/app/middleware"
	appschedule "chaletbook/internal/app/schedule"
	"chaletbook/internal/app/services/snapshots"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/infra/broker/kafka"
	"chaletbook/internal/infra/channels"
	"chaletbook/internal/infra/config"
	"chaletbook/internal/infra/db"
	"chaletbook/internal/infra/ical"
	"chaletbook/internal/infra/obs"
	relay "chaletbook/internal/infra/outbox"
	"chaletbook/internal/infra/payments/midtrans"
	"chaletbook/internal/infra/schedule"
	"chaletbook/internal/infra/storage/s3"
)

const consumerName = "chaletbook-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env).With("service", consumerName)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	items, err := config.LoadChalets(cfg.ChaletsFile, cfg.ChannelNames())
	if err != nil {
		return err
	}
	directory := chalets.NewStaticDirectory(items)
	clk := clock.System{}

	stores, err := db.Open(ctx, cfg, consumerName, clk, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	channelClients, err := channels.NewAll(cfg.Channels, channels.Options{
		MinSpacing: cfg.ChannelMinSpacing,
		Timeout:    cfg.ChannelTimeout,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	deps := bootstrap.Deps{
		Store:   stores.UoW,
		Outbox:  stores.Outbox,
		Chalets: directory,
		Feeds: &ical.Fetcher{
			Client:  &http.Client{},
			Timeout: cfg.FeedTimeout,
			Retries: cfg.FeedRetries,
			Backoff: cfg.FeedBackoff,
			Logger:  logger.With("component", "ical"),
		},
		Channels:          channelClients,
		Clock:             clk,
		Hold:              cfg.HoldDefault,
		SlowHold:          cfg.HoldSlowPayment,
		Horizon:           cfg.Horizon(),
		Limits:            cfg.StayLimits(),
		SyncHorizonMonths: cfg.SyncHorizonMonths,
		AcceptPartial:     cfg.PaymentsAcceptPartial,
		IDGenerator:       uuid.NewString,
		Logger:            logger,
	}
	if cfg.MidtransServerKey != "" {
		client, err := midtrans.NewClient(cfg.MidtransServerKey, cfg.MidtransProduction)
		if err != nil {
			return err
		}
		deps.PaymentLinks = client
		deps.PaymentStatus = client
	}
	buses := bootstrap.Build(deps)

	scheduler := schedule.New(logger, 0)
	jobs := []appschedule.Job{
		{Name: "sweep-expired", Spec: cfg.SweepSchedule, Run: func(ctx context.Context) error {
			res, err := commands.Dispatch[reservationsapp.SweepExpiredCommand, dto.SweepResult](ctx, buses.Commands, reservationsapp.SweepExpiredCommand{})
			if err == nil && res.Expired > 0 {
				logger.Info("expired holds swept", "expired", res.Expired)
			}
			return err
		}},
		{Name: "idempotency-purge", Spec: "@daily", Run: func(ctx context.Context) error {
			n, err := stores.PurgeIdempotency(ctx)
			if err == nil && n > 0 {
				logger.Info("idempotency records purged", "count", n)
			}
			return err
		}},
	}
	if len(channelClients) > 0 {
		jobs = append(jobs,
			appschedule.Job{Name: "channel-sync-pending", Spec: cfg.ChannelSyncSchedule, Run: func(ctx context.Context) error {
				res, err := commands.Dispatch[channelsapp.SyncPendingCommand, dto.PendingSyncResult](ctx, buses.Commands, channelsapp.SyncPendingCommand{})
				if err == nil && res.Attempted > 0 {
					logger.Info("pending reservations synced", "attempted", res.Attempted, "synced", res.Synced, "failed", res.Failed)
				}
				return err
			}},
			appschedule.Job{Name: "channel-sync-blocks", Spec: cfg.BlockSyncSchedule, Run: func(ctx context.Context) error {
				_, err := commands.Dispatch[channelsapp.SyncAllManualBlocksCommand, []dto.BlockSyncResult](ctx, buses.Commands, channelsapp.SyncAllManualBlocksCommand{})
				return err
			}},
		)
	}
	if deps.PaymentStatus != nil {
		jobs = append(jobs, appschedule.Job{Name: "payment-poll", Spec: cfg.PaymentPollSchedule, Run: func(ctx context.Context) error {
			res, err := commands.Dispatch[paymentsapp.PollAwaitingPaymentsCommand, paymentsapp.PollSummary](ctx, buses.Commands, paymentsapp.PollAwaitingPaymentsCommand{})
			if err == nil && res.Polled > 0 {
				logger.Info("awaiting payments polled", "polled", res.Polled, "confirmed", res.Confirmed, "cancelled", res.Cancelled, "failed", res.Failed)
			}
			return err
		}})
	}
	if cfg.S3Endpoint != "" {
		bucket, err := s3.NewClient(s3.Config{
			Endpoint:      cfg.S3Endpoint,
			UseSSL:        cfg.S3UseSSL,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicURL,
		}, logger)
		if err != nil {
			return err
		}
		publisher := &snapshots.Publisher{Queries: buses.Queries, Chalets: directory, Store: bucket, Logger: logger}
		jobs = append(jobs, appschedule.Job{Name: "calendar-snapshots", Spec: cfg.SnapshotSchedule, Run: func(ctx context.Context) error {
			_, err := publisher.PublishAll(ctx)
			return err
		}})
	}
	for _, job := range jobs {
		inner := job.Run
		job.Run = func(ctx context.Context) error { return inner(middleware.WithOperator(ctx)) }
		if err := scheduler.Register(job); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	scheduler.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	if cfg.EventsEnabled() {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.ProducerConfig())
		if err != nil {
			return err
		}
		defer producer.Close()
		worker := &relay.Worker{
			Store:       stores.Relay,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger.With("component", "outbox"),
			Clock:       clk,
		}
		g.Go(func() error { return worker.Run(gctx) })

		if cfg.ChannelSyncMode == config.SyncEvents {
			consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, kafka.ConsumerConfig(), kafka.ConfirmedSync{
				Commands: buses.Commands,
				Inbox:    stores.Inbox,
				Logger:   logger.With("component", "confirmed-sync"),
			}, logger)
			if err != nil {
				return err
			}
			defer consumer.Close()
			topic := worker.TopicFor("reservation.confirmed")
			g.Go(func() error { return consumer.Run(gctx, []string{topic}) })
		}
	} else if stores.Relay != nil {
		logger.Warn("KAFKA_BROKERS empty, outbox records stay unrelayed")
	}

	logger.Info("worker started", "store", stores.Driver, "jobs", len(jobs), "events", cfg.EventsEnabled(), "channel_sync", cfg.ChannelSyncMode)
	return g.Wait()
}
