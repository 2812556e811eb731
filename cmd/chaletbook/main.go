package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"chaletbook/internal/app/bootstrap"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/infra/cache"
	"chaletbook/internal/infra/channels"
	"chaletbook/internal/infra/config"
	"chaletbook/internal/infra/db"
	ginserver "chaletbook/internal/infra/http/gin"
	"chaletbook/internal/infra/ical"
	"chaletbook/internal/infra/obs"
	"chaletbook/internal/infra/payments/midtrans"
	"chaletbook/internal/infra/security"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-operator-key" {
		if err := hashOperatorKey(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	items, err := config.LoadChalets(cfg.ChaletsFile, cfg.ChannelNames())
	if err != nil {
		return err
	}
	directory := chalets.NewStaticDirectory(items)
	clk := clock.System{}

	stores, err := db.Open(ctx, cfg, "chaletbook-api", clk, logger)
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
		Store:          stores.UoW,
		Outbox:         stores.Outbox,
		Idempotency:    stores.Idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Chalets:        directory,
		Feeds: &ical.Fetcher{
			Client:  &http.Client{},
			Timeout: cfg.FeedTimeout,
			Retries: cfg.FeedRetries,
			Backoff: cfg.FeedBackoff,
			Logger:  logger.With("component", "ical"),
		},
		Channels:          channelClients,
		CalendarCache:     cache.NewCalendarCache(cfg.CalendarCacheTTL, clk),
		Clock:             clk,
		Hold:              cfg.HoldDefault,
		SlowHold:          cfg.HoldSlowPayment,
		Horizon:           cfg.Horizon(),
		Limits:            cfg.StayLimits(),
		SyncHorizonMonths: cfg.SyncHorizonMonths,
		InlineChannelSync: cfg.ChannelSyncMode == config.SyncInline,
		AcceptPartial:     cfg.PaymentsAcceptPartial,
		IDGenerator:       uuid.NewString,
		Logger:            logger,
	}
	var decoder ginserver.NotificationDecoder
	if cfg.MidtransServerKey != "" {
		client, err := midtrans.NewClient(cfg.MidtransServerKey, cfg.MidtransProduction)
		if err != nil {
			return err
		}
		deps.PaymentLinks = client
		deps.PaymentStatus = client
		decoder = midtrans.Decoder{ServerKey: cfg.MidtransServerKey}
	} else {
		logger.Warn("midtrans disabled, reservations are created without a checkout link")
	}
	if cfg.OperatorKeyHash == "" {
		logger.Warn("OPERATOR_KEY_HASH empty, admin endpoints reject every key")
	}
	buses := bootstrap.Build(deps)

	handlers := ginserver.Handlers{
		Chalets:      ginserver.ChaletHandler{Queries: buses.Queries, Logger: logger},
		Reservations: ginserver.ReservationHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Payments: ginserver.PaymentHandler{
			Commands:      buses.Commands,
			Midtrans:      decoder,
			WebhookSecret: security.SharedSecret(cfg.WebhookSecret),
			Logger:        logger,
		},
		Maintenance: ginserver.MaintenanceHandler{Commands: buses.Commands, Logger: logger},
		Admin:       ginserver.AdminHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Guards: ginserver.Guards{
			Operator: security.OperatorKeyVerifier{Hash: cfg.OperatorKeyHash},
			Cron:     security.SharedSecret(cfg.CronSecret),
			Logger:   logger,
		},
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: stores.Checks}, handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting",
		"addr", cfg.HTTPAddr,
		"store", stores.Driver,
		"chalets", len(items),
		"channels", strings.Join(cfg.ChannelNames(), ","),
		"channel_sync", cfg.ChannelSyncMode,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}

// hashOperatorKey prints the bcrypt hash for OPERATOR_KEY_HASH. The key is
// read from the first argument or, when absent, from stdin.
func hashOperatorKey(args []string) error {
	key := ""
	if len(args) > 0 {
		key = args[0]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read key: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if len(key) < 16 {
		return errors.New("operator key must be at least 16 characters")
	}
	hash, err := security.BcryptHasher{}.Hash(key)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
