package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chaletbook/internal/domain/reservation"
)

const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	SyncInline = "inline"
	SyncEvents = "events"
)

// ChannelConfig holds the client settings of one channel manager.
type ChannelConfig struct {
	Name      string
	BaseURL   string
	APIKey    string
	BatchSize int
}

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	StoreDriver        string
	MongoURI           string
	MongoDB            string
	PostgresDSN        string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	ChaletsFile        string

	HoldDefault     time.Duration
	HoldSlowPayment time.Duration

	FeedTimeout      time.Duration
	FeedRetries      int
	FeedBackoff      time.Duration
	HorizonDays      int
	MaxStayNights    int
	BookingHorizon   int
	CalendarCacheTTL time.Duration

	Channels          []ChannelConfig
	ChannelMinSpacing time.Duration
	ChannelTimeout    time.Duration
	ChannelSyncMode   string
	SyncHorizonMonths int

	CronSecret      string
	OperatorKeyHash string
	WebhookSecret   string

	MidtransServerKey     string
	MidtransProduction    bool
	PaymentsAcceptPartial bool

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string
	S3UseSSL    bool

	SweepSchedule       string
	ChannelSyncSchedule string
	BlockSyncSchedule   string
	PaymentPollSchedule string
	SnapshotSchedule    string
}

// Horizon is the availability reporting window.
func (c Config) Horizon() time.Duration {
	return time.Duration(c.HorizonDays) * 24 * time.Hour
}

// StayLimits bounds booking requests and availability checks.
func (c Config) StayLimits() reservation.StayLimits {
	return reservation.StayLimits{
		MaxNights: c.MaxStayNights,
		Horizon:   time.Duration(c.BookingHorizon) * 24 * time.Hour,
	}
}

// EventsEnabled reports whether outbox records are relayed to Kafka.
func (c Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.StoreDriver != StoreMemory
}

// Load parses configuration from the current environment, after merging an
// optional .env file from the working directory.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}
	cfg := Config{
		Env:                 getEnv("APP_ENV", "dev"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             getEnv("MONGO_DB", "chaletbook"),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		KafkaTopicPrefix:    getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "chaletbook-worker"),
		ChaletsFile:         getEnv("CHALETS_FILE", "chalets.yaml"),
		ChannelSyncMode:     strings.ToLower(getEnv("CHANNEL_SYNC_MODE", SyncInline)),
		CronSecret:          os.Getenv("CRON_SECRET"),
		OperatorKeyHash:     os.Getenv("OPERATOR_KEY_HASH"),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		MidtransServerKey:   os.Getenv("MIDTRANS_SERVER_KEY"),
		S3Endpoint:          os.Getenv("S3_ENDPOINT"),
		S3AccessKey:         getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:         getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:            getEnv("S3_BUCKET", "chaletbook-public"),
		S3PublicURL:         os.Getenv("S3_PUBLIC_URL"),
		SweepSchedule:       getEnv("SWEEP_SCHEDULE", "@every 1m"),
		ChannelSyncSchedule: getEnv("CHANNEL_SYNC_SCHEDULE", "@every 10m"),
		BlockSyncSchedule:   getEnv("BLOCK_SYNC_SCHEDULE", "@every 30m"),
		PaymentPollSchedule: getEnv("PAYMENT_POLL_SCHEDULE", "@every 5m"),
		SnapshotSchedule:    getEnv("SNAPSHOT_SCHEDULE", "@every 15m"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"IDEMP_TTL", 168 * time.Hour, &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", 500 * time.Millisecond, &cfg.OutboxPollInterval},
		{"HOLD_DEFAULT", 10 * time.Minute, &cfg.HoldDefault},
		{"HOLD_SLOW_PAYMENT", 24 * time.Hour, &cfg.HoldSlowPayment},
		{"FEED_TIMEOUT", 8 * time.Second, &cfg.FeedTimeout},
		{"FEED_BACKOFF", 500 * time.Millisecond, &cfg.FeedBackoff},
		{"CALENDAR_CACHE_TTL", time.Minute, &cfg.CalendarCacheTTL},
		{"CHANNEL_MIN_SPACING", time.Second, &cfg.ChannelMinSpacing},
		{"CHANNEL_TIMEOUT", 15 * time.Second, &cfg.ChannelTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = parseDurationEnv(d.key, d.def); err != nil {
			return Config{}, err
		}
	}
	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"FEED_RETRIES", 2, &cfg.FeedRetries},
		{"AVAILABILITY_HORIZON_DAYS", 365, &cfg.HorizonDays},
		{"MAX_STAY_NIGHTS", 30, &cfg.MaxStayNights},
		{"BOOKING_HORIZON_DAYS", 365, &cfg.BookingHorizon},
		{"SYNC_HORIZON_MONTHS", 12, &cfg.SyncHorizonMonths},
	}
	for _, i := range ints {
		if *i.dst, err = parseIntEnv(i.key, i.def); err != nil {
			return Config{}, err
		}
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	if cfg.MidtransProduction, err = parseBoolEnv("MIDTRANS_PRODUCTION", false); err != nil {
		return Config{}, err
	}
	if cfg.PaymentsAcceptPartial, err = parseBoolEnv("PAYMENTS_ACCEPT_PARTIAL", false); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	for _, name := range splitList(getEnv("CHANNELS", "")) {
		ch, err := loadChannel(strings.ToLower(name))
		if err != nil {
			return Config{}, err
		}
		cfg.Channels = append(cfg.Channels, ch)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field requirements that depend on the store driver
// and sync mode.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	switch c.ChannelSyncMode {
	case SyncInline:
	case SyncEvents:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when CHANNEL_SYNC_MODE=events"))
		}
		if c.StoreDriver == StoreMemory {
			errs = append(errs, errors.New("CHANNEL_SYNC_MODE=events needs a persistent outbox (mongo or postgres)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CHANNEL_SYNC_MODE %q", c.ChannelSyncMode))
	}
	if c.HoldDefault <= 0 || c.HoldSlowPayment < c.HoldDefault {
		errs = append(errs, errors.New("HOLD_SLOW_PAYMENT must be at least HOLD_DEFAULT, both positive"))
	}
	if c.HorizonDays < 1 {
		errs = append(errs, errors.New("AVAILABILITY_HORIZON_DAYS must be positive"))
	}
	if c.MaxStayNights < 1 {
		errs = append(errs, errors.New("MAX_STAY_NIGHTS must be positive"))
	}
	if c.BookingHorizon < 1 {
		errs = append(errs, errors.New("BOOKING_HORIZON_DAYS must be positive"))
	}
	if c.FeedRetries < 0 {
		errs = append(errs, errors.New("FEED_RETRIES cannot be negative"))
	}
	return errors.Join(errs...)
}

func loadChannel(name string) (ChannelConfig, error) {
	prefix := "CHANNEL_" + strings.ToUpper(name) + "_"
	ch := ChannelConfig{
		Name:    name,
		BaseURL: os.Getenv(prefix + "URL"),
		APIKey:  os.Getenv(prefix + "KEY"),
	}
	if ch.BaseURL == "" || ch.APIKey == "" {
		return ChannelConfig{}, fmt.Errorf("%sURL and %sKEY are required for channel %s", prefix, prefix, name)
	}
	batch, err := parseIntEnv(prefix+"BATCH", 100)
	if err != nil {
		return ChannelConfig{}, err
	}
	ch.BatchSize = batch
	return ch, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
