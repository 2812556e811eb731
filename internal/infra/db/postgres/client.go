package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Client struct {
	DB *gorm.DB
}

// Open connects with duplicate-key errors translated to gorm.ErrDuplicatedKey.
func Open(dsn string, logger *slog.Logger) (*Client, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         NewGormLogger(logger),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	return &Client{DB: db}, nil
}

// Migrate creates or updates every table the store uses.
func (c *Client) Migrate(ctx context.Context) error {
	return c.DB.WithContext(ctx).AutoMigrate(
		&reservationRow{},
		&channelSyncRow{},
		&manualBlockRow{},
		&outboxRow{},
		&inboxRow{},
		&idempotencyRow{},
	)
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormLogger sends gorm's statement log to slog. Only slow statements and
// failures are reported; a missing row is not a failure.
type GormLogger struct {
	Logger        *slog.Logger
	SlowThreshold time.Duration
	Level         gormlogger.LogLevel
}

func NewGormLogger(logger *slog.Logger) *GormLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &GormLogger{
		Logger:        logger.With("component", "gorm"),
		SlowThreshold: 200 * time.Millisecond,
		Level:         gormlogger.Warn,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.Level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Level >= gormlogger.Info {
		l.Logger.InfoContext(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Level >= gormlogger.Warn {
		l.Logger.WarnContext(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Level >= gormlogger.Error {
		l.Logger.ErrorContext(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.Level >= gormlogger.Error:
		sql, rows := fc()
		l.Logger.ErrorContext(ctx, "sql failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.Level >= gormlogger.Warn:
		sql, rows := fc()
		l.Logger.WarnContext(ctx, "slow sql", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.Level >= gormlogger.Info:
		sql, rows := fc()
		l.Logger.DebugContext(ctx, "sql", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
