package obs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger configures slog logger with colorful dev output and JSON for production-like envs.
func NewLogger(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, writer io.Writer) *slog.Logger {
	if env == "dev" || env == "local" {
		handler := tint.NewHandler(writer, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC3339,
			AddSource:  true,
		})
		return slog.New(handler)
	}
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	})
	return slog.New(handler).With("service", "chaletbook", "env", env)
}

// Discard drops every record. Handlers fall back to it when no logger is wired.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Ctx returns logger annotated with the request id carried by ctx, if any.
func Ctx(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		return logger.With("request_id", id)
	}
	return logger
}
