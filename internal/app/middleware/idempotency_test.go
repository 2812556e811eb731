package middleware_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/middleware"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/infra/storage/memory"
)

type quote struct {
	Total int64 `json:"total"`
}

type quoteCommand struct{ key string }

func (quoteCommand) Key() string              { return "test.quote" }
func (c quoteCommand) IdempotencyKey() string { return c.key }
func (quoteCommand) DecodeResult(payload []byte) (any, error) {
	return middleware.DecodeJSON[quote](payload)
}

type countingBus struct {
	calls int
	err   error
}

func (b *countingBus) Dispatch(context.Context, commands.Command) (any, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return &quote{Total: int64(100 * b.calls)}, nil
}

func newIdempotent(t *testing.T, next commands.Bus, clk clock.Clock) commands.Bus {
	t.Helper()
	store := memory.NewIdempotencyStore(time.Hour, clk)
	return middleware.ChainCommands(next, middleware.Idempotency(store, time.Hour, clk))
}

func TestIdempotencyReplaysFirstResult(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	inner := &countingBus{}
	bus := newIdempotent(t, inner, clk)
	ctx := context.Background()

	first, err := commands.Dispatch[quoteCommand, *quote](ctx, bus, quoteCommand{key: "k1"})
	require.NoError(t, err)
	again, err := commands.Dispatch[quoteCommand, *quote](ctx, bus, quoteCommand{key: "k1"})
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Equal(t, 1, inner.calls)

	_, err = bus.Dispatch(ctx, quoteCommand{})
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestIdempotencyReplaysClassifiedFailure(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	inner := &countingBus{err: apperr.Conflict("dates unavailable", []string{"2026-03-02"})}
	bus := newIdempotent(t, inner, clk)

	_, err := bus.Dispatch(context.Background(), quoteCommand{key: "k"})
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	_, err = bus.Dispatch(context.Background(), quoteCommand{key: "k"})
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	require.Equal(t, []string{"2026-03-02"}, apperr.From(err).Dates)
	require.Equal(t, 1, inner.calls)
}

func TestIdempotencyDoesNotStoreRetryableFailures(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	inner := &countingBus{err: errors.New("connection reset")}
	bus := newIdempotent(t, inner, clk)

	_, err := bus.Dispatch(context.Background(), quoteCommand{key: "k"})
	require.Error(t, err)
	inner.err = nil
	got, err := commands.Dispatch[quoteCommand, *quote](context.Background(), bus, quoteCommand{key: "k"})
	require.NoError(t, err)
	require.Equal(t, int64(200), got.Total)
}
