package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chaletbook/internal/app/commands"
)

type afterCommitKey struct{}

type afterCommitHooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

// Defer schedules fn to run once the surrounding command has committed. When
// no AfterCommit middleware is in the chain, fn runs immediately.
func Defer(ctx context.Context, fn func(context.Context)) {
	if fn == nil {
		return
	}
	hooks, ok := ctx.Value(afterCommitKey{}).(*afterCommitHooks)
	if !ok {
		fn(ctx)
		return
	}
	hooks.mu.Lock()
	hooks.fns = append(hooks.fns, fn)
	hooks.mu.Unlock()
}

// AfterCommit runs deferred side effects after a successful dispatch. Their
// failures and panics are logged and never change the command's result.
func AfterCommit(logger *slog.Logger, timeout time.Duration) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return func(next commands.Bus) commands.Bus {
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			hooks := &afterCommitHooks{}
			res, err := next.Dispatch(context.WithValue(ctx, afterCommitKey{}, hooks), cmd)
			if err != nil {
				return nil, err
			}
			hooks.mu.Lock()
			fns := hooks.fns
			hooks.fns = nil
			hooks.mu.Unlock()
			for _, fn := range fns {
				runHook(context.WithoutCancel(ctx), timeout, logger, cmd.Key(), fn)
			}
			return res, nil
		})
	}
}

func runHook(ctx context.Context, timeout time.Duration, logger *slog.Logger, key string, fn func(context.Context)) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("after-commit hook panicked", "command", key, "panic", r)
		}
	}()
	fn(ctx)
}
