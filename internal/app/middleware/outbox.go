package middleware

import (
	"context"

	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/outbox"
)

// OutboxFlush hands the records buffered by a command to the outbox once the
// command has succeeded. A failed command leaves nothing behind.
func OutboxFlush(box outbox.Outbox) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err == nil {
				err = box.Flush(ctx)
			}
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
