package middleware

import (
	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/queries"
)

type CommandMiddleware func(next commands.Bus) commands.Bus

type QueryMiddleware func(next queries.Bus) queries.Bus

// ChainCommands wraps base so that mws[0] sees a command first and base last.
func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}
