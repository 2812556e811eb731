package middleware

import (
	"context"

	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// UnitManager is implemented by commands whose handler opens and commits its
// own units, e.g. to re-read state after a commit.
type UnitManager interface {
	ManagesUnits()
}

// Transaction runs each command inside a unit of work. A command dispatched
// while another one's unit is open joins that unit.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if _, open := uow.FromContext(ctx); open {
				return next.Dispatch(ctx, cmd)
			}
			if _, own := cmd.(UnitManager); own {
				return next.Dispatch(ctx, cmd)
			}
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			var res any
			err := uow.Run(ctx, factory, opts, func(execCtx context.Context, _ uow.UnitOfWork) error {
				var err error
				res, err = next.Dispatch(execCtx, cmd)
				return err
			})
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
