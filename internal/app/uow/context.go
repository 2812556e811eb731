package uow

import (
	"context"
	"errors"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

// ContextWithUnitOfWork stores the provided unit of work in context.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext retrieves a unit of work from context if present.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	val := ctx.Value(ctxKey{})
	if val == nil {
		return nil, false
	}
	unit, ok := val.(UnitOfWork)
	return unit, ok
}

// Run executes fn with the unit already bound to ctx. Without one it begins a
// unit from factory, commits it when fn succeeds and rolls back otherwise.
func Run(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) error) error {
	if unit, ok := FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if factory == nil {
		return ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	if err := fn(execCtx, unit); err != nil {
		return err
	}
	if opts.ReadOnly {
		return nil
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

// Bind injects store sessions carried by unit and attaches it to ctx.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	return bind(ctx, unit)
}

func bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}
