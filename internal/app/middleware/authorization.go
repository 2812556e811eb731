package middleware

import (
	"context"
	"errors"

	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/queries"
)

var ErrOperatorRequired = errors.New("middleware: operator credentials required")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// OperatorOnly marks messages that only an authenticated operator may send.
type OperatorOnly interface {
	OperatorOnly()
}

type operatorKey struct{}

// WithOperator marks ctx as carrying a verified operator credential.
func WithOperator(ctx context.Context) context.Context {
	return context.WithValue(ctx, operatorKey{}, true)
}

func IsOperator(ctx context.Context) bool {
	ok, _ := ctx.Value(operatorKey{}).(bool)
	return ok
}

// OperatorAuthorizer rejects OperatorOnly messages outside an operator context.
type OperatorAuthorizer struct{}

func (OperatorAuthorizer) Authorize(ctx context.Context, message any) error {
	if _, restricted := message.(OperatorOnly); restricted && !IsOperator(ctx) {
		return ErrOperatorRequired
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		return queries.BusFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
