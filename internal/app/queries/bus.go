package queries

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Query is a read request. Handlers never mutate stored state.
type Query interface {
	Key() string
}

type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

type Bus interface {
	Ask(ctx context.Context, query Query) (any, error)
}

type BusFunc func(ctx context.Context, query Query) (any, error)

func (f BusFunc) Ask(ctx context.Context, query Query) (any, error) {
	return f(ctx, query)
}

var (
	ErrUnknownQuery = errors.New("queries: no handler registered")
	ErrQueryType    = errors.New("queries: query type does not match handler")
	ErrResultType   = errors.New("queries: result type mismatch")
	ErrNilBus       = errors.New("queries: nil bus")
)

type route func(ctx context.Context, query Query) (any, error)

type Registry struct {
	routes map[string]route
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]route)}
}

// Register binds h to the key of Q's zero value and panics on duplicates.
func Register[Q Query, R any](r *Registry, h Handler[Q, R]) {
	if r == nil || h == nil {
		panic("queries: nil registry or handler")
	}
	var zero Q
	key := zero.Key()
	if key == "" {
		panic(fmt.Sprintf("queries: %T has an empty key", zero))
	}
	if _, dup := r.routes[key]; dup {
		panic(fmt.Sprintf("queries: %s registered twice", key))
	}
	r.routes[key] = func(ctx context.Context, raw Query) (any, error) {
		q, ok := raw.(Q)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrQueryType, key, raw)
		}
		return h.Handle(ctx, q)
	}
}

func (r *Registry) Ask(ctx context.Context, query Query) (any, error) {
	h, ok := r.routes[query.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, query.Key())
	}
	return h(ctx, query)
}

func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.routes))
	for k := range r.routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Ask(ctx, query)
	if err != nil || res == nil {
		return zero, err
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrResultType, query.Key(), res)
	}
	return value, nil
}
