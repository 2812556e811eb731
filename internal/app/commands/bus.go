package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Command is a write intent. Its Key routes it to exactly one handler.
type Command interface {
	Key() string
}

type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

// BusFunc adapts a function to Bus; middleware returns one per wrapper.
type BusFunc func(ctx context.Context, cmd Command) (any, error)

func (f BusFunc) Dispatch(ctx context.Context, cmd Command) (any, error) {
	return f(ctx, cmd)
}

var (
	ErrUnknownCommand = errors.New("commands: no handler registered")
	ErrCommandType    = errors.New("commands: command type does not match handler")
	ErrResultType     = errors.New("commands: result type mismatch")
	ErrNilBus         = errors.New("commands: nil bus")
)

type route func(ctx context.Context, cmd Command) (any, error)

// Registry routes commands to typed handlers. It is filled at startup and
// only read afterwards.
type Registry struct {
	routes map[string]route
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]route)}
}

// Register binds h to the key of C's zero value. Registering a key twice is
// a wiring bug and panics.
func Register[C Command, R any](r *Registry, h Handler[C, R]) {
	if r == nil || h == nil {
		panic("commands: nil registry or handler")
	}
	var zero C
	key := zero.Key()
	if key == "" {
		panic(fmt.Sprintf("commands: %T has an empty key", zero))
	}
	if _, dup := r.routes[key]; dup {
		panic(fmt.Sprintf("commands: %s registered twice", key))
	}
	r.routes[key] = func(ctx context.Context, raw Command) (any, error) {
		cmd, ok := raw.(C)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrCommandType, key, raw)
		}
		return h.Handle(ctx, cmd)
	}
}

func (r *Registry) Dispatch(ctx context.Context, cmd Command) (any, error) {
	h, ok := r.routes[cmd.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Key())
	}
	return h(ctx, cmd)
}

// Keys lists the registered command keys in order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.routes))
	for k := range r.routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dispatch sends cmd through bus and asserts the handler's result type. A
// nil result yields R's zero value.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil || res == nil {
		return zero, err
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrResultType, cmd.Key(), res)
	}
	return value, nil
}
