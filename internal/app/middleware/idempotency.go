package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/commands"
	"chaletbook/internal/domain/shared/clock"
)

// IdempotentCommand carries a client supplied key. DecodeResult turns a
// stored payload back into the value the handler returned.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	DecodeResult(payload []byte) (any, error)
}

// IdempotencyRecord is the first outcome stored under a key: either the
// encoded result or the classified failure.
type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Error      *RecordedError
	OccurredAt time.Time
}

type RecordedError struct {
	Kind    string   `json:"kind" bson:"kind"`
	Reason  string   `json:"reason" bson:"reason"`
	Message string   `json:"message" bson:"message"`
	Dates   []string `json:"dates,omitempty" bson:"dates,omitempty"`
}

func recordError(err error) *RecordedError {
	ae := apperr.From(err)
	return &RecordedError{Kind: string(ae.Kind), Reason: ae.Reason, Message: ae.Message, Dates: ae.Dates}
}

func (r *RecordedError) asError() error {
	return &apperr.Error{Kind: apperr.Kind(r.Kind), Reason: r.Reason, Message: r.Message, Dates: r.Dates}
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

// DecodeJSON is the DecodeResult for commands whose handler returns *T.
func DecodeJSON[T any](payload []byte) (any, error) {
	out := new(T)
	if err := json.Unmarshal(payload, out); err != nil {
		return nil, fmt.Errorf("idempotency: decode stored result: %w", err)
	}
	return out, nil
}

// Idempotency replays the first outcome stored for a command's key while it
// is younger than ttl. Retryable failures are never stored.
func Idempotency(store IdempotencyStore, ttl time.Duration, clk clock.Clock) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	return func(next commands.Bus) commands.Bus {
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			ic, ok := cmd.(IdempotentCommand)
			if !ok || ic.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := cmd.Key() + ":" + ic.IdempotencyKey()

			prior, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found && (ttl <= 0 || clk.Now().Sub(prior.OccurredAt) < ttl) {
				return replay(prior, ic)
			}

			result, runErr := next.Dispatch(ctx, cmd)
			if runErr != nil && apperr.Retryable(runErr) {
				return nil, runErr
			}
			rec := IdempotencyRecord{Key: key, OccurredAt: clk.Now().UTC()}
			if runErr != nil {
				rec.Error = recordError(runErr)
			} else if result != nil {
				if rec.Payload, err = json.Marshal(result); err != nil {
					return nil, fmt.Errorf("idempotency: encode result: %w", err)
				}
			}
			if err := store.Save(ctx, rec); err != nil {
				return nil, errors.Join(runErr, err)
			}
			return result, runErr
		})
	}
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand) (any, error) {
	switch {
	case rec.Error != nil:
		return nil, rec.Error.asError()
	case len(rec.Payload) == 0:
		return nil, nil
	default:
		return cmd.DecodeResult(rec.Payload)
	}
}
