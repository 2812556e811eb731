package apperr

import (
	"context"
	"errors"
	"fmt"

	"chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/daterange"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindStateConflict Kind = "state_conflict"
	KindUpstream      Kind = "upstream"
	KindInternal      Kind = "internal"
)

// Error is the classified failure surfaced to transports. Dates is set for
// availability conflicts so callers can offer other dates.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Dates   []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(reason, message string, err error) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: message, Err: err}
}

func Conflict(message string, dates []string) *Error {
	return &Error{Kind: KindConflict, Reason: "dates_unavailable", Message: message, Dates: append([]string{}, dates...)}
}

func NotFound(reason, message string, err error) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: message, Err: err}
}

func StateConflict(message string, err error) *Error {
	return &Error{Kind: KindStateConflict, Reason: "invalid_state", Message: message, Err: err}
}

func Upstream(reason, message string, err error) *Error {
	return &Error{Kind: KindUpstream, Reason: reason, Message: message, Err: err}
}

// KindOf classifies err, recognising domain sentinels wrapped anywhere in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	switch {
	case errors.Is(err, reservation.ErrNotFound),
		errors.Is(err, chalets.ErrChaletNotFound),
		errors.Is(err, availability.ErrBlockNotFound):
		return KindNotFound
	case errors.Is(err, reservation.ErrInvalidState),
		errors.Is(err, reservation.ErrHoldActive):
		return KindStateConflict
	case errors.Is(err, reservation.ErrConcurrentModification):
		return KindConflict
	case errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, daterange.ErrInvalidDate),
		errors.Is(err, reservation.ErrInvalidGuest),
		errors.Is(err, reservation.ErrInvalidParty),
		errors.Is(err, reservation.ErrTooManyGuests),
		errors.Is(err, reservation.ErrCheckInPast),
		errors.Is(err, reservation.ErrStayTooLong),
		errors.Is(err, reservation.ErrBeyondHorizon),
		errors.Is(err, reservation.ErrInvalidHold),
		errors.Is(err, pricing.ErrInvalidParty),
		errors.Is(err, availability.ErrReasonRequired):
		return KindValidation
	case errors.Is(err, context.DeadlineExceeded):
		return KindUpstream
	}
	return KindInternal
}

// From converts any error into an *Error, keeping classified errors intact.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	kind := KindOf(err)
	out := &Error{Kind: kind, Reason: string(kind), Message: err.Error(), Err: err}
	if kind == KindInternal {
		out.Message = "internal error"
	}
	return out
}

// Retryable reports whether repeating the same request could succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindInternal, KindUpstream:
		return true
	}
	return false
}
