package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/queries"
)

type Validator interface {
	Validate(ctx context.Context, message any) error
}

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next commands.Bus) commands.Bus {
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := v.Validate(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next queries.Bus) queries.Bus {
		return queries.BusFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := v.Validate(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}

// StructValidator checks `validate` struct tags on messages.
type StructValidator struct {
	v *validator.Validate
}

func NewStructValidator() *StructValidator {
	return &StructValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (s *StructValidator) Validate(ctx context.Context, message any) error {
	err := s.v.StructCtx(ctx, message)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// non-struct messages carry no tags
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	parts := make([]string, 0, len(fields))
	for _, fe := range fields {
		parts = append(parts, describeField(fe))
	}
	return apperr.Validation("invalid_input", strings.Join(parts, "; "), err)
}

func describeField(fe validator.FieldError) string {
	name := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "datetime":
		return name + " must be a YYYY-MM-DD date"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", name, fe.Tag())
}
