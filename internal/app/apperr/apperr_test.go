package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/daterange"
)

func TestKindOfRecognisesWrappedSentinels(t *testing.T) {
	require.Equal(t, KindNotFound, KindOf(fmt.Errorf("load: %w", reservation.ErrNotFound)))
	require.Equal(t, KindNotFound, KindOf(chalets.ErrChaletNotFound))
	require.Equal(t, KindStateConflict, KindOf(fmt.Errorf("confirm: %w", reservation.ErrInvalidState)))
	require.Equal(t, KindValidation, KindOf(daterange.ErrInvalidRange))
	require.Equal(t, KindValidation, KindOf(reservation.ErrCheckInPast))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
	require.Equal(t, Kind(""), KindOf(nil))
}

func TestConflictCarriesDates(t *testing.T) {
	err := fmt.Errorf("create: %w", Conflict("dates unavailable", []string{"2026-05-03"}))
	ae := From(err)
	require.Equal(t, KindConflict, ae.Kind)
	require.Equal(t, []string{"2026-05-03"}, ae.Dates)
	require.False(t, Retryable(err))
}

func TestFromHidesInternalDetail(t *testing.T) {
	ae := From(errors.New("mongo: connection reset"))
	require.Equal(t, KindInternal, ae.Kind)
	require.Equal(t, "internal error", ae.Message)
	require.True(t, Retryable(ae))
}
