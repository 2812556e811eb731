package blocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/outbox"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/infra/storage/memory"
)

func newHandlers() (*AddManualBlocksHandler, *RemoveManualBlocksHandler, *ListManualBlocksHandler, *memory.Outbox) {
	clk := clock.NewManual(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	store := memory.NewFactory()
	box := memory.NewOutbox()
	dir := chalets.NewStaticDirectory([]chalets.Chalet{{ID: "alpen", Name: "Alpen", MaxGuests: 4}})
	pub := outbox.Publisher{Outbox: box}
	return &AddManualBlocksHandler{UoWFactory: store, Chalets: dir, Clock: clk, Publisher: pub},
		&RemoveManualBlocksHandler{UoWFactory: store, Chalets: dir, Clock: clk, Publisher: pub},
		&ListManualBlocksHandler{UoWFactory: store, Chalets: dir},
		box
}

func TestAddManualBlocksSkipsExistingNights(t *testing.T) {
	add, _, list, box := newHandlers()
	ctx := context.Background()

	out, err := add.Handle(ctx, AddManualBlocksCommand{ChaletID: "alpen", From: "2026-06-01", To: "2026-06-03", Reason: "painting"})
	require.NoError(t, err)
	require.Equal(t, []string{"2026-06-01", "2026-06-02"}, out.Dates)

	out, err = add.Handle(ctx, AddManualBlocksCommand{ChaletID: "alpen", From: "2026-06-02", To: "2026-06-04", Reason: "painting"})
	require.NoError(t, err)
	require.Equal(t, []string{"2026-06-03"}, out.Dates)

	same, err := add.Handle(ctx, AddManualBlocksCommand{ChaletID: "alpen", From: "2026-06-10", To: "2026-06-10", Reason: "owner stay"})
	require.NoError(t, err)
	require.Equal(t, []string{"2026-06-10"}, same.Dates)

	listed, err := list.Handle(ctx, ListManualBlocksQuery{ChaletID: "alpen", From: "2026-06-02"})
	require.NoError(t, err)
	require.Len(t, listed.Items, 3)
	require.Equal(t, "2026-06-02", listed.Items[0].Date)
	require.Equal(t, "owner stay", listed.Items[2].Reason)

	require.Equal(t, []string{"availability.block_added", "availability.block_added", "availability.block_added"}, box.Names())
}

func TestAddManualBlocksValidation(t *testing.T) {
	add, _, _, _ := newHandlers()
	ctx := context.Background()

	_, err := add.Handle(ctx, AddManualBlocksCommand{ChaletID: "alpen", From: "2026-06-03", To: "2026-06-01", Reason: "x"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = add.Handle(ctx, AddManualBlocksCommand{ChaletID: "alpen", From: "2026-06-01", To: "2026-06-03", Reason: "  "})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = add.Handle(ctx, AddManualBlocksCommand{ChaletID: "alpen", From: "2026-01-01", To: "2027-06-01", Reason: "x"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = add.Handle(ctx, AddManualBlocksCommand{ChaletID: "nowhere", From: "2026-06-01", To: "2026-06-03", Reason: "x"})
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRemoveManualBlocks(t *testing.T) {
	add, remove, list, _ := newHandlers()
	ctx := context.Background()
	_, err := add.Handle(ctx, AddManualBlocksCommand{ChaletID: "alpen", From: "2026-06-01", To: "2026-06-04", Reason: "painting"})
	require.NoError(t, err)

	out, err := remove.Handle(ctx, RemoveManualBlocksCommand{ChaletID: "alpen", Dates: []string{"2026-06-03", "2026-06-01", "2026-06-20"}})
	require.NoError(t, err)
	require.Equal(t, []string{"2026-06-01", "2026-06-03"}, out.Dates)

	_, err = remove.Handle(ctx, RemoveManualBlocksCommand{ChaletID: "alpen", Dates: []string{"2026-06-01"}})
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	listed, err := list.Handle(ctx, ListManualBlocksQuery{ChaletID: "alpen"})
	require.NoError(t, err)
	require.Len(t, listed.Items, 1)
	require.Equal(t, "2026-06-02", listed.Items[0].Date)
}
