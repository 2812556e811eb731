package blocks

import (
	"context"
	"errors"
	"sort"
	"time"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/outbox"
	"chaletbook/internal/app/queries"
	"chaletbook/internal/app/uow"
	"chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/domain/shared/daterange"
)

const (
	addBlocksKey    = "blocks.add"
	removeBlocksKey = "blocks.remove"
	listBlocksKey   = "blocks.list"

	maxBlockNights = 366
)

// AddManualBlocksCommand closes every night of [From, To). From == To closes
// the single night From.
type AddManualBlocksCommand struct {
	ChaletID string `validate:"required"`
	From     string `validate:"required,datetime=2006-01-02"`
	To       string `validate:"required,datetime=2006-01-02"`
	Reason   string `validate:"required,max=200"`
}

func (c AddManualBlocksCommand) Key() string { return addBlocksKey }
func (AddManualBlocksCommand) OperatorOnly() {}

type RemoveManualBlocksCommand struct {
	ChaletID string   `validate:"required"`
	Dates    []string `validate:"required,min=1,dive,datetime=2006-01-02"`
}

func (c RemoveManualBlocksCommand) Key() string { return removeBlocksKey }
func (RemoveManualBlocksCommand) OperatorOnly() {}

type ListManualBlocksQuery struct {
	ChaletID string `validate:"required"`
	From     string `validate:"omitempty,datetime=2006-01-02"`
	To       string `validate:"omitempty,datetime=2006-01-02"`
}

func (q ListManualBlocksQuery) Key() string { return listBlocksKey }
func (ListManualBlocksQuery) OperatorOnly() {}

type AddManualBlocksHandler struct {
	UoWFactory uow.UoWFactory
	Chalets    chalets.Directory
	Clock      clock.Clock
	Publisher  outbox.Publisher
}

func (h *AddManualBlocksHandler) Handle(ctx context.Context, cmd AddManualBlocksCommand) (dto.BlockChange, error) {
	chalet, err := loadChalet(ctx, h.Chalets, cmd.ChaletID)
	if err != nil {
		return dto.BlockChange{}, err
	}
	r, err := daterange.ParseRange(cmd.From, cmd.To)
	if err != nil {
		return dto.BlockChange{}, apperr.Validation("invalid_range", "to must be a date on or after from", err)
	}
	if r.Nights() > maxBlockNights {
		return dto.BlockChange{}, apperr.Validation("range_too_long", "a block request may close at most a year", nil)
	}
	now := clock.OrSystem(h.Clock).Now()
	wanted, err := availability.BlocksForRange(chalet.ID, r, cmd.Reason, now)
	if err != nil {
		if errors.Is(err, availability.ErrReasonRequired) {
			return dto.BlockChange{}, apperr.Validation("reason_required", "a reason is required", err)
		}
		return dto.BlockChange{}, err
	}

	out := dto.BlockChange{ChaletID: string(chalet.ID), Dates: []string{}}
	err = uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		added, err := unit.Blocks().Add(ctx, wanted)
		if err != nil {
			return err
		}
		for _, b := range added {
			out.Dates = append(out.Dates, b.Day())
		}
		if len(out.Dates) == 0 {
			return nil
		}
		return h.Publisher.Record(ctx, availability.BlocksAdded{
			ChaletID: string(chalet.ID),
			Dates:    out.Dates,
			Reason:   cmd.Reason,
			At:       now,
		})
	})
	if err != nil {
		return dto.BlockChange{}, err
	}
	sort.Strings(out.Dates)
	return out, nil
}

type RemoveManualBlocksHandler struct {
	UoWFactory uow.UoWFactory
	Chalets    chalets.Directory
	Clock      clock.Clock
	Publisher  outbox.Publisher
}

func (h *RemoveManualBlocksHandler) Handle(ctx context.Context, cmd RemoveManualBlocksCommand) (dto.BlockChange, error) {
	chalet, err := loadChalet(ctx, h.Chalets, cmd.ChaletID)
	if err != nil {
		return dto.BlockChange{}, err
	}
	dates := make([]time.Time, 0, len(cmd.Dates))
	for _, raw := range cmd.Dates {
		d, err := daterange.Parse(raw)
		if err != nil {
			return dto.BlockChange{}, apperr.Validation("invalid_date", "dates must be YYYY-MM-DD", err)
		}
		dates = append(dates, d)
	}

	out := dto.BlockChange{ChaletID: string(chalet.ID), Dates: []string{}}
	err = uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		removed, err := unit.Blocks().Remove(ctx, chalet.ID, dates)
		if err != nil {
			return err
		}
		for _, d := range removed {
			out.Dates = append(out.Dates, daterange.Format(d))
		}
		if len(out.Dates) == 0 {
			return nil
		}
		return h.Publisher.Record(ctx, availability.BlocksRemoved{
			ChaletID: string(chalet.ID),
			Dates:    out.Dates,
			At:       clock.OrSystem(h.Clock).Now(),
		})
	})
	if err != nil {
		return dto.BlockChange{}, err
	}
	if len(out.Dates) == 0 && len(cmd.Dates) == 1 {
		return dto.BlockChange{}, apperr.NotFound("block_not_found", "no manual block on "+cmd.Dates[0], availability.ErrBlockNotFound)
	}
	sort.Strings(out.Dates)
	return out, nil
}

type ListManualBlocksHandler struct {
	UoWFactory uow.UoWFactory
	Chalets    chalets.Directory
}

func (h *ListManualBlocksHandler) Handle(ctx context.Context, q ListManualBlocksQuery) (dto.ManualBlockCollection, error) {
	chalet, err := loadChalet(ctx, h.Chalets, q.ChaletID)
	if err != nil {
		return dto.ManualBlockCollection{}, err
	}
	var from, to time.Time
	if q.From != "" {
		if from, err = daterange.Parse(q.From); err != nil {
			return dto.ManualBlockCollection{}, apperr.Validation("invalid_date", "from must be YYYY-MM-DD", err)
		}
	}
	if q.To != "" {
		if to, err = daterange.Parse(q.To); err != nil {
			return dto.ManualBlockCollection{}, apperr.Validation("invalid_date", "to must be YYYY-MM-DD", err)
		}
	}
	out := dto.ManualBlockCollection{ChaletID: string(chalet.ID), Items: []dto.ManualBlock{}}
	err = uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		items, err := unit.Blocks().List(ctx, chalet.ID, from, to)
		if err != nil {
			return err
		}
		for _, b := range items {
			out.Items = append(out.Items, dto.ManualBlock{
				Date:      b.Day(),
				Reason:    b.Reason,
				CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil
	})
	return out, err
}

func loadChalet(ctx context.Context, dir chalets.Directory, id string) (chalets.Chalet, error) {
	c, err := dir.ByID(ctx, chalets.ChaletID(id))
	if err != nil {
		if errors.Is(err, chalets.ErrChaletNotFound) {
			return chalets.Chalet{}, apperr.NotFound("chalet_not_found", "chalet not found", err)
		}
		return chalets.Chalet{}, err
	}
	return c, nil
}

var _ commands.Handler[AddManualBlocksCommand, dto.BlockChange] = (*AddManualBlocksHandler)(nil)
var _ commands.Handler[RemoveManualBlocksCommand, dto.BlockChange] = (*RemoveManualBlocksHandler)(nil)
var _ queries.Handler[ListManualBlocksQuery, dto.ManualBlockCollection] = (*ListManualBlocksHandler)(nil)
