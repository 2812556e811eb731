package availability

import (
	"context"

	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/queries"
	"chaletbook/internal/domain/chalets"
)

const listChaletsKey = "chalets.list"

type ListChaletsQuery struct{}

func (q ListChaletsQuery) Key() string { return listChaletsKey }

type ListChaletsHandler struct {
	Chalets chalets.Directory
}

func (h *ListChaletsHandler) Handle(ctx context.Context, _ ListChaletsQuery) ([]dto.ChaletSummary, error) {
	all, err := h.Chalets.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ChaletSummary, 0, len(all))
	for _, c := range all {
		out = append(out, dto.MapChalet(c))
	}
	return out, nil
}

var _ queries.Handler[ListChaletsQuery, []dto.ChaletSummary] = (*ListChaletsHandler)(nil)
