package reservations

import (
	"context"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/queries"
	"chaletbook/internal/app/uow"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/reservation"
)

const (
	getReservationKey   = "reservation.get"
	listReservationsKey = "reservation.list"
)

type GetReservationQuery struct {
	ID string `validate:"required"`
}

func (q GetReservationQuery) Key() string { return getReservationKey }

type GetReservationHandler struct {
	Lifecycle *Lifecycle
}

func (h *GetReservationHandler) Handle(ctx context.Context, q GetReservationQuery) (dto.ReservationView, error) {
	r, err := h.Lifecycle.Load(ctx, reservation.ReservationID(q.ID))
	if err != nil {
		return dto.ReservationView{}, err
	}
	return dto.MapReservation(r), nil
}

type ListReservationsQuery struct {
	ChaletID string
	Status   string `validate:"omitempty,oneof=pending confirmed cancelled expired"`
}

func (q ListReservationsQuery) Key() string { return listReservationsKey }
func (ListReservationsQuery) OperatorOnly() {}

type ListReservationsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListReservationsHandler) Handle(ctx context.Context, q ListReservationsQuery) (dto.ReservationCollection, error) {
	filter := reservation.ListFilter{ChaletID: chalets.ChaletID(q.ChaletID)}
	if q.Status != "" {
		st, ok := reservation.ParseStatus(q.Status)
		if !ok {
			return dto.ReservationCollection{}, apperr.Validation("invalid_status", "unknown status "+q.Status, nil)
		}
		filter.Status = st
	}
	out := dto.ReservationCollection{Items: []dto.ReservationView{}}
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		items, err := unit.Reservations().List(ctx, filter)
		if err != nil {
			return err
		}
		for _, r := range items {
			out.Items = append(out.Items, dto.MapReservation(r))
		}
		return nil
	})
	return out, err
}

var (
	_ queries.Handler[GetReservationQuery, dto.ReservationView]         = (*GetReservationHandler)(nil)
	_ queries.Handler[ListReservationsQuery, dto.ReservationCollection] = (*ListReservationsHandler)(nil)
)
