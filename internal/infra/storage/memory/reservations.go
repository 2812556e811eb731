package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	domainchalets "chaletbook/internal/domain/chalets"
	domainreservation "chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/daterange"
)

// ReservationRepository keeps reservations in a map. Callers always receive
// copies, so a save with a stale Version is detected as in the real stores.
type ReservationRepository struct {
	mu    sync.RWMutex
	items map[domainreservation.ReservationID]*domainreservation.Reservation
}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{items: make(map[domainreservation.ReservationID]*domainreservation.Reservation)}
}

func (r *ReservationRepository) ByID(ctx context.Context, id domainreservation.ReservationID) (*domainreservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.items[id]
	if !ok {
		return nil, domainreservation.ErrNotFound
	}
	return res.Clone(), nil
}

func (r *ReservationRepository) Save(ctx context.Context, res *domainreservation.Reservation) error {
	if res == nil {
		return errors.New("memory: nil reservation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.items[res.ID]
	switch {
	case res.Version == 0 && exists:
		return domainreservation.ErrConcurrentModification
	case res.Version > 0 && (!exists || stored.Version != res.Version):
		return domainreservation.ErrConcurrentModification
	}
	res.Version++
	r.items[res.ID] = res.Clone()
	return nil
}

func (r *ReservationRepository) ListActive(ctx context.Context, chaletID domainchalets.ChaletID, from time.Time) ([]*domainreservation.Reservation, error) {
	from = daterange.Normalize(from)
	return r.collect(func(res *domainreservation.Reservation) bool {
		if res.ChaletID != chaletID {
			return false
		}
		if res.Status != domainreservation.StatusPending && res.Status != domainreservation.StatusConfirmed {
			return false
		}
		return !endsBefore(res, from)
	}), nil
}

func (r *ReservationRepository) List(ctx context.Context, filter domainreservation.ListFilter) ([]*domainreservation.Reservation, error) {
	return r.collect(func(res *domainreservation.Reservation) bool {
		if filter.ChaletID != "" && res.ChaletID != filter.ChaletID {
			return false
		}
		return filter.Status == "" || res.Status == filter.Status
	}), nil
}

func (r *ReservationRepository) ExpireLapsedHolds(ctx context.Context, now time.Time) ([]domainreservation.ExpiredHold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainreservation.ExpiredHold
	for _, res := range r.items {
		changed, err := res.Expire(now)
		if err != nil {
			if errors.Is(err, domainreservation.ErrHoldActive) || errors.Is(err, domainreservation.ErrInvalidState) {
				continue
			}
			return nil, err
		}
		if !changed {
			continue
		}
		res.ClearEvents()
		res.Version++
		out = append(out, domainreservation.ExpiredHold{ID: res.ID, ChaletID: res.ChaletID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ReservationRepository) ListConfirmedSince(ctx context.Context, from time.Time) ([]*domainreservation.Reservation, error) {
	from = daterange.Normalize(from)
	return r.collect(func(res *domainreservation.Reservation) bool {
		return res.Status == domainreservation.StatusConfirmed && !res.Stay.CheckOut.Before(from)
	}), nil
}

func (r *ReservationRepository) ListAwaitingPayment(ctx context.Context, now time.Time) ([]*domainreservation.Reservation, error) {
	return r.collect(func(res *domainreservation.Reservation) bool {
		return res.HoldLive(now) && res.Payment.Outcome == domainreservation.OutcomeAwaitingConfirmation
	}), nil
}

// collect returns copies of matching reservations ordered by creation.
func (r *ReservationRepository) collect(match func(*domainreservation.Reservation) bool) []*domainreservation.Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainreservation.Reservation, 0)
	for _, res := range r.items {
		if match(res) {
			out = append(out, res.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// endsBefore treats a same-day stay as occupying its check-in night.
func endsBefore(res *domainreservation.Reservation, from time.Time) bool {
	return res.Stay.LastNight().Before(from)
}

var _ domainreservation.Repository = (*ReservationRepository)(nil)
