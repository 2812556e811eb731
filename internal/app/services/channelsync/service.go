package channelsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chaletbook/internal/app/dto"
	"chaletbook/internal/app/outbox"
	"chaletbook/internal/app/policies"
	"chaletbook/internal/app/uow"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/domain/shared/daterange"
)

const (
	DefaultHorizonMonths = 12

	SkipNotConfirmed = "not_confirmed"
	SkipNotWired     = "not_wired"
	SkipAlreadySent  = "already_synced"

	stampAttempts = 3
)

var ErrNoChannels = errors.New("channelsync: no channels configured")

// Service pushes confirmed reservations and manual blocks to the channel
// managers. A reservation is stamped per channel only after the channel
// accepted it, so a failed push is retried by the next sweep.
type Service struct {
	UoWFactory    uow.UoWFactory
	Chalets       chalets.Directory
	Channels      []policies.ChannelManager
	Clock         clock.Clock
	Publisher     outbox.Publisher
	HorizonMonths int
	Logger        *slog.Logger
}

func (s *Service) SyncConfirmedReservation(ctx context.Context, id reservation.ReservationID) (dto.ReservationSyncResult, error) {
	out := dto.ReservationSyncResult{ReservationID: string(id), Items: []dto.ChannelItemResult{}}
	r, err := s.load(ctx, id)
	if err != nil {
		return out, err
	}
	if r.Status != reservation.StatusConfirmed {
		for _, ch := range s.Channels {
			out.Items = append(out.Items, dto.ChannelItemResult{Channel: ch.Name(), Skipped: SkipNotConfirmed})
		}
		return out, nil
	}
	chalet, err := s.Chalets.ByID(ctx, r.ChaletID)
	if err != nil {
		return out, fmt.Errorf("channelsync: chalet %s: %w", r.ChaletID, err)
	}
	for _, ch := range s.Channels {
		out.Items = append(out.Items, s.pushReservation(ctx, ch, chalet, r))
	}
	return out, nil
}

func (s *Service) pushReservation(ctx context.Context, ch policies.ChannelManager, chalet chalets.Chalet, r *reservation.Reservation) dto.ChannelItemResult {
	item := dto.ChannelItemResult{Channel: ch.Name()}
	listing, ok := chalet.Listing(ch.Name())
	if !ok {
		item.Skipped = SkipNotWired
		return item
	}
	if r.SyncedTo(ch.Name()) {
		item.Skipped = SkipAlreadySent
		return item
	}
	log := s.logger().With("reservation_id", r.ID, "chalet_id", chalet.ID, "channel", ch.Name())
	err := ch.PushBooking(ctx, policies.ChannelBooking{
		ReservationID: r.ID,
		Listing:       listing,
		Guest:         r.Guest,
		CheckIn:       daterange.Format(r.Stay.CheckIn),
		CheckOut:      daterange.Format(r.Stay.CheckOut),
		Party:         r.Party,
		Total:         r.Price.Total,
	})
	if err != nil {
		log.Warn("channel booking push failed", "error", err)
		item.Error = err.Error()
		return item
	}
	if err := s.stamp(ctx, r.ID, ch.Name()); err != nil {
		// The channel has the booking; only the local stamp is missing.
		log.Error("channel sync stamp failed", "error", err)
		item.Error = err.Error()
		return item
	}
	r.MarkSynced(ch.Name(), s.now())
	r.ClearEvents()
	item.Synced = true
	log.Info("reservation pushed to channel")
	return item
}

// stamp records the channel on a fresh copy of the reservation, retrying when
// a concurrent save bumped the version in between.
func (s *Service) stamp(ctx context.Context, id reservation.ReservationID, channel string) error {
	var err error
	for attempt := 0; attempt < stampAttempts; attempt++ {
		err = uow.Run(ctx, s.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			r, err := unit.Reservations().ByID(ctx, id)
			if err != nil {
				return err
			}
			if r.SyncedTo(channel) {
				return nil
			}
			r.MarkSynced(channel, s.now())
			if err := unit.Reservations().Save(ctx, r); err != nil {
				return err
			}
			return s.Publisher.Drain(ctx, r)
		})
		if !errors.Is(err, reservation.ErrConcurrentModification) {
			return err
		}
	}
	return err
}

// SyncManualBlocks replaces each channel's open/closed window for the chalet
// with the state of its manual blocks.
func (s *Service) SyncManualBlocks(ctx context.Context, chaletID chalets.ChaletID, dryRun bool) (dto.BlockSyncResult, error) {
	out := dto.BlockSyncResult{ChaletID: string(chaletID), Reports: []dto.BlockSyncReport{}}
	chalet, err := s.Chalets.ByID(ctx, chaletID)
	if err != nil {
		return out, err
	}
	days, err := s.blockWindow(ctx, chalet.ID)
	if err != nil {
		return out, err
	}
	closed := 0
	for _, d := range days {
		if !d.Open {
			closed++
		}
	}
	for _, ch := range s.Channels {
		listing, ok := chalet.Listing(ch.Name())
		if !ok {
			continue
		}
		chunks := Chunk(days, ch.BatchSize())
		report := dto.BlockSyncReport{
			Channel:   ch.Name(),
			DatesSent: len(days),
			Closed:    closed,
			Chunks:    len(chunks),
			DryRun:    dryRun,
		}
		if !dryRun {
			for i, chunk := range chunks {
				if err := ch.PushAvailability(ctx, listing, chunk); err != nil {
					s.logger().Warn("channel availability push failed",
						"chalet_id", chalet.ID, "channel", ch.Name(), "chunk", i, "error", err)
					report.Errors = append(report.Errors, fmt.Sprintf("chunk %d: %v", i, err))
					report.DatesSent -= len(chunk)
				}
			}
		}
		out.Reports = append(out.Reports, report)
	}
	return out, nil
}

func (s *Service) blockWindow(ctx context.Context, chaletID chalets.ChaletID) ([]policies.DayAvailability, error) {
	from := daterange.Normalize(s.now())
	to := from.AddDate(0, s.horizonMonths(), 0)
	closed := map[string]struct{}{}
	err := uow.Run(ctx, s.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		blocks, err := unit.Blocks().List(ctx, chaletID, from, to)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			closed[b.Day()] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dates := daterange.DatesBetween(from, to)
	days := make([]policies.DayAvailability, 0, len(dates))
	for _, d := range dates {
		_, isClosed := closed[d]
		days = append(days, policies.DayAvailability{Date: d, Open: !isClosed})
	}
	return days, nil
}

// SyncUnsynced retries every confirmed, not yet departed reservation that is
// missing a stamp for one of its chalet's channels.
func (s *Service) SyncUnsynced(ctx context.Context) (dto.PendingSyncResult, error) {
	var out dto.PendingSyncResult
	if len(s.Channels) == 0 {
		return out, nil
	}
	today := daterange.Normalize(s.now())
	var confirmed []*reservation.Reservation
	err := uow.Run(ctx, s.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		confirmed, err = unit.Reservations().ListConfirmedSince(ctx, today)
		return err
	})
	if err != nil {
		return out, err
	}
	for _, r := range confirmed {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		chalet, err := s.Chalets.ByID(ctx, r.ChaletID)
		if err != nil {
			s.logger().Warn("confirmed reservation for unknown chalet", "reservation_id", r.ID, "chalet_id", r.ChaletID)
			continue
		}
		if !s.missing(chalet, r) {
			continue
		}
		out.Attempted++
		res := dto.ReservationSyncResult{ReservationID: string(r.ID), Items: []dto.ChannelItemResult{}}
		failed := false
		for _, ch := range s.Channels {
			item := s.pushReservation(ctx, ch, chalet, r)
			if item.Error != "" {
				failed = true
			}
			res.Items = append(res.Items, item)
		}
		if failed {
			out.Failed++
		} else {
			out.Synced++
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

func (s *Service) missing(chalet chalets.Chalet, r *reservation.Reservation) bool {
	for _, ch := range s.Channels {
		if _, wired := chalet.Listing(ch.Name()); wired && !r.SyncedTo(ch.Name()) {
			return true
		}
	}
	return false
}

func (s *Service) load(ctx context.Context, id reservation.ReservationID) (*reservation.Reservation, error) {
	var out *reservation.Reservation
	err := uow.Run(ctx, s.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		r, err := unit.Reservations().ByID(ctx, id)
		out = r
		return err
	})
	return out, err
}

func (s *Service) horizonMonths() int {
	if s.HorizonMonths <= 0 {
		return DefaultHorizonMonths
	}
	return s.HorizonMonths
}

func (s *Service) now() time.Time {
	return clock.OrSystem(s.Clock).Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Chunk splits days into batches of at most size. A size <= 0 keeps one batch.
func Chunk(days []policies.DayAvailability, size int) [][]policies.DayAvailability {
	if len(days) == 0 {
		return nil
	}
	if size <= 0 || size >= len(days) {
		return [][]policies.DayAvailability{days}
	}
	out := make([][]policies.DayAvailability, 0, (len(days)+size-1)/size)
	for start := 0; start < len(days); start += size {
		end := min(start+size, len(days))
		out = append(out, days[start:end])
	}
	return out
}
