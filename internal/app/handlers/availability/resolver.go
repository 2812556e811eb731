package availability

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"chaletbook/internal/app/policies"
	"chaletbook/internal/app/uow"
	domainavailability "chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/clock"
	"chaletbook/internal/domain/shared/daterange"
)

const (
	DefaultHorizon   = 365 * 24 * time.Hour
	maxFeedFanout    = 4
	calendarMaxRange = 400
)

// Resolver unions every blocking source of a chalet into a snapshot. Local
// reads run in the caller's unit of work; feeds are fetched concurrently and
// degrade to nothing on failure.
type Resolver struct {
	UoWFactory uow.UoWFactory
	Feeds      policies.FeedSource
	Clock      clock.Clock
	Horizon    time.Duration
	Logger     *slog.Logger
}

func (r *Resolver) Now() time.Time {
	return clock.OrSystem(r.Clock).Now()
}

func (r *Resolver) horizon() time.Duration {
	if r.Horizon <= 0 {
		return DefaultHorizon
	}
	return r.Horizon
}

// Snapshot builds the union of blocking occupancies that end on or after from,
// evaluating hold liveness at now.
func (r *Resolver) Snapshot(ctx context.Context, chalet chalets.Chalet, from, now time.Time) (*domainavailability.Snapshot, error) {
	from = daterange.Normalize(from)
	feeds := r.fetchFeeds(ctx, chalet)

	var intervals []domainavailability.Interval
	err := uow.Run(ctx, r.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		rs, err := unit.Reservations().ListActive(ctx, chalet.ID, from)
		if err != nil {
			return err
		}
		blocks, err := unit.Blocks().List(ctx, chalet.ID, from, time.Time{})
		if err != nil {
			return err
		}
		intervals = append(intervals, domainavailability.ReservationIntervals(rs, now)...)
		intervals = append(intervals, domainavailability.BlockIntervals(blocks)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	intervals = append(intervals, domainavailability.ExternalIntervals(feeds)...)
	return domainavailability.Build(intervals), nil
}

func (r *Resolver) fetchFeeds(ctx context.Context, chalet chalets.Chalet) []domainavailability.ExternalInterval {
	if r.Feeds == nil || len(chalet.Feeds) == 0 {
		return nil
	}
	results := make([][]domainavailability.ExternalInterval, len(chalet.Feeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFeedFanout)
	for i, feed := range chalet.Feeds {
		g.Go(func() error {
			results[i] = r.Feeds.Fetch(gctx, feed)
			return nil
		})
	}
	_ = g.Wait()

	var out []domainavailability.ExternalInterval
	for i, items := range results {
		if len(items) == 0 {
			r.logger().Debug("feed contributed no intervals", "chalet_id", chalet.ID, "feed", chalet.Feeds[i].Label)
		}
		out = append(out, items...)
	}
	return out
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
