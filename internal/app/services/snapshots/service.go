package snapshots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chaletbook/internal/app/dto"
	availabilityapp "chaletbook/internal/app/handlers/availability"
	"chaletbook/internal/app/queries"
	"chaletbook/internal/domain/chalets"
)

// ObjectStore writes public JSON documents.
type ObjectStore interface {
	PutJSON(ctx context.Context, key string, v any) (string, error)
}

// Publisher renders every chalet's calendar over the default window and
// uploads it for the static site. The documents are advisory; booking
// decisions never read them.
type Publisher struct {
	Queries queries.Bus
	Chalets chalets.Directory
	Store   ObjectStore
	Prefix  string
	Logger  *slog.Logger
}

// Key is the object key of a chalet's snapshot.
func (p *Publisher) Key(id chalets.ChaletID) string {
	prefix := p.Prefix
	if prefix == "" {
		prefix = "availability"
	}
	return fmt.Sprintf("%s/%s.json", prefix, id)
}

// PublishAll uploads one snapshot per chalet and returns how many succeeded.
// A failing chalet does not stop the others.
func (p *Publisher) PublishAll(ctx context.Context) (int, error) {
	all, err := p.Chalets.All(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	published := 0
	for _, c := range all {
		if err := p.Publish(ctx, c.ID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.ID, err))
			continue
		}
		published++
	}
	return published, errors.Join(errs...)
}

func (p *Publisher) Publish(ctx context.Context, id chalets.ChaletID) error {
	cal, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](ctx, p.Queries, availabilityapp.GetCalendarQuery{ChaletID: string(id)})
	if err != nil {
		return err
	}
	url, err := p.Store.PutJSON(ctx, p.Key(id), cal)
	if err != nil {
		return err
	}
	if p.Logger != nil {
		p.Logger.Debug("calendar snapshot published", "chalet_id", id, "url", url, "days", len(cal.Days))
	}
	return nil
}
