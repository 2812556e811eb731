package chalets

import (
	"context"
	"errors"
	"sort"

	"chaletbook/internal/domain/pricing"
)

var ErrChaletNotFound = errors.New("chalets: not found")

type ChaletID string

// Feed is an external calendar whose events block the chalet.
type Feed struct {
	Label string
	URL   string
}

// ChannelListing maps the chalet onto a channel manager's property.
type ChannelListing struct {
	PropertyID string
	RoomID     string
}

type Chalet struct {
	ID        ChaletID
	Name      string
	MaxGuests int
	Feeds     []Feed
	Channels  map[string]ChannelListing
	Rates     pricing.RateCard
}

// Listing returns the chalet's mapping for a channel, if wired.
func (c Chalet) Listing(channel string) (ChannelListing, bool) {
	l, ok := c.Channels[channel]
	return l, ok
}

// Directory exposes the configured chalets. It is read-only at runtime.
type Directory interface {
	ByID(ctx context.Context, id ChaletID) (Chalet, error)
	All(ctx context.Context) ([]Chalet, error)
}

// StaticDirectory serves chalets loaded from configuration.
type StaticDirectory struct {
	items map[ChaletID]Chalet
}

func NewStaticDirectory(items []Chalet) *StaticDirectory {
	d := &StaticDirectory{items: make(map[ChaletID]Chalet, len(items))}
	for _, c := range items {
		d.items[c.ID] = c
	}
	return d
}

func (d *StaticDirectory) ByID(_ context.Context, id ChaletID) (Chalet, error) {
	c, ok := d.items[id]
	if !ok {
		return Chalet{}, ErrChaletNotFound
	}
	return c, nil
}

func (d *StaticDirectory) All(_ context.Context) ([]Chalet, error) {
	out := make([]Chalet, 0, len(d.items))
	for _, c := range d.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Directory = (*StaticDirectory)(nil)
