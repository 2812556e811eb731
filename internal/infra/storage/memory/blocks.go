package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainavailability "chaletbook/internal/domain/availability"
	domainchalets "chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/daterange"
)

// BlockRepository indexes manual blocks by chalet and day, which gives the
// same (chalet, date) uniqueness the database indexes enforce.
type BlockRepository struct {
	mu    sync.RWMutex
	items map[domainchalets.ChaletID]map[string]domainavailability.ManualBlock
}

func NewBlockRepository() *BlockRepository {
	return &BlockRepository{items: make(map[domainchalets.ChaletID]map[string]domainavailability.ManualBlock)}
}

func (r *BlockRepository) Add(ctx context.Context, blocks []domainavailability.ManualBlock) ([]domainavailability.ManualBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	added := make([]domainavailability.ManualBlock, 0, len(blocks))
	for _, b := range blocks {
		b.Date = daterange.Normalize(b.Date)
		byDay, ok := r.items[b.ChaletID]
		if !ok {
			byDay = make(map[string]domainavailability.ManualBlock)
			r.items[b.ChaletID] = byDay
		}
		if _, exists := byDay[b.Day()]; exists {
			continue
		}
		byDay[b.Day()] = b
		added = append(added, b)
	}
	return added, nil
}

func (r *BlockRepository) Remove(ctx context.Context, chaletID domainchalets.ChaletID, dates []time.Time) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byDay := r.items[chaletID]
	removed := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		key := daterange.Format(d)
		if _, ok := byDay[key]; !ok {
			continue
		}
		delete(byDay, key)
		removed = append(removed, daterange.Normalize(d))
	}
	return removed, nil
}

func (r *BlockRepository) List(ctx context.Context, chaletID domainchalets.ChaletID, from, to time.Time) ([]domainavailability.ManualBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	from = daterange.Normalize(from)
	out := make([]domainavailability.ManualBlock, 0)
	for _, b := range r.items[chaletID] {
		if b.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !b.Date.Before(daterange.Normalize(to)) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

var _ domainavailability.BlockRepository = (*BlockRepository)(nil)
