package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/daterange"
)

var (
	ErrBlockNotFound  = errors.New("availability: manual block not found")
	ErrReasonRequired = errors.New("availability: block reason required")
)

// ManualBlock is an operator-imposed closed night. (ChaletID, Date) is unique.
type ManualBlock struct {
	ChaletID  chalets.ChaletID
	Date      time.Time
	Reason    string
	CreatedAt time.Time
}

func (b ManualBlock) Day() string {
	return daterange.Format(b.Date)
}

type BlockRepository interface {
	// Add stores the blocks whose date is not already closed and returns those it stored.
	Add(ctx context.Context, blocks []ManualBlock) ([]ManualBlock, error)
	// Remove deletes the given nights and returns the ones that existed.
	Remove(ctx context.Context, chaletID chalets.ChaletID, dates []time.Time) ([]time.Time, error)
	// List returns blocks with from <= Date < to, ordered by date. A zero to is unbounded.
	List(ctx context.Context, chaletID chalets.ChaletID, from, to time.Time) ([]ManualBlock, error)
}

// BlocksForRange expands a range into one block per night.
func BlocksForRange(chaletID chalets.ChaletID, r daterange.DateRange, reason string, now time.Time) ([]ManualBlock, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	dates := r.Dates()
	out := make([]ManualBlock, 0, len(dates))
	for _, d := range dates {
		out = append(out, ManualBlock{
			ChaletID:  chaletID,
			Date:      daterange.MustParse(d),
			Reason:    reason,
			CreatedAt: now.UTC(),
		})
	}
	return out, nil
}
