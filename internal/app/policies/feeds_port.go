package policies

import (
	"context"

	"chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/chalets"
)

// FeedSource reads an external calendar. Failures degrade to an empty list;
// implementations log them instead of returning errors.
type FeedSource interface {
	Fetch(ctx context.Context, feed chalets.Feed) []availability.ExternalInterval
}
