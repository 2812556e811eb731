package ical

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"chaletbook/internal/app/policies"
	"chaletbook/internal/domain/availability"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/infra/obs"
)

const (
	DefaultUserAgent = "chaletbook-availability/1.0"
	MaxBodyBytes     = 5 << 20
)

var errFeedNotFound = errors.New("ical: feed not found")

// Fetcher downloads external calendars. It never fails a caller: a feed that
// cannot be read contributes no intervals and is logged.
type Fetcher struct {
	Client    *http.Client
	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration
	UserAgent string
	Logger    *slog.Logger
}

func (f *Fetcher) Fetch(ctx context.Context, feed chalets.Feed) []availability.ExternalInterval {
	body, err := f.download(ctx, feed.URL)
	if err != nil {
		if errors.Is(err, errFeedNotFound) {
			f.logger().Info("ical feed absent", "feed", feed.Label, "url", feed.URL)
		} else {
			f.logger().Warn("ical feed unavailable", "feed", feed.Label, "url", feed.URL, "error", err)
		}
		return []availability.ExternalInterval{}
	}
	items, err := Parse(strings.NewReader(body), feed.Label, f.logger())
	if err != nil {
		f.logger().Warn("ical feed malformed", "feed", feed.Label, "url", feed.URL, "error", err)
		return []availability.ExternalInterval{}
	}
	return items
}

func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= f.Retries; attempt++ {
		if attempt > 0 {
			wait := f.Backoff * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}
		body, retry, err := f.once(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

// once performs one attempt and reports whether a failure is worth retrying.
func (f *Fetcher) once(ctx context.Context, url string) (string, bool, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	resp, err := f.client().Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return "", true, fmt.Errorf("ical: timeout fetching %s", url)
		}
		return "", false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", false, errFeedNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return "", true, fmt.Errorf("ical: %s returned %d", url, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return "", false, fmt.Errorf("ical: %s returned %d", url, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return "", true, err
	}
	if len(raw) > MaxBodyBytes {
		return "", false, fmt.Errorf("ical: %s exceeds %d bytes", url, MaxBodyBytes)
	}
	return string(raw), false, nil
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return obs.Discard()
}

var _ policies.FeedSource = (*Fetcher)(nil)
