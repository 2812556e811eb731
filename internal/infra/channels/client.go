package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chaletbook/internal/app/policies"
	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/infra/config"
)

const DefaultBatchSize = 100

// Client talks JSON to one channel manager. Calls are serialised and spaced
// by the limiter so a sweep never bursts the provider's rate limit.
type Client struct {
	name      string
	baseURL   string
	apiKey    string
	batchSize int
	timeout   time.Duration

	http    *http.Client
	limiter *rate.Limiter
	mu      sync.Mutex
	logger  *slog.Logger
}

type Options struct {
	MinSpacing time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func New(cfg config.ChannelConfig, opts Options) (*Client, error) {
	if cfg.Name == "" || cfg.BaseURL == "" {
		return nil, errors.New("channels: name and base url required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("channels: %s api key required", cfg.Name)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if opts.MinSpacing > 0 {
		limit = rate.Every(opts.MinSpacing)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:      cfg.Name,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		batchSize: batch,
		timeout:   timeout,
		http:      hc,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.With("channel", cfg.Name),
	}, nil
}

// NewAll builds one client per configured channel.
func NewAll(cfgs []config.ChannelConfig, opts Options) ([]policies.ChannelManager, error) {
	out := make([]policies.ChannelManager, 0, len(cfgs))
	for _, cfg := range cfgs {
		c, err := New(cfg, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (c *Client) Name() string   { return c.name }
func (c *Client) BatchSize() int { return c.batchSize }

type bookingRequest struct {
	ExternalID string      `json:"external_id"`
	PropertyID string      `json:"property_id"`
	RoomID     string      `json:"room_id,omitempty"`
	Arrival    string      `json:"arrival"`
	Departure  string      `json:"departure"`
	Guest      guestBody   `json:"guest"`
	Adults     int         `json:"adults"`
	Children   int         `json:"children"`
	Infants    int         `json:"infants"`
	Total      moneyAmount `json:"total"`
}

type guestBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type moneyAmount struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type availabilityRequest struct {
	PropertyID string                     `json:"property_id"`
	RoomID     string                     `json:"room_id,omitempty"`
	Days       []policies.DayAvailability `json:"days"`
}

func (c *Client) PushBooking(ctx context.Context, b policies.ChannelBooking) error {
	return c.post(ctx, "/bookings", bookingRequest{
		ExternalID: string(b.ReservationID),
		PropertyID: b.Listing.PropertyID,
		RoomID:     b.Listing.RoomID,
		Arrival:    b.CheckIn,
		Departure:  b.CheckOut,
		Guest:      guestBody{Name: b.Guest.Name, Email: b.Guest.Email, Phone: b.Guest.Phone},
		Adults:     b.Party.Adults,
		Children:   b.Party.Children,
		Infants:    b.Party.Infants,
		Total:      moneyAmount{Amount: b.Total.Amount, Currency: b.Total.Currency},
	})
}

func (c *Client) PushAvailability(ctx context.Context, listing chalets.ChannelListing, days []policies.DayAvailability) error {
	if len(days) > c.batchSize {
		return fmt.Errorf("channels: %s accepts at most %d days per call, got %d", c.name, c.batchSize, len(days))
	}
	return c.post(ctx, "/availability", availabilityRequest{
		PropertyID: listing.PropertyID,
		RoomID:     listing.RoomID,
		Days:       days,
	})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("channels: %s %s timed out after %s", c.name, path, c.timeout)
		}
		return fmt.Errorf("channels: %s %s: %w", c.name, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("channels: %s %s returned %d: %s", c.name, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	c.logger.Debug("channel call ok", "path", path, "status", resp.StatusCode, "latency_ms", time.Since(start).Milliseconds())
	return nil
}

var _ policies.ChannelManager = (*Client)(nil)
