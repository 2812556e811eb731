package reservation

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	"chaletbook/internal/domain/shared/daterange"
	"chaletbook/internal/domain/shared/events"
)

var (
	ErrNotFound               = errors.New("reservation: not found")
	ErrInvalidState           = errors.New("reservation: invalid state transition")
	ErrConcurrentModification = errors.New("reservation: concurrent modification")
	ErrInvalidGuest           = errors.New("reservation: guest name and a valid email are required")
	ErrInvalidParty           = errors.New("reservation: at least one adult required")
	ErrTooManyGuests          = errors.New("reservation: party exceeds chalet capacity")
	ErrCheckInPast            = errors.New("reservation: check-in is in the past")
	ErrStayTooLong            = errors.New("reservation: stay exceeds the maximum length")
	ErrBeyondHorizon          = errors.New("reservation: check-in is beyond the booking horizon")
	ErrHoldActive             = errors.New("reservation: hold has not lapsed")
	ErrInvalidHold            = errors.New("reservation: hold window must be positive")
)

type ReservationID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusExpired:
		return s, true
	}
	return "", false
}

type Guest struct {
	Name  string
	Email string
	Phone string
}

func (g Guest) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrInvalidGuest
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(g.Email)); err != nil {
		return ErrInvalidGuest
	}
	return nil
}

type Reservation struct {
	ID               ReservationID
	ChaletID         chalets.ChaletID
	Stay             daterange.DateRange
	Guest            Guest
	Party            pricing.Party
	Price            pricing.Quote
	Status           Status
	Payment          PaymentState
	PaymentReference string
	HoldExpiresAt    time.Time
	ChannelSync      map[string]time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
	events.EventRecorder
}

// ListFilter narrows operator listings. Empty fields match everything.
type ListFilter struct {
	ChaletID chalets.ChaletID
	Status   Status
}

// ExpiredHold identifies a reservation moved to expired by a sweep.
type ExpiredHold struct {
	ID       ReservationID
	ChaletID chalets.ChaletID
}

type Repository interface {
	ByID(ctx context.Context, id ReservationID) (*Reservation, error)
	// Save inserts when Version is zero, otherwise updates only if the stored
	// version still matches. The aggregate's Version is bumped on success.
	Save(ctx context.Context, r *Reservation) error
	// ListActive returns pending and confirmed reservations of the chalet whose
	// stay has not ended before from. Callers decide hold liveness themselves.
	ListActive(ctx context.Context, chaletID chalets.ChaletID, from time.Time) ([]*Reservation, error)
	List(ctx context.Context, filter ListFilter) ([]*Reservation, error)
	// ExpireLapsedHolds moves every pending, unpaid reservation whose hold
	// ended before now to expired in a single batch.
	ExpireLapsedHolds(ctx context.Context, now time.Time) ([]ExpiredHold, error)
	// ListConfirmedSince returns confirmed reservations checking out on or after from.
	ListConfirmedSince(ctx context.Context, from time.Time) ([]*Reservation, error)
	// ListAwaitingPayment returns pending reservations waiting on a slow payment.
	ListAwaitingPayment(ctx context.Context, now time.Time) ([]*Reservation, error)
}

type CreateParams struct {
	ID        ReservationID
	ChaletID  chalets.ChaletID
	Stay      daterange.DateRange
	Guest     Guest
	Party     pricing.Party
	Price     pricing.Quote
	CreatedAt time.Time
	Hold      time.Duration
}

const (
	DefaultMaxStayNights  = 30
	DefaultBookingHorizon = 365 * 24 * time.Hour
)

// StayLimits bounds what a guest may ask for. Zero fields fall back to the
// defaults.
type StayLimits struct {
	MaxNights int
	Horizon   time.Duration
}

func (l StayLimits) maxNights() int {
	if l.MaxNights <= 0 {
		return DefaultMaxStayNights
	}
	return l.MaxNights
}

func (l StayLimits) horizon() time.Duration {
	if l.Horizon <= 0 {
		return DefaultBookingHorizon
	}
	return l.Horizon
}

// Check rejects stays longer than the night limit and check-ins past the horizon.
func (l StayLimits) Check(stay daterange.DateRange, now time.Time) error {
	if stay.Nights() > l.maxNights() {
		return ErrStayTooLong
	}
	if daterange.Normalize(stay.CheckIn).After(daterange.Normalize(now.Add(l.horizon()))) {
		return ErrBeyondHorizon
	}
	return nil
}

// ValidateRequest checks a booking request against the chalet before anything is stored.
func ValidateRequest(stay daterange.DateRange, party pricing.Party, maxGuests int, limits StayLimits, now time.Time) error {
	if err := stay.Validate(); err != nil {
		return err
	}
	if daterange.Normalize(stay.CheckIn).Before(daterange.Normalize(now)) {
		return ErrCheckInPast
	}
	if err := limits.Check(stay, now); err != nil {
		return err
	}
	if party.Adults < 1 || party.Children < 0 || party.Infants < 0 {
		return ErrInvalidParty
	}
	if maxGuests > 0 && party.Adults+party.Children > maxGuests {
		return ErrTooManyGuests
	}
	return nil
}

func NewReservation(p CreateParams) (*Reservation, error) {
	if err := p.Guest.Validate(); err != nil {
		return nil, err
	}
	if p.Party.Adults < 1 {
		return nil, ErrInvalidParty
	}
	if err := p.Stay.Validate(); err != nil {
		return nil, err
	}
	if p.Hold <= 0 {
		return nil, ErrInvalidHold
	}
	now := p.CreatedAt.UTC()
	r := &Reservation{
		ID:       p.ID,
		ChaletID: p.ChaletID,
		Stay:     p.Stay,
		Guest: Guest{
			Name:  strings.TrimSpace(p.Guest.Name),
			Email: strings.TrimSpace(p.Guest.Email),
			Phone: strings.TrimSpace(p.Guest.Phone),
		},
		Party:         p.Party,
		Price:         p.Price.Copy(),
		Status:        StatusPending,
		Payment:       Unpaid(),
		HoldExpiresAt: now.Add(p.Hold),
		ChannelSync:   map[string]time.Time{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.Record(ReservationRequested{
		ReservationID: r.ID,
		ChaletID:      string(r.ChaletID),
		CheckIn:       daterange.Format(r.Stay.CheckIn),
		CheckOut:      daterange.Format(r.Stay.CheckOut),
		Total:         r.Price.Total,
		HoldExpiresAt: r.HoldExpiresAt,
		At:            now,
	})
	return r, nil
}

// HoldLive reports whether a pending reservation's hold is still in the future.
func (r *Reservation) HoldLive(now time.Time) bool {
	return r.Status == StatusPending && r.HoldExpiresAt.After(now)
}

// IsBlocking reports whether the reservation occupies its nights at now.
func (r *Reservation) IsBlocking(now time.Time) bool {
	return r.Status == StatusConfirmed || r.HoldLive(now)
}

func (r *Reservation) IsTerminal() bool {
	return r.Status == StatusCancelled || r.Status == StatusExpired
}

// ExtendHold applies a payment-method notice to a pending reservation. Slow
// methods push the hold to now+window unless an equivalent hold is still
// live; other methods only record the method. The result reports whether
// anything changed.
func (r *Reservation) ExtendHold(method PaymentMethod, window time.Duration, now time.Time) (bool, error) {
	switch r.Status {
	case StatusConfirmed:
		return false, nil
	case StatusPending:
	default:
		return false, ErrInvalidState
	}
	now = now.UTC()
	if !method.IsSlow() {
		if r.Payment.Method == method {
			return false, nil
		}
		r.Payment = PaymentState{Method: method, Outcome: r.Payment.Outcome}
		r.UpdatedAt = now
		return true, nil
	}
	if window <= 0 {
		return false, ErrInvalidHold
	}
	if r.Payment.Method == method && r.Payment.Outcome == OutcomeAwaitingConfirmation && r.HoldExpiresAt.After(now) {
		return false, nil
	}
	r.Payment = PaymentState{Method: method, Outcome: OutcomeAwaitingConfirmation}
	r.HoldExpiresAt = now.Add(window)
	r.UpdatedAt = now
	r.Record(HoldExtended{ReservationID: r.ID, Method: method, HoldExpiresAt: r.HoldExpiresAt, At: now})
	return true, nil
}

// Confirm finalises a pending reservation. Confirming twice is a no-op.
func (r *Reservation) Confirm(reference string, method PaymentMethod, partial bool, now time.Time) (bool, error) {
	switch r.Status {
	case StatusConfirmed:
		return false, nil
	case StatusPending:
	default:
		return false, ErrInvalidState
	}
	now = now.UTC()
	if method == "" || method == MethodUnknown {
		method = r.Payment.method()
	}
	outcome := OutcomePaid
	if partial {
		outcome = OutcomePartiallyPaid
	}
	r.Status = StatusConfirmed
	r.Payment = PaymentState{Method: method, Outcome: outcome}
	if reference != "" {
		r.PaymentReference = reference
	}
	r.UpdatedAt = now
	r.Record(ReservationConfirmed{
		ReservationID:    r.ID,
		ChaletID:         string(r.ChaletID),
		CheckIn:          daterange.Format(r.Stay.CheckIn),
		CheckOut:         daterange.Format(r.Stay.CheckOut),
		PaymentReference: r.PaymentReference,
		PaymentStatus:    r.Payment.Label(),
		Total:            r.Price.Total,
		At:               now,
	})
	return true, nil
}

// Cancel releases a pending or confirmed reservation. Cancelling twice is a
// no-op; an expired reservation cannot be cancelled.
func (r *Reservation) Cancel(reason string, refund bool, now time.Time) (bool, error) {
	switch r.Status {
	case StatusCancelled:
		return false, nil
	case StatusPending, StatusConfirmed:
	default:
		return false, ErrInvalidState
	}
	now = now.UTC()
	from := r.Status
	outcome := OutcomeCancelled
	if refund {
		outcome = OutcomeRefunded
	}
	r.Status = StatusCancelled
	r.Payment = PaymentState{Method: r.Payment.method(), Outcome: outcome, Note: noteOr(reason, "unspecified")}
	r.UpdatedAt = now
	r.Record(ReservationCancelled{
		ReservationID: r.ID,
		ChaletID:      string(r.ChaletID),
		From:          from,
		PaymentStatus: r.Payment.Label(),
		At:            now,
	})
	return true, nil
}

// Expire moves an unpaid hold that ended strictly before now to expired.
func (r *Reservation) Expire(now time.Time) (bool, error) {
	switch r.Status {
	case StatusExpired:
		return false, nil
	case StatusPending:
	default:
		return false, ErrInvalidState
	}
	if !r.HoldExpiresAt.Before(now) || r.Payment.IsPaid() {
		return false, ErrHoldActive
	}
	now = now.UTC()
	r.Status = StatusExpired
	r.Payment = PaymentState{Method: r.Payment.method(), Outcome: OutcomeExpired, Note: "hold"}
	r.UpdatedAt = now
	r.Record(ReservationExpired{ReservationID: r.ID, ChaletID: string(r.ChaletID), At: now})
	return true, nil
}

// SyncedTo reports whether the reservation was already pushed to channel.
func (r *Reservation) SyncedTo(channel string) bool {
	if r.ChannelSync == nil {
		return false
	}
	_, ok := r.ChannelSync[channel]
	return ok
}

// MarkSynced stamps a successful push. It must only be called after the
// channel accepted the booking.
func (r *Reservation) MarkSynced(channel string, now time.Time) {
	if r.ChannelSync == nil {
		r.ChannelSync = map[string]time.Time{}
	}
	if _, ok := r.ChannelSync[channel]; ok {
		return
	}
	now = now.UTC()
	r.ChannelSync[channel] = now
	r.UpdatedAt = now
	r.Record(ChannelSynced{ReservationID: r.ID, Channel: channel, At: now})
}

// Clone returns a deep copy without pending events; stores use it to avoid aliasing.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := &Reservation{
		ID:               r.ID,
		ChaletID:         r.ChaletID,
		Stay:             r.Stay,
		Guest:            r.Guest,
		Party:            r.Party,
		Price:            r.Price.Copy(),
		Status:           r.Status,
		Payment:          r.Payment,
		PaymentReference: r.PaymentReference,
		HoldExpiresAt:    r.HoldExpiresAt,
		ChannelSync:      make(map[string]time.Time, len(r.ChannelSync)),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		Version:          r.Version,
	}
	for k, v := range r.ChannelSync {
		c.ChannelSync[k] = v
	}
	return c
}
