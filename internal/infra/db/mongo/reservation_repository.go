package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchalets "chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/pricing"
	domainreservation "chaletbook/internal/domain/reservation"
	"chaletbook/internal/domain/shared/daterange"
)

type ReservationRepository struct {
	col *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	col := db.Collection("reservations")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "chalet_id", Value: 1}, {Key: "status", Value: 1}, {Key: "last_night", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "hold_expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "check_out", Value: 1}}},
	})
	return &ReservationRepository{col: col}
}

func (r *ReservationRepository) ByID(ctx context.Context, id domainreservation.ReservationID) (*domainreservation.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainreservation.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save inserts new aggregates and otherwise replaces the document only while
// the stored version still matches.
func (r *ReservationRepository) Save(ctx context.Context, res *domainreservation.Reservation) error {
	doc := newReservationDocument(res)
	doc.Version = res.Version + 1
	if res.Version == 0 {
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domainreservation.ErrConcurrentModification
			}
			return err
		}
		res.Version = doc.Version
		return nil
	}
	out, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": res.Version}, doc)
	if err != nil {
		return err
	}
	if out.MatchedCount == 0 {
		return domainreservation.ErrConcurrentModification
	}
	res.Version = doc.Version
	return nil
}

func (r *ReservationRepository) ListActive(ctx context.Context, chaletID domainchalets.ChaletID, from time.Time) ([]*domainreservation.Reservation, error) {
	return r.find(ctx, bson.M{
		"chalet_id":  string(chaletID),
		"status":     bson.M{"$in": []string{string(domainreservation.StatusPending), string(domainreservation.StatusConfirmed)}},
		"last_night": bson.M{"$gte": daterange.Normalize(from)},
	})
}

func (r *ReservationRepository) List(ctx context.Context, filter domainreservation.ListFilter) ([]*domainreservation.Reservation, error) {
	q := bson.M{}
	if filter.ChaletID != "" {
		q["chalet_id"] = string(filter.ChaletID)
	}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	return r.find(ctx, q)
}

// ExpireLapsedHolds flips each lapsed hold with a conditional update, so a
// reservation confirmed between the read and the write is left alone.
func (r *ReservationRepository) ExpireLapsedHolds(ctx context.Context, now time.Time) ([]domainreservation.ExpiredHold, error) {
	now = now.UTC()
	lapsed := bson.M{
		"status":          string(domainreservation.StatusPending),
		"hold_expires_at": bson.M{"$lt": now},
		"payment.outcome": bson.M{"$nin": []string{string(domainreservation.OutcomePaid), string(domainreservation.OutcomePartiallyPaid)}},
	}
	candidates, err := r.find(ctx, lapsed)
	if err != nil {
		return nil, err
	}
	out := make([]domainreservation.ExpiredHold, 0, len(candidates))
	for _, res := range candidates {
		filter := bson.M{"_id": string(res.ID)}
		for k, v := range lapsed {
			filter[k] = v
		}
		update := bson.M{
			"$set": bson.M{
				"status":          string(domainreservation.StatusExpired),
				"payment.outcome": string(domainreservation.OutcomeExpired),
				"payment.note":    "hold",
				"updated_at":      now,
			},
			"$inc": bson.M{"version": 1},
		}
		done, err := r.col.UpdateOne(ctx, filter, update)
		if err != nil {
			return out, err
		}
		if done.ModifiedCount == 1 {
			out = append(out, domainreservation.ExpiredHold{ID: res.ID, ChaletID: res.ChaletID})
		}
	}
	return out, nil
}

func (r *ReservationRepository) ListConfirmedSince(ctx context.Context, from time.Time) ([]*domainreservation.Reservation, error) {
	return r.find(ctx, bson.M{
		"status":    string(domainreservation.StatusConfirmed),
		"check_out": bson.M{"$gte": daterange.Normalize(from)},
	})
}

func (r *ReservationRepository) ListAwaitingPayment(ctx context.Context, now time.Time) ([]*domainreservation.Reservation, error) {
	return r.find(ctx, bson.M{
		"status":          string(domainreservation.StatusPending),
		"hold_expires_at": bson.M{"$gt": now.UTC()},
		"payment.outcome": string(domainreservation.OutcomeAwaitingConfirmation),
	})
}

func (r *ReservationRepository) find(ctx context.Context, filter bson.M) ([]*domainreservation.Reservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]*domainreservation.Reservation, 0)
	for cur.Next(ctx) {
		var doc reservationDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type reservationDocument struct {
	ID               string               `bson:"_id"`
	ChaletID         string               `bson:"chalet_id"`
	CheckIn          time.Time            `bson:"check_in"`
	CheckOut         time.Time            `bson:"check_out"`
	LastNight        time.Time            `bson:"last_night"`
	Guest            guestDocument        `bson:"guest"`
	Party            pricing.Party        `bson:"party"`
	Price            pricing.Quote        `bson:"price"`
	Status           string               `bson:"status"`
	Payment          paymentDocument      `bson:"payment"`
	PaymentReference string               `bson:"payment_reference,omitempty"`
	HoldExpiresAt    time.Time            `bson:"hold_expires_at"`
	ChannelSync      map[string]time.Time `bson:"channel_sync"`
	CreatedAt        time.Time            `bson:"created_at"`
	UpdatedAt        time.Time            `bson:"updated_at"`
	Version          int64                `bson:"version"`
}

type guestDocument struct {
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Phone string `bson:"phone,omitempty"`
}

type paymentDocument struct {
	Method  string `bson:"method"`
	Outcome string `bson:"outcome"`
	Note    string `bson:"note,omitempty"`
}

func newReservationDocument(r *domainreservation.Reservation) reservationDocument {
	sync := make(map[string]time.Time, len(r.ChannelSync))
	for ch, at := range r.ChannelSync {
		sync[ch] = at.UTC()
	}
	return reservationDocument{
		ID:               string(r.ID),
		ChaletID:         string(r.ChaletID),
		CheckIn:          r.Stay.CheckIn,
		CheckOut:         r.Stay.CheckOut,
		LastNight:        r.Stay.LastNight(),
		Guest:            guestDocument{Name: r.Guest.Name, Email: r.Guest.Email, Phone: r.Guest.Phone},
		Party:            r.Party,
		Price:            r.Price,
		Status:           string(r.Status),
		Payment:          paymentDocument{Method: string(r.Payment.Method), Outcome: string(r.Payment.Outcome), Note: r.Payment.Note},
		PaymentReference: r.PaymentReference,
		HoldExpiresAt:    r.HoldExpiresAt.UTC(),
		ChannelSync:      sync,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		Version:          r.Version,
	}
}

func (d reservationDocument) toAggregate() *domainreservation.Reservation {
	sync := make(map[string]time.Time, len(d.ChannelSync))
	for ch, at := range d.ChannelSync {
		sync[ch] = at.UTC()
	}
	return &domainreservation.Reservation{
		ID:       domainreservation.ReservationID(d.ID),
		ChaletID: domainchalets.ChaletID(d.ChaletID),
		Stay:     daterange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		Guest:    domainreservation.Guest{Name: d.Guest.Name, Email: d.Guest.Email, Phone: d.Guest.Phone},
		Party:    d.Party,
		Price:    d.Price,
		Status:   domainreservation.Status(d.Status),
		Payment: domainreservation.PaymentState{
			Method:  domainreservation.PaymentMethod(d.Payment.Method),
			Outcome: domainreservation.PaymentOutcome(d.Payment.Outcome),
			Note:    d.Payment.Note,
		},
		PaymentReference: d.PaymentReference,
		HoldExpiresAt:    d.HoldExpiresAt.UTC(),
		ChannelSync:      sync,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
		Version:          d.Version,
	}
}

var _ domainreservation.Repository = (*ReservationRepository)(nil)
