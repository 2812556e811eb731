package outbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "chaletbook/internal/app/outbox"
)

const (
	StateNew     = "NEW"
	StateClaimed = "CLAIMED"
	StateSent    = "SENT"
	StateFailed  = "FAILED"
)

// ClaimTimeout is how long a claimed record may stay unsent before another
// worker may take it over.
const ClaimTimeout = 2 * time.Minute

// Record is an outbox entry handed to the relay.
type Record struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
	Attempts   int
}

// Store is the relay side of an outbox.
type Store interface {
	Claim(ctx context.Context, workerID string) (*Record, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// MongoStore keeps outbox records in the same database as the aggregates, so
// Add joins the session transaction carried by ctx.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	col := db.Collection("app_outbox")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &MongoStore{col: col}
}

func (s *MongoStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	now := time.Now().UTC()
	doc := eventDocument{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     record.Payload,
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     record.Headers,
		State:       StateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
	_, err := s.col.InsertOne(ctx, doc)
	return err
}

// Flush is a no-op: records become visible to the relay when the transaction commits.
func (s *MongoStore) Flush(context.Context) error {
	return nil
}

type eventDocument struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Payload     []byte            `bson:"payload"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	Aggregate   string            `bson:"aggregate"`
	Headers     map[string]string `bson:"headers"`
	State       string            `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	ClaimedBy   string            `bson:"claimed_by,omitempty"`
	ClaimedAt   time.Time         `bson:"claimed_at,omitempty"`
	SentAt      time.Time         `bson:"sent_at,omitempty"`
	LastError   string            `bson:"last_error,omitempty"`
	CreatedAt   time.Time         `bson:"created_at"`
}

func (s *MongoStore) Claim(ctx context.Context, workerID string) (*Record, error) {
	now := time.Now().UTC()
	filter := bson.M{"$or": []bson.M{
		{"state": bson.M{"$in": []string{StateNew, StateFailed}}, "next_attempt_at": bson.M{"$lte": now}},
		{"state": StateClaimed, "claimed_at": bson.M{"$lte": now.Add(-ClaimTimeout)}},
	}}
	update := bson.M{"$set": bson.M{"state": StateClaimed, "claimed_by": workerID, "claimed_at": now}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	var doc eventDocument
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &Record{
		ID:         doc.ID,
		Name:       doc.Name,
		Payload:    doc.Payload,
		OccurredAt: doc.OccurredAt,
		Aggregate:  doc.Aggregate,
		Headers:    doc.Headers,
		Attempts:   doc.Attempts,
	}, nil
}

func (s *MongoStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"state": StateSent, "sent_at": time.Now().UTC()}})
	return err
}

func (s *MongoStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	update := bson.M{
		"$set": bson.M{
			"state":           StateFailed,
			"next_attempt_at": next,
			"last_error":      errMsg,
		},
		"$inc": bson.M{"attempts": 1},
	}
	_, err := s.col.UpdateByID(ctx, id, update)
	return err
}

var (
	_ appoutbox.Outbox = (*MongoStore)(nil)
	_ Store            = (*MongoStore)(nil)
)
