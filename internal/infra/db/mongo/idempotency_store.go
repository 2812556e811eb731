package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chaletbook/internal/app/middleware"
)

const defaultIdempotencyTTL = 7 * 24 * time.Hour

type idempotencyDocument struct {
	Key        string                    `bson:"_id"`
	Payload    []byte                    `bson:"payload,omitempty"`
	Error      *middleware.RecordedError `bson:"error,omitempty"`
	OccurredAt time.Time                 `bson:"occurred_at"`
	ExpiresAt  time.Time                 `bson:"expires_at"`
}

// IdempotencyStore keeps first outcomes of keyed commands. Mongo's TTL
// monitor deletes documents once expires_at has passed; Get also filters on
// it because the monitor only runs once a minute.
type IdempotencyStore struct {
	col *mongo.Collection
	ttl time.Duration
}

func NewIdempotencyStore(db *mongo.Database, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	col := db.Collection("app_idempotency")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return &IdempotencyStore{col: col, ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	filter := bson.M{"_id": key, "expires_at": bson.M{"$gt": time.Now().UTC()}}
	var doc idempotencyDocument
	err := s.col.FindOne(ctx, filter).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return middleware.IdempotencyRecord{}, false, nil
	case err != nil:
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{
		Key:        doc.Key,
		Payload:    doc.Payload,
		Error:      doc.Error,
		OccurredAt: doc.OccurredAt,
	}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	doc := idempotencyDocument{
		Key:        rec.Key,
		Payload:    rec.Payload,
		Error:      rec.Error,
		OccurredAt: rec.OccurredAt,
		ExpiresAt:  rec.OccurredAt.Add(s.ttl),
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, options.Replace().SetUpsert(true))
	return err
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
