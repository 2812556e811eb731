package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const inboxRetention = 30 * 24 * time.Hour

type inboxDocument struct {
	ID         string    `bson:"_id"`
	EventID    string    `bson:"event_id"`
	Consumer   string    `bson:"consumer"`
	ReceivedAt time.Time `bson:"received_at"`
}

// InboxStore deduplicates broker deliveries per consumer group. Marks
// expire after a month, well past any broker redelivery window.
type InboxStore struct {
	col      *mongo.Collection
	consumer string
}

func NewInboxStore(db *mongo.Database, consumer string) *InboxStore {
	col := db.Collection("app_inbox")
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "received_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(inboxRetention.Seconds())),
	}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &InboxStore{col: col, consumer: consumer}
}

func (s *InboxStore) key(eventID string) string {
	return s.consumer + ":" + eventID
}

// Seen marks eventID as received and reports whether it already was.
func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := s.col.InsertOne(ctx, inboxDocument{
		ID:         s.key(eventID),
		EventID:    eventID,
		Consumer:   s.consumer,
		ReceivedAt: time.Now().UTC(),
	})
	switch {
	case err == nil:
		return false, nil
	case mongo.IsDuplicateKeyError(err):
		return true, nil
	default:
		return false, err
	}
}

// Forget drops the mark so a failed delivery is handled again on redelivery.
func (s *InboxStore) Forget(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": s.key(eventID)})
	return err
}
