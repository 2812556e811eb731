package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "chaletbook/internal/domain/availability"
	domainchalets "chaletbook/internal/domain/chalets"
	"chaletbook/internal/domain/shared/daterange"
)

// BlockRepository stores one document per closed night. The unique
// (chalet_id, date) index rejects a racing duplicate.
type BlockRepository struct {
	col *mongo.Collection
}

func NewBlockRepository(db *mongo.Database) *BlockRepository {
	col := db.Collection("manual_blocks")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "chalet_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &BlockRepository{col: col}
}

// Add skips dates that are already closed. Inserts run inside the caller's
// transaction, where a duplicate key would abort it, so existing dates are
// read first.
func (r *BlockRepository) Add(ctx context.Context, blocks []domainavailability.ManualBlock) ([]domainavailability.ManualBlock, error) {
	if len(blocks) == 0 {
		return []domainavailability.ManualBlock{}, nil
	}
	byChalet := make(map[domainchalets.ChaletID][]time.Time)
	for _, b := range blocks {
		byChalet[b.ChaletID] = append(byChalet[b.ChaletID], daterange.Normalize(b.Date))
	}
	existing := make(map[string]bool)
	for chaletID, dates := range byChalet {
		found, err := r.findDates(ctx, chaletID, dates)
		if err != nil {
			return nil, err
		}
		for _, d := range found {
			existing[string(chaletID)+"|"+daterange.Format(d)] = true
		}
	}

	added := make([]domainavailability.ManualBlock, 0, len(blocks))
	docs := make([]any, 0, len(blocks))
	for _, b := range blocks {
		b.Date = daterange.Normalize(b.Date)
		key := string(b.ChaletID) + "|" + b.Day()
		if existing[key] {
			continue
		}
		existing[key] = true
		added = append(added, b)
		docs = append(docs, blockDocument{
			ChaletID:  string(b.ChaletID),
			Date:      b.Date,
			Reason:    b.Reason,
			CreatedAt: b.CreatedAt.UTC(),
		})
	}
	if len(docs) == 0 {
		return added, nil
	}
	if _, err := r.col.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("mongo: manual block added concurrently: %w", err)
		}
		return nil, err
	}
	return added, nil
}

func (r *BlockRepository) Remove(ctx context.Context, chaletID domainchalets.ChaletID, dates []time.Time) ([]time.Time, error) {
	normalized := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		normalized = append(normalized, daterange.Normalize(d))
	}
	found, err := r.findDates(ctx, chaletID, normalized)
	if err != nil || len(found) == 0 {
		return []time.Time{}, err
	}
	_, err = r.col.DeleteMany(ctx, bson.M{"chalet_id": string(chaletID), "date": bson.M{"$in": found}})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *BlockRepository) List(ctx context.Context, chaletID domainchalets.ChaletID, from, to time.Time) ([]domainavailability.ManualBlock, error) {
	dateFilter := bson.M{"$gte": daterange.Normalize(from)}
	if !to.IsZero() {
		dateFilter["$lt"] = daterange.Normalize(to)
	}
	cur, err := r.col.Find(ctx,
		bson.M{"chalet_id": string(chaletID), "date": dateFilter},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]domainavailability.ManualBlock, 0)
	for cur.Next(ctx) {
		var doc blockDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toBlock())
	}
	return out, cur.Err()
}

func (r *BlockRepository) findDates(ctx context.Context, chaletID domainchalets.ChaletID, dates []time.Time) ([]time.Time, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"chalet_id": string(chaletID), "date": bson.M{"$in": dates}},
		options.Find().SetProjection(bson.M{"date": 1}).SetSort(bson.D{{Key: "date", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]time.Time, 0, len(dates))
	for cur.Next(ctx) {
		var doc blockDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.Date.UTC())
	}
	return out, cur.Err()
}

type blockDocument struct {
	ChaletID  string    `bson:"chalet_id"`
	Date      time.Time `bson:"date"`
	Reason    string    `bson:"reason"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d blockDocument) toBlock() domainavailability.ManualBlock {
	return domainavailability.ManualBlock{
		ChaletID:  domainchalets.ChaletID(d.ChaletID),
		Date:      d.Date.UTC(),
		Reason:    d.Reason,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

var _ domainavailability.BlockRepository = (*BlockRepository)(nil)
