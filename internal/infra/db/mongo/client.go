package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// Client holds the application database. Transactions need a replica set,
// so connecting to a standalone server fails at the first Begin.
type Client struct {
	DB *mongo.Database
}

func New(uri, database string) (*Client, error) {
	if database == "" {
		return nil, errors.New("mongo: database name is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	opts := options.Client().
		ApplyURI(uri).
		SetAppName("chaletbook").
		SetRetryWrites(true).
		SetServerSelectionTimeout(connectTimeout)
	conn, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	return &Client{DB: conn.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

func (c *Client) Factory() Factory {
	return Factory{
		DB:               c.DB,
		ReservationsRepo: NewReservationRepository(c.DB),
		BlocksRepo:       NewBlockRepository(c.DB),
	}
}
