package database

import (
	"context"
	"fmt"
	"time"

	"github.com/kartikgopal01/coedit/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConnectAttempts is how often ConnectMongo tries before giving up.
const MongoConnectAttempts = 5

// ConnectMongo connects and pings the primary, retrying with exponential
// backoff from one second to tolerate startup races. Each attempt is bounded
// by timeout. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	backoff := time.Second
	var err error
	for attempt := 1; attempt <= MongoConnectAttempts; attempt++ {
		var client *mongo.Client
		client, err = connectOnce(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, MongoConnectAttempts, err)
		if attempt == MongoConnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("mongo connect: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, err
}

func connectOnce(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
