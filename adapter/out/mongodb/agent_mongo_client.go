// Package mongodb implements the document-store gateway over MongoDB:
// one adapter per collection, plus the GridFS blob store.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names. The persistence gateway exclusively owns writes to
// each of these.
const (
	collectionMessages   = "messages"
	collectionFeedback   = "feedback"
	collectionActions    = "action_requests"
	collectionProfiles   = "user_profile"
	collectionActivities = "activities"
	collectionTasks      = "user_tasks"
	collectionAgentState = "agent_state"
)

// Connect opens the MongoDB client with pooling and verifies the
// connection with a ping.
func Connect(ctx context.Context, url, dbName string) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(url).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, client.Database(dbName), nil
}
