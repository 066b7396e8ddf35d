package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// Activities Adapter
// =============================================================================

// ActivityAdapter implements domain.ActivityRepository. Append-only.
type ActivityAdapter struct {
	collection *mongo.Collection
}

func NewActivityAdapter(db *mongo.Database) *ActivityAdapter {
	return &ActivityAdapter{collection: db.Collection(collectionActivities)}
}

func (a *ActivityAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (a *ActivityAdapter) Append(ctx context.Context, entry *domain.ActivityEntry) error {
	if _, err := a.collection.InsertOne(ctx, entry); err != nil {
		return apperr.StoreError("insert activity", err)
	}
	return nil
}

func (a *ActivityAdapter) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, apperr.StoreError("list activities", err)
	}
	defer cursor.Close(ctx)

	var entries []*domain.ActivityEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, apperr.StoreError("decode activities", err)
	}
	return entries, nil
}

var _ domain.ActivityRepository = (*ActivityAdapter)(nil)
