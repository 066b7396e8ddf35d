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
// Feedback Adapter
// =============================================================================

// FeedbackAdapter implements domain.FeedbackRepository. Documents are
// append-only.
type FeedbackAdapter struct {
	collection *mongo.Collection
}

func NewFeedbackAdapter(db *mongo.Database) *FeedbackAdapter {
	return &FeedbackAdapter{collection: db.Collection(collectionFeedback)}
}

func (a *FeedbackAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "sender_key", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "message_id", Value: 1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (a *FeedbackAdapter) Create(ctx context.Context, fb *domain.Feedback) error {
	if _, err := a.collection.InsertOne(ctx, fb); err != nil {
		return apperr.StoreError("insert feedback", err)
	}
	return nil
}

func (a *FeedbackAdapter) Count(ctx context.Context, userID string) (int64, error) {
	count, err := a.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, apperr.StoreError("count feedback", err)
	}
	return count, nil
}

func (a *FeedbackAdapter) ListByCreatedDesc(ctx context.Context, userID string, limit int) ([]*domain.Feedback, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := a.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, apperr.StoreError("list feedback", err)
	}
	defer cursor.Close(ctx)

	var rows []*domain.Feedback
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, apperr.StoreError("decode feedback", err)
	}
	return rows, nil
}

// LatestPerMessage groups by message_id and keeps the newest feedback
// that carries a corrected priority. Feeds the training-set builder.
func (a *FeedbackAdapter) LatestPerMessage(ctx context.Context, userID string) ([]*domain.Feedback, error) {
	pipeline := []bson.M{
		{"$match": bson.M{
			"user_id":            userID,
			"corrected_priority": bson.M{"$ne": nil},
		}},
		{"$sort": bson.M{"created_at": -1}},
		{"$group": bson.M{
			"_id": "$message_id",
			"doc": bson.M{"$first": "$$ROOT"},
		}},
		{"$replaceRoot": bson.M{"newRoot": "$doc"}},
	}

	cursor, err := a.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.StoreError("aggregate latest feedback", err)
	}
	defer cursor.Close(ctx)

	var rows []*domain.Feedback
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, apperr.StoreError("decode latest feedback", err)
	}
	return rows, nil
}

var _ domain.FeedbackRepository = (*FeedbackAdapter)(nil)
