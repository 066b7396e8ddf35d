package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// Messages Adapter
// =============================================================================

// MessageAdapter implements domain.MessageRepository over the messages
// collection. The unique (user_id, message_id) index is the pipeline's
// idempotency guard.
type MessageAdapter struct {
	collection *mongo.Collection
}

func NewMessageAdapter(db *mongo.Database) *MessageAdapter {
	return &MessageAdapter{collection: db.Collection(collectionMessages)}
}

func (a *MessageAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "received_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "priority", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "purpose", Value: 1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// CreateIfAbsent inserts the record unless one already exists for this
// (user_id, message_id). The first writer wins; the loser gets
// created=false with no error.
func (a *MessageAdapter) CreateIfAbsent(ctx context.Context, msg *domain.Message) (bool, error) {
	_, err := a.collection.InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, apperr.StoreError("insert message", err)
	}
	return true, nil
}

func (a *MessageAdapter) GetByID(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := a.collection.FindOne(ctx, bson.M{"user_id": userID, "message_id": messageID}).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, apperr.StoreError("get message", err)
	}
	return &msg, nil
}

func (a *MessageAdapter) Exists(ctx context.Context, userID, messageID string) (bool, error) {
	count, err := a.collection.CountDocuments(ctx,
		bson.M{"user_id": userID, "message_id": messageID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, apperr.StoreError("check message existence", err)
	}
	return count > 0, nil
}

func (a *MessageAdapter) List(ctx context.Context, filter domain.MessageFilter) ([]*domain.Message, error) {
	query := bson.M{"user_id": filter.UserID}
	if len(filter.Priorities) > 0 {
		query["priority"] = bson.M{"$in": filter.Priorities}
	}
	if len(filter.Purposes) > 0 {
		query["purpose"] = bson.M{"$in": filter.Purposes}
	}
	if filter.IsArchived != nil {
		query["is_archived"] = *filter.IsArchived
	}
	if filter.ReceivedBefore != nil || filter.ReceivedAfter != nil {
		rng := bson.M{}
		if filter.ReceivedBefore != nil {
			rng["$lt"] = *filter.ReceivedBefore
		}
		if filter.ReceivedAfter != nil {
			rng["$gte"] = *filter.ReceivedAfter
		}
		query["received_at"] = rng
	}
	if filter.MeetingPending {
		query["meeting_processed"] = false
		if len(filter.Purposes) == 0 {
			query["purpose"] = bson.M{"$in": domain.MeetingPurposes}
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := a.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, apperr.StoreError("list messages", err)
	}
	defer cursor.Close(ctx)

	var msgs []*domain.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, apperr.StoreError("decode messages", err)
	}
	return msgs, nil
}

// UpdateFields merges fields into one document. Used for reclassification,
// archive flags, and meeting_processed; never a full overwrite.
func (a *MessageAdapter) UpdateFields(ctx context.Context, userID, messageID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result, err := a.collection.UpdateOne(ctx,
		bson.M{"user_id": userID, "message_id": messageID},
		bson.M{"$set": fields})
	if err != nil {
		return apperr.StoreError("update message fields", err)
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound(fmt.Sprintf("message %s", messageID))
	}
	return nil
}

var _ domain.MessageRepository = (*MessageAdapter)(nil)
