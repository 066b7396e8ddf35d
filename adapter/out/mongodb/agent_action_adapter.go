package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// Action Requests Adapter
// =============================================================================

// ActionAdapter implements domain.ActionRepository. The claim is a
// per-document compare-and-set on status=pending, which keeps the
// pending -> completed|failed transition linearizable without locks.
type ActionAdapter struct {
	collection *mongo.Collection
}

func NewActionAdapter(db *mongo.Database) *ActionAdapter {
	return &ActionAdapter{collection: db.Collection(collectionActions)}
}

func (a *ActionAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "requested_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "requested_at", Value: -1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (a *ActionAdapter) Create(ctx context.Context, req *domain.ActionRequest) error {
	if _, err := a.collection.InsertOne(ctx, req); err != nil {
		return apperr.StoreError("insert action request", err)
	}
	return nil
}

func (a *ActionAdapter) GetByID(ctx context.Context, userID, requestID string) (*domain.ActionRequest, error) {
	var req domain.ActionRequest
	err := a.collection.FindOne(ctx, bson.M{"_id": requestID, "user_id": userID}).Decode(&req)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, apperr.StoreError("get action request", err)
	}
	return &req, nil
}

// Claim marks up to limit pending requests as claimed by stamping
// claimed_at, oldest first. A request whose claim is older than
// staleAfter is considered abandoned and may be claimed again.
func (a *ActionAdapter) Claim(ctx context.Context, limit int, staleAfter time.Duration) ([]*domain.ActionRequest, error) {
	now := time.Now().UTC()
	staleBefore := now.Add(-staleAfter)

	claimed := make([]*domain.ActionRequest, 0, limit)
	for len(claimed) < limit {
		filter := bson.M{
			"status": domain.ActionPending,
			"$or": []bson.M{
				{"claimed_at": nil},
				{"claimed_at": bson.M{"$exists": false}},
				{"claimed_at": bson.M{"$lt": staleBefore}},
			},
		}
		update := bson.M{"$set": bson.M{"claimed_at": now}}
		opts := options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "requested_at", Value: 1}}).
			SetReturnDocument(options.After)

		var req domain.ActionRequest
		err := a.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&req)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				break
			}
			return claimed, apperr.StoreError("claim action request", err)
		}
		claimed = append(claimed, &req)
	}
	return claimed, nil
}

func (a *ActionAdapter) Complete(ctx context.Context, requestID, resultMessage string) error {
	return a.finish(ctx, requestID, domain.ActionCompleted, resultMessage)
}

func (a *ActionAdapter) Fail(ctx context.Context, requestID, resultMessage string) error {
	return a.finish(ctx, requestID, domain.ActionFailed, resultMessage)
}

// finish transitions only from pending, making the terminal state
// monotonic even if two workers raced the claim.
func (a *ActionAdapter) finish(ctx context.Context, requestID string, status domain.ActionStatus, resultMessage string) error {
	now := time.Now().UTC()
	result, err := a.collection.UpdateOne(ctx,
		bson.M{"_id": requestID, "status": domain.ActionPending},
		bson.M{"$set": bson.M{
			"status":         status,
			"result_message": resultMessage,
			"processed_at":   now,
		}})
	if err != nil {
		return apperr.StoreError("finish action request", err)
	}
	if result.MatchedCount == 0 {
		return apperr.Conflict("action request already finalized")
	}
	return nil
}

var _ domain.ActionRepository = (*ActionAdapter)(nil)
