package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// User Profile Adapter
// =============================================================================

// ProfileAdapter implements domain.ProfileRepository. Every write is a
// $set merge on dotted paths; the document is never replaced wholesale.
type ProfileAdapter struct {
	collection *mongo.Collection
}

func NewProfileAdapter(db *mongo.Database) *ProfileAdapter {
	return &ProfileAdapter{collection: db.Collection(collectionProfiles)}
}

func (a *ProfileAdapter) GetOrCreate(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := a.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err == nil {
		return &profile, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, apperr.StoreError("get profile", err)
	}

	fresh := domain.DefaultProfile(userID)
	if _, err := a.collection.InsertOne(ctx, fresh); err != nil {
		// concurrent first access: the other writer won, read theirs
		if mongo.IsDuplicateKeyError(err) {
			if err := a.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile); err != nil {
				return nil, apperr.StoreError("get profile after race", err)
			}
			return &profile, nil
		}
		return nil, apperr.StoreError("create profile", err)
	}
	return fresh, nil
}

func (a *ProfileAdapter) Merge(ctx context.Context, userID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	set := bson.M{}
	for path, value := range fields {
		set[path] = value
	}
	_, err := a.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return apperr.StoreError("merge profile", err)
	}
	return nil
}

func (a *ProfileAdapter) MarkTaskRun(ctx context.Context, userID string, task domain.AutonomousTask, at time.Time) error {
	return a.Merge(ctx, userID, map[string]any{
		"autonomous_tasks." + string(task) + ".last_run_utc": at.UTC(),
		"updated_at": time.Now().UTC(),
	})
}

var _ domain.ProfileRepository = (*ProfileAdapter)(nil)
