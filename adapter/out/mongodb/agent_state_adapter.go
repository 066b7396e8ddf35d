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
// Agent State Adapter
// =============================================================================

// StateAdapter implements domain.StateRepository over agent_state.
type StateAdapter struct {
	collection *mongo.Collection
}

func NewStateAdapter(db *mongo.Database) *StateAdapter {
	return &StateAdapter{collection: db.Collection(collectionAgentState)}
}

func (a *StateAdapter) Get(ctx context.Context, userID string) (*domain.AgentState, error) {
	var state domain.AgentState
	err := a.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return &domain.AgentState{UserID: userID}, nil
		}
		return nil, apperr.StoreError("get agent state", err)
	}
	return &state, nil
}

func (a *StateAdapter) Merge(ctx context.Context, userID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	for path, value := range fields {
		set[path] = value
	}
	_, err := a.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true))
	if err != nil {
		return apperr.StoreError("merge agent state", err)
	}
	return nil
}

var _ domain.StateRepository = (*StateAdapter)(nil)
