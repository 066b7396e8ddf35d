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
// User Tasks Adapter
// =============================================================================

// TaskAdapter implements domain.TaskRepository.
type TaskAdapter struct {
	collection *mongo.Collection
}

func NewTaskAdapter(db *mongo.Database) *TaskAdapter {
	return &TaskAdapter{collection: db.Collection(collectionTasks)}
}

func (a *TaskAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			// follow-up dedupe key
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "task_type", Value: 1},
				{Key: "related_message_id", Value: 1},
			},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (a *TaskAdapter) Create(ctx context.Context, task *domain.Task) error {
	if _, err := a.collection.InsertOne(ctx, task); err != nil {
		return apperr.StoreError("insert task", err)
	}
	return nil
}

func (a *TaskAdapter) List(ctx context.Context, userID string, limit int) ([]*domain.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, apperr.StoreError("list tasks", err)
	}
	defer cursor.Close(ctx)

	var tasks []*domain.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, apperr.StoreError("decode tasks", err)
	}
	return tasks, nil
}

func (a *TaskAdapter) ExistsByRelated(ctx context.Context, userID, taskType, relatedMessageID string) (bool, error) {
	count, err := a.collection.CountDocuments(ctx, bson.M{
		"user_id":            userID,
		"task_type":          taskType,
		"related_message_id": relatedMessageID,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, apperr.StoreError("check task existence", err)
	}
	return count > 0, nil
}

var _ domain.TaskRepository = (*TaskAdapter)(nil)
