package domain

import (
	"context"
	"time"
)

// TaskStatus tracks an extracted task's lifecycle.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusDismissed TaskStatus = "dismissed"
)

// Task is an autonomously extracted to-do tied to a message.
type Task struct {
	ID               string     `json:"id" bson:"_id"`
	UserID           string     `json:"user_id" bson:"user_id"`
	TaskType         string     `json:"task_type,omitempty" bson:"task_type,omitempty"`
	Description      string     `json:"task_description" bson:"task_description"`
	Deadline         *time.Time `json:"deadline,omitempty" bson:"deadline,omitempty"`
	Stakeholders     []string   `json:"stakeholders,omitempty" bson:"stakeholders,omitempty"`
	RelatedMessageID string     `json:"related_message_id,omitempty" bson:"related_message_id,omitempty"`
	CreationMethod   string     `json:"creation_method" bson:"creation_method"`
	Status           TaskStatus `json:"status" bson:"status"`
	CreatedAt        time.Time  `json:"created_at" bson:"created_at"`
}

// TaskTypeFollowUp marks tasks created by follow-up detection. Dedupe is
// keyed on (task_type, related_message_id).
const TaskTypeFollowUp = "follow_up_needed"

// TaskRepository is the user_tasks gateway.
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	List(ctx context.Context, userID string, limit int) ([]*Task, error)
	// ExistsByRelated reports whether a task of taskType already exists
	// for the given related message.
	ExistsByRelated(ctx context.Context, userID, taskType, relatedMessageID string) (bool, error)
}
