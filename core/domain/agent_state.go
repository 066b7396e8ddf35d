package domain

import (
	"context"
	"time"
)

// RetrainState is the blob-store JSON tracking retraining progress.
// Updated only after a successful fit-and-publish.
type RetrainState struct {
	LastFeedbackCount int     `json:"last_feedback_count"`
	LastUpdatedUTC    *string `json:"last_updated_utc"`
}

// AgentState is the per-user runtime status document backing
// system_status_update events.
type AgentState struct {
	UserID           string     `json:"user_id" bson:"_id"`
	IsProcessing     bool       `json:"is_processing" bson:"is_processing"`
	LastEmailCheck   *time.Time `json:"last_email_check,omitempty" bson:"last_email_check,omitempty"`
	ActiveTasks      []string   `json:"active_tasks,omitempty" bson:"active_tasks,omitempty"`
	AutonomousMode   bool       `json:"autonomous_mode" bson:"autonomous_mode"`
	MLTrainingStatus string     `json:"ml_training_status,omitempty" bson:"ml_training_status,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at" bson:"updated_at"`
}

// StateRepository is the agent_state gateway.
type StateRepository interface {
	Get(ctx context.Context, userID string) (*AgentState, error)
	Merge(ctx context.Context, userID string, fields map[string]any) error
}
