package domain

import (
	"context"
	"time"
)

// ActivityStatus mirrors the UI-facing state of one logged step.
type ActivityStatus string

const (
	ActivityInProgress ActivityStatus = "in_progress"
	ActivityCompleted  ActivityStatus = "completed"
	ActivityFailed     ActivityStatus = "failed"
)

// ActivityEntry is one append-only broadcast-log row. Every realtime
// emission is mirrored here so late joiners can reconstruct recent state.
type ActivityEntry struct {
	ID        string         `json:"id" bson:"_id"`
	UserID    string         `json:"user_id" bson:"user_id"`
	Type      string         `json:"type" bson:"type"`
	Stage     string         `json:"stage,omitempty" bson:"stage,omitempty"`
	Status    ActivityStatus `json:"status" bson:"status"`
	Details   map[string]any `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" bson:"updated_at"`
}

// ActivityRepository is the activities gateway. Append-only.
type ActivityRepository interface {
	Append(ctx context.Context, entry *ActivityEntry) error
	ListRecent(ctx context.Context, userID string, limit int) ([]*ActivityEntry, error)
}
