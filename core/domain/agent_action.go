package domain

import (
	"context"
	"time"
)

// ActionType enumerates the side-effects the worker can execute.
type ActionType string

const (
	ActionArchive    ActionType = "archive"
	ActionSendDraft  ActionType = "send_draft"
	ActionApplyLabel ActionType = "apply_label"
)

// ActionStatus moves pending -> completed | failed, never backwards.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionCompleted ActionStatus = "completed"
	ActionFailed    ActionStatus = "failed"
)

// ActionRequest is a queued side-effect against the mail provider.
// Results are retained for audit.
type ActionRequest struct {
	ID            string         `json:"request_id" bson:"_id"`
	UserID        string         `json:"user_id" bson:"user_id"`
	MessageID     string         `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Action        ActionType     `json:"action" bson:"action"`
	Params        map[string]any `json:"params,omitempty" bson:"params,omitempty"`
	Status        ActionStatus   `json:"status" bson:"status"`
	ResultMessage string         `json:"result_message,omitempty" bson:"result_message,omitempty"`
	RequestedAt   time.Time      `json:"requested_at" bson:"requested_at"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	ClaimedAt     *time.Time     `json:"claimed_at,omitempty" bson:"claimed_at,omitempty"`
}

// SendDraftParams is the typed payload of a send_draft action.
type SendDraftParams struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	IsHTML  bool   `json:"is_html"`
}

// ApplyLabelParams is the typed payload of an apply_label action. Label
// names may be path-style (e.g. "Priority/HIGH"); absent parents are
// created by the worker.
type ApplyLabelParams struct {
	Labels []string `json:"labels"`
}

// ActionRepository is the action_requests gateway. Claim performs the
// compare-and-set on status=pending that keeps transitions linearizable
// per document.
type ActionRepository interface {
	Create(ctx context.Context, req *ActionRequest) error
	GetByID(ctx context.Context, userID, requestID string) (*ActionRequest, error)
	// Claim atomically marks up to limit pending requests as claimed by
	// this worker and returns them. A request already claimed within the
	// stale window is not returned.
	Claim(ctx context.Context, limit int, staleAfter time.Duration) ([]*ActionRequest, error)
	Complete(ctx context.Context, requestID, resultMessage string) error
	Fail(ctx context.Context, requestID, resultMessage string) error
}
