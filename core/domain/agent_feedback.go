package domain

import (
	"context"
	"strings"
	"time"
)

// Feedback is one user correction. New document per event; corrections are
// never edited in place.
type Feedback struct {
	ID                string    `json:"feedback_id" bson:"_id"`
	MessageID         string    `json:"message_id" bson:"message_id"`
	UserID            string    `json:"user_id" bson:"user_id"`
	OriginalPriority  Priority  `json:"original_priority" bson:"original_priority"`
	CorrectedPriority *Priority `json:"corrected_priority,omitempty" bson:"corrected_priority,omitempty"`
	OriginalPurpose   *Purpose  `json:"original_purpose,omitempty" bson:"original_purpose,omitempty"`
	CorrectedPurpose  *Purpose  `json:"corrected_purpose,omitempty" bson:"corrected_purpose,omitempty"`
	SenderKey         string    `json:"sender_key" bson:"sender_key"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// SenderKey canonicalizes a sender header for feedback lookups: the
// lowercased address inside angle brackets when present, else the
// lowercased local part.
func SenderKey(sender string) string {
	s := strings.TrimSpace(sender)
	if open := strings.LastIndex(s, "<"); open >= 0 {
		if close := strings.Index(s[open:], ">"); close > 0 {
			return strings.ToLower(strings.TrimSpace(s[open+1 : open+close]))
		}
	}
	if at := strings.Index(s, "@"); at >= 0 {
		s = s[:at]
	}
	return strings.ToLower(s)
}

// FeedbackMap maps sender_key to the latest corrected priority for that
// sender. Rebuilt at pipeline-run start, never mutated concurrently.
type FeedbackMap map[string]Priority

// FeedbackRepository is the feedback-collection gateway.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *Feedback) error
	Count(ctx context.Context, userID string) (int64, error)
	// ListByCreatedDesc streams feedback newest first, bounded by limit
	// (0 means no bound).
	ListByCreatedDesc(ctx context.Context, userID string, limit int) ([]*Feedback, error)
	// LatestPerMessage returns, for each message_id, the newest feedback
	// carrying a corrected priority. Used to build training rows.
	LatestPerMessage(ctx context.Context, userID string) ([]*Feedback, error)
}

// BuildFeedbackMap folds a newest-first feedback stream into the
// latest-correction-per-sender map. The first corrected priority seen for
// a sender_key wins, matching the DESC ordering contract.
func BuildFeedbackMap(feedbacks []*Feedback) FeedbackMap {
	m := make(FeedbackMap, len(feedbacks))
	for _, fb := range feedbacks {
		if fb.SenderKey == "" || fb.CorrectedPriority == nil {
			continue
		}
		if _, seen := m[fb.SenderKey]; seen {
			continue
		}
		m[fb.SenderKey] = *fb.CorrectedPriority
	}
	return m
}
