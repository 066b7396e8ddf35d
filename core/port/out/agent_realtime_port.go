package out

import "time"

// =============================================================================
// Realtime Broadcaster Port
// =============================================================================

// Event type catalog. Every event carries an ISO-8601 UTC timestamp and is
// mirrored to the activity log by the publisher.
const (
	EventProcessingStarted  = "email_processing_started"
	EventLLMComplete        = "llm_analysis_complete"
	EventClassification     = "classification_complete"
	EventSuggestion         = "suggestion_generated"
	EventAutonomousAction   = "autonomous_action_executed"
	EventTrainingStarted    = "ml_training_started"
	EventTrainingProgress   = "ml_training_progress"
	EventTrainingComplete   = "ml_training_complete"
	EventTrainingError      = "ml_training_error"
	EventActionQueued       = "action_queued"
	EventSystemStatusUpdate = "system_status_update"
)

// Event is one realtime emission.
type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(eventType string, data map[string]any) Event {
	return Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Truncate caps a string for event payload fields (subject 100, summary
// and details 200, suggestion 300).
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// EventPublisherPort fans events out to a user's connected clients and
// mirrors each emission as an ActivityEntry.
type EventPublisherPort interface {
	Publish(userID string, event Event)
}
