package out

import (
	"context"
	"time"
)

// =============================================================================
// Calendar Provider Port
// =============================================================================

// CalendarEvent is a draft event extracted from a message.
type CalendarEvent struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// CalendarPort creates draft events. Implementations prefix the title so
// agent-created drafts are recognizable.
type CalendarPort interface {
	CreateDraftEvent(ctx context.Context, userID string, event CalendarEvent) (string, error)
}
