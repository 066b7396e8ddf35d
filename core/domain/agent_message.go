package domain

import (
	"context"
	"strings"
	"time"
)

// Priority is the actionable urgency label assigned to a message.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// ParsePriority normalizes a label; unknown values map to MEDIUM.
func ParsePriority(s string) Priority {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return PriorityCritical
	case "HIGH":
		return PriorityHigh
	case "MEDIUM":
		return PriorityMedium
	case "LOW":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Valid reports whether p is one of the four labels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities for sorting, highest first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Purpose is the semantic intent label of a message.
type Purpose string

const (
	PurposePromotion      Purpose = "promotion"
	PurposeTransactional  Purpose = "transactional"
	PurposeSocial         Purpose = "social"
	PurposeAlert          Purpose = "alert"
	PurposePersonal       Purpose = "personal"
	PurposeForumDigest    Purpose = "forum_digest"
	PurposeActionRequired Purpose = "action_required"
	PurposeInformation    Purpose = "information"

	// Labels the analyzer may emit in addition to the canonical set.
	PurposeActionRequest Purpose = "action request"
	PurposeQuestion      Purpose = "question"
	PurposeMeetingInvite Purpose = "meeting_invite"
	PurposeUnknown       Purpose = "Unknown"
)

// MeetingPurposes are the purposes meeting preparation acts on.
var MeetingPurposes = []Purpose{PurposeMeetingInvite}

// SuggestsMeeting reports whether the purpose implies a schedulable
// meeting.
func (p Purpose) SuggestsMeeting() bool {
	for _, mp := range MeetingPurposes {
		if p == mp {
			return true
		}
	}
	return false
}

// SummaryType selects the summarizer prompt.
type SummaryType string

const (
	SummaryStandard      SummaryType = "standard"
	SummaryBrief         SummaryType = "brief"
	SummaryDetailed      SummaryType = "detailed"
	SummaryActionFocused SummaryType = "action_focused"
)

// BodyParseSentinel is stored when every decode attempt on the body failed.
// The record is persisted anyway.
const BodyParseSentinel = "[Could not parse HTML content]"

// Message is one parsed, processed email. Created by the pipeline on first
// observation; mutated only by reclassification, the action worker
// (archive/label flags), or the scheduler (meeting_processed).
type Message struct {
	ID       string `json:"id" bson:"message_id"`
	UserID   string `json:"user_id" bson:"user_id"`
	ThreadID string `json:"thread_id" bson:"thread_id"`

	Sender     string    `json:"sender" bson:"sender"`
	Subject    string    `json:"subject" bson:"subject"`
	Snippet    string    `json:"snippet" bson:"snippet"`
	BodyText   string    `json:"body_text" bson:"body_text"`
	BodyHTML   string    `json:"body_html,omitempty" bson:"body_html,omitempty"`
	Labels     []string  `json:"labels,omitempty" bson:"labels,omitempty"`
	ReceivedAt time.Time `json:"received_at" bson:"received_at"`

	IsRead     bool `json:"is_read" bson:"is_read"`
	IsStarred  bool `json:"is_starred" bson:"is_starred"`
	IsArchived bool `json:"is_archived" bson:"is_archived"`

	Priority         Priority         `json:"priority" bson:"priority"`
	Purpose          Purpose          `json:"purpose" bson:"purpose"`
	Urgency          int              `json:"urgency,omitempty" bson:"urgency,omitempty"`
	ResponseNeeded   bool             `json:"response_needed" bson:"response_needed"`
	EstimatedMinutes int              `json:"estimated_minutes,omitempty" bson:"estimated_minutes,omitempty"`
	Summary          *string          `json:"summary,omitempty" bson:"summary,omitempty"`
	SummaryType      SummaryType      `json:"summary_type,omitempty" bson:"summary_type,omitempty"`
	Reasoning        *ReasoningRecord `json:"reasoning_record,omitempty" bson:"reasoning_record,omitempty"`
	Suggestions      []Suggestion     `json:"suggestions,omitempty" bson:"suggestions,omitempty"`

	MeetingProcessed bool       `json:"meeting_processed" bson:"meeting_processed"`
	ReclassifiedAt   *time.Time `json:"reclassified_at,omitempty" bson:"reclassified_at,omitempty"`
	ProcessedAt      time.Time  `json:"processed_timestamp" bson:"processed_timestamp"`
}

// Suggestion is one proposed follow-up action for a message.
type Suggestion struct {
	Text       string  `json:"text" bson:"text"`
	Type       string  `json:"type" bson:"type"`
	Confidence float64 `json:"confidence" bson:"confidence"`
}

// SenderDomain returns the domain part of the sender address, lowercased,
// or "" when the sender has no parseable address.
func (m *Message) SenderDomain() string {
	addr := ExtractAddress(m.Sender)
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return ""
}

// ExtractAddress pulls the bare address out of a display-form sender
// header, lowercased. `"Acme Boss" <boss@acme.com>` yields "boss@acme.com".
func ExtractAddress(sender string) string {
	s := strings.TrimSpace(sender)
	if open := strings.LastIndex(s, "<"); open >= 0 {
		if close := strings.Index(s[open:], ">"); close > 0 {
			return strings.ToLower(strings.TrimSpace(s[open+1 : open+close]))
		}
	}
	return strings.ToLower(s)
}

// MessageFilter narrows message queries.
type MessageFilter struct {
	UserID         string
	Priorities     []Priority
	Purposes       []Purpose
	ReceivedBefore *time.Time
	ReceivedAfter  *time.Time
	IsArchived     *bool
	MeetingPending bool // purpose suggests a meeting and not yet meeting_processed
	Limit          int
}

// MessageRepository is the messages-collection gateway. CreateIfAbsent is
// the idempotency guard for the pipeline: the first writer wins.
type MessageRepository interface {
	CreateIfAbsent(ctx context.Context, msg *Message) (created bool, err error)
	GetByID(ctx context.Context, userID, messageID string) (*Message, error)
	Exists(ctx context.Context, userID, messageID string) (bool, error)
	List(ctx context.Context, filter MessageFilter) ([]*Message, error)
	// UpdateFields merges the given fields into an existing document.
	UpdateFields(ctx context.Context, userID, messageID string, fields map[string]any) error
}
