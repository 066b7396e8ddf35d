package domain

import (
	"context"
	"time"
)

// AutonomousTask names the scheduler's periodic jobs.
type AutonomousTask string

const (
	TaskAutoArchive  AutonomousTask = "auto_archive"
	TaskDailySummary AutonomousTask = "daily_summary"
	TaskFollowUp     AutonomousTask = "follow_up"
	TaskReEvaluate   AutonomousTask = "re_evaluate_unknowns"
	TaskMeetingPrep  AutonomousTask = "meeting_prep"
)

// EmailPreferences is the mail-side slice of the profile.
type EmailPreferences struct {
	ImportantSenders        []string        `json:"important_senders,omitempty" bson:"important_senders,omitempty"`
	FilteredDomains         []string        `json:"filtered_domains,omitempty" bson:"filtered_domains,omitempty"`
	NotificationPreferences map[string]bool `json:"notification_preferences,omitempty" bson:"notification_preferences,omitempty"`
}

// AgentPreferences gates what the agent may do without confirmation.
type AgentPreferences struct {
	AutonomousModeEnabled bool   `json:"autonomous_mode_enabled" bson:"autonomous_mode_enabled"`
	SuggestionFrequency   string `json:"suggestion_frequency,omitempty" bson:"suggestion_frequency,omitempty"`
	AllowAutoArchiving    bool   `json:"allow_auto_archiving" bson:"allow_auto_archiving"`
	AllowAutoCategorize   bool   `json:"allow_auto_categorization" bson:"allow_auto_categorization"`
	AllowAutoDraft        bool   `json:"allow_auto_draft" bson:"allow_auto_draft"`
	DailySummaryEnabled   bool   `json:"daily_summary_enabled" bson:"daily_summary_enabled"`
	AllowAutoTaskCreation bool   `json:"allow_auto_task_creation" bson:"allow_auto_task_creation"`
}

// AgendaSynthesis tunes the daily digest content.
type AgendaSynthesis struct {
	Tone               string `json:"tone,omitempty" bson:"tone,omitempty"` // "brief" | "detailed"
	IncludeLowPriority bool   `json:"include_low_priority" bson:"include_low_priority"`
	MaxMessages        int    `json:"max_messages,omitempty" bson:"max_messages,omitempty"`
}

// TaskState tracks one autonomous task's last completed run.
type TaskState struct {
	LastRunUTC *time.Time `json:"last_run_utc,omitempty" bson:"last_run_utc,omitempty"`
}

// UserProfile is the per-user preference and autonomous-state document.
// Lazily created with defaults on first access; updated via partial
// merges only, never full-document overwrites.
type UserProfile struct {
	UserID              string                       `json:"user_id" bson:"_id"`
	EmailPreferences    EmailPreferences             `json:"email_preferences" bson:"email_preferences"`
	AgentPreferences    AgentPreferences             `json:"agent_preferences" bson:"agent_preferences"`
	AgendaSynthesis     AgendaSynthesis              `json:"agenda_synthesis" bson:"agenda_synthesis"`
	AutonomousTasks     map[AutonomousTask]TaskState `json:"autonomous_tasks,omitempty" bson:"autonomous_tasks,omitempty"`
	InteractionPatterns map[string]int               `json:"interaction_patterns,omitempty" bson:"interaction_patterns,omitempty"`
	LastRunSummary      string                       `json:"last_autonomous_run_summary,omitempty" bson:"last_autonomous_run_summary,omitempty"`
	CreatedAt           time.Time                    `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time                    `json:"updated_at" bson:"updated_at"`
}

// DefaultProfile returns the document written on first access.
func DefaultProfile(userID string) *UserProfile {
	now := time.Now().UTC()
	return &UserProfile{
		UserID: userID,
		AgentPreferences: AgentPreferences{
			AutonomousModeEnabled: false,
			SuggestionFrequency:   "normal",
			DailySummaryEnabled:   true,
		},
		AgendaSynthesis: AgendaSynthesis{
			Tone:        "brief",
			MaxMessages: 30,
		},
		AutonomousTasks: map[AutonomousTask]TaskState{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// LastRun returns the recorded last run of task, zero time when never run.
func (p *UserProfile) LastRun(task AutonomousTask) time.Time {
	if st, ok := p.AutonomousTasks[task]; ok && st.LastRunUTC != nil {
		return *st.LastRunUTC
	}
	return time.Time{}
}

// ProfileRepository is the user_profile gateway. All writes are partial
// merges keyed by dotted field paths.
type ProfileRepository interface {
	GetOrCreate(ctx context.Context, userID string) (*UserProfile, error)
	Merge(ctx context.Context, userID string, fields map[string]any) error
	// MarkTaskRun records last_run_utc for one autonomous task.
	MarkTaskRun(ctx context.Context, userID string, task AutonomousTask, at time.Time) error
}
