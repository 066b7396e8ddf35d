// Package worker contains the job types and pool that execute queued
// agent work off the trigger streams.
package worker

import (
	"time"

	"github.com/google/uuid"
)

// Priority levels for job scheduling.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// JobType represents the type of a job.
type JobType = string

const (
	// Inbox jobs
	JobInboxScan  JobType = "inbox.scan"
	JobReclassify         = "inbox.reclassify"

	// ML jobs
	JobRetrain = "ml.retrain"

	// Scheduler jobs
	JobAutonomousRun = "autonomous.run"
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

func NewMessage(jobType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Priority:  PriorityNormal,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}

// NewPriorityMessage creates a message with specific priority.
func NewPriorityMessage(jobType string, payload map[string]any, priority Priority) *Message {
	m := NewMessage(jobType, payload)
	m.Priority = priority
	return m
}

// IsPriority checks if message should go to the priority queue.
func (m *Message) IsPriority() bool {
	return m.Priority >= PriorityHigh
}

// Inbox payloads
type InboxScanPayload struct {
	UserID     string `json:"user_id"`
	MaxResults int    `json:"max_results,omitempty"`
}

type ReclassifyPayload struct {
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
}

// ML payloads
type RetrainPayload struct {
	UserID string `json:"user_id"`
}

// Scheduler payloads
type AutonomousRunPayload struct {
	UserID string `json:"user_id,omitempty"` // empty runs every known user
}
