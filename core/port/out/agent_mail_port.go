// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"
)

// =============================================================================
// Mail Provider Port
// =============================================================================

// MessageRef identifies a message without its content.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
}

// MessagePart is one node of the MIME tree. Data is base64url-encoded as
// delivered by the provider; decoding is the pipeline's job.
type MessagePart struct {
	MimeType string         `json:"mime_type"`
	Filename string         `json:"filename,omitempty"`
	Data     string         `json:"data,omitempty"`
	Parts    []*MessagePart `json:"parts,omitempty"`
}

// RawMessage is a provider message as fetched: headers plus MIME parts.
type RawMessage struct {
	ID           string            `json:"id"`
	ThreadID     string            `json:"thread_id"`
	Snippet      string            `json:"snippet"`
	LabelIDs     []string          `json:"label_ids"`
	Headers      map[string]string `json:"headers"`
	Payload      *MessagePart      `json:"payload"`
	InternalDate time.Time         `json:"internal_date"`
}

// ThreadMessageMeta is the lightweight per-thread listing used by
// follow-up detection.
type ThreadMessageMeta struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	InternalDate time.Time `json:"internal_date"`
}

// MailLabel is a provider label. Names may be path-style ("Priority/HIGH").
type MailLabel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MailReader lists and fetches messages.
type MailReader interface {
	ListMessages(ctx context.Context, userID string, labels []string, query string, maxResults int) ([]MessageRef, error)
	GetMessage(ctx context.Context, userID, messageID string) (*RawMessage, error)
	ListThreadMessages(ctx context.Context, userID, threadID string) ([]ThreadMessageMeta, error)
}

// MailModifier changes message state.
type MailModifier interface {
	ModifyLabels(ctx context.Context, userID, messageID string, add, remove []string) error
}

// MailSender delivers an assembled RFC 822 message, base64url-encoded.
type MailSender interface {
	Send(ctx context.Context, userID, rawBase64URL string) error
}

// MailLabelManager resolves and creates labels. Creating a nested name
// creates absent parents.
type MailLabelManager interface {
	ListLabels(ctx context.Context, userID string) ([]MailLabel, error)
	CreateLabel(ctx context.Context, userID, name string) (*MailLabel, error)
}

// MailProviderPort is the full mail provider surface the agent needs.
type MailProviderPort interface {
	MailReader
	MailModifier
	MailSender
	MailLabelManager
}

// Archive removes INBOX from a message. Provider-idempotent: archiving an
// already-archived message succeeds.
func Archive(ctx context.Context, p MailModifier, userID, messageID string) error {
	return p.ModifyLabels(ctx, userID, messageID, nil, []string{"INBOX"})
}
