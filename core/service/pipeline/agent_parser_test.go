package pipeline

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func rawMsg(labels []string, payload *out.MessagePart) *out.RawMessage {
	return &out.RawMessage{
		ID:       "msg-1",
		ThreadID: "thread-1",
		Snippet:  "snippet",
		LabelIDs: labels,
		Headers: map[string]string{
			"From":    "Alice <alice@example.com>",
			"Subject": "Quarterly numbers",
		},
		Payload:      payload,
		InternalDate: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestParseRawHeadersAndLabels(t *testing.T) {
	tests := []struct {
		name         string
		labels       []string
		wantRead     bool
		wantStarred  bool
		wantArchived bool
	}{
		{"unread inbox", []string{"UNREAD", "INBOX"}, false, false, false},
		{"read starred", []string{"INBOX", "STARRED"}, true, true, false},
		{"archived", []string{}, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ParseRaw("u1", rawMsg(tt.labels, &out.MessagePart{
				MimeType: "text/plain",
				Data:     b64("hello"),
			}))

			if msg.Sender != "Alice <alice@example.com>" {
				t.Errorf("sender = %q", msg.Sender)
			}
			if msg.Subject != "Quarterly numbers" {
				t.Errorf("subject = %q", msg.Subject)
			}
			if msg.IsRead != tt.wantRead {
				t.Errorf("is_read = %v, want %v", msg.IsRead, tt.wantRead)
			}
			if msg.IsStarred != tt.wantStarred {
				t.Errorf("is_starred = %v, want %v", msg.IsStarred, tt.wantStarred)
			}
			if msg.IsArchived != tt.wantArchived {
				t.Errorf("is_archived = %v, want %v", msg.IsArchived, tt.wantArchived)
			}
			if msg.Priority != domain.PriorityMedium {
				t.Errorf("priority = %s, want MEDIUM", msg.Priority)
			}
			if msg.Purpose != domain.PurposeUnknown {
				t.Errorf("purpose = %s, want unknown", msg.Purpose)
			}
		})
	}
}

func TestParseRawPrefersPlainBody(t *testing.T) {
	payload := &out.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*out.MessagePart{
			{MimeType: "text/html", Data: b64("<p>rich</p>")},
			{MimeType: "text/plain", Data: b64("plain body")},
		},
	}

	msg := ParseRaw("u1", rawMsg(nil, payload))
	if msg.BodyText != "plain body" {
		t.Errorf("body_text = %q, want plain body", msg.BodyText)
	}
	if msg.BodyHTML != "<p>rich</p>" {
		t.Errorf("body_html = %q", msg.BodyHTML)
	}
}

func TestParseRawFallsBackToStrippedHTML(t *testing.T) {
	payload := &out.MessagePart{
		MimeType: "text/html",
		Data:     b64("<div>Hello <b>world</b></div>"),
	}

	msg := ParseRaw("u1", rawMsg(nil, payload))
	if msg.BodyText != "Hello world" {
		t.Errorf("body_text = %q, want %q", msg.BodyText, "Hello world")
	}
}

func TestParseRawSentinelWhenUndecodable(t *testing.T) {
	tests := []struct {
		name    string
		payload *out.MessagePart
	}{
		{"no payload", nil},
		{"garbage base64", &out.MessagePart{MimeType: "text/plain", Data: "!!not base64!!"}},
		{"html strips to nothing", &out.MessagePart{MimeType: "text/html", Data: b64("<style>p{color:red}</style>")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ParseRaw("u1", rawMsg(nil, tt.payload))
			if msg.BodyText != domain.BodyParseSentinel {
				t.Errorf("body_text = %q, want sentinel", msg.BodyText)
			}
		})
	}
}

func TestDecodeBody(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte("padded?"))
	unpadded := base64.RawURLEncoding.EncodeToString([]byte("unpadded"))

	if got, ok := decodeBody(padded); !ok || got != "padded?" {
		t.Errorf("padded decode = %q, %v", got, ok)
	}
	if got, ok := decodeBody(unpadded); !ok || got != "unpadded" {
		t.Errorf("unpadded decode = %q, %v", got, ok)
	}
	if _, ok := decodeBody("%%%"); ok {
		t.Error("garbage decoded successfully")
	}

	// invalid UTF-8 reinterpreted as latin-1: 0xE9 is é
	latin1 := base64.URLEncoding.EncodeToString([]byte{'c', 'a', 'f', 0xE9})
	if got, ok := decodeBody(latin1); !ok || got != "café" {
		t.Errorf("latin-1 decode = %q, %v, want café", got, ok)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tags removed", "<p>Hello <b>world</b></p>", "Hello world"},
		{"script dropped", "before<script>var x = '<p>hi</p>';</script>after", "before after"},
		{"style dropped", "<style>body { color: red }</style>visible", "visible"},
		{"entities unescaped", "Tom &amp; Jerry &lt;3", "Tom & Jerry <3"},
		{"whitespace collapsed", "a\n\n  b\t\tc", "a b c"},
		{"case-insensitive blocks", "<SCRIPT>x</SCRIPT>kept", "kept"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.in); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripHTMLNoTags(t *testing.T) {
	in := strings.Repeat("plain text ", 3)
	want := strings.TrimSpace(in)
	if got := StripHTML(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
