// Package pipeline implements the inbox processing run: fetch, parse,
// reason, enrich, persist, one message at a time.
package pipeline

import (
	"encoding/base64"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
)

// =============================================================================
// Raw Message Parsing
// =============================================================================

// ParseRaw converts a fetched provider message into a Message record.
// Body decoding prefers text/plain, falls back to stripped text/html,
// and stores the parse sentinel when every attempt fails. Parsing never
// returns an error: a body that cannot be decoded still yields a record.
func ParseRaw(userID string, raw *out.RawMessage) *domain.Message {
	msg := &domain.Message{
		ID:         raw.ID,
		UserID:     userID,
		ThreadID:   raw.ThreadID,
		Sender:     raw.Headers["From"],
		Subject:    raw.Headers["Subject"],
		Snippet:    raw.Snippet,
		Labels:     raw.LabelIDs,
		ReceivedAt: raw.InternalDate,
		Priority:   domain.PriorityMedium,
		Purpose:    domain.PurposeUnknown,

		IsRead:     !hasLabel(raw.LabelIDs, "UNREAD"),
		IsStarred:  hasLabel(raw.LabelIDs, "STARRED"),
		IsArchived: !hasLabel(raw.LabelIDs, "INBOX"),
	}

	plain, htmlBody := collectBodies(raw.Payload)
	msg.BodyHTML = htmlBody

	switch {
	case plain != "":
		msg.BodyText = plain
	case htmlBody != "":
		if text := StripHTML(htmlBody); strings.TrimSpace(text) != "" {
			msg.BodyText = text
		} else {
			msg.BodyText = domain.BodyParseSentinel
		}
	default:
		msg.BodyText = domain.BodyParseSentinel
	}

	return msg
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// collectBodies walks the MIME tree and returns the first decodable
// text/plain and text/html bodies.
func collectBodies(part *out.MessagePart) (plain, htmlBody string) {
	if part == nil {
		return "", ""
	}

	if part.Data != "" {
		if text, ok := decodeBody(part.Data); ok {
			switch {
			case strings.HasPrefix(part.MimeType, "text/plain") && plain == "":
				plain = text
			case strings.HasPrefix(part.MimeType, "text/html") && htmlBody == "":
				htmlBody = text
			}
		}
	}

	for _, child := range part.Parts {
		p, h := collectBodies(child)
		if plain == "" {
			plain = p
		}
		if htmlBody == "" {
			htmlBody = h
		}
	}
	return plain, htmlBody
}

// decodeBody base64url-decodes a body part. Bytes that are not valid
// UTF-8 are reinterpreted as latin-1 before giving up.
func decodeBody(data string) (string, bool) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return "", false
		}
	}

	if utf8.Valid(decoded) {
		return string(decoded), true
	}
	return latin1ToString(decoded), true
}

// latin1ToString maps each byte to its Unicode code point. Always
// succeeds: latin-1 covers the full byte range.
func latin1ToString(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

// StripHTML extracts readable text from an HTML body: drops script and
// style blocks, removes tags, unescapes entities, collapses whitespace.
func StripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inTag := false
	skipUntil := "" // closing tag of a block whose content is dropped
	i := 0
	for i < len(s) {
		c := s[i]

		if skipUntil != "" {
			if c == '<' && hasPrefixFold(s[i:], skipUntil) {
				i += len(skipUntil)
				skipUntil = ""
				// consume the rest of the closing tag
				for i < len(s) && s[i] != '>' {
					i++
				}
				if i < len(s) {
					i++
				}
				inTag = false
				b.WriteByte(' ')
				continue
			}
			i++
			continue
		}

		if c == '<' {
			switch {
			case hasPrefixFold(s[i:], "<script"):
				skipUntil = "</script"
			case hasPrefixFold(s[i:], "<style"):
				skipUntil = "</style"
			}
			inTag = true
			i++
			continue
		}
		if c == '>' {
			inTag = false
			b.WriteByte(' ')
			i++
			continue
		}
		if !inTag {
			b.WriteByte(c)
		}
		i++
	}

	text := html.UnescapeString(b.String())
	return strings.Join(strings.Fields(text), " ")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
