package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
)

// leading phrases the model tends to prepend despite instructions
var summaryPrefixes = []string{
	"here is the summary:",
	"here's the summary:",
	"here is a summary:",
	"here's a summary:",
	"summary:",
	"sure, here is the summary:",
	"the summary is:",
}

func summaryInstruction(t domain.SummaryType) string {
	switch t {
	case domain.SummaryBrief:
		return "Summarize this email in one sentence."
	case domain.SummaryDetailed:
		return "Summarize this email in detail, covering every substantive point, in at most two paragraphs."
	case domain.SummaryActionFocused:
		return "Summarize this email focusing on what the recipient is being asked to do, by whom, and by when."
	default:
		return "Summarize this email in 2-3 sentences."
	}
}

// Summarize returns the cleaned summary text, or a sentinel starting with
// "Error: " when every attempt failed. It never returns an error because
// the pipeline persists the record regardless.
func (s *Service) Summarize(ctx context.Context, msg *domain.Message, summaryType domain.SummaryType) string {
	if s.llm == nil {
		return "Error: summarizer unavailable"
	}

	body := truncate(msg.BodyText, s.cfg.SummaryMaxInputChars)
	system := "You summarize emails. Output only the summary text, no preamble."
	user := fmt.Sprintf("%s\n\nFrom: %s\nSubject: %s\n\n%s",
		summaryInstruction(summaryType), msg.Sender, msg.Subject, body)

	raw, err := s.llm.Complete(ctx, system, user, s.cfg.SummaryMaxTokens, s.cfg.SummaryTemperature)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	out := CleanSummary(raw)
	if out == "" {
		return "Error: empty summary"
	}
	return out
}

// CleanSummary strips common lead-in phrases and leading list markers.
func CleanSummary(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range summaryPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			lower = strings.ToLower(s)
		}
	}
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(s, marker) {
			s = strings.TrimSpace(s[len(marker):])
		}
	}
	return s
}
