package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
)

const maxSuggestionsPerMessage = 3

const suggesterSystem = `You propose follow-up actions for a triaged email. Respond with a JSON array of at most 3 objects, nothing else. Schema per object:
{"text": string, "type": one of ["reply","archive","label","schedule","delegate","task"], "confidence": float 0-1}`

// Suggest generates up to three action suggestions for a processed
// message. Failures yield an empty slice; the pipeline fails open.
func (s *Service) Suggest(ctx context.Context, msg *domain.Message) []domain.Suggestion {
	if s.llm == nil {
		return nil
	}

	user := fmt.Sprintf("Priority: %s\nPurpose: %s\nFrom: %s\nSubject: %s\n\n%s",
		msg.Priority, msg.Purpose, msg.Sender, msg.Subject,
		truncate(msg.BodyText, s.cfg.AnalysisMaxInputChars))

	raw, err := s.llm.Complete(ctx, suggesterSystem, user, s.cfg.AnalysisMaxTokens, s.cfg.AnalysisTemperature)
	if err != nil {
		return nil
	}

	var suggestions []domain.Suggestion
	if err := json.Unmarshal([]byte(StripFences(raw)), &suggestions); err != nil {
		return nil
	}
	if len(suggestions) > maxSuggestionsPerMessage {
		suggestions = suggestions[:maxSuggestionsPerMessage]
	}
	out := suggestions[:0]
	for _, sg := range suggestions {
		if strings.TrimSpace(sg.Text) == "" {
			continue
		}
		if sg.Confidence < 0 {
			sg.Confidence = 0
		}
		if sg.Confidence > 1 {
			sg.Confidence = 1
		}
		out = append(out, sg)
	}
	return out
}

// BatchInsights composes a short per-batch overview after a pipeline run.
func (s *Service) BatchInsights(ctx context.Context, msgs []*domain.Message) (string, error) {
	if s.llm == nil || len(msgs) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "- [%s/%s] %s - %s\n", m.Priority, m.Purpose, m.Sender, m.Subject)
	}
	system := "You review a batch of triaged emails and point out patterns worth the user's attention. Respond with 2-4 plain sentences."
	raw, err := s.llm.Complete(ctx, system, b.String(), s.cfg.SummaryMaxTokens, s.cfg.SummaryTemperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}
