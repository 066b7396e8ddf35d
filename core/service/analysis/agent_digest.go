package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
)

// DigestConfig tunes the daily agenda synthesis.
type DigestConfig struct {
	Tone        string // "brief" | "detailed"
	IncludeLow  bool
	MaxMessages int
}

// ComposeDigest builds the daily summary body from the last day's
// CRITICAL/HIGH messages. Without an LLM it falls back to a plain list so
// the daily draft still goes out.
func (s *Service) ComposeDigest(ctx context.Context, msgs []*domain.Message, cfg DigestConfig) (string, error) {
	if len(msgs) == 0 {
		return "No critical or high-priority email in the last 24 hours.", nil
	}
	if cfg.MaxMessages > 0 && len(msgs) > cfg.MaxMessages {
		msgs = msgs[:cfg.MaxMessages]
	}

	sorted := make([]*domain.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority.Rank() != sorted[j].Priority.Rank() {
			return sorted[i].Priority.Rank() < sorted[j].Priority.Rank()
		}
		return sorted[i].ReceivedAt.After(sorted[j].ReceivedAt)
	})

	var b strings.Builder
	for _, m := range sorted {
		line := fmt.Sprintf("- [%s] %s - %s (%s)", m.Priority, m.Sender, m.Subject,
			m.ReceivedAt.Format("15:04 MST"))
		if m.Summary != nil && *m.Summary != "" {
			line += ": " + *m.Summary
		}
		b.WriteString(line + "\n")
	}

	if s.llm == nil {
		return "Your priority email from the last 24 hours:\n\n" + b.String(), nil
	}

	tone := "Keep it short and scannable."
	if cfg.Tone == "detailed" {
		tone = "Cover each item with enough context to act without opening the email."
	}
	system := fmt.Sprintf("You write a morning email digest for its recipient. %s Output plain text suitable for an email body.", tone)
	user := fmt.Sprintf("Date: %s\nItems:\n%s", time.Now().UTC().Format("2006-01-02"), b.String())

	raw, err := s.llm.Complete(ctx, system, user, s.cfg.SummaryMaxTokens*2, s.cfg.SummaryTemperature)
	if err != nil {
		// fall back to the plain list rather than dropping the digest
		return "Your priority email from the last 24 hours:\n\n" + b.String(), nil
	}
	return strings.TrimSpace(raw), nil
}
