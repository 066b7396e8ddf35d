// Package analysis holds the LLM-backed content services: structured
// analysis, summaries, suggestions, task and meeting extraction, and the
// daily digest builder.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/retry"
)

// Result is the analyzer's structured output.
type Result struct {
	Urgency          int            `json:"urgency_score"`
	Purpose          domain.Purpose `json:"purpose"`
	ResponseNeeded   bool           `json:"response_needed"`
	EstimatedMinutes int            `json:"estimated_minutes"`
}

type Config struct {
	Model                 string
	AnalysisMaxInputChars int
	SummaryMaxInputChars  int
	AnalysisMaxTokens     int
	SummaryMaxTokens      int
	AnalysisTemperature   float64
	SummaryTemperature    float64
}

// Service wraps the LLM port with prompt construction, truncation, strict
// JSON parsing, and the analyzer retry schedule.
type Service struct {
	llm out.LLMPort
	cfg Config
}

func NewService(llm out.LLMPort, cfg Config) *Service {
	if cfg.AnalysisMaxInputChars == 0 {
		cfg.AnalysisMaxInputChars = 4000
	}
	if cfg.SummaryMaxInputChars == 0 {
		cfg.SummaryMaxInputChars = 6000
	}
	if cfg.AnalysisMaxTokens == 0 {
		cfg.AnalysisMaxTokens = 350
	}
	if cfg.SummaryMaxTokens == 0 {
		cfg.SummaryMaxTokens = 300
	}
	return &Service{llm: llm, cfg: cfg}
}

// Available reports whether an LLM is wired.
func (s *Service) Available() bool { return s.llm != nil }

const analyzerSystem = `You are an email triage analyst. Respond with a single JSON object and nothing else. Schema:
{"urgency_score": int 1-5, "purpose": one of ["promotion","transactional","social","alert","personal","forum_digest","action_required","information","action request","question","meeting_invite"], "response_needed": bool, "estimated_minutes": int}`

// Analyze produces the structured analysis for one message, or an error
// after the retry schedule is exhausted. A nil LLM yields (nil, nil).
func (s *Service) Analyze(ctx context.Context, msg *domain.Message) (*Result, error) {
	if s.llm == nil {
		return nil, nil
	}

	body := truncate(msg.BodyText, s.cfg.AnalysisMaxInputChars)
	user := fmt.Sprintf("From: %s\nSubject: %s\n\n%s", msg.Sender, msg.Subject, body)

	var result *Result
	policy := retry.WithSchedule(5*time.Second, 10*time.Second, 20*time.Second)
	err := policy.Do(ctx, func() error {
		raw, err := s.llm.Complete(ctx, analyzerSystem, user, s.cfg.AnalysisMaxTokens, s.cfg.AnalysisTemperature)
		if err != nil {
			return err
		}
		r, err := parseAnalysis(raw)
		if err != nil {
			// one more attempt on malformed JSON
			raw, err2 := s.llm.Complete(ctx, analyzerSystem, user, s.cfg.AnalysisMaxTokens, s.cfg.AnalysisTemperature)
			if err2 != nil {
				return err2
			}
			if r, err = parseAnalysis(raw); err != nil {
				return err
			}
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parseAnalysis(raw string) (*Result, error) {
	cleaned := StripFences(raw)
	var r Result
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("analysis response: %w", err)
	}
	if r.Urgency < 1 {
		r.Urgency = 1
	}
	if r.Urgency > 5 {
		r.Urgency = 5
	}
	if r.Purpose == "" {
		r.Purpose = domain.PurposeUnknown
	}
	return &r, nil
}

// StripFences removes a surrounding markdown code fence, with or without
// a language tag, so fenced JSON parses.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// drop the language tag line ("json", "JSON", or empty)
		first := strings.TrimSpace(s[:i])
		if first == "" || len(first) <= 8 {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}
