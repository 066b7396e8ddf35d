package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
)

// fakeLLM replays scripted completions in order.
type fakeLLM struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeLLM) Complete(_ context.Context, _, _ string, _ int, _ float64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func testMessage() *domain.Message {
	return &domain.Message{
		ID:       "m1",
		UserID:   "u1",
		Sender:   "alice@example.com",
		Subject:  "Deploy window tonight",
		BodyText: "Can you confirm the deploy window for tonight?",
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"uppercase tag", "```JSON\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	r, err := parseAnalysis(`{"urgency_score":4,"purpose":"action_required","response_needed":true,"estimated_minutes":10}`)
	if err != nil {
		t.Fatalf("parseAnalysis: %v", err)
	}
	if r.Urgency != 4 || r.Purpose != "action_required" || !r.ResponseNeeded || r.EstimatedMinutes != 10 {
		t.Errorf("result = %+v", r)
	}

	// urgency clamped to 1..5
	r, err = parseAnalysis(`{"urgency_score":9,"purpose":"alert"}`)
	if err != nil {
		t.Fatalf("parseAnalysis: %v", err)
	}
	if r.Urgency != 5 {
		t.Errorf("urgency = %d, want clamped 5", r.Urgency)
	}
	r, _ = parseAnalysis(`{"urgency_score":0,"purpose":"alert"}`)
	if r.Urgency != 1 {
		t.Errorf("urgency = %d, want clamped 1", r.Urgency)
	}

	// empty purpose defaults to unknown
	r, _ = parseAnalysis(`{"urgency_score":3}`)
	if r.Purpose != domain.PurposeUnknown {
		t.Errorf("purpose = %s, want unknown", r.Purpose)
	}

	if _, err := parseAnalysis("not json at all"); err == nil {
		t.Error("malformed response parsed")
	}
}

func TestAnalyze(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"```json\n{\"urgency_score\":5,\"purpose\":\"alert\",\"response_needed\":true}\n```",
	}}
	svc := NewService(llm, Config{})

	r, err := svc.Analyze(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if r.Urgency != 5 || r.Purpose != "alert" || !r.ResponseNeeded {
		t.Errorf("result = %+v", r)
	}
	if llm.calls != 1 {
		t.Errorf("llm calls = %d, want 1", llm.calls)
	}
}

func TestAnalyzeRetriesMalformedJSONOnce(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"Sorry, here is your analysis:",
		`{"urgency_score":2,"purpose":"promotion"}`,
	}}
	svc := NewService(llm, Config{})

	r, err := svc.Analyze(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if r.Purpose != "promotion" {
		t.Errorf("purpose = %s, want promotion", r.Purpose)
	}
	if llm.calls != 2 {
		t.Errorf("llm calls = %d, want 2", llm.calls)
	}
}

func TestAnalyzeWithoutLLM(t *testing.T) {
	svc := NewService(nil, Config{})
	if svc.Available() {
		t.Error("service available without an LLM")
	}
	r, err := svc.Analyze(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if r != nil {
		t.Errorf("result = %+v, want nil", r)
	}
}

func TestCleanSummary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Alice asks about the deploy window.", "Alice asks about the deploy window."},
		{"lead-in stripped", "Here is the summary: Alice asks about the deploy.", "Alice asks about the deploy."},
		{"case-insensitive lead-in", "SUMMARY: short one.", "short one."},
		{"list marker stripped", "- Alice asks about the deploy.", "Alice asks about the deploy."},
		{"whitespace trimmed", "   padded   ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanSummary(tt.in); got != tt.want {
				t.Errorf("CleanSummary(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	llm := &fakeLLM{responses: []string{"Here's the summary: Deploy confirmed for tonight."}}
	svc := NewService(llm, Config{})

	got := svc.Summarize(context.Background(), testMessage(), domain.SummaryBrief)
	if got != "Deploy confirmed for tonight." {
		t.Errorf("summary = %q", got)
	}

	// failures come back as sentinels, never as errors
	errSvc := NewService(&fakeLLM{err: errors.New("boom")}, Config{})
	if got := errSvc.Summarize(context.Background(), testMessage(), domain.SummaryBrief); got[:6] != "Error:" {
		t.Errorf("summary = %q, want Error sentinel", got)
	}
	noLLM := NewService(nil, Config{})
	if got := noLLM.Summarize(context.Background(), testMessage(), domain.SummaryBrief); got != "Error: summarizer unavailable" {
		t.Errorf("summary = %q", got)
	}
}
