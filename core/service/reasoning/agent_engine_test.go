package reasoning

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/analysis"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/classifier"
)

type fakeAnalyzer struct {
	result *analysis.Result
	calls  int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, msg *domain.Message) (*analysis.Result, error) {
	f.calls++
	return f.result, nil
}

func (f *fakeAnalyzer) Available() bool { return true }

type fakePredictor struct {
	label string
	conf  float64
	ok    bool
}

func (f *fakePredictor) Predict(classifier.Features) (string, float64, bool) {
	return f.label, f.conf, f.ok
}

func testConfig() Config {
	return Config{
		Enabled:              true,
		HybridLLM:            true,
		SubjectKeywordsHigh:  []string{"urgent", "asap"},
		SubjectKeywordsLow:   []string{"unsubscribe", "sale"},
		SenderKeywordsLow:    []string{"noreply", "newsletter"},
		MLConfidenceOverride: 0.7,
		Thresholds: domain.AutonomyThresholds{
			Archive:        0.95,
			Label:          0.85,
			PriorityAdjust: 0.80,
			Suggestion:     0.70,
		},
	}
}

func msg(sender, subject string) *domain.Message {
	return &domain.Message{ID: "m1", UserID: "u1", Sender: sender, Subject: subject, BodyText: "body"}
}

func TestFeedbackShortCircuitSkipsLLM(t *testing.T) {
	az := &fakeAnalyzer{result: &analysis.Result{Urgency: 5, ResponseNeeded: true}}
	e := NewEngine(testConfig(), az, nil, zerolog.Nop())

	fb := domain.FeedbackMap{"boss@acme.com": domain.PriorityHigh}
	record, _ := e.Classify(context.Background(), msg(`"Acme Boss" <boss@acme.com>`, "numbers"), fb, nil)

	if record.Priority != domain.PriorityHigh {
		t.Fatalf("priority = %s, want HIGH", record.Priority)
	}
	if record.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want 0.95", record.Confidence)
	}
	if record.DecisionMethod != domain.DecisionFeedbackHistory {
		t.Fatalf("decision_method = %s, want feedback_history", record.DecisionMethod)
	}
	if az.calls != 0 {
		t.Fatalf("analyzer called %d times, want 0", az.calls)
	}
	if len(record.Chain) != 1 || record.Chain[0].StepType != domain.StepFeedbackCheck {
		t.Fatalf("chain = %+v, want single feedback_check step", record.Chain)
	}
}

func TestCriticalSenderRuleWinsOverLLM(t *testing.T) {
	cfg := testConfig()
	cfg.ImportantSenders = []string{"@bigco.com"}
	az := &fakeAnalyzer{result: &analysis.Result{
		Urgency: 2, Purpose: domain.PurposeInformation, ResponseNeeded: false, EstimatedMinutes: 3,
	}}
	e := NewEngine(cfg, az, nil, zerolog.Nop())

	record, _ := e.Classify(context.Background(), msg("x <y@bigco.com>", "hello"), nil, nil)

	if record.Priority != domain.PriorityCritical {
		t.Fatalf("priority = %s, want CRITICAL", record.Priority)
	}
	if record.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want 0.95", record.Confidence)
	}
	if record.DecisionMethod != domain.DecisionCriticalSender {
		t.Fatalf("decision_method = %s", record.DecisionMethod)
	}
}

func TestUserImportantSendersJoinConfigList(t *testing.T) {
	e := NewEngine(testConfig(), nil, nil, zerolog.Nop())
	record, _ := e.Classify(context.Background(), msg("Jo <jo@home.net>", "hi"), nil, []string{"jo@home.net"})
	if record.Priority != domain.PriorityCritical {
		t.Fatalf("priority = %s, want CRITICAL from user list", record.Priority)
	}
}

func TestClassifierOverridesLLMAboveFloor(t *testing.T) {
	az := &fakeAnalyzer{result: &analysis.Result{Urgency: 4}}
	pred := &fakePredictor{label: "LOW", conf: 0.85, ok: true}
	e := NewEngine(testConfig(), az, pred, zerolog.Nop())

	record, _ := e.Classify(context.Background(), msg("a <a@b.com>", "weekly notes"), nil, nil)

	if record.Priority != domain.PriorityLow {
		t.Fatalf("priority = %s, want LOW from classifier", record.Priority)
	}
	if record.Confidence != 0.85 {
		t.Fatalf("confidence = %v, want model confidence 0.85", record.Confidence)
	}
	if record.DecisionMethod != domain.DecisionClassifier {
		t.Fatalf("decision_method = %s", record.DecisionMethod)
	}
}

func TestLowConfidenceClassifierFallsThroughToLLM(t *testing.T) {
	az := &fakeAnalyzer{result: &analysis.Result{Urgency: 4}}
	pred := &fakePredictor{label: "LOW", conf: 0.55, ok: true}
	e := NewEngine(testConfig(), az, pred, zerolog.Nop())

	record, _ := e.Classify(context.Background(), msg("a <a@b.com>", "plan"), nil, nil)

	if record.Priority != domain.PriorityHigh {
		t.Fatalf("priority = %s, want HIGH from llm table", record.Priority)
	}
	if record.DecisionMethod != domain.DecisionLLMAnalysis {
		t.Fatalf("decision_method = %s", record.DecisionMethod)
	}
}

func TestLLMDecisionTable(t *testing.T) {
	tests := []struct {
		name     string
		result   analysis.Result
		wantPrio domain.Priority
		wantConf float64
	}{
		{
			name:     "critical when maxed urgency and long response",
			result:   analysis.Result{Urgency: 5, ResponseNeeded: true, EstimatedMinutes: 15},
			wantPrio: domain.PriorityCritical,
			wantConf: 0.90,
		},
		{
			name:     "high on urgency four",
			result:   analysis.Result{Urgency: 4},
			wantPrio: domain.PriorityHigh,
			wantConf: 0.85,
		},
		{
			name:     "high when response needed for action request",
			result:   analysis.Result{Urgency: 2, ResponseNeeded: true, Purpose: domain.PurposeActionRequest},
			wantPrio: domain.PriorityHigh,
			wantConf: 0.85,
		},
		{
			name:     "medium on meeting invite",
			result:   analysis.Result{Urgency: 1, Purpose: domain.PurposeMeetingInvite},
			wantPrio: domain.PriorityMedium,
			wantConf: 0.80,
		},
		{
			name:     "low otherwise",
			result:   analysis.Result{Urgency: 1, Purpose: domain.PurposePromotion},
			wantPrio: domain.PriorityLow,
			wantConf: 0.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			az := &fakeAnalyzer{result: &tt.result}
			e := NewEngine(testConfig(), az, nil, zerolog.Nop())
			record, _ := e.Classify(context.Background(), msg("a <a@b.com>", "plain subject"), nil, nil)
			if record.Priority != tt.wantPrio {
				t.Fatalf("priority = %s, want %s", record.Priority, tt.wantPrio)
			}
			if record.Confidence != tt.wantConf {
				t.Fatalf("confidence = %v, want %v", record.Confidence, tt.wantConf)
			}
		})
	}
}

func TestHighKeywordBumpsLLMChoice(t *testing.T) {
	az := &fakeAnalyzer{result: &analysis.Result{Urgency: 1, Purpose: domain.PurposePromotion}}
	e := NewEngine(testConfig(), az, nil, zerolog.Nop())

	record, _ := e.Classify(context.Background(), msg("a <a@b.com>", "URGENT renewal"), nil, nil)

	if record.Priority != domain.PriorityHigh {
		t.Fatalf("priority = %s, want HIGH after keyword bump", record.Priority)
	}
	if record.Confidence != 0.80 {
		t.Fatalf("confidence = %v, want 0.75+0.05", record.Confidence)
	}
}

func TestLowKeywordPenalty(t *testing.T) {
	az := &fakeAnalyzer{result: &analysis.Result{Urgency: 3}}
	e := NewEngine(testConfig(), az, nil, zerolog.Nop())

	record, _ := e.Classify(context.Background(), msg("a <a@b.com>", "flash sale today"), nil, nil)

	if record.Priority != domain.PriorityLow {
		t.Fatalf("priority = %s, want LOW after keyword penalty", record.Priority)
	}
	if record.Confidence != 0.75 {
		t.Fatalf("confidence = %v, want 0.80-0.05", record.Confidence)
	}
}

func TestNoLLMDefaultsToMedium(t *testing.T) {
	e := NewEngine(testConfig(), nil, nil, zerolog.Nop())
	record, _ := e.Classify(context.Background(), msg("a <a@b.com>", "plain subject"), nil, nil)

	if record.Priority != domain.PriorityMedium {
		t.Fatalf("priority = %s, want MEDIUM", record.Priority)
	}
	if record.Confidence != 0.50 {
		t.Fatalf("confidence = %v, want 0.50", record.Confidence)
	}
	if record.DecisionMethod != domain.DecisionDefault {
		t.Fatalf("decision_method = %s", record.DecisionMethod)
	}
}

func TestNoLLMKeywordOnly(t *testing.T) {
	e := NewEngine(testConfig(), nil, nil, zerolog.Nop())

	record, _ := e.Classify(context.Background(), msg("a <a@b.com>", "asap please"), nil, nil)
	if record.Priority != domain.PriorityHigh || record.Confidence != 0.60 {
		t.Fatalf("got %s@%v, want HIGH@0.60", record.Priority, record.Confidence)
	}

	record, _ = e.Classify(context.Background(), msg("noreply@shop.com", "receipt"), nil, nil)
	if record.Priority != domain.PriorityLow || record.Confidence != 0.60 {
		t.Fatalf("got %s@%v, want LOW@0.60", record.Priority, record.Confidence)
	}
}

func TestMissingModelRecordedInChain(t *testing.T) {
	e := NewEngine(testConfig(), nil, nil, zerolog.Nop())
	record, _ := e.Classify(context.Background(), msg("a <a@b.com>", "plain"), nil, nil)

	found := false
	for _, step := range record.Chain {
		if step.Description == "ML model not available" {
			found = true
		}
	}
	if !found {
		t.Fatal("chain should note the missing model")
	}
}

func TestAutonomyGate(t *testing.T) {
	e := NewEngine(testConfig(), nil, nil, zerolog.Nop())
	prefs := domain.AgentPreferences{
		AutonomousModeEnabled: true,
		AllowAutoArchiving:    true,
		AllowAutoCategorize:   true,
	}

	tests := []struct {
		name       string
		confidence float64
		kind       domain.ActionKind
		prefs      domain.AgentPreferences
		want       bool
	}{
		{"archive above threshold", 0.96, domain.ActionKindArchive, prefs, true},
		{"archive at threshold", 0.95, domain.ActionKindArchive, prefs, true},
		{"archive below threshold", 0.94, domain.ActionKindArchive, prefs, false},
		{"archive disabled by profile", 0.99, domain.ActionKindArchive, domain.AgentPreferences{}, false},
		{"label above threshold", 0.90, domain.ActionKindLabel, prefs, true},
		{"priority adjust", 0.81, domain.ActionKindPriorityAdjust, prefs, true},
		{"suggestion", 0.70, domain.ActionKindSuggestion, domain.AgentPreferences{}, true},
		{"suggestion below", 0.69, domain.ActionKindSuggestion, prefs, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &domain.ReasoningRecord{Confidence: tt.confidence}
			if got := e.Authorizes(record, tt.kind, tt.prefs); got != tt.want {
				t.Fatalf("Authorizes(%s, conf=%v) = %t, want %t", tt.kind, tt.confidence, got, tt.want)
			}
		})
	}
}

func TestConfidenceAlwaysInUnitInterval(t *testing.T) {
	cases := []*analysis.Result{
		{Urgency: 5, ResponseNeeded: true, EstimatedMinutes: 60},
		{Urgency: 1},
		nil,
	}
	for _, res := range cases {
		var az Analyzer
		if res != nil {
			az = &fakeAnalyzer{result: res}
		}
		e := NewEngine(testConfig(), az, nil, zerolog.Nop())
		record, _ := e.Classify(context.Background(), msg("a <a@b.com>", "urgent sale"), nil, nil)
		if record.Confidence < 0 || record.Confidence > 1 {
			t.Fatalf("confidence %v out of [0,1]", record.Confidence)
		}
	}
}
