// Package reasoning implements the explainable weighted decision chain
// that assigns each message a priority, a confidence, and a recorded
// trace of how the label was reached.
package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/analysis"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/classifier"
)

// Analyzer is the slice of the analysis service the engine needs.
type Analyzer interface {
	Analyze(ctx context.Context, msg *domain.Message) (*analysis.Result, error)
	Available() bool
}

// Predictor is the trained classifier surface. ok=false when no model
// is loaded.
type Predictor interface {
	Predict(f classifier.Features) (label string, confidence float64, ok bool)
}

// Config carries the rule inputs and decision thresholds.
type Config struct {
	Enabled             bool
	HybridLLM           bool
	ImportantSenders    []string
	SenderKeywordsLow   []string
	SubjectKeywordsLow  []string
	SubjectKeywordsHigh []string
	Thresholds          domain.AutonomyThresholds
	// MLConfidenceOverride is the classifier-probability floor above
	// which the model's label wins over the LLM table.
	MLConfidenceOverride float64
}

// Engine runs the decision chain. Analyzer and predictor are optional;
// the chain degrades to rules and defaults without them.
type Engine struct {
	cfg       Config
	analyzer  Analyzer
	predictor Predictor
	log       zerolog.Logger
}

func NewEngine(cfg Config, analyzer Analyzer, predictor Predictor, log zerolog.Logger) *Engine {
	if cfg.MLConfidenceOverride == 0 {
		cfg.MLConfidenceOverride = 0.7
	}
	return &Engine{cfg: cfg, analyzer: analyzer, predictor: predictor, log: log.With().Str("component", "reasoning").Logger()}
}

// Classify produces the reasoning record for one message. The returned
// analysis is nil when feedback short-circuited or no LLM ran; callers
// that need it invoke the analyzer themselves.
func (e *Engine) Classify(ctx context.Context, msg *domain.Message, fb domain.FeedbackMap, userImportant []string) (*domain.ReasoningRecord, *analysis.Result) {
	chain := make([]domain.ReasoningStep, 0, 6)

	// 1. Feedback short-circuit.
	senderKey := domain.SenderKey(msg.Sender)
	if prio, ok := fb[senderKey]; ok {
		step := domain.ReasoningStep{
			StepType:    domain.StepFeedbackCheck,
			Description: fmt.Sprintf("sender %q previously corrected to %s", senderKey, prio),
			Weight:      1.0,
			Confidence:  0.95,
			Result:      string(prio),
			Details:     map[string]any{"sender_key": senderKey},
		}
		return finalize(prio, 0.95, domain.DecisionFeedbackHistory, append(chain, step)), nil
	}

	// 2. LLM analysis.
	var llmResult *analysis.Result
	if e.cfg.HybridLLM && e.analyzer != nil && e.analyzer.Available() {
		res, err := e.analyzer.Analyze(ctx, msg)
		if err != nil {
			e.log.Warn().Err(err).Str("message_id", msg.ID).Msg("llm analysis failed, continuing without it")
		} else if res != nil {
			llmResult = res
			conf := llmConfidence(res.Urgency)
			chain = append(chain, domain.ReasoningStep{
				StepType:    domain.StepLLMAnalysis,
				Description: fmt.Sprintf("llm: urgency %d/5, purpose %s, response_needed %t", res.Urgency, res.Purpose, res.ResponseNeeded),
				Weight:      0.8,
				Confidence:  conf,
				Result:      string(res.Purpose),
				Details: map[string]any{
					"urgency":           res.Urgency,
					"response_needed":   res.ResponseNeeded,
					"estimated_minutes": res.EstimatedMinutes,
				},
			})
		}
	}

	// 3. Classifier prediction.
	var mlLabel domain.Priority
	var mlConf float64
	var mlOK bool
	if e.predictor != nil {
		features := buildFeatures(msg, llmResult)
		if label, conf, ok := e.predictor.Predict(features); ok {
			mlLabel, mlConf, mlOK = domain.ParsePriority(label), conf, true
			chain = append(chain, domain.ReasoningStep{
				StepType:    domain.StepMLPrediction,
				Description: fmt.Sprintf("classifier predicts %s (p=%.2f)", mlLabel, conf),
				Weight:      0.7,
				Confidence:  0.75,
				Result:      string(mlLabel),
				Details:     map[string]any{"model_confidence": conf},
			})
		}
	}

	// 4. Critical-sender rule.
	criticalHit := false
	for _, rule := range union(e.cfg.ImportantSenders, userImportant) {
		if matchSenderRule(rule, msg) {
			criticalHit = true
			chain = append(chain, domain.ReasoningStep{
				StepType:    domain.StepRuleMatch,
				Description: fmt.Sprintf("sender matches important-sender rule %q", rule),
				Weight:      0.9,
				Confidence:  0.95,
				Result:      string(domain.PriorityCritical),
				Details:     map[string]any{"rule": rule},
			})
			break
		}
	}

	// 5. Keyword rules.
	lowHit, highHit := false, false
	senderLower := strings.ToLower(msg.Sender)
	subjectLower := strings.ToLower(msg.Subject)
	for _, kw := range e.cfg.SenderKeywordsLow {
		if kw != "" && strings.Contains(senderLower, strings.ToLower(kw)) {
			lowHit = true
			chain = append(chain, keywordStep("sender", kw, domain.PriorityLow, 0.4))
		}
	}
	for _, kw := range e.cfg.SubjectKeywordsLow {
		if kw != "" && strings.Contains(subjectLower, strings.ToLower(kw)) {
			lowHit = true
			chain = append(chain, keywordStep("subject", kw, domain.PriorityLow, 0.4))
		}
	}
	for _, kw := range e.cfg.SubjectKeywordsHigh {
		if kw != "" && strings.Contains(subjectLower, strings.ToLower(kw)) {
			highHit = true
			chain = append(chain, keywordStep("subject", kw, domain.PriorityHigh, 0.5))
		}
	}

	// 6. Unified decision, first match wins.
	if criticalHit {
		return finalize(domain.PriorityCritical, 0.95, domain.DecisionCriticalSender, chain), llmResult
	}
	if mlOK && mlConf > e.cfg.MLConfidenceOverride {
		return finalize(mlLabel, mlConf, domain.DecisionClassifier, chain), llmResult
	}
	if !mlOK {
		chain = append(chain, domain.ReasoningStep{
			StepType:    domain.StepMLPrediction,
			Description: "ML model not available",
			Result:      "skipped",
		})
	}
	if llmResult != nil {
		prio, conf := llmDecision(llmResult)
		if highHit && prio != domain.PriorityCritical {
			prio = domain.PriorityHigh
			conf = clamp(conf+0.05, 0.60, 0.95)
		}
		if lowHit && prio != domain.PriorityCritical && prio != domain.PriorityHigh {
			prio = domain.PriorityLow
			conf = clamp(conf-0.05, 0.60, 0.95)
		}
		return finalize(prio, conf, domain.DecisionLLMAnalysis, chain), llmResult
	}
	if highHit {
		return finalize(domain.PriorityHigh, 0.60, domain.DecisionKeywordRules, chain), llmResult
	}
	if lowHit {
		return finalize(domain.PriorityLow, 0.60, domain.DecisionKeywordRules, chain), llmResult
	}
	return finalize(domain.PriorityMedium, 0.50, domain.DecisionDefault, chain), llmResult
}

// Authorizes applies the autonomy gate: confidence threshold AND the
// matching profile toggle.
func (e *Engine) Authorizes(record *domain.ReasoningRecord, kind domain.ActionKind, prefs domain.AgentPreferences) bool {
	if !record.Authorizes(kind, e.cfg.Thresholds) {
		return false
	}
	switch kind {
	case domain.ActionKindArchive:
		return prefs.AllowAutoArchiving
	case domain.ActionKindLabel:
		return prefs.AllowAutoCategorize
	case domain.ActionKindPriorityAdjust:
		return prefs.AutonomousModeEnabled
	case domain.ActionKindSuggestion:
		return true
	}
	return false
}

// llmConfidence maps urgency onto the chain confidence for the LLM step.
func llmConfidence(urgency int) float64 {
	c := float64(urgency)/5.0*0.8 + 0.2
	if c > 0.9 {
		c = 0.9
	}
	return c
}

// llmDecision is the urgency/purpose decision table.
func llmDecision(r *analysis.Result) (domain.Priority, float64) {
	actionable := isActionRequest(r.Purpose) || r.Purpose == domain.PurposeQuestion
	switch {
	case r.Urgency >= 5 && r.ResponseNeeded && r.EstimatedMinutes > 10:
		return domain.PriorityCritical, 0.90
	case r.Urgency >= 4 || (r.ResponseNeeded && actionable):
		return domain.PriorityHigh, 0.85
	case r.Urgency >= 3 || actionable || r.Purpose == domain.PurposeMeetingInvite || r.ResponseNeeded:
		return domain.PriorityMedium, 0.80
	default:
		return domain.PriorityLow, 0.75
	}
}

func isActionRequest(p domain.Purpose) bool {
	return p == domain.PurposeActionRequest || p == domain.PurposeActionRequired
}

func matchSenderRule(rule string, msg *domain.Message) bool {
	rule = strings.TrimSpace(strings.ToLower(rule))
	if rule == "" {
		return false
	}
	if strings.HasPrefix(rule, "@") {
		return msg.SenderDomain() == rule[1:]
	}
	return strings.Contains(strings.ToLower(msg.Sender), rule)
}

func keywordStep(field, keyword string, result domain.Priority, weight float64) domain.ReasoningStep {
	return domain.ReasoningStep{
		StepType:    domain.StepRuleMatch,
		Description: fmt.Sprintf("%s contains keyword %q", field, keyword),
		Weight:      weight,
		Confidence:  0.8,
		Result:      string(result),
		Details:     map[string]any{"field": field, "keyword": keyword},
	}
}

func buildFeatures(msg *domain.Message, llmResult *analysis.Result) classifier.Features {
	purpose := domain.PurposeUnknown
	urgency := 0
	if llmResult != nil {
		purpose = llmResult.Purpose
		urgency = llmResult.Urgency
	}
	return classifier.BuildFeatures(msg, purpose, urgency)
}

func finalize(prio domain.Priority, conf float64, method domain.DecisionMethod, chain []domain.ReasoningStep) *domain.ReasoningRecord {
	explanation := make([]string, 0, len(chain))
	factors := make(map[string]float64, len(chain))
	for _, step := range chain {
		explanation = append(explanation, step.Description)
		if step.Weight > 0 {
			factors[string(step.StepType)] = step.Weight
		}
	}
	return &domain.ReasoningRecord{
		Priority:        prio,
		Confidence:      clamp(conf, 0, 1),
		DecisionMethod:  method,
		Explanation:     explanation,
		DecisionFactors: factors,
		Chain:           chain,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
