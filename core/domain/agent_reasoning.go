package domain

// StepType tags one link of the reasoning chain.
type StepType string

const (
	StepFeedbackCheck StepType = "feedback_check"
	StepLLMAnalysis   StepType = "llm_analysis"
	StepMLPrediction  StepType = "ml_prediction"
	StepRuleMatch     StepType = "rule_match"
)

// DecisionMethod records which stage settled the final label.
type DecisionMethod string

const (
	DecisionFeedbackHistory DecisionMethod = "feedback_history"
	DecisionCriticalSender  DecisionMethod = "critical_sender_rule"
	DecisionClassifier      DecisionMethod = "ml_classifier"
	DecisionLLMAnalysis     DecisionMethod = "llm_analysis"
	DecisionKeywordRules    DecisionMethod = "keyword_rules"
	DecisionDefault         DecisionMethod = "default"
)

// ReasoningStep is one recorded stage of the decision chain. Steps are
// appended in execution order and never mutated afterwards.
type ReasoningStep struct {
	StepType    StepType       `json:"step_type" bson:"step_type"`
	Description string         `json:"description" bson:"description"`
	Weight      float64        `json:"weight" bson:"weight"`
	Confidence  float64        `json:"confidence" bson:"confidence"`
	Result      string         `json:"result" bson:"result"`
	Details     map[string]any `json:"details,omitempty" bson:"details,omitempty"`
}

// ReasoningRecord is the persisted, explainable trace of a classification.
type ReasoningRecord struct {
	Priority        Priority           `json:"priority" bson:"priority"`
	Confidence      float64            `json:"confidence" bson:"confidence"`
	DecisionMethod  DecisionMethod     `json:"decision_method" bson:"decision_method"`
	Explanation     []string           `json:"explanation" bson:"explanation"`
	DecisionFactors map[string]float64 `json:"decision_factors" bson:"decision_factors"`
	Chain           []ReasoningStep    `json:"chain" bson:"chain"`
}

// ActionKind is an autonomy-gated side-effect category.
type ActionKind string

const (
	ActionKindArchive        ActionKind = "archive"
	ActionKindLabel          ActionKind = "label"
	ActionKindPriorityAdjust ActionKind = "priority_adjust"
	ActionKindSuggestion     ActionKind = "suggestion"
)

// AutonomyThresholds holds the per-kind confidence floors.
type AutonomyThresholds struct {
	Archive        float64
	Label          float64
	PriorityAdjust float64
	Suggestion     float64
}

// For returns the threshold for kind; unknown kinds never authorize.
func (t AutonomyThresholds) For(kind ActionKind) float64 {
	switch kind {
	case ActionKindArchive:
		return t.Archive
	case ActionKindLabel:
		return t.Label
	case ActionKindPriorityAdjust:
		return t.PriorityAdjust
	case ActionKindSuggestion:
		return t.Suggestion
	default:
		return 1.01
	}
}

// Authorizes reports whether the record's confidence clears the gate for
// kind. Profile toggles are checked separately by the caller.
func (r *ReasoningRecord) Authorizes(kind ActionKind, t AutonomyThresholds) bool {
	return r.Confidence >= t.For(kind)
}
