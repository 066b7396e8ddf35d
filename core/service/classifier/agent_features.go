// Package classifier implements the trained priority model: feature
// extraction, a TF-IDF + one-hot vector pipeline, a multinomial logistic
// model with class balancing, and JSON artifact persistence.
package classifier

import (
	"strings"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
)

// Features is the model's input row for one message.
type Features struct {
	Text         string  `json:"text_features"`
	LLMPurpose   string  `json:"llm_purpose"`
	SenderDomain string  `json:"sender_domain"`
	LLMUrgency   float64 `json:"llm_urgency"`
}

// BuildFeatures derives the feature row from a message plus the analyzer
// output when present. Missing analysis yields Unknown purpose and a
// neutral urgency.
func BuildFeatures(msg *domain.Message, purpose domain.Purpose, urgency int) Features {
	if purpose == "" {
		purpose = domain.PurposeUnknown
	}
	if urgency == 0 {
		urgency = 3
	}
	return Features{
		Text:         strings.ToLower(msg.Subject + " " + msg.BodyText),
		LLMPurpose:   string(purpose),
		SenderDomain: msg.SenderDomain(),
		LLMUrgency:   float64(urgency),
	}
}
