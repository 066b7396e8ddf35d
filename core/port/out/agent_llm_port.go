package out

import "context"

// =============================================================================
// LLM Provider Port
// =============================================================================

// LLMPort is the completion surface shared by analyzer, summarizer,
// suggestion generation, and the digest builder. Callers parse JSON
// strictly; fence stripping happens above this port.
type LLMPort interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}
