// Package llm adapts the OpenAI chat completion API to the LLM port.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/resilience"
)

const DefaultModel = "gpt-4o-mini"

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Adapter implements out.LLMPort over go-openai with a circuit breaker
// and a per-call deadline.
type Adapter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *resilience.Breaker
}

func NewAdapter(cfg Config) *Adapter {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	return &Adapter{
		client:  openai.NewClient(cfg.APIKey),
		model:   model,
		timeout: timeout,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("openai")),
	}
}

func (a *Adapter) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	var content string
	err := a.breaker.Execute(func() error {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.model,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: float32(temperature),
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return nil
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", classify(err)
	}
	return content, nil
}

// classify maps provider errors onto the app error taxonomy so the retry
// policy can tell transient failures from rate limits.
func classify(err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return apperr.LLMError("circuit open", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return apperr.RateLimited("openai")
		case apiErr.HTTPStatusCode >= 500:
			return apperr.LLMError("completion", err)
		case apiErr.HTTPStatusCode >= 400:
			e := apperr.LLMError("completion", err)
			e.Retryable = false
			return e
		}
	}
	if strings.Contains(err.Error(), "context deadline exceeded") {
		return apperr.Timeout("llm completion")
	}
	return apperr.LLMError("completion", err)
}
