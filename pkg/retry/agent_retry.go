// Package retry implements the retry policy shared by all external calls:
// a retryability predicate plus a pure backoff schedule, executed as a loop.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// Policy describes how an operation is retried.
type Policy struct {
	MaxAttempts int
	Backoff     []time.Duration
	Retryable   func(error) bool
}

// Default returns the standard policy: 3 retries at 2s/4s/8s, transient
// errors only. Rate-limit (429) and client (4xx) errors never retry.
func Default() Policy {
	return Policy{
		MaxAttempts: 4,
		Backoff:     []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second},
		Retryable:   IsRetryable,
	}
}

// WithSchedule returns a policy with a custom backoff schedule.
func WithSchedule(backoff ...time.Duration) Policy {
	return Policy{
		MaxAttempts: len(backoff) + 1,
		Backoff:     backoff,
		Retryable:   IsRetryable,
	}
}

// Do runs fn under the policy. The final error is returned unwrapped so
// callers can inspect it.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.Backoff[min(attempt-1, len(p.Backoff)-1)]
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !p.Retryable(err) {
			return err
		}
	}
	return err
}

// IsRetryable classifies an error as transient. Deadline and network
// errors retry; application errors retry only when explicitly marked.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == apperr.CodeRateLimited {
			return false
		}
		return appErr.Retryable
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
