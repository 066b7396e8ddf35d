package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

func fastPolicy() Policy {
	return WithSchedule(time.Millisecond, time.Millisecond)
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return apperr.ProviderError("fetch", errors.New("502"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	cause := apperr.ProviderError("fetch", errors.New("502"))
	err := fastPolicy().Do(context.Background(), func() error {
		calls++
		return cause
	})
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want the final attempt's error", err)
	}
	if calls != 3 { // MaxAttempts = len(backoff)+1
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnClientError(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func() error {
		calls++
		return apperr.BadRequest("no")
	})
	if err == nil {
		t.Fatal("no error returned")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := WithSchedule(time.Hour) // never reached before cancel
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func() error {
		calls++
		return apperr.Timeout("fetch")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"provider error", apperr.ProviderError("x", errors.New("y")), true},
		{"store error", apperr.StoreError("x", errors.New("y")), true},
		{"timeout", apperr.Timeout("x"), true},
		{"bad request", apperr.BadRequest("x"), false},
		{"not found", apperr.NotFound("x"), false},
		{"rate limited", apperr.RateLimited("openai"), false},
		{"plain error", errors.New("opaque"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
