package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
)

type fakeActivities struct {
	mu      sync.Mutex
	entries []*domain.ActivityEntry
}

func (f *fakeActivities) Append(_ context.Context, entry *domain.ActivityEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeActivities) ListRecent(_ context.Context, _ string, _ int) ([]*domain.ActivityEntry, error) {
	return nil, nil
}

func (f *fakeActivities) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

var _ domain.ActivityRepository = (*fakeActivities)(nil)

func TestPublishFanOutAndMirror(t *testing.T) {
	activities := &fakeActivities{}
	adapter := NewSSEAdapter(activities, zerolog.Nop())

	ch := adapter.Subscribe("u1")
	adapter.Publish("u1", out.NewEvent(out.EventClassification, map[string]any{"message_id": "m1"}))

	select {
	case ev := <-ch:
		if ev.Type != out.EventClassification {
			t.Errorf("event type = %q, want %q", ev.Type, out.EventClassification)
		}
	default:
		t.Fatal("no event delivered to subscriber")
	}
	if activities.count() != 1 {
		t.Errorf("activity mirror count = %d, want 1", activities.count())
	}
	if !adapter.IsConnected("u1") {
		t.Error("IsConnected = false for subscribed user")
	}

	adapter.Unsubscribe("u1", ch)
	if adapter.IsConnected("u1") {
		t.Error("IsConnected = true after unsubscribe")
	}
}

// Metrics counters are bumped outside the client lock, so concurrent
// publishers must not race on them.
func TestPublishConcurrentMetrics(t *testing.T) {
	activities := &fakeActivities{}
	adapter := NewSSEAdapter(activities, zerolog.Nop())
	adapter.Subscribe("u1") // never drained, so the buffer eventually fills

	const publishers = 8
	const perPublisher = 100

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				adapter.Publish("u1", out.NewEvent(out.EventSuggestion, nil))
			}
		}()
	}
	wg.Wait()

	metrics := adapter.GetMetrics()
	total := metrics.EventsSent + metrics.EventsDropped
	if total != publishers*perPublisher {
		t.Errorf("sent+dropped = %d, want %d", total, publishers*perPublisher)
	}
	if metrics.EventsDropped == 0 {
		t.Error("expected drops once the subscriber buffer filled")
	}
	if metrics.TotalConnections != 1 || metrics.ConnectedUsers != 1 {
		t.Errorf("connections = %d/%d, want 1/1", metrics.TotalConnections, metrics.ConnectedUsers)
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	activities := &fakeActivities{}
	adapter := NewSSEAdapter(activities, zerolog.Nop())

	adapter.Publish("ghost", out.NewEvent(out.EventSystemStatusUpdate, nil))

	// still mirrored for late joiners, but no send or drop counted
	if activities.count() != 1 {
		t.Errorf("activity mirror count = %d, want 1", activities.count())
	}
	metrics := adapter.GetMetrics()
	if metrics.EventsSent != 0 || metrics.EventsDropped != 0 {
		t.Errorf("metrics = %d sent, %d dropped, want 0/0", metrics.EventsSent, metrics.EventsDropped)
	}
}
