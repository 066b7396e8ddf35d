// Package realtime provides the server-sent-events broadcaster.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
)

// =============================================================================
// SSE Adapter - EventPublisherPort 구현
// =============================================================================

// SSEAdapter implements out.EventPublisherPort using Server-Sent Events.
// Every published event is also mirrored to the activity log so clients
// that connect late can reconstruct recent state.
type SSEAdapter struct {
	clients    map[string]map[chan out.Event]struct{} // userID -> channels
	mu         sync.RWMutex
	activities domain.ActivityRepository
	log        zerolog.Logger

	// Metrics, bumped outside the client lock
	eventsSent    atomic.Int64
	eventsDropped atomic.Int64
}

// NewSSEAdapter creates a new SSE adapter.
func NewSSEAdapter(activities domain.ActivityRepository, log zerolog.Logger) *SSEAdapter {
	return &SSEAdapter{
		clients:    make(map[string]map[chan out.Event]struct{}),
		activities: activities,
		log:        log.With().Str("component", "sse_adapter").Logger(),
	}
}

// Subscribe creates a new subscription channel for a user.
func (a *SSEAdapter) Subscribe(userID string) <-chan out.Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan out.Event, 256) // Buffer for backpressure

	if a.clients[userID] == nil {
		a.clients[userID] = make(map[chan out.Event]struct{})
	}
	a.clients[userID][ch] = struct{}{}

	a.log.Debug().
		Str("user_id", userID).
		Int("total_connections", len(a.clients[userID])).
		Msg("client subscribed")

	return ch
}

// Unsubscribe removes a subscription channel.
func (a *SSEAdapter) Unsubscribe(userID string, ch <-chan out.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if channels, ok := a.clients[userID]; ok {
		for c := range channels {
			if c == ch {
				delete(channels, c)
				close(c)
				break
			}
		}
		if len(channels) == 0 {
			delete(a.clients, userID)
		}
	}

	a.log.Debug().
		Str("user_id", userID).
		Msg("client unsubscribed")
}

// Publish fans an event out to all of a user's connections and mirrors
// it to the activity log. Slow consumers are dropped, not blocked on.
func (a *SSEAdapter) Publish(userID string, event out.Event) {
	a.mirror(userID, event)

	a.mu.RLock()
	channels, ok := a.clients[userID]
	if !ok || len(channels) == 0 {
		a.mu.RUnlock()
		return
	}

	// Copy channels to avoid holding lock during send
	chList := make([]chan out.Event, 0, len(channels))
	for ch := range channels {
		chList = append(chList, ch)
	}
	a.mu.RUnlock()

	for _, ch := range chList {
		select {
		case ch <- event:
			a.eventsSent.Add(1)
		default:
			// Channel full, drop event (backpressure)
			a.eventsDropped.Add(1)
			a.log.Warn().
				Str("user_id", userID).
				Str("event_type", event.Type).
				Msg("dropped event due to full buffer")
		}
	}
}

// mirror writes the event into activities. Mirroring failures are logged
// and swallowed: broadcast must not depend on store availability.
func (a *SSEAdapter) mirror(userID string, event out.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	entry := &domain.ActivityEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      event.Type,
		Status:    domain.ActivityCompleted,
		Details:   event.Data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.activities.Append(ctx, entry); err != nil {
		a.log.Warn().Err(err).
			Str("user_id", userID).
			Str("event_type", event.Type).
			Msg("failed to mirror event to activity log")
	}
}

// ConnectedCount returns the number of connected users.
func (a *SSEAdapter) ConnectedCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.clients)
}

// IsConnected checks if a user has active connections.
func (a *SSEAdapter) IsConnected(userID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	channels, ok := a.clients[userID]
	return ok && len(channels) > 0
}

// GetMetrics returns adapter metrics.
func (a *SSEAdapter) GetMetrics() SSEMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	totalConnections := 0
	for _, channels := range a.clients {
		totalConnections += len(channels)
	}

	return SSEMetrics{
		ConnectedUsers:   len(a.clients),
		TotalConnections: totalConnections,
		EventsSent:       a.eventsSent.Load(),
		EventsDropped:    a.eventsDropped.Load(),
	}
}

// SSEMetrics holds SSE adapter metrics.
type SSEMetrics struct {
	ConnectedUsers   int   `json:"connected_users"`
	TotalConnections int   `json:"total_connections"`
	EventsSent       int64 `json:"events_sent"`
	EventsDropped    int64 `json:"events_dropped"`
}

// =============================================================================
// SSE Hub - HTTP Handler 연결용
// =============================================================================

// SSEHub manages SSE connections for HTTP handlers.
type SSEHub struct {
	adapter *SSEAdapter
	log     zerolog.Logger

	heartbeatInterval time.Duration
}

// NewSSEHub creates a new SSE hub.
func NewSSEHub(adapter *SSEAdapter, log zerolog.Logger) *SSEHub {
	return &SSEHub{
		adapter:           adapter,
		log:               log.With().Str("component", "sse_hub").Logger(),
		heartbeatInterval: 30 * time.Second,
	}
}

// CreateClient creates a new SSE client for a user.
func (h *SSEHub) CreateClient(userID string) *SSEClient {
	eventCh := h.adapter.Subscribe(userID)

	return &SSEClient{
		UserID: userID,
		Events: eventCh,
		Done:   make(chan struct{}),
		hub:    h,
	}
}

// RemoveClient removes an SSE client.
func (h *SSEHub) RemoveClient(client *SSEClient) {
	h.adapter.Unsubscribe(client.UserID, client.Events)
}

// SSEClient represents an SSE client connection.
type SSEClient struct {
	UserID string
	Events <-chan out.Event
	Done   chan struct{}
	hub    *SSEHub
}

// Close closes the client connection.
func (c *SSEClient) Close() {
	close(c.Done)
	c.hub.RemoveClient(c)
}

// HeartbeatInterval returns the heartbeat interval.
func (c *SSEClient) HeartbeatInterval() time.Duration {
	return c.hub.heartbeatInterval
}

// =============================================================================
// Event Serialization
// =============================================================================

// SerializeEvent converts an event to its SSE data payload.
func SerializeEvent(event out.Event) ([]byte, error) {
	return json.Marshal(event)
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.EventPublisherPort = (*SSEAdapter)(nil)
