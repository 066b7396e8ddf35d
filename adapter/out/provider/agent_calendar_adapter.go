package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// Google Calendar Adapter
// =============================================================================

// DraftPrefix marks events the agent created without confirmation.
const DraftPrefix = "[DRAFT by TriageAgent] "

// CalendarAdapter implements out.CalendarPort. It shares the Gmail
// adapter's OAuth config and token store.
type CalendarAdapter struct {
	gmail *GmailAdapter
	log   zerolog.Logger

	mu       sync.RWMutex
	services map[string]*calendar.Service
}

func NewCalendarAdapter(gmail *GmailAdapter, log zerolog.Logger) *CalendarAdapter {
	return &CalendarAdapter{
		gmail:    gmail,
		log:      log.With().Str("component", "calendar").Logger(),
		services: make(map[string]*calendar.Service),
	}
}

func (a *CalendarAdapter) service(ctx context.Context, userID string) (*calendar.Service, error) {
	a.mu.RLock()
	svc, ok := a.services[userID]
	a.mu.RUnlock()
	if ok {
		return svc, nil
	}

	token, err := a.gmail.tokens.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	svc, err = calendar.NewService(ctx, option.WithTokenSource(a.gmail.config.TokenSource(ctx, token)))
	if err != nil {
		return nil, apperr.ProviderError("create calendar service", err)
	}

	a.mu.Lock()
	a.services[userID] = svc
	a.mu.Unlock()
	return svc, nil
}

// CreateDraftEvent inserts the event with the draft prefix and returns
// the created event ID.
func (a *CalendarAdapter) CreateDraftEvent(ctx context.Context, userID string, event out.CalendarEvent) (string, error) {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return "", err
	}

	attendees := make([]*calendar.EventAttendee, 0, len(event.Attendees))
	for _, addr := range event.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: addr})
	}

	callCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	created, err := svc.Events.Insert("primary", &calendar.Event{
		Summary:     DraftPrefix + event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       &calendar.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: event.End.Format(time.RFC3339)},
		Attendees:   attendees,
	}).Context(callCtx).Do()
	if err != nil {
		return "", mapGoogleError("create draft event", err)
	}

	a.log.Info().Str("user_id", userID).Str("event_id", created.Id).Msg("draft event created")
	return created.Id, nil
}

var _ out.CalendarPort = (*CalendarAdapter)(nil)
