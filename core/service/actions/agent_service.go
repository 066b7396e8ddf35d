// Package actions implements the action request queue: enqueueing
// side-effects against the mail provider and the worker that drains them.
package actions

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// Action Queue Service
// =============================================================================

// Service enqueues action requests and serves queue reads.
type Service struct {
	actions domain.ActionRepository
	events  out.EventPublisherPort
	log     zerolog.Logger
}

func NewService(actions domain.ActionRepository, events out.EventPublisherPort, log zerolog.Logger) *Service {
	return &Service{
		actions: actions,
		events:  events,
		log:     log.With().Str("component", "action_queue").Logger(),
	}
}

// Enqueue writes a new pending request and emits action_queued.
func (s *Service) Enqueue(ctx context.Context, userID string, action domain.ActionType, messageID string, params map[string]any) (*domain.ActionRequest, error) {
	switch action {
	case domain.ActionArchive, domain.ActionSendDraft, domain.ActionApplyLabel:
	default:
		return nil, apperr.BadRequest("unknown action type: " + string(action))
	}

	req := &domain.ActionRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		MessageID:   messageID,
		Action:      action,
		Params:      params,
		Status:      domain.ActionPending,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.actions.Create(ctx, req); err != nil {
		return nil, err
	}

	s.events.Publish(userID, out.NewEvent(out.EventActionQueued, map[string]any{
		"action_id":   req.ID,
		"email_id":    req.MessageID,
		"action_type": string(req.Action),
		"status":      string(req.Status),
	}))

	s.log.Info().
		Str("user_id", userID).
		Str("action_id", req.ID).
		Str("action", string(action)).
		Msg("action enqueued")
	return req, nil
}

// Get returns one request for status polling.
func (s *Service) Get(ctx context.Context, userID, requestID string) (*domain.ActionRequest, error) {
	return s.actions.GetByID(ctx, userID, requestID)
}

// decodeParams round-trips the loosely typed params map into a typed
// payload struct.
func decodeParams[T any](params map[string]any) (T, error) {
	var payload T
	raw, err := json.Marshal(params)
	if err != nil {
		return payload, apperr.BadRequest("invalid action params")
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, apperr.BadRequest("invalid action params")
	}
	return payload, nil
}
