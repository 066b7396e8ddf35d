// Package feedback records user corrections and builds the
// latest-per-sender map consumed by the reasoning engine.
package feedback

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

const (
	mapCacheKeyPrefix = "triage:feedback_map:"
	mapCacheTTL       = 5 * time.Minute
)

type Service struct {
	feedbacks domain.FeedbackRepository
	messages  domain.MessageRepository
	cache     *redis.Client // optional, nil means no caching
	log       zerolog.Logger
}

func NewService(feedbacks domain.FeedbackRepository, messages domain.MessageRepository, cache *redis.Client, log zerolog.Logger) *Service {
	return &Service{
		feedbacks: feedbacks,
		messages:  messages,
		cache:     cache,
		log:       log.With().Str("component", "feedback").Logger(),
	}
}

// Record appends one correction. The sender key is denormalized from the
// referenced message so map rebuilds never need a join.
func (s *Service) Record(ctx context.Context, userID, messageID string, correctedPriority *domain.Priority, correctedPurpose *domain.Purpose) (*domain.Feedback, error) {
	msg, err := s.messages.GetByID(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, apperr.NotFound("message")
	}
	if correctedPriority != nil && !correctedPriority.Valid() {
		return nil, apperr.InvalidInput("corrected_priority", "unknown priority label")
	}

	fb := &domain.Feedback{
		ID:                uuid.NewString(),
		MessageID:         messageID,
		UserID:            userID,
		OriginalPriority:  msg.Priority,
		CorrectedPriority: correctedPriority,
		CorrectedPurpose:  correctedPurpose,
		SenderKey:         domain.SenderKey(msg.Sender),
		CreatedAt:         time.Now().UTC(),
	}
	if msg.Purpose != "" {
		p := msg.Purpose
		fb.OriginalPurpose = &p
	}

	if err := s.feedbacks.Create(ctx, fb); err != nil {
		return nil, err
	}
	s.invalidateMap(ctx, userID)

	s.log.Info().
		Str("user_id", userID).
		Str("message_id", messageID).
		Str("sender_key", fb.SenderKey).
		Msg("feedback recorded")
	return fb, nil
}

// Map returns the latest-correction-per-sender map, served from the Redis
// cache when warm. Called once at pipeline-run start; the result is
// read-only after.
func (s *Service) Map(ctx context.Context, userID string) (domain.FeedbackMap, error) {
	if cached, ok := s.cachedMap(ctx, userID); ok {
		return cached, nil
	}

	rows, err := s.feedbacks.ListByCreatedDesc(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	m := domain.BuildFeedbackMap(rows)
	s.storeMap(ctx, userID, m)
	return m, nil
}

// Count returns the total feedback count, the retraining trigger input.
func (s *Service) Count(ctx context.Context, userID string) (int64, error) {
	return s.feedbacks.Count(ctx, userID)
}

// =============================================================================
// Feedback map cache
// =============================================================================

func (s *Service) cachedMap(ctx context.Context, userID string) (domain.FeedbackMap, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, mapCacheKeyPrefix+userID).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Debug().Err(err).Msg("feedback map cache read failed")
		}
		return nil, false
	}
	var m domain.FeedbackMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

func (s *Service) storeMap(ctx context.Context, userID string, m domain.FeedbackMap) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, mapCacheKeyPrefix+userID, data, mapCacheTTL).Err(); err != nil {
		s.log.Debug().Err(err).Msg("feedback map cache write failed")
	}
}

func (s *Service) invalidateMap(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, mapCacheKeyPrefix+userID).Err(); err != nil {
		s.log.Debug().Err(err).Msg("feedback map cache invalidation failed")
	}
}
