// Package memory is the per-user profile access layer: lazy defaults on
// first read, partial merges on write, interaction counters.
package memory

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
)

type Service struct {
	profiles domain.ProfileRepository
	log      zerolog.Logger
}

func NewService(profiles domain.ProfileRepository, log zerolog.Logger) *Service {
	return &Service{profiles: profiles, log: log.With().Str("component", "memory").Logger()}
}

// Profile returns the user's profile, creating defaults on first access.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	return s.profiles.GetOrCreate(ctx, userID)
}

// UpdatePreferences merges the given preference fields. Callers pass
// dotted paths ("agent_preferences.allow_auto_archiving"); full-document
// overwrites are not possible through this surface.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return s.profiles.Merge(ctx, userID, fields)
}

// RecordInteraction bumps a named interaction counter.
func (s *Service) RecordInteraction(ctx context.Context, userID, pattern string) {
	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("interaction counter read failed")
		return
	}
	count := profile.InteractionPatterns[pattern]
	err = s.profiles.Merge(ctx, userID, map[string]any{
		"interaction_patterns." + pattern: count + 1,
		"updated_at":                      time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("interaction counter write failed")
	}
}

// MarkTaskRun records the completion time of one autonomous task.
func (s *Service) MarkTaskRun(ctx context.Context, userID string, task domain.AutonomousTask, at time.Time) error {
	return s.profiles.MarkTaskRun(ctx, userID, task, at)
}

// SetRunSummary stores the human-readable summary of the last
// autonomous run.
func (s *Service) SetRunSummary(ctx context.Context, userID, summary string) error {
	return s.profiles.Merge(ctx, userID, map[string]any{
		"last_autonomous_run_summary": summary,
		"updated_at":                  time.Now().UTC(),
	})
}
