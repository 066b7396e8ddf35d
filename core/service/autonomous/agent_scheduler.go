// Package autonomous runs the periodic background tasks the user has
// delegated: archiving stale low-value mail, the daily digest, follow-up
// detection, re-evaluating unknowns, and meeting preparation.
package autonomous

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/actions"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/analysis"
)

// =============================================================================
// Autonomous Scheduler
// =============================================================================

// UserLister enumerates the accounts the scheduler may act for.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// TaskConfig is one task's gate and cadence.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Config carries per-task settings.
type Config struct {
	Tick time.Duration

	AutoArchive     TaskConfig
	DailySummary    TaskConfig
	FollowUp        TaskConfig
	ReEvaluate      TaskConfig
	MeetingPrep     TaskConfig
	ArchiveAfter    time.Duration // message age before auto-archive
	ArchiveExcluded []string      // senders or domains never archived
	ArchiveMax      int           // per-run archive bound
	SummaryHourUTC  int
	RemindDays      int
	ReEvaluateMax   int
	MeetingMinConf  float64
}

func (c *Config) withDefaults() {
	if c.Tick == 0 {
		c.Tick = 10 * time.Minute
	}
	if c.ArchiveAfter == 0 {
		c.ArchiveAfter = 7 * 24 * time.Hour
	}
	if c.ArchiveMax == 0 {
		c.ArchiveMax = 25
	}
	if c.RemindDays == 0 {
		c.RemindDays = 3
	}
	if c.ReEvaluateMax == 0 {
		c.ReEvaluateMax = 20
	}
	if c.MeetingMinConf == 0 {
		c.MeetingMinConf = 0.75
	}
}

// Scheduler runs delegated tasks per user on a tick. Every task checks
// its own cadence against the profile's recorded last run and records a
// new last run only after completing.
type Scheduler struct {
	cfg      Config
	users    UserLister
	mail     out.MailProviderPort
	calendar out.CalendarPort
	messages domain.MessageRepository
	tasks    domain.TaskRepository
	profiles domain.ProfileRepository
	analyzer *analysis.Service
	queue    *actions.Service
	events   out.EventPublisherPort
	log      zerolog.Logger
}

func NewScheduler(
	cfg Config,
	users UserLister,
	mail out.MailProviderPort,
	calendar out.CalendarPort,
	messages domain.MessageRepository,
	tasks domain.TaskRepository,
	profiles domain.ProfileRepository,
	analyzer *analysis.Service,
	queue *actions.Service,
	events out.EventPublisherPort,
	log zerolog.Logger,
) *Scheduler {
	cfg.withDefaults()
	return &Scheduler{
		cfg:      cfg,
		users:    users,
		mail:     mail,
		calendar: calendar,
		messages: messages,
		tasks:    tasks,
		profiles: profiles,
		analyzer: analyzer,
		queue:    queue,
		events:   events,
		log:      log.With().Str("component", "autonomous").Logger(),
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.log.Info().Dur("tick", s.cfg.Tick).Msg("autonomous scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("autonomous scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every due task for every known user.
func (s *Scheduler) RunOnce(ctx context.Context) {
	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("could not list users")
		return
	}
	for _, userID := range userIDs {
		if err := s.RunForUser(ctx, userID); err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("autonomous run failed")
		}
	}
}

// task binds one autonomous task name to its runner.
type task struct {
	name domain.AutonomousTask
	cfg  TaskConfig
	run  func(ctx context.Context, userID string, profile *domain.UserProfile) (string, error)
}

// RunForUser executes every enabled, due task for one user and records a
// human-readable run summary on the profile.
func (s *Scheduler) RunForUser(ctx context.Context, userID string) error {
	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	if !profile.AgentPreferences.AutonomousModeEnabled {
		return nil
	}

	now := time.Now().UTC()
	all := []task{
		{domain.TaskAutoArchive, s.cfg.AutoArchive, s.autoArchive},
		{domain.TaskDailySummary, s.cfg.DailySummary, s.dailySummary},
		{domain.TaskFollowUp, s.cfg.FollowUp, s.followUp},
		{domain.TaskReEvaluate, s.cfg.ReEvaluate, s.reEvaluateUnknowns},
		{domain.TaskMeetingPrep, s.cfg.MeetingPrep, s.meetingPrep},
	}

	var summary []string
	for _, t := range all {
		if !t.cfg.Enabled {
			continue
		}
		if since := now.Sub(profile.LastRun(t.name)); since < t.cfg.Interval {
			continue
		}

		outcome, err := t.run(ctx, userID, profile)
		if err != nil {
			s.log.Warn().Err(err).
				Str("user_id", userID).
				Str("task", string(t.name)).
				Msg("task failed")
			s.events.Publish(userID, out.NewEvent(out.EventAutonomousAction, map[string]any{
				"action":  string(t.name),
				"details": out.Truncate("failed: "+err.Error(), 200),
			}))
			continue
		}

		if err := s.profiles.MarkTaskRun(ctx, userID, t.name, now); err != nil {
			s.log.Warn().Err(err).Str("task", string(t.name)).Msg("could not record task run")
		}
		if outcome != "" {
			summary = append(summary, fmt.Sprintf("%s: %s", t.name, outcome))
			s.events.Publish(userID, out.NewEvent(out.EventAutonomousAction, map[string]any{
				"action":  string(t.name),
				"details": out.Truncate(outcome, 200),
			}))
		}
	}

	if len(summary) > 0 {
		line := now.Format("2006-01-02 15:04 UTC") + " - " + strings.Join(summary, "; ")
		if err := s.profiles.Merge(ctx, userID, map[string]any{"last_autonomous_run_summary": line}); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("could not record run summary")
		}
	}
	return nil
}

// autoArchive enqueues archive actions for stale low-value mail.
func (s *Scheduler) autoArchive(ctx context.Context, userID string, profile *domain.UserProfile) (string, error) {
	if !profile.AgentPreferences.AllowAutoArchiving {
		return "", nil
	}

	cutoff := time.Now().UTC().Add(-s.cfg.ArchiveAfter)
	notArchived := false

	lowPrio, err := s.messages.List(ctx, domain.MessageFilter{
		UserID:         userID,
		Priorities:     []domain.Priority{domain.PriorityLow},
		ReceivedBefore: &cutoff,
		IsArchived:     &notArchived,
		Limit:          s.cfg.ArchiveMax,
	})
	if err != nil {
		return "", err
	}
	promos, err := s.messages.List(ctx, domain.MessageFilter{
		UserID:         userID,
		Purposes:       []domain.Purpose{domain.PurposePromotion},
		ReceivedBefore: &cutoff,
		IsArchived:     &notArchived,
		Limit:          s.cfg.ArchiveMax,
	})
	if err != nil {
		return "", err
	}

	seen := make(map[string]struct{})
	enqueued := 0
	for _, msg := range append(lowPrio, promos...) {
		if enqueued >= s.cfg.ArchiveMax {
			break
		}
		if _, dup := seen[msg.ID]; dup {
			continue
		}
		seen[msg.ID] = struct{}{}
		if s.excludedSender(msg) {
			continue
		}
		if _, err := s.queue.Enqueue(ctx, userID, domain.ActionArchive, msg.ID, nil); err != nil {
			s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("could not enqueue auto-archive")
			continue
		}
		enqueued++
	}

	if enqueued == 0 {
		return "", nil
	}
	return fmt.Sprintf("queued %d archive(s)", enqueued), nil
}

func (s *Scheduler) excludedSender(msg *domain.Message) bool {
	addr := domain.ExtractAddress(msg.Sender)
	dom := msg.SenderDomain()
	for _, ex := range s.cfg.ArchiveExcluded {
		ex = strings.ToLower(strings.TrimSpace(ex))
		if ex == "" {
			continue
		}
		if strings.HasPrefix(ex, "@") {
			if dom == ex[1:] {
				return true
			}
			continue
		}
		if strings.Contains(addr, ex) {
			return true
		}
	}
	return false
}

// dailySummary drafts the morning digest to the user's own address at
// the configured UTC hour.
func (s *Scheduler) dailySummary(ctx context.Context, userID string, profile *domain.UserProfile) (string, error) {
	if !profile.AgentPreferences.DailySummaryEnabled {
		return "", nil
	}
	if time.Now().UTC().Hour() != s.cfg.SummaryHourUTC {
		return "", nil
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	priorities := []domain.Priority{domain.PriorityCritical, domain.PriorityHigh}
	if profile.AgendaSynthesis.IncludeLowPriority {
		priorities = append(priorities, domain.PriorityMedium, domain.PriorityLow)
	}
	msgs, err := s.messages.List(ctx, domain.MessageFilter{
		UserID:        userID,
		Priorities:    priorities,
		ReceivedAfter: &since,
	})
	if err != nil {
		return "", err
	}

	digestCfg := analysis.DigestConfig{
		Tone:        profile.AgendaSynthesis.Tone,
		IncludeLow:  profile.AgendaSynthesis.IncludeLowPriority,
		MaxMessages: profile.AgendaSynthesis.MaxMessages,
	}
	if digestCfg.Tone == "" {
		digestCfg.Tone = "brief"
	}
	if digestCfg.MaxMessages == 0 {
		digestCfg.MaxMessages = 30
	}
	body, err := s.analyzer.ComposeDigest(ctx, msgs, digestCfg)
	if err != nil {
		return "", err
	}

	// the user id doubles as the account address at the provider
	_, err = s.queue.Enqueue(ctx, userID, domain.ActionSendDraft, "", map[string]any{
		"to":      userID,
		"subject": "Your daily email summary - " + time.Now().UTC().Format("Jan 2"),
		"body":    body,
		"is_html": false,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("digest drafted covering %d message(s)", len(msgs)), nil
}

// followUp creates a follow_up_needed task for sent messages that never
// got a reply.
func (s *Scheduler) followUp(ctx context.Context, userID string, _ *domain.UserProfile) (string, error) {
	lookback := s.cfg.RemindDays + 15
	query := fmt.Sprintf("newer_than:%dd", lookback)
	refs, err := s.mail.ListMessages(ctx, userID, []string{"SENT"}, query, 100)
	if err != nil {
		return "", err
	}

	remindCutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RemindDays)
	created := 0
	for _, ref := range refs {
		metas, err := s.mail.ListThreadMessages(ctx, userID, ref.ThreadID)
		if err != nil {
			s.log.Warn().Err(err).Str("thread_id", ref.ThreadID).Msg("could not read thread")
			continue
		}

		var sentAt time.Time
		answered := false
		for _, meta := range metas {
			if meta.ID == ref.ID {
				sentAt = meta.InternalDate
				break
			}
		}
		if sentAt.IsZero() || sentAt.After(remindCutoff) {
			continue
		}
		for _, meta := range metas {
			if meta.InternalDate.After(sentAt) {
				answered = true
				break
			}
		}
		if answered {
			continue
		}

		exists, err := s.tasks.ExistsByRelated(ctx, userID, domain.TaskTypeFollowUp, ref.ID)
		if err != nil || exists {
			continue
		}
		task := &domain.Task{
			ID:               uuid.NewString(),
			UserID:           userID,
			TaskType:         domain.TaskTypeFollowUp,
			Description:      fmt.Sprintf("No reply after %d days on a message you sent; consider following up.", s.cfg.RemindDays),
			RelatedMessageID: ref.ID,
			CreationMethod:   "autonomous",
			Status:           domain.TaskStatusPending,
			CreatedAt:        time.Now().UTC(),
		}
		if err := s.tasks.Create(ctx, task); err != nil {
			s.log.Warn().Err(err).Str("message_id", ref.ID).Msg("could not create follow-up task")
			continue
		}
		created++
	}

	if created == 0 {
		return "", nil
	}
	return fmt.Sprintf("%d follow-up reminder(s)", created), nil
}

// reEvaluateUnknowns re-runs the analyzer over messages whose purpose
// never resolved.
func (s *Scheduler) reEvaluateUnknowns(ctx context.Context, userID string, _ *domain.UserProfile) (string, error) {
	if !s.analyzer.Available() {
		return "", nil
	}

	msgs, err := s.messages.List(ctx, domain.MessageFilter{
		UserID:   userID,
		Purposes: []domain.Purpose{domain.PurposeUnknown},
		Limit:    s.cfg.ReEvaluateMax,
	})
	if err != nil {
		return "", err
	}

	updated := 0
	for _, msg := range msgs {
		res, err := s.analyzer.Analyze(ctx, msg)
		if err != nil || res == nil || res.Purpose == domain.PurposeUnknown {
			continue
		}
		now := time.Now().UTC()
		err = s.messages.UpdateFields(ctx, userID, msg.ID, map[string]any{
			"purpose":           string(res.Purpose),
			"urgency":           res.Urgency,
			"response_needed":   res.ResponseNeeded,
			"estimated_minutes": res.EstimatedMinutes,
			"reclassified_at":   now,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("could not store re-evaluation")
			continue
		}
		updated++
	}

	if updated == 0 {
		return "", nil
	}
	return fmt.Sprintf("resolved %d unknown purpose(s)", updated), nil
}

// meetingPrep drafts calendar events for high-priority meeting-like
// messages. A meeting-purposed message is marked processed regardless of
// outcome so it is never retried.
func (s *Scheduler) meetingPrep(ctx context.Context, userID string, _ *domain.UserProfile) (string, error) {
	if !s.analyzer.Available() || s.calendar == nil {
		return "", nil
	}

	msgs, err := s.messages.List(ctx, domain.MessageFilter{
		UserID:         userID,
		Priorities:     []domain.Priority{domain.PriorityCritical, domain.PriorityHigh},
		MeetingPending: true,
		Limit:          10,
	})
	if err != nil {
		return "", err
	}

	drafted := 0
	for _, msg := range msgs {
		if !msg.Purpose.SuggestsMeeting() {
			continue
		}
		event, confidence, err := s.analyzer.ExtractMeeting(ctx, msg)
		if err == nil && event != nil && confidence >= s.cfg.MeetingMinConf {
			if _, cerr := s.calendar.CreateDraftEvent(ctx, userID, *event); cerr != nil {
				s.log.Warn().Err(cerr).Str("message_id", msg.ID).Msg("could not create draft event")
			} else {
				drafted++
			}
		}

		// never reprocess, even when extraction failed
		if uerr := s.messages.UpdateFields(ctx, userID, msg.ID, map[string]any{"meeting_processed": true}); uerr != nil {
			s.log.Warn().Err(uerr).Str("message_id", msg.ID).Msg("could not mark meeting processed")
		}
	}

	if drafted == 0 {
		return "", nil
	}
	return fmt.Sprintf("%d draft event(s)", drafted), nil
}
