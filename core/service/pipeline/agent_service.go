package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/actions"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/analysis"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/feedback"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/reasoning"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// Inbox Processing Service
// =============================================================================

// Config tunes one processing run.
type Config struct {
	MaxResults      int
	MaxSuggestions  int
	AutoArchive     bool
	ArchivePurposes []string
	ArchiveMinConf  float64
	AutoLabels      bool
	AutoTasks       bool
	MailTimeout     time.Duration
	StoreTimeout    time.Duration
}

func (c *Config) withDefaults() {
	if c.MaxResults == 0 {
		c.MaxResults = 25
	}
	if c.MaxSuggestions == 0 {
		c.MaxSuggestions = 3
	}
	if c.ArchiveMinConf == 0 {
		c.ArchiveMinConf = 0.95
	}
	if c.MailTimeout == 0 {
		c.MailTimeout = 20 * time.Second
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = 10 * time.Second
	}
}

// Report summarizes one run.
type Report struct {
	Listed    int    `json:"listed"`
	Skipped   int    `json:"skipped"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Insights  string `json:"insights,omitempty"`
}

// Service orchestrates process_inbox. One run is sequential per message;
// idempotency rests on the store's create-if-absent guard, so concurrent
// runs for the same user converge on one record per message.
type Service struct {
	cfg       Config
	mail      out.MailProviderPort
	messages  domain.MessageRepository
	tasks     domain.TaskRepository
	profiles  domain.ProfileRepository
	state     domain.StateRepository
	feedbacks *feedback.Service
	analyzer  *analysis.Service
	engine    *reasoning.Engine
	queue     *actions.Service
	events    out.EventPublisherPort
	log       zerolog.Logger
}

func NewService(
	cfg Config,
	mail out.MailProviderPort,
	messages domain.MessageRepository,
	tasks domain.TaskRepository,
	profiles domain.ProfileRepository,
	state domain.StateRepository,
	feedbacks *feedback.Service,
	analyzer *analysis.Service,
	engine *reasoning.Engine,
	queue *actions.Service,
	events out.EventPublisherPort,
	log zerolog.Logger,
) *Service {
	cfg.withDefaults()
	return &Service{
		cfg:       cfg,
		mail:      mail,
		messages:  messages,
		tasks:     tasks,
		profiles:  profiles,
		state:     state,
		feedbacks: feedbacks,
		analyzer:  analyzer,
		engine:    engine,
		queue:     queue,
		events:    events,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// ProcessInbox runs one pass over the user's unread inbox. maxResults=0
// uses the configured default.
func (s *Service) ProcessInbox(ctx context.Context, userID string, maxResults int) (*Report, error) {
	if maxResults <= 0 {
		maxResults = s.cfg.MaxResults
	}

	s.setProcessing(ctx, userID, true)
	defer s.setProcessing(ctx, userID, false)

	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	fbMap, err := s.feedbacks.Map(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("feedback map unavailable, continuing without it")
		fbMap = domain.FeedbackMap{}
	}

	refs, err := s.mail.ListMessages(ctx, userID, []string{"INBOX", "UNREAD"}, "", maxResults)
	if err != nil {
		return nil, err
	}

	report := &Report{Listed: len(refs)}
	var processed []*domain.Message

	for _, ref := range refs {
		exists, err := s.messages.Exists(ctx, userID, ref.ID)
		if err != nil {
			s.log.Error().Err(err).Str("message_id", ref.ID).Msg("existence check failed")
			report.Failed++
			continue
		}
		if exists {
			report.Skipped++
			continue
		}

		msg, err := s.processOne(ctx, userID, ref.ID, profile, fbMap)
		if err != nil {
			s.log.Error().Err(err).
				Str("user_id", userID).
				Str("message_id", ref.ID).
				Msg("message processing failed")
			report.Failed++
			continue
		}
		if msg != nil {
			processed = append(processed, msg)
			report.Processed++
		} else {
			// another run persisted this message first
			report.Skipped++
		}
	}

	if len(processed) > 0 {
		if insights, err := s.analyzer.BatchInsights(ctx, processed); err == nil {
			report.Insights = insights
		}
	}

	s.log.Info().
		Str("user_id", userID).
		Int("listed", report.Listed).
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("inbox run complete")
	return report, nil
}

// processOne takes a single unread message through fetch, parse, reason,
// enrich, and persist. Non-fatal enrichment failures are recorded and
// the record still persists; only fetch or persist failures abort.
func (s *Service) processOne(ctx context.Context, userID, messageID string, profile *domain.UserProfile, fbMap domain.FeedbackMap) (*domain.Message, error) {
	raw, err := s.mail.GetMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}

	msg := ParseRaw(userID, raw)
	s.events.Publish(userID, out.NewEvent(out.EventProcessingStarted, map[string]any{
		"email_id": msg.ID,
		"subject":  out.Truncate(msg.Subject, 100),
		"sender":   msg.Sender,
	}))

	// reasoning + analysis
	record, llmResult := s.engine.Classify(ctx, msg, fbMap, profile.EmailPreferences.ImportantSenders)
	if llmResult == nil && s.analyzer.Available() {
		if res, err := s.analyzer.Analyze(ctx, msg); err != nil {
			s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("standalone analysis failed")
		} else {
			llmResult = res
		}
	}

	msg.Priority = record.Priority
	msg.Reasoning = record
	if llmResult != nil {
		msg.Purpose = llmResult.Purpose
		msg.Urgency = llmResult.Urgency
		msg.ResponseNeeded = llmResult.ResponseNeeded
		msg.EstimatedMinutes = llmResult.EstimatedMinutes
	}

	s.events.Publish(userID, out.NewEvent(out.EventClassification, map[string]any{
		"email_id":    msg.ID,
		"priority":    string(msg.Priority),
		"confidence":  record.Confidence,
		"ml_features": record.DecisionFactors,
	}))

	// summary for actionable priorities
	if msg.Priority == domain.PriorityCritical || msg.Priority == domain.PriorityHigh {
		summaryType := domain.SummaryStandard
		if msg.Purpose == domain.PurposeActionRequest || msg.Purpose == domain.PurposeActionRequired {
			summaryType = domain.SummaryActionFocused
		}
		summary := s.analyzer.Summarize(ctx, msg, summaryType)
		msg.Summary = &summary
		msg.SummaryType = summaryType
	}

	s.events.Publish(userID, out.NewEvent(out.EventLLMComplete, map[string]any{
		"email_id":   msg.ID,
		"purpose":    string(msg.Purpose),
		"priority":   string(msg.Priority),
		"urgency":    msg.Urgency,
		"confidence": record.Confidence,
		"summary":    out.Truncate(deref(msg.Summary), 200),
	}))

	// suggestions
	if sugs := s.analyzer.Suggest(ctx, msg); len(sugs) > 0 {
		if len(sugs) > s.cfg.MaxSuggestions {
			sugs = sugs[:s.cfg.MaxSuggestions]
		}
		msg.Suggestions = sugs
		for _, sug := range sugs {
			s.events.Publish(userID, out.NewEvent(out.EventSuggestion, map[string]any{
				"email_id":   msg.ID,
				"suggestion": out.Truncate(sug.Text, 300),
				"type":       sug.Type,
			}))
		}
	}

	// direct auto-archive for low-stakes mail the user has delegated
	s.maybeAutoArchive(ctx, msg, record, profile.AgentPreferences)

	// autonomous task extraction
	if s.cfg.AutoTasks && profile.AgentPreferences.AllowAutoTaskCreation {
		s.extractTasks(ctx, msg)
	}

	msg.ProcessedAt = time.Now().UTC()
	created, err := s.messages.CreateIfAbsent(ctx, msg)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}

	// label categorization runs through the queue; enqueue after the
	// record exists so the worker can find it
	if s.cfg.AutoLabels && s.engine.Authorizes(record, domain.ActionKindLabel, profile.AgentPreferences) {
		labels := []string{
			"Priority/" + string(msg.Priority),
			"Purpose/" + sanitizeLabel(string(msg.Purpose)),
		}
		if _, err := s.queue.Enqueue(ctx, userID, domain.ActionApplyLabel, msg.ID, map[string]any{"labels": labels}); err != nil {
			s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("could not enqueue categorization labels")
		}
	}

	return msg, nil
}

// Reclassify re-runs the decision chain over an already persisted
// message, typically after the user corrected a sender. The new priority
// is written with a reclassification timestamp.
func (s *Service) Reclassify(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, apperr.NotFound("message " + messageID)
	}

	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	fbMap, err := s.feedbacks.Map(ctx, userID)
	if err != nil {
		fbMap = domain.FeedbackMap{}
	}

	record, llmResult := s.engine.Classify(ctx, msg, fbMap, profile.EmailPreferences.ImportantSenders)
	now := time.Now().UTC()
	fields := map[string]any{
		"priority":         string(record.Priority),
		"reasoning_record": record,
		"reclassified_at":  now,
	}
	if llmResult != nil {
		fields["purpose"] = string(llmResult.Purpose)
		fields["urgency"] = llmResult.Urgency
		fields["response_needed"] = llmResult.ResponseNeeded
		fields["estimated_minutes"] = llmResult.EstimatedMinutes
	}
	if err := s.messages.UpdateFields(ctx, userID, messageID, fields); err != nil {
		return nil, err
	}

	msg.Priority = record.Priority
	msg.Reasoning = record
	msg.ReclassifiedAt = &now
	s.events.Publish(userID, out.NewEvent(out.EventClassification, map[string]any{
		"email_id":    msg.ID,
		"priority":    string(record.Priority),
		"confidence":  record.Confidence,
		"ml_features": record.DecisionFactors,
	}))
	return msg, nil
}

// maybeAutoArchive archives directly at the provider when the message is
// low-stakes, the decision is confident, and the user has delegated
// archiving.
func (s *Service) maybeAutoArchive(ctx context.Context, msg *domain.Message, record *domain.ReasoningRecord, prefs domain.AgentPreferences) {
	if !s.cfg.AutoArchive {
		return
	}
	if msg.Priority != domain.PriorityLow && msg.Priority != domain.PriorityMedium {
		return
	}
	if record.Confidence < s.cfg.ArchiveMinConf {
		return
	}
	if !s.engine.Authorizes(record, domain.ActionKindArchive, prefs) {
		return
	}
	if !purposeAllowed(string(msg.Purpose), s.cfg.ArchivePurposes) {
		return
	}

	if err := out.Archive(ctx, s.mail, msg.UserID, msg.ID); err != nil {
		s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("auto-archive failed")
		return
	}
	msg.IsArchived = true

	s.events.Publish(msg.UserID, out.NewEvent(out.EventAutonomousAction, map[string]any{
		"email_id": msg.ID,
		"action":   "archive",
		"details":  out.Truncate("auto-archived ("+string(msg.Purpose)+")", 200),
	}))
}

func (s *Service) extractTasks(ctx context.Context, msg *domain.Message) {
	for _, task := range s.analyzer.ExtractTasks(ctx, msg) {
		if err := s.tasks.Create(ctx, task); err != nil {
			s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("could not persist extracted task")
			continue
		}
		s.events.Publish(msg.UserID, out.NewEvent(out.EventAutonomousAction, map[string]any{
			"email_id": msg.ID,
			"action":   "task_created",
			"details":  out.Truncate(task.Description, 200),
		}))
	}
}

func (s *Service) setProcessing(ctx context.Context, userID string, processing bool) {
	fields := map[string]any{"is_processing": processing}
	if !processing {
		fields["last_email_check"] = time.Now().UTC()
	}
	if err := s.state.Merge(ctx, userID, fields); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("could not update agent state")
	}

	status := map[string]any{"is_processing": processing}
	if state, err := s.state.Get(ctx, userID); err == nil {
		status["last_email_check"] = state.LastEmailCheck
		status["active_tasks"] = state.ActiveTasks
		status["autonomous_mode"] = state.AutonomousMode
		if state.MLTrainingStatus != "" {
			status["ml_training_status"] = state.MLTrainingStatus
		}
	}
	s.events.Publish(userID, out.NewEvent(out.EventSystemStatusUpdate, status))
}

func purposeAllowed(purpose string, allowed []string) bool {
	for _, p := range allowed {
		if strings.EqualFold(p, purpose) {
			return true
		}
	}
	return false
}

// sanitizeLabel makes a purpose safe as a provider label segment.
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
