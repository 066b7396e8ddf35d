package pipeline

import (
	"context"
	"testing"
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
// Fakes
// =============================================================================

type fakeMail struct {
	refs     []out.MessageRef
	raws     map[string]*out.RawMessage
	archived []string // messageIDs whose INBOX label was removed
}

func (f *fakeMail) ListMessages(_ context.Context, _ string, _ []string, _ string, _ int) ([]out.MessageRef, error) {
	return f.refs, nil
}

func (f *fakeMail) GetMessage(_ context.Context, _, messageID string) (*out.RawMessage, error) {
	if raw, ok := f.raws[messageID]; ok {
		return raw, nil
	}
	return nil, apperr.NotFound("message " + messageID)
}

func (f *fakeMail) ListThreadMessages(_ context.Context, _, _ string) ([]out.ThreadMessageMeta, error) {
	return nil, nil
}

func (f *fakeMail) ModifyLabels(_ context.Context, _, messageID string, _, remove []string) error {
	for _, label := range remove {
		if label == "INBOX" {
			f.archived = append(f.archived, messageID)
		}
	}
	return nil
}

func (f *fakeMail) Send(_ context.Context, _, _ string) error { return nil }

func (f *fakeMail) ListLabels(_ context.Context, _ string) ([]out.MailLabel, error) {
	return nil, nil
}

func (f *fakeMail) CreateLabel(_ context.Context, _, name string) (*out.MailLabel, error) {
	return &out.MailLabel{ID: "Label_" + name, Name: name}, nil
}

var _ out.MailProviderPort = (*fakeMail)(nil)

type fakeMessages struct {
	exists  map[string]bool
	created []*domain.Message
	dupe    bool // CreateIfAbsent loses the race
}

func (f *fakeMessages) CreateIfAbsent(_ context.Context, msg *domain.Message) (bool, error) {
	if f.dupe {
		return false, nil
	}
	f.created = append(f.created, msg)
	return true, nil
}

func (f *fakeMessages) GetByID(_ context.Context, _, _ string) (*domain.Message, error) {
	return nil, nil
}

func (f *fakeMessages) Exists(_ context.Context, _, messageID string) (bool, error) {
	return f.exists[messageID], nil
}

func (f *fakeMessages) List(_ context.Context, _ domain.MessageFilter) ([]*domain.Message, error) {
	return nil, nil
}

func (f *fakeMessages) UpdateFields(_ context.Context, _, _ string, _ map[string]any) error {
	return nil
}

var _ domain.MessageRepository = (*fakeMessages)(nil)

type fakeFeedbacks struct{}

func (f *fakeFeedbacks) Create(_ context.Context, _ *domain.Feedback) error { return nil }

func (f *fakeFeedbacks) Count(_ context.Context, _ string) (int64, error) { return 0, nil }

func (f *fakeFeedbacks) ListByCreatedDesc(_ context.Context, _ string, _ int) ([]*domain.Feedback, error) {
	return nil, nil
}

func (f *fakeFeedbacks) LatestPerMessage(_ context.Context, _ string) ([]*domain.Feedback, error) {
	return nil, nil
}

var _ domain.FeedbackRepository = (*fakeFeedbacks)(nil)

type fakeTasks struct{}

func (f *fakeTasks) Create(_ context.Context, _ *domain.Task) error { return nil }

func (f *fakeTasks) List(_ context.Context, _ string, _ int) ([]*domain.Task, error) {
	return nil, nil
}

func (f *fakeTasks) ExistsByRelated(_ context.Context, _, _, _ string) (bool, error) {
	return false, nil
}

type fakeProfiles struct{ profile *domain.UserProfile }

func (f *fakeProfiles) GetOrCreate(_ context.Context, _ string) (*domain.UserProfile, error) {
	return f.profile, nil
}

func (f *fakeProfiles) Merge(_ context.Context, _ string, _ map[string]any) error { return nil }

func (f *fakeProfiles) MarkTaskRun(_ context.Context, _ string, _ domain.AutonomousTask, _ time.Time) error {
	return nil
}

type fakeState struct{ merges []map[string]any }

func (f *fakeState) Get(_ context.Context, userID string) (*domain.AgentState, error) {
	return &domain.AgentState{UserID: userID}, nil
}

func (f *fakeState) Merge(_ context.Context, _ string, fields map[string]any) error {
	f.merges = append(f.merges, fields)
	return nil
}

var _ domain.StateRepository = (*fakeState)(nil)

type fakeActionRepo struct{}

func (f *fakeActionRepo) Create(_ context.Context, _ *domain.ActionRequest) error { return nil }

func (f *fakeActionRepo) GetByID(_ context.Context, _, _ string) (*domain.ActionRequest, error) {
	return nil, nil
}

func (f *fakeActionRepo) Claim(_ context.Context, _ int, _ time.Duration) ([]*domain.ActionRequest, error) {
	return nil, nil
}

func (f *fakeActionRepo) Complete(_ context.Context, _, _ string) error { return nil }

func (f *fakeActionRepo) Fail(_ context.Context, _, _ string) error { return nil }

type fakeEvents struct{ types []string }

func (f *fakeEvents) Publish(_ string, event out.Event) {
	f.types = append(f.types, event.Type)
}

func (f *fakeEvents) has(eventType string) bool {
	for _, t := range f.types {
		if t == eventType {
			return true
		}
	}
	return false
}

// =============================================================================
// Fixtures
// =============================================================================

func inboxRaw(id string) *out.RawMessage {
	return &out.RawMessage{
		ID:       id,
		ThreadID: "t-" + id,
		Snippet:  "snippet",
		LabelIDs: []string{"INBOX", "UNREAD"},
		Headers: map[string]string{
			"From":    "Bob <bob@example.com>",
			"Subject": "Status update",
		},
		Payload:      &out.MessagePart{MimeType: "text/plain", Data: b64("All good.")},
		InternalDate: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	}
}

// testPipeline wires the service with a nil LLM: the chain degrades to
// rules and defaults, which is enough for the orchestration paths.
func testPipeline(cfg Config, mail *fakeMail, msgs *fakeMessages, profile *domain.UserProfile) (*Service, *fakeEvents) {
	events := &fakeEvents{}
	analyzer := analysis.NewService(nil, analysis.Config{})
	engine := reasoning.NewEngine(reasoning.Config{
		Thresholds: domain.AutonomyThresholds{Archive: 0.95, Label: 0.8},
	}, analyzer, nil, zerolog.Nop())
	fbs := feedback.NewService(&fakeFeedbacks{}, msgs, nil, zerolog.Nop())
	queue := actions.NewService(&fakeActionRepo{}, events, zerolog.Nop())
	svc := NewService(cfg, mail, msgs, &fakeTasks{}, &fakeProfiles{profile: profile},
		&fakeState{}, fbs, analyzer, engine, queue, events, zerolog.Nop())
	return svc, events
}

// =============================================================================
// Tests
// =============================================================================

func TestProcessInboxSkipsExisting(t *testing.T) {
	mail := &fakeMail{
		refs: []out.MessageRef{{ID: "m1", ThreadID: "t1"}, {ID: "m2", ThreadID: "t2"}},
		raws: map[string]*out.RawMessage{"m2": inboxRaw("m2")},
	}
	msgs := &fakeMessages{exists: map[string]bool{"m1": true}}
	svc, events := testPipeline(Config{}, mail, msgs, domain.DefaultProfile("u1"))

	report, err := svc.ProcessInbox(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("ProcessInbox: %v", err)
	}
	if report.Listed != 2 || report.Skipped != 1 || report.Processed != 1 || report.Failed != 0 {
		t.Errorf("report = %+v, want listed 2, skipped 1, processed 1", report)
	}

	if len(msgs.created) != 1 || msgs.created[0].ID != "m2" {
		t.Fatalf("created = %v, want just m2", msgs.created)
	}
	if msgs.created[0].Priority != domain.PriorityMedium {
		t.Errorf("priority = %s, want default MEDIUM without model or LLM", msgs.created[0].Priority)
	}

	for _, want := range []string{out.EventProcessingStarted, out.EventClassification, out.EventSystemStatusUpdate} {
		if !events.has(want) {
			t.Errorf("missing %s event: %v", want, events.types)
		}
	}
}

func TestProcessInboxLostCreateRaceCountsSkipped(t *testing.T) {
	mail := &fakeMail{
		refs: []out.MessageRef{{ID: "m1", ThreadID: "t1"}},
		raws: map[string]*out.RawMessage{"m1": inboxRaw("m1")},
	}
	msgs := &fakeMessages{dupe: true}
	svc, _ := testPipeline(Config{}, mail, msgs, domain.DefaultProfile("u1"))

	report, err := svc.ProcessInbox(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("ProcessInbox: %v", err)
	}
	if report.Processed != 0 || report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("report = %+v, want the lost race counted as skipped", report)
	}
}

func TestMaybeAutoArchive(t *testing.T) {
	baseCfg := Config{
		AutoArchive:     true,
		ArchivePurposes: []string{"promotion"},
		ArchiveMinConf:  0.95,
	}
	delegated := domain.AgentPreferences{AllowAutoArchiving: true}

	tests := []struct {
		name     string
		cfg      Config
		priority domain.Priority
		purpose  domain.Purpose
		conf     float64
		prefs    domain.AgentPreferences
		want     bool
	}{
		{"delegated promotion", baseCfg, domain.PriorityLow, domain.PurposePromotion, 0.97, delegated, true},
		{"medium priority allowed", baseCfg, domain.PriorityMedium, domain.PurposePromotion, 0.97, delegated, true},
		{"feature off", Config{ArchivePurposes: []string{"promotion"}, ArchiveMinConf: 0.95}, domain.PriorityLow, domain.PurposePromotion, 0.97, delegated, false},
		{"high priority", baseCfg, domain.PriorityHigh, domain.PurposePromotion, 0.97, delegated, false},
		{"low confidence", baseCfg, domain.PriorityLow, domain.PurposePromotion, 0.90, delegated, false},
		{"purpose outside allowlist", baseCfg, domain.PriorityLow, domain.PurposeAlert, 0.97, delegated, false},
		{"archiving not delegated", baseCfg, domain.PriorityLow, domain.PurposePromotion, 0.97, domain.AgentPreferences{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mail := &fakeMail{}
			svc, events := testPipeline(tt.cfg, mail, &fakeMessages{}, domain.DefaultProfile("u1"))

			msg := &domain.Message{ID: "m1", UserID: "u1", Priority: tt.priority, Purpose: tt.purpose}
			record := &domain.ReasoningRecord{Priority: tt.priority, Confidence: tt.conf}
			svc.maybeAutoArchive(context.Background(), msg, record, tt.prefs)

			if got := len(mail.archived) == 1; got != tt.want {
				t.Errorf("archived = %v, want archive %t", mail.archived, tt.want)
			}
			if msg.IsArchived != tt.want {
				t.Errorf("is_archived = %t, want %t", msg.IsArchived, tt.want)
			}
			if events.has(out.EventAutonomousAction) != tt.want {
				t.Errorf("autonomous action event published = %t, want %t", events.has(out.EventAutonomousAction), tt.want)
			}
		})
	}
}
