package autonomous

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/actions"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/analysis"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeUsers struct{ ids []string }

func (f *fakeUsers) ListUserIDs(_ context.Context) ([]string, error) { return f.ids, nil }

type fakeMail struct{}

func (f *fakeMail) ListMessages(_ context.Context, _ string, _ []string, _ string, _ int) ([]out.MessageRef, error) {
	return nil, nil
}

func (f *fakeMail) GetMessage(_ context.Context, _, _ string) (*out.RawMessage, error) {
	return nil, nil
}

func (f *fakeMail) ListThreadMessages(_ context.Context, _, _ string) ([]out.ThreadMessageMeta, error) {
	return nil, nil
}

func (f *fakeMail) ModifyLabels(_ context.Context, _, _ string, _, _ []string) error { return nil }

func (f *fakeMail) Send(_ context.Context, _, _ string) error { return nil }

func (f *fakeMail) ListLabels(_ context.Context, _ string) ([]out.MailLabel, error) {
	return nil, nil
}

func (f *fakeMail) CreateLabel(_ context.Context, _, name string) (*out.MailLabel, error) {
	return &out.MailLabel{ID: "Label_" + name, Name: name}, nil
}

var _ out.MailProviderPort = (*fakeMail)(nil)

type fakeCalendar struct{ created []out.CalendarEvent }

func (f *fakeCalendar) CreateDraftEvent(_ context.Context, _ string, event out.CalendarEvent) (string, error) {
	f.created = append(f.created, event)
	return "draft-1", nil
}

var _ out.CalendarPort = (*fakeCalendar)(nil)

type fakeMessages struct {
	list      []*domain.Message
	listErr   error
	listCalls int
	updates   map[string]map[string]any
}

func (f *fakeMessages) CreateIfAbsent(_ context.Context, _ *domain.Message) (bool, error) {
	return true, nil
}

func (f *fakeMessages) GetByID(_ context.Context, _, _ string) (*domain.Message, error) {
	return nil, nil
}

func (f *fakeMessages) Exists(_ context.Context, _, _ string) (bool, error) { return false, nil }

func (f *fakeMessages) List(_ context.Context, _ domain.MessageFilter) ([]*domain.Message, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeMessages) UpdateFields(_ context.Context, _, messageID string, fields map[string]any) error {
	if f.updates == nil {
		f.updates = map[string]map[string]any{}
	}
	f.updates[messageID] = fields
	return nil
}

var _ domain.MessageRepository = (*fakeMessages)(nil)

type fakeTasks struct{ created []*domain.Task }

func (f *fakeTasks) Create(_ context.Context, task *domain.Task) error {
	f.created = append(f.created, task)
	return nil
}

func (f *fakeTasks) List(_ context.Context, _ string, _ int) ([]*domain.Task, error) {
	return nil, nil
}

func (f *fakeTasks) ExistsByRelated(_ context.Context, _, _, _ string) (bool, error) {
	return false, nil
}

var _ domain.TaskRepository = (*fakeTasks)(nil)

type fakeProfiles struct {
	profile *domain.UserProfile
	marked  []domain.AutonomousTask
	merges  []map[string]any
}

func (f *fakeProfiles) GetOrCreate(_ context.Context, _ string) (*domain.UserProfile, error) {
	return f.profile, nil
}

func (f *fakeProfiles) Merge(_ context.Context, _ string, fields map[string]any) error {
	f.merges = append(f.merges, fields)
	return nil
}

func (f *fakeProfiles) MarkTaskRun(_ context.Context, _ string, task domain.AutonomousTask, _ time.Time) error {
	f.marked = append(f.marked, task)
	return nil
}

var _ domain.ProfileRepository = (*fakeProfiles)(nil)

type fakeActionRepo struct{ created []*domain.ActionRequest }

func (f *fakeActionRepo) Create(_ context.Context, req *domain.ActionRequest) error {
	f.created = append(f.created, req)
	return nil
}

func (f *fakeActionRepo) GetByID(_ context.Context, _, _ string) (*domain.ActionRequest, error) {
	return nil, nil
}

func (f *fakeActionRepo) Claim(_ context.Context, _ int, _ time.Duration) ([]*domain.ActionRequest, error) {
	return nil, nil
}

func (f *fakeActionRepo) Complete(_ context.Context, _, _ string) error { return nil }

func (f *fakeActionRepo) Fail(_ context.Context, _, _ string) error { return nil }

var _ domain.ActionRepository = (*fakeActionRepo)(nil)

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

// fakeLLM replays scripted completions in order.
type fakeLLM struct {
	responses []string
	calls     int
}

func (f *fakeLLM) Complete(_ context.Context, _, _ string, _ int, _ float64) (string, error) {
	f.calls++
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

// =============================================================================
// Fixtures
// =============================================================================

func enabledProfile() *domain.UserProfile {
	p := domain.DefaultProfile("u1")
	p.AgentPreferences.AutonomousModeEnabled = true
	p.AgentPreferences.AllowAutoArchiving = true
	return p
}

func testScheduler(cfg Config, msgs *fakeMessages, profiles *fakeProfiles, llm out.LLMPort, cal out.CalendarPort) (*Scheduler, *fakeEvents) {
	events := &fakeEvents{}
	analyzer := analysis.NewService(llm, analysis.Config{})
	queue := actions.NewService(&fakeActionRepo{}, events, zerolog.Nop())
	s := NewScheduler(cfg, &fakeUsers{ids: []string{"u1"}}, &fakeMail{}, cal,
		msgs, &fakeTasks{}, profiles, analyzer, queue, events, zerolog.Nop())
	return s, events
}

// =============================================================================
// Tests
// =============================================================================

func TestRunForUserAutonomousModeOff(t *testing.T) {
	profile := domain.DefaultProfile("u1") // autonomous mode off by default
	profiles := &fakeProfiles{profile: profile}
	msgs := &fakeMessages{}
	s, _ := testScheduler(Config{
		AutoArchive: TaskConfig{Enabled: true},
	}, msgs, profiles, nil, nil)

	if err := s.RunForUser(context.Background(), "u1"); err != nil {
		t.Fatalf("RunForUser: %v", err)
	}
	if msgs.listCalls != 0 {
		t.Errorf("store queried %d times with autonomous mode off", msgs.listCalls)
	}
	if len(profiles.marked) != 0 {
		t.Errorf("task runs recorded with autonomous mode off: %v", profiles.marked)
	}
}

func TestRunForUserIntervalGate(t *testing.T) {
	cfg := Config{AutoArchive: TaskConfig{Enabled: true, Interval: time.Hour}}

	// ran 10 minutes ago: not due yet
	recent := time.Now().UTC().Add(-10 * time.Minute)
	profile := enabledProfile()
	profile.AutonomousTasks[domain.TaskAutoArchive] = domain.TaskState{LastRunUTC: &recent}
	profiles := &fakeProfiles{profile: profile}
	msgs := &fakeMessages{}
	s, _ := testScheduler(cfg, msgs, profiles, nil, nil)

	if err := s.RunForUser(context.Background(), "u1"); err != nil {
		t.Fatalf("RunForUser: %v", err)
	}
	if msgs.listCalls != 0 || len(profiles.marked) != 0 {
		t.Errorf("task ran %d before its interval elapsed, marked %v", msgs.listCalls, profiles.marked)
	}

	// ran 2 hours ago: due, runs and records a new last run
	stale := time.Now().UTC().Add(-2 * time.Hour)
	profile = enabledProfile()
	profile.AutonomousTasks[domain.TaskAutoArchive] = domain.TaskState{LastRunUTC: &stale}
	profiles = &fakeProfiles{profile: profile}
	msgs = &fakeMessages{}
	s, _ = testScheduler(cfg, msgs, profiles, nil, nil)

	if err := s.RunForUser(context.Background(), "u1"); err != nil {
		t.Fatalf("RunForUser: %v", err)
	}
	if msgs.listCalls == 0 {
		t.Error("due task did not run")
	}
	if len(profiles.marked) != 1 || profiles.marked[0] != domain.TaskAutoArchive {
		t.Errorf("marked = %v, want [auto_archive]", profiles.marked)
	}
}

func TestRunForUserNoMarkOnFailure(t *testing.T) {
	profiles := &fakeProfiles{profile: enabledProfile()}
	msgs := &fakeMessages{listErr: errors.New("store down")}
	s, events := testScheduler(Config{
		AutoArchive: TaskConfig{Enabled: true, Interval: time.Hour},
	}, msgs, profiles, nil, nil)

	if err := s.RunForUser(context.Background(), "u1"); err != nil {
		t.Fatalf("RunForUser: %v", err)
	}
	if len(profiles.marked) != 0 {
		t.Errorf("failed task recorded a run: %v", profiles.marked)
	}
	if !events.has(out.EventAutonomousAction) {
		t.Errorf("no failure event published: %v", events.types)
	}

	// failed run leaves the task due on the next pass
	if since := time.Since(profiles.profile.LastRun(domain.TaskAutoArchive)); since < time.Hour {
		t.Errorf("last run advanced despite failure: %v ago", since)
	}
}

const meetingJSON = `{"found":true,"title":"Planning sync","location":"Room 4","start":"2026-08-25T10:00:00Z","end":"2026-08-25T11:00:00Z","attendees":["bob@example.com"],"confidence":0.9}`

func TestMeetingPrepScopedToMeetingPurposes(t *testing.T) {
	invite := &domain.Message{
		ID: "inv", UserID: "u1",
		Sender: "bob@example.com", Subject: "Planning sync Monday?",
		Priority: domain.PriorityHigh, Purpose: domain.PurposeMeetingInvite,
	}
	alert := &domain.Message{
		ID: "al", UserID: "u1",
		Sender: "oncall@pagerduty.com", Subject: "Production incident",
		Priority: domain.PriorityCritical, Purpose: domain.PurposeAlert,
	}
	msgs := &fakeMessages{list: []*domain.Message{invite, alert}}
	profiles := &fakeProfiles{profile: enabledProfile()}
	llm := &fakeLLM{responses: []string{meetingJSON}}
	cal := &fakeCalendar{}
	s, _ := testScheduler(Config{
		MeetingPrep: TaskConfig{Enabled: true},
	}, msgs, profiles, llm, cal)

	if err := s.RunForUser(context.Background(), "u1"); err != nil {
		t.Fatalf("RunForUser: %v", err)
	}

	if llm.calls != 1 {
		t.Errorf("llm extraction calls = %d, want 1 (meeting purposes only)", llm.calls)
	}
	if len(cal.created) != 1 || cal.created[0].Title != "Planning sync" {
		t.Fatalf("drafted events = %+v, want one Planning sync", cal.created)
	}

	if processed, ok := msgs.updates["inv"]["meeting_processed"].(bool); !ok || !processed {
		t.Errorf("meeting message not marked processed: %v", msgs.updates["inv"])
	}
	if _, touched := msgs.updates["al"]; touched {
		t.Errorf("non-meeting message was touched: %v", msgs.updates["al"])
	}

	if len(profiles.marked) != 1 || profiles.marked[0] != domain.TaskMeetingPrep {
		t.Errorf("marked = %v, want [meeting_prep]", profiles.marked)
	}
}
