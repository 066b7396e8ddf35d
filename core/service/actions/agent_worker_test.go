package actions

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeActionRepo struct {
	pending   []*domain.ActionRequest
	completed map[string]string // id -> result
	failed    map[string]string // id -> reason
}

func newFakeActionRepo(reqs ...*domain.ActionRequest) *fakeActionRepo {
	return &fakeActionRepo{
		pending:   reqs,
		completed: map[string]string{},
		failed:    map[string]string{},
	}
}

func (f *fakeActionRepo) Create(_ context.Context, req *domain.ActionRequest) error {
	f.pending = append(f.pending, req)
	return nil
}

func (f *fakeActionRepo) GetByID(_ context.Context, _, requestID string) (*domain.ActionRequest, error) {
	for _, r := range f.pending {
		if r.ID == requestID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeActionRepo) Claim(_ context.Context, limit int, _ time.Duration) ([]*domain.ActionRequest, error) {
	if len(f.pending) > limit {
		claimed := f.pending[:limit]
		f.pending = f.pending[limit:]
		return claimed, nil
	}
	claimed := f.pending
	f.pending = nil
	return claimed, nil
}

func (f *fakeActionRepo) Complete(_ context.Context, requestID, result string) error {
	f.completed[requestID] = result
	return nil
}

func (f *fakeActionRepo) Fail(_ context.Context, requestID, reason string) error {
	f.failed[requestID] = reason
	return nil
}

type fakeMessageRepo struct {
	updates map[string]map[string]any // message_id -> merged fields
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{updates: map[string]map[string]any{}}
}

func (f *fakeMessageRepo) CreateIfAbsent(_ context.Context, _ *domain.Message) (bool, error) {
	return true, nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, _, _ string) (*domain.Message, error) {
	return nil, nil
}

func (f *fakeMessageRepo) Exists(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (f *fakeMessageRepo) List(_ context.Context, _ domain.MessageFilter) ([]*domain.Message, error) {
	return nil, nil
}

func (f *fakeMessageRepo) UpdateFields(_ context.Context, _, messageID string, fields map[string]any) error {
	if f.updates[messageID] == nil {
		f.updates[messageID] = map[string]any{}
	}
	for k, v := range fields {
		f.updates[messageID][k] = v
	}
	return nil
}

type fakeMail struct {
	modifyErr  error
	modified   []string // "messageID add=[...] remove=[...]"
	sent       []string
	created    []string
	labelSeq   int
	addedIDs   [][]string
	removedIDs [][]string
}

func (f *fakeMail) ListMessages(_ context.Context, _ string, _ []string, _ string, _ int) ([]out.MessageRef, error) {
	return nil, nil
}

func (f *fakeMail) GetMessage(_ context.Context, _, _ string) (*out.RawMessage, error) {
	return nil, nil
}

func (f *fakeMail) ListThreadMessages(_ context.Context, _, _ string) ([]out.ThreadMessageMeta, error) {
	return nil, nil
}

func (f *fakeMail) ModifyLabels(_ context.Context, _, messageID string, add, remove []string) error {
	if f.modifyErr != nil {
		return f.modifyErr
	}
	f.modified = append(f.modified, messageID)
	f.addedIDs = append(f.addedIDs, add)
	f.removedIDs = append(f.removedIDs, remove)
	return nil
}

func (f *fakeMail) Send(_ context.Context, _, raw string) error {
	f.sent = append(f.sent, raw)
	return nil
}

func (f *fakeMail) ListLabels(_ context.Context, _ string) ([]out.MailLabel, error) {
	return nil, nil
}

func (f *fakeMail) CreateLabel(_ context.Context, _, name string) (*out.MailLabel, error) {
	f.labelSeq++
	f.created = append(f.created, name)
	return &out.MailLabel{ID: "Label_" + name, Name: name}, nil
}

type fakeEvents struct {
	events []out.Event
}

func (f *fakeEvents) Publish(_ string, event out.Event) {
	f.events = append(f.events, event)
}

var (
	_ domain.ActionRepository  = (*fakeActionRepo)(nil)
	_ domain.MessageRepository = (*fakeMessageRepo)(nil)
	_ out.MailProviderPort     = (*fakeMail)(nil)
	_ out.EventPublisherPort   = (*fakeEvents)(nil)
)

func testWorker(repo *fakeActionRepo, msgs *fakeMessageRepo, mail *fakeMail, events *fakeEvents) *Worker {
	return NewWorker(WorkerConfig{}, repo, msgs, mail, events, zerolog.Nop())
}

func pendingArchive(id, messageID string) *domain.ActionRequest {
	return &domain.ActionRequest{
		ID:        id,
		UserID:    "u1",
		MessageID: messageID,
		Action:    domain.ActionArchive,
		Status:    domain.ActionPending,
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestArchiveCompletesAndMirrorsState(t *testing.T) {
	repo := newFakeActionRepo(pendingArchive("a1", "m1"))
	msgs := newFakeMessageRepo()
	mail := &fakeMail{}
	events := &fakeEvents{}

	n, err := testWorker(repo, msgs, mail, events).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}

	if repo.completed["a1"] != "archived" {
		t.Errorf("completed = %v, want archived", repo.completed)
	}
	if len(repo.failed) != 0 {
		t.Errorf("unexpected failures: %v", repo.failed)
	}
	if len(mail.removedIDs) != 1 || mail.removedIDs[0][0] != "INBOX" {
		t.Errorf("removed labels = %v, want INBOX", mail.removedIDs)
	}
	if got := msgs.updates["m1"]["is_archived"]; got != true {
		t.Errorf("is_archived = %v, want true", got)
	}
	if len(events.events) != 1 || events.events[0].Type != out.EventAutonomousAction {
		t.Errorf("events = %+v, want one autonomous_action_executed", events.events)
	}
}

func TestArchiveWithoutMessageIDFails(t *testing.T) {
	repo := newFakeActionRepo(pendingArchive("a1", ""))
	msgs := newFakeMessageRepo()
	mail := &fakeMail{}
	events := &fakeEvents{}

	if _, err := testWorker(repo, msgs, mail, events).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if _, ok := repo.failed["a1"]; !ok {
		t.Fatal("request not marked failed")
	}
	if len(mail.modified) != 0 {
		t.Error("provider called despite invalid request")
	}
	if len(events.events) != 0 {
		t.Error("event published for a failed action")
	}
}

func TestArchiveProviderClientErrorFailsWithoutRetry(t *testing.T) {
	repo := newFakeActionRepo(pendingArchive("a1", "m1"))
	msgs := newFakeMessageRepo()
	mail := &fakeMail{modifyErr: apperr.BadRequest("message not modifiable")}
	events := &fakeEvents{}

	start := time.Now()
	if _, err := testWorker(repo, msgs, mail, events).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("client error was retried with backoff")
	}

	if reason := repo.failed["a1"]; !strings.Contains(reason, "not modifiable") {
		t.Errorf("failure reason = %q", reason)
	}
	if len(msgs.updates) != 0 {
		t.Error("local state updated after provider failure")
	}
}

func TestSendDraft(t *testing.T) {
	repo := newFakeActionRepo(&domain.ActionRequest{
		ID:     "a1",
		UserID: "u1",
		Action: domain.ActionSendDraft,
		Params: map[string]any{
			"to":      "bob@example.com",
			"subject": "Re: numbers",
			"body":    "On it.",
		},
		Status: domain.ActionPending,
	})
	msgs := newFakeMessageRepo()
	mail := &fakeMail{}
	events := &fakeEvents{}

	if _, err := testWorker(repo, msgs, mail, events).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if repo.completed["a1"] != "sent to bob@example.com" {
		t.Errorf("result = %q", repo.completed["a1"])
	}
	if len(mail.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(mail.sent))
	}
	decoded, err := base64.URLEncoding.DecodeString(mail.sent[0])
	if err != nil {
		t.Fatalf("sent payload is not base64url: %v", err)
	}
	if !strings.Contains(string(decoded), "To: bob@example.com\r\n") {
		t.Errorf("missing To header in %q", decoded)
	}
}

func TestSendDraftWithoutRecipientFails(t *testing.T) {
	repo := newFakeActionRepo(&domain.ActionRequest{
		ID:     "a1",
		UserID: "u1",
		Action: domain.ActionSendDraft,
		Params: map[string]any{"subject": "hi", "body": "text"},
		Status: domain.ActionPending,
	})
	msgs := newFakeMessageRepo()
	mail := &fakeMail{}
	events := &fakeEvents{}

	if _, err := testWorker(repo, msgs, mail, events).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if _, ok := repo.failed["a1"]; !ok {
		t.Fatal("request not marked failed")
	}
	if len(mail.sent) != 0 {
		t.Error("message sent without a recipient")
	}
}

func TestApplyLabel(t *testing.T) {
	repo := newFakeActionRepo(&domain.ActionRequest{
		ID:        "a1",
		UserID:    "u1",
		MessageID: "m1",
		Action:    domain.ActionApplyLabel,
		Params:    map[string]any{"labels": []any{"Priority/HIGH", "Triage"}},
		Status:    domain.ActionPending,
	})
	msgs := newFakeMessageRepo()
	mail := &fakeMail{}
	events := &fakeEvents{}

	if _, err := testWorker(repo, msgs, mail, events).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if repo.completed["a1"] != "applied 2 label(s)" {
		t.Errorf("result = %q", repo.completed["a1"])
	}
	if len(mail.created) != 2 {
		t.Fatalf("created %d labels, want 2", len(mail.created))
	}
	if len(mail.addedIDs) != 1 || len(mail.addedIDs[0]) != 2 {
		t.Fatalf("added ids = %v", mail.addedIDs)
	}
	if mail.addedIDs[0][0] != "Label_Priority/HIGH" {
		t.Errorf("added[0] = %s", mail.addedIDs[0][0])
	}
}

func TestUnknownActionFails(t *testing.T) {
	repo := newFakeActionRepo(&domain.ActionRequest{
		ID:     "a1",
		UserID: "u1",
		Action: domain.ActionType("forward"),
		Status: domain.ActionPending,
	})
	msgs := newFakeMessageRepo()
	events := &fakeEvents{}

	if _, err := testWorker(repo, msgs, &fakeMail{}, events).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if reason := repo.failed["a1"]; !strings.Contains(reason, "unknown action type") {
		t.Errorf("failure reason = %q", reason)
	}
}

func TestRunOnceRespectsBatchSize(t *testing.T) {
	repo := newFakeActionRepo(
		pendingArchive("a1", "m1"),
		pendingArchive("a2", "m2"),
		pendingArchive("a3", "m3"),
	)
	msgs := newFakeMessageRepo()
	mail := &fakeMail{}
	events := &fakeEvents{}
	w := NewWorker(WorkerConfig{BatchSize: 2}, repo, msgs, mail, events, zerolog.Nop())

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 2 {
		t.Errorf("processed = %d, want 2", n)
	}
	if len(repo.pending) != 1 {
		t.Errorf("pending = %d, want 1", len(repo.pending))
	}
}

func TestAssembleMIME(t *testing.T) {
	raw := AssembleMIME(domain.SendDraftParams{
		To:      "bob@example.com",
		Subject: "Status",
		Body:    "<p>done</p>",
		IsHTML:  true,
	})
	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("not base64url: %v", err)
	}
	msg := string(decoded)

	headerBody := strings.SplitN(msg, "\r\n\r\n", 2)
	if len(headerBody) != 2 {
		t.Fatal("no header/body separator")
	}
	if headerBody[1] != "<p>done</p>" {
		t.Errorf("body = %q", headerBody[1])
	}
	if !strings.Contains(headerBody[0], "Content-Type: text/html") {
		t.Errorf("headers = %q, want html content type", headerBody[0])
	}
	if !strings.Contains(headerBody[0], "MIME-Version: 1.0") {
		t.Error("missing MIME-Version header")
	}
}
