package actions

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/retry"
)

// =============================================================================
// Action Worker
// =============================================================================

// WorkerConfig tunes the drain loop.
type WorkerConfig struct {
	Tick       time.Duration // poll interval
	BatchSize  int           // max claims per poll
	StaleAfter time.Duration // claims older than this are re-claimable
}

func (c *WorkerConfig) withDefaults() {
	if c.Tick == 0 {
		c.Tick = 15 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = 5 * time.Minute
	}
}

// Worker drains pending action requests against the mail provider.
// Transient provider failures retry with exponential backoff; client
// errors fail the request immediately.
type Worker struct {
	cfg      WorkerConfig
	actions  domain.ActionRepository
	messages domain.MessageRepository
	mail     out.MailProviderPort
	events   out.EventPublisherPort
	policy   retry.Policy
	log      zerolog.Logger
}

func NewWorker(
	cfg WorkerConfig,
	actions domain.ActionRepository,
	messages domain.MessageRepository,
	mail out.MailProviderPort,
	events out.EventPublisherPort,
	log zerolog.Logger,
) *Worker {
	cfg.withDefaults()
	return &Worker{
		cfg:      cfg,
		actions:  actions,
		messages: messages,
		mail:     mail,
		events:   events,
		policy:   retry.Default(),
		log:      log.With().Str("component", "action_worker").Logger(),
	}
}

// Run drains the queue on a ticker until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	w.log.Info().Dur("tick", w.cfg.Tick).Msg("action worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("action worker stopped")
			return
		case <-ticker.C:
			if n, err := w.RunOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("drain pass failed")
			} else if n > 0 {
				w.log.Debug().Int("processed", n).Msg("drain pass complete")
			}
		}
	}
}

// RunOnce claims and executes one batch. Returns the number of requests
// processed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	claimed, err := w.actions.Claim(ctx, w.cfg.BatchSize, w.cfg.StaleAfter)
	if err != nil {
		return 0, err
	}

	for _, req := range claimed {
		w.process(ctx, req)
	}
	return len(claimed), nil
}

func (w *Worker) process(ctx context.Context, req *domain.ActionRequest) {
	log := w.log.With().
		Str("user_id", req.UserID).
		Str("action_id", req.ID).
		Str("action", string(req.Action)).
		Logger()

	result, err := w.execute(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("action failed")
		if ferr := w.actions.Fail(ctx, req.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("could not record action failure")
		}
		return
	}

	if cerr := w.actions.Complete(ctx, req.ID, result); cerr != nil {
		log.Error().Err(cerr).Msg("could not record action completion")
		return
	}

	w.events.Publish(req.UserID, out.NewEvent(out.EventAutonomousAction, map[string]any{
		"email_id": req.MessageID,
		"action":   string(req.Action),
		"details":  out.Truncate(result, 200),
	}))
	log.Info().Str("result", result).Msg("action completed")
}

// execute dispatches on action type under the retry policy. The returned
// string becomes the request's result_message.
func (w *Worker) execute(ctx context.Context, req *domain.ActionRequest) (string, error) {
	switch req.Action {
	case domain.ActionArchive:
		return w.archive(ctx, req)
	case domain.ActionSendDraft:
		return w.sendDraft(ctx, req)
	case domain.ActionApplyLabel:
		return w.applyLabel(ctx, req)
	default:
		return "", apperr.BadRequest("unknown action type: " + string(req.Action))
	}
}

func (w *Worker) archive(ctx context.Context, req *domain.ActionRequest) (string, error) {
	if req.MessageID == "" {
		return "", apperr.BadRequest("archive requires a message_id")
	}

	err := w.policy.Do(ctx, func() error {
		return out.Archive(ctx, w.mail, req.UserID, req.MessageID)
	})
	if err != nil {
		return "", err
	}

	// reflect the provider-side state in our copy
	if err := w.messages.UpdateFields(ctx, req.UserID, req.MessageID, map[string]any{
		"is_archived": true,
	}); err != nil && !apperr.IsNotFound(err) {
		w.log.Warn().Err(err).
			Str("message_id", req.MessageID).
			Msg("archived at provider but local update failed")
	}
	return "archived", nil
}

func (w *Worker) sendDraft(ctx context.Context, req *domain.ActionRequest) (string, error) {
	params, err := decodeParams[domain.SendDraftParams](req.Params)
	if err != nil {
		return "", err
	}
	if params.To == "" {
		return "", apperr.BadRequest("send_draft requires a recipient")
	}

	raw := AssembleMIME(params)
	err = w.policy.Do(ctx, func() error {
		return w.mail.Send(ctx, req.UserID, raw)
	})
	if err != nil {
		return "", err
	}
	return "sent to " + params.To, nil
}

func (w *Worker) applyLabel(ctx context.Context, req *domain.ActionRequest) (string, error) {
	if req.MessageID == "" {
		return "", apperr.BadRequest("apply_label requires a message_id")
	}
	params, err := decodeParams[domain.ApplyLabelParams](req.Params)
	if err != nil {
		return "", err
	}
	if len(params.Labels) == 0 {
		return "", apperr.BadRequest("apply_label requires at least one label")
	}

	ids := make([]string, 0, len(params.Labels))
	for _, name := range params.Labels {
		var label *out.MailLabel
		err := w.policy.Do(ctx, func() error {
			var err error
			label, err = w.mail.CreateLabel(ctx, req.UserID, name)
			return err
		})
		if err != nil {
			return "", err
		}
		ids = append(ids, label.ID)
	}

	err = w.policy.Do(ctx, func() error {
		return w.mail.ModifyLabels(ctx, req.UserID, req.MessageID, ids, nil)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("applied %d label(s)", len(ids)), nil
}

// AssembleMIME builds the RFC 822 message and base64url-encodes it for
// the provider's send endpoint.
func AssembleMIME(params domain.SendDraftParams) string {
	contentType := "text/plain; charset=\"UTF-8\""
	if params.IsHTML {
		contentType = "text/html; charset=\"UTF-8\""
	}

	var b strings.Builder
	b.WriteString("To: " + params.To + "\r\n")
	b.WriteString("Subject: " + params.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + contentType + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(params.Body)

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}
