package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// Gmail Adapter
// =============================================================================

// RequiredScopes is the grant the agent needs: mail modify plus calendar
// events. The token store rejects grants with any other scope set.
var RequiredScopes = []string{
	gmail.GmailModifyScope,
	calendar.CalendarEventsScope,
}

// GmailConfig holds the OAuth client settings.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration
}

// GmailAdapter implements out.MailProviderPort. Per-user services are
// cached; all calls run under one shared circuit breaker.
type GmailAdapter struct {
	config  *oauth2.Config
	tokens  *TokenStore
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	log     zerolog.Logger

	mu       sync.RWMutex
	services map[string]*gmail.Service
}

func NewGmailAdapter(cfg GmailConfig, tokens *TokenStore, log zerolog.Logger) *GmailAdapter {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       RequiredScopes,
		Endpoint:     google.Endpoint,
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	logger := log.With().Str("component", "gmail").Logger()
	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}

	return &GmailAdapter{
		config:   oauthCfg,
		tokens:   tokens,
		cb:       gobreaker.NewCircuitBreaker(cbSettings),
		timeout:  timeout,
		log:      logger,
		services: make(map[string]*gmail.Service),
	}
}

// OAuthConfig exposes the shared config for the auth handshake handlers.
func (a *GmailAdapter) OAuthConfig() *oauth2.Config { return a.config }

// Invalidate drops the cached service for a user, forcing a rebuild on
// the next call. Used after token refresh failures.
func (a *GmailAdapter) Invalidate(userID string) {
	a.mu.Lock()
	delete(a.services, userID)
	a.mu.Unlock()
}

func (a *GmailAdapter) service(ctx context.Context, userID string) (*gmail.Service, error) {
	a.mu.RLock()
	svc, ok := a.services[userID]
	a.mu.RUnlock()
	if ok {
		return svc, nil
	}

	token, err := a.tokens.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	src := a.config.TokenSource(ctx, token)
	if _, err := src.Token(); err != nil {
		// refresh failed: drop the grant and demand re-consent
		_ = a.tokens.Delete(ctx, userID)
		return nil, apperr.ReauthRequired("token refresh failed")
	}

	svc, err = gmail.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, apperr.ProviderError("create gmail service", err)
	}

	a.mu.Lock()
	a.services[userID] = svc
	a.mu.Unlock()
	return svc, nil
}

// execute runs one API call under the breaker with the mail deadline and
// maps provider errors onto the app taxonomy.
func (a *GmailAdapter) execute(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.cb.Execute(func() (interface{}, error) {
		return nil, fn(callCtx)
	})
	if err != nil {
		return mapGoogleError(op, err)
	}
	return nil
}

func (a *GmailAdapter) ListMessages(ctx context.Context, userID string, labels []string, query string, maxResults int) ([]out.MessageRef, error) {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	var refs []out.MessageRef
	err = a.execute(ctx, "list messages", func(ctx context.Context) error {
		req := svc.Users.Messages.List("me").LabelIds(labels...)
		if query != "" {
			req = req.Q(query)
		}
		if maxResults > 0 {
			req = req.MaxResults(int64(maxResults))
		}
		resp, err := req.Context(ctx).Do()
		if err != nil {
			return err
		}
		refs = make([]out.MessageRef, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			refs = append(refs, out.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
		}
		return nil
	})
	return refs, err
}

func (a *GmailAdapter) GetMessage(ctx context.Context, userID, messageID string) (*out.RawMessage, error) {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	var raw *out.RawMessage
	err = a.execute(ctx, "get message", func(ctx context.Context) error {
		msg, err := svc.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
		if err != nil {
			return err
		}
		raw = toRawMessage(msg)
		return nil
	})
	return raw, err
}

func (a *GmailAdapter) ModifyLabels(ctx context.Context, userID, messageID string, add, remove []string) error {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return err
	}
	return a.execute(ctx, "modify labels", func(ctx context.Context) error {
		_, err := svc.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
			AddLabelIds:    add,
			RemoveLabelIds: remove,
		}).Context(ctx).Do()
		return err
	})
}

func (a *GmailAdapter) Send(ctx context.Context, userID, rawBase64URL string) error {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return err
	}
	return a.execute(ctx, "send message", func(ctx context.Context) error {
		_, err := svc.Users.Messages.Send("me", &gmail.Message{Raw: rawBase64URL}).Context(ctx).Do()
		return err
	})
}

func (a *GmailAdapter) ListThreadMessages(ctx context.Context, userID, threadID string) ([]out.ThreadMessageMeta, error) {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	var metas []out.ThreadMessageMeta
	err = a.execute(ctx, "get thread", func(ctx context.Context) error {
		thread, err := svc.Users.Threads.Get("me", threadID).Format("metadata").MetadataHeaders("From").Context(ctx).Do()
		if err != nil {
			return err
		}
		metas = make([]out.ThreadMessageMeta, 0, len(thread.Messages))
		for _, m := range thread.Messages {
			meta := out.ThreadMessageMeta{
				ID:           m.Id,
				InternalDate: time.UnixMilli(m.InternalDate).UTC(),
			}
			if m.Payload != nil {
				for _, h := range m.Payload.Headers {
					if h.Name == "From" {
						meta.From = h.Value
					}
				}
			}
			metas = append(metas, meta)
		}
		return nil
	})
	return metas, err
}

func (a *GmailAdapter) ListLabels(ctx context.Context, userID string) ([]out.MailLabel, error) {
	svc, err := a.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	var labels []out.MailLabel
	err = a.execute(ctx, "list labels", func(ctx context.Context) error {
		resp, err := svc.Users.Labels.List("me").Context(ctx).Do()
		if err != nil {
			return err
		}
		labels = make([]out.MailLabel, 0, len(resp.Labels))
		for _, l := range resp.Labels {
			labels = append(labels, out.MailLabel{ID: l.Id, Name: l.Name})
		}
		return nil
	})
	return labels, err
}

// CreateLabel creates a label, creating absent parents of a path-style
// name first ("Priority/HIGH" ensures "Priority" exists).
func (a *GmailAdapter) CreateLabel(ctx context.Context, userID, name string) (*out.MailLabel, error) {
	existing, err := a.ListLabels(ctx, userID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]out.MailLabel, len(existing))
	for _, l := range existing {
		byName[l.Name] = l
	}
	if l, ok := byName[name]; ok {
		return &l, nil
	}

	svc, err := a.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(name, "/")
	var created *out.MailLabel
	for i := range parts {
		prefix := strings.Join(parts[:i+1], "/")
		if l, ok := byName[prefix]; ok {
			created = &l
			continue
		}
		err = a.execute(ctx, "create label", func(ctx context.Context) error {
			label, err := svc.Users.Labels.Create("me", &gmail.Label{
				Name:                  prefix,
				LabelListVisibility:   "labelShow",
				MessageListVisibility: "show",
			}).Context(ctx).Do()
			if err != nil {
				return err
			}
			l := out.MailLabel{ID: label.Id, Name: label.Name}
			byName[prefix] = l
			created = &l
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return created, nil
}

func toRawMessage(msg *gmail.Message) *out.RawMessage {
	raw := &out.RawMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Snippet:      msg.Snippet,
		LabelIDs:     msg.LabelIds,
		Headers:      map[string]string{},
		InternalDate: time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			raw.Headers[h.Name] = h.Value
		}
		raw.Payload = toMessagePart(msg.Payload)
	}
	return raw
}

func toMessagePart(part *gmail.MessagePart) *out.MessagePart {
	if part == nil {
		return nil
	}
	p := &out.MessagePart{
		MimeType: part.MimeType,
		Filename: part.Filename,
	}
	if part.Body != nil {
		p.Data = part.Body.Data
	}
	for _, child := range part.Parts {
		p.Parts = append(p.Parts, toMessagePart(child))
	}
	return p
}

// mapGoogleError translates googleapi errors: 429 never retries, 5xx
// retries, other 4xx fail fast, invalid_scope forces re-consent.
func mapGoogleError(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.ProviderError(op+" (circuit open)", err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return apperr.RateLimited("gmail")
		case apiErr.Code == 401 || apiErr.Code == 403 && strings.Contains(apiErr.Message, "insufficient"):
			return apperr.ReauthRequired(apiErr.Message)
		case apiErr.Code >= 500:
			return apperr.ProviderError(op, err)
		default:
			e := apperr.ProviderError(op, err)
			e.Retryable = false
			e.Status = apiErr.Code
			return e
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(op)
	}
	return apperr.ProviderError(op, err)
}

var _ out.MailProviderPort = (*GmailAdapter)(nil)
