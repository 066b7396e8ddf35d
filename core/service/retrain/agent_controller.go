// Package retrain decides when the classifier is refit from accumulated
// feedback and publishes the new artifacts.
package retrain

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/classifier"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
)

// =============================================================================
// Retraining Controller
// =============================================================================

const stateFilename = "retrain_state.json"

// Config gates the retraining trigger.
type Config struct {
	Enabled      bool
	TriggerDelta int // new feedback rows since last fit
	MinSamples   int // minimum usable training rows
	Prefix       string
	ModelVersion string
}

func (c *Config) withDefaults() {
	if c.TriggerDelta == 0 {
		c.TriggerDelta = 10
	}
	if c.MinSamples == 0 {
		c.MinSamples = 5
	}
	if c.ModelVersion == "" {
		c.ModelVersion = "v1"
	}
}

// Controller runs the check-then-fit cycle. State is only advanced after
// a successful fit and publish, so a failed attempt retries next tick.
type Controller struct {
	cfg       Config
	feedbacks domain.FeedbackRepository
	messages  domain.MessageRepository
	blob      out.BlobStorePort
	store     *classifier.ArtifactStore
	holder    *classifier.Holder
	events    out.EventPublisherPort
	log       zerolog.Logger
}

func NewController(
	cfg Config,
	feedbacks domain.FeedbackRepository,
	messages domain.MessageRepository,
	blob out.BlobStorePort,
	store *classifier.ArtifactStore,
	holder *classifier.Holder,
	events out.EventPublisherPort,
	log zerolog.Logger,
) *Controller {
	cfg.withDefaults()
	return &Controller{
		cfg:       cfg,
		feedbacks: feedbacks,
		messages:  messages,
		blob:      blob,
		store:     store,
		holder:    holder,
		events:    events,
		log:       log.With().Str("component", "retrain").Logger(),
	}
}

// MaybeRetrain fits a new model when enough feedback accumulated since
// the last run. Returns whether a retrain happened.
func (c *Controller) MaybeRetrain(ctx context.Context, userID string) (bool, error) {
	if !c.cfg.Enabled {
		return false, nil
	}

	state, err := c.loadState(ctx, userID)
	if err != nil {
		return false, err
	}
	count, err := c.feedbacks.Count(ctx, userID)
	if err != nil {
		return false, err
	}
	delta := int(count) - state.LastFeedbackCount
	if delta < c.cfg.TriggerDelta {
		c.log.Debug().
			Int64("feedback_count", count).
			Int("delta", delta).
			Int("trigger", c.cfg.TriggerDelta).
			Msg("retrain not due")
		return false, nil
	}

	c.events.Publish(userID, out.NewEvent(out.EventTrainingStarted, map[string]any{
		"feedback_count": count,
	}))

	if err := c.retrain(ctx, userID, int(count)); err != nil {
		c.events.Publish(userID, out.NewEvent(out.EventTrainingError, map[string]any{
			"error": out.Truncate(err.Error(), 200),
		}))
		return false, err
	}

	c.events.Publish(userID, out.NewEvent(out.EventTrainingComplete, map[string]any{
		"feedback_count": count,
	}))
	return true, nil
}

func (c *Controller) retrain(ctx context.Context, userID string, feedbackCount int) error {
	rows, labels, err := c.buildDataset(ctx, userID)
	if err != nil {
		return err
	}
	if len(rows) < c.cfg.MinSamples {
		return apperr.BadRequest(fmt.Sprintf("only %d training rows, need %d", len(rows), c.cfg.MinSamples))
	}

	c.events.Publish(userID, out.NewEvent(out.EventTrainingProgress, map[string]any{
		"stage":   "fitting",
		"samples": len(rows),
	}))

	enc := &classifier.LabelEncoder{}
	enc.Fit(labels)
	pipe, err := classifier.Fit(rows, labels, enc, c.cfg.ModelVersion)
	if err != nil {
		return err
	}

	if err := c.store.Save(ctx, pipe, enc); err != nil {
		return err
	}
	c.holder.Replace(pipe, enc)

	// state advances only after the artifacts are durably published
	now := time.Now().UTC().Format(time.RFC3339)
	if err := c.saveState(ctx, userID, &domain.RetrainState{
		LastFeedbackCount: feedbackCount,
		LastUpdatedUTC:    &now,
	}); err != nil {
		return err
	}

	c.log.Info().
		Int("samples", len(rows)).
		Int("feedback_count", feedbackCount).
		Msg("classifier retrained")
	return nil
}

// buildDataset joins latest-per-message corrections with their messages.
// Corrections whose message is gone are skipped.
func (c *Controller) buildDataset(ctx context.Context, userID string) ([]classifier.Features, []string, error) {
	latest, err := c.feedbacks.LatestPerMessage(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var rows []classifier.Features
	var labels []string
	for _, fb := range latest {
		if fb.CorrectedPriority == nil {
			continue
		}
		msg, err := c.messages.GetByID(ctx, userID, fb.MessageID)
		if err != nil {
			return nil, nil, err
		}
		if msg == nil {
			continue
		}
		rows = append(rows, classifier.BuildFeatures(msg, msg.Purpose, msg.Urgency))
		labels = append(labels, string(*fb.CorrectedPriority))
	}
	return rows, labels, nil
}

// statePath keys the trigger state per user: feedback counts are
// per-user, so the watermark they are compared against must be too.
func (c *Controller) statePath(userID string) string {
	return path.Join(c.cfg.Prefix, userID, stateFilename)
}

func (c *Controller) loadState(ctx context.Context, userID string) (*domain.RetrainState, error) {
	data, err := c.blob.GetBytes(ctx, c.statePath(userID))
	if err != nil {
		if apperr.IsNotFound(err) {
			return &domain.RetrainState{}, nil
		}
		return nil, err
	}
	var state domain.RetrainState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperr.ParseError("retrain state", err)
	}
	return &state, nil
}

func (c *Controller) saveState(ctx context.Context, userID string, state *domain.RetrainState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.blob.PutBytes(ctx, c.statePath(userID), data)
}
