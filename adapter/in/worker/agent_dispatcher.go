package worker

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/SaKinLord/ai-email-agent-sub000/core/service/autonomous"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/pipeline"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/retrain"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/apperr"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/logger"
)

type Handler struct {
	pipeline  *pipeline.Service
	retrainer *retrain.Controller
	scheduler *autonomous.Scheduler
}

func NewHandler(
	pipeline *pipeline.Service,
	retrainer *retrain.Controller,
	scheduler *autonomous.Scheduler,
) *Handler {
	return &Handler{
		pipeline:  pipeline,
		retrainer: retrainer,
		scheduler: scheduler,
	}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing job: %s", msg.Type)

	switch msg.Type {
	case JobInboxScan:
		return h.processInboxScan(ctx, msg)
	case JobReclassify:
		return h.processReclassify(ctx, msg)
	case JobRetrain:
		return h.processRetrain(ctx, msg)
	case JobAutonomousRun:
		return h.processAutonomousRun(ctx, msg)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

// processInboxScan runs retraining first when due, then the inbox pass,
// so a fresh model classifies the new batch.
func (h *Handler) processInboxScan(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[InboxScanPayload](msg)
	if err != nil {
		return err
	}
	if payload.UserID == "" {
		return apperr.MissingField("user_id")
	}

	if _, err := h.retrainer.MaybeRetrain(ctx, payload.UserID); err != nil {
		logger.Warn("Retrain check failed for %s: %v", payload.UserID, err)
	}

	_, err = h.pipeline.ProcessInbox(ctx, payload.UserID, payload.MaxResults)
	return err
}

func (h *Handler) processReclassify(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[ReclassifyPayload](msg)
	if err != nil {
		return err
	}
	if payload.UserID == "" || payload.MessageID == "" {
		return apperr.MissingField("user_id/message_id")
	}
	_, err = h.pipeline.Reclassify(ctx, payload.UserID, payload.MessageID)
	return err
}

func (h *Handler) processRetrain(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[RetrainPayload](msg)
	if err != nil {
		return err
	}
	if payload.UserID == "" {
		return apperr.MissingField("user_id")
	}
	_, err = h.retrainer.MaybeRetrain(ctx, payload.UserID)
	return err
}

func (h *Handler) processAutonomousRun(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[AutonomousRunPayload](msg)
	if err != nil {
		return err
	}
	if payload.UserID != "" {
		return h.scheduler.RunForUser(ctx, payload.UserID)
	}
	h.scheduler.RunOnce(ctx)
	return nil
}

func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
