package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/feedback"
	"github.com/SaKinLord/ai-email-agent-sub000/internal/stream"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/logger"
)

// FeedbackHandler records priority and purpose corrections.
type FeedbackHandler struct {
	feedbacks *feedback.Service
	producer  *stream.Producer
}

func NewFeedbackHandler(feedbacks *feedback.Service, producer *stream.Producer) *FeedbackHandler {
	return &FeedbackHandler{feedbacks: feedbacks, producer: producer}
}

// Register registers feedback routes.
func (h *FeedbackHandler) Register(router fiber.Router) {
	router.Post("/feedback", h.Create)
}

// Create records one correction. With reclassify=true the message is
// re-run through the decision chain so the correction takes effect
// immediately instead of on the next inbox pass.
func (h *FeedbackHandler) Create(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req struct {
		MessageID         string `json:"message_id"`
		CorrectedPriority string `json:"corrected_priority"`
		CorrectedPurpose  string `json:"corrected_purpose"`
		Reclassify        bool   `json:"reclassify"`
	}
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if req.MessageID == "" {
		return ErrorResponse(c, 400, "message_id is required")
	}
	if req.CorrectedPriority == "" && req.CorrectedPurpose == "" {
		return ErrorResponse(c, 400, "at least one of corrected_priority, corrected_purpose is required")
	}

	var prio *domain.Priority
	if req.CorrectedPriority != "" {
		p := domain.Priority(strings.ToUpper(strings.TrimSpace(req.CorrectedPriority)))
		if !p.Valid() {
			return ErrorResponse(c, 400, "unknown priority: "+req.CorrectedPriority)
		}
		prio = &p
	}
	var purpose *domain.Purpose
	if req.CorrectedPurpose != "" {
		p := domain.Purpose(strings.TrimSpace(req.CorrectedPurpose))
		purpose = &p
	}

	fb, err := h.feedbacks.Record(c.Context(), userID, req.MessageID, prio, purpose)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	if req.Reclassify && h.producer != nil {
		if _, err := h.producer.PublishReclassify(c.Context(), userID, req.MessageID); err != nil {
			logger.WithError(err).Warn("Reclassify publish failed for %s", req.MessageID)
		}
	}

	c.Status(201)
	return SuccessResponse(c, fb)
}
