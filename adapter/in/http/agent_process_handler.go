package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SaKinLord/ai-email-agent-sub000/core/service/pipeline"
	"github.com/SaKinLord/ai-email-agent-sub000/internal/stream"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/logger"
)

// ProcessHandler triggers inbox processing runs.
type ProcessHandler struct {
	producer *stream.Producer
	pipeline *pipeline.Service
}

// NewProcessHandler creates a new process handler. The producer is
// preferred; when Redis is not configured the run executes inline.
func NewProcessHandler(producer *stream.Producer, pipeline *pipeline.Service) *ProcessHandler {
	return &ProcessHandler{producer: producer, pipeline: pipeline}
}

// Register registers processing routes.
func (h *ProcessHandler) Register(router fiber.Router) {
	router.Post("/process", h.Process)
	router.Post("/messages/:id/reclassify", h.Reclassify)
}

// Process enqueues (or runs) one inbox pass for the caller.
func (h *ProcessHandler) Process(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req struct {
		MaxResults int `json:"max_results"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return ErrorResponse(c, 400, "invalid request body")
		}
	}
	if req.MaxResults < 0 || req.MaxResults > 100 {
		return ErrorResponse(c, 400, "max_results must be between 0 and 100")
	}

	if h.producer != nil {
		jobID, err := h.producer.PublishInboxScan(c.Context(), userID, req.MaxResults)
		if err != nil {
			logger.WithError(err).Warn("Inbox scan publish failed, running inline")
		} else {
			return c.Status(202).JSON(fiber.Map{
				"status": "queued",
				"job_id": jobID,
			})
		}
	}

	report, err := h.pipeline.ProcessInbox(c.Context(), userID, req.MaxResults)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, report)
}

// Reclassify re-runs the decision chain for one stored message.
func (h *ProcessHandler) Reclassify(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	messageID := c.Params("id")
	if messageID == "" {
		return ErrorResponse(c, 400, "message id is required")
	}

	msg, err := h.pipeline.Reclassify(c.Context(), userID, messageID)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, msg)
}
