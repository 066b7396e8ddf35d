package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/service/actions"
)

// ActionHandler exposes the action request queue.
type ActionHandler struct {
	queue *actions.Service
}

func NewActionHandler(queue *actions.Service) *ActionHandler {
	return &ActionHandler{queue: queue}
}

// Register registers action routes.
func (h *ActionHandler) Register(router fiber.Router) {
	acts := router.Group("/actions")
	acts.Post("/", h.Create)
	acts.Get("/:id", h.Get)
}

// Create enqueues a user-requested side effect. Execution is
// asynchronous; poll the returned request for the outcome.
func (h *ActionHandler) Create(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req struct {
		ActionType string         `json:"action_type"`
		MessageID  string         `json:"message_id"`
		Params     map[string]any `json:"params"`
	}
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if req.ActionType == "" {
		return ErrorResponse(c, 400, "action_type is required")
	}

	request, err := h.queue.Enqueue(c.Context(), userID, domain.ActionType(req.ActionType), req.MessageID, req.Params)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	c.Status(202)
	return SuccessResponse(c, request)
}

// Get returns one action request for status polling.
func (h *ActionHandler) Get(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	request, err := h.queue.Get(c.Context(), userID, c.Params("id"))
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if request == nil {
		return ErrorResponse(c, 404, "action request not found")
	}
	return SuccessResponse(c, request)
}
