package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
)

// MessageHandler serves processed message reads.
type MessageHandler struct {
	messages domain.MessageRepository
}

func NewMessageHandler(messages domain.MessageRepository) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Register registers message routes.
func (h *MessageHandler) Register(router fiber.Router) {
	messages := router.Group("/messages")
	messages.Get("/", h.List)
	messages.Get("/:id", h.Get)
}

// List lists processed messages with filters.
func (h *MessageHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	filter := domain.MessageFilter{
		UserID: userID,
		Limit:  ClampLimit(c, 50, 100),
	}

	if raw := c.Query("priority"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			prio := domain.Priority(strings.ToUpper(strings.TrimSpace(p)))
			if !prio.Valid() {
				return ErrorResponse(c, 400, "unknown priority: "+p)
			}
			filter.Priorities = append(filter.Priorities, prio)
		}
	}
	if raw := c.Query("purpose"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			filter.Purposes = append(filter.Purposes, domain.Purpose(strings.TrimSpace(p)))
		}
	}
	filter.IsArchived = QueryBool(c, "archived")

	if raw := c.Query("received_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ErrorResponse(c, 400, "invalid received_after, want RFC3339")
		}
		filter.ReceivedAfter = &t
	}
	if raw := c.Query("received_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ErrorResponse(c, 400, "invalid received_before, want RFC3339")
		}
		filter.ReceivedBefore = &t
	}

	msgs, err := h.messages.List(c.Context(), filter)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}

	return c.JSON(fiber.Map{
		"messages": msgs,
		"total":    len(msgs),
		"limit":    filter.Limit,
	})
}

// Get returns one processed message.
func (h *MessageHandler) Get(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	msg, err := h.messages.GetByID(c.Context(), userID, c.Params("id"))
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if msg == nil {
		return ErrorResponse(c, 404, "message not found")
	}
	return SuccessResponse(c, msg)
}
