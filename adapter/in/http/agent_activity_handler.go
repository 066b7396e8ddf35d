package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
)

// ActivityHandler serves the append-only broadcast log.
type ActivityHandler struct {
	activities domain.ActivityRepository
}

func NewActivityHandler(activities domain.ActivityRepository) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// Register registers activity routes.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/activities", h.List)
}

// List returns recent activity entries, newest first. Clients use this
// to reconstruct state after an SSE reconnect.
func (h *ActivityHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	limit := ClampLimit(c, 50, 200)
	entries, err := h.activities.ListRecent(c.Context(), userID, limit)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if entries == nil {
		entries = []*domain.ActivityEntry{}
	}

	return c.JSON(fiber.Map{
		"activities": entries,
		"total":      len(entries),
		"limit":      limit,
	})
}
