package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
)

// TaskHandler serves autonomously extracted tasks.
type TaskHandler struct {
	tasks domain.TaskRepository
}

func NewTaskHandler(tasks domain.TaskRepository) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Register registers task routes.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Get("/tasks", h.List)
}

// List returns the caller's extracted tasks, newest first.
func (h *TaskHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	limit := ClampLimit(c, 50, 200)
	tasks, err := h.tasks.List(c.Context(), userID, limit)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}

	return c.JSON(fiber.Map{
		"tasks": tasks,
		"total": len(tasks),
		"limit": limit,
	})
}
