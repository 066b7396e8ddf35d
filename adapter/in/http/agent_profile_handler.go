package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SaKinLord/ai-email-agent-sub000/core/service/memory"
)

// ProfileHandler serves the user profile and preference merges.
type ProfileHandler struct {
	profiles *memory.Service
}

func NewProfileHandler(profiles *memory.Service) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Register registers profile routes.
func (h *ProfileHandler) Register(router fiber.Router) {
	router.Get("/profile", h.Get)
	router.Patch("/profile", h.Update)
}

// Get returns the caller's profile, creating defaults on first access.
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	profile, err := h.profiles.Profile(c.Context(), userID)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, profile)
}

// profilePatch carries the merge body. Pointer fields distinguish
// "absent" from "set to false": only present fields are merged.
type profilePatch struct {
	AgentPreferences *struct {
		AutonomousModeEnabled *bool   `json:"autonomous_mode_enabled"`
		SuggestionFrequency   *string `json:"suggestion_frequency"`
		AllowAutoArchiving    *bool   `json:"allow_auto_archiving"`
		AllowAutoCategorize   *bool   `json:"allow_auto_categorization"`
		AllowAutoDraft        *bool   `json:"allow_auto_draft"`
		DailySummaryEnabled   *bool   `json:"daily_summary_enabled"`
		AllowAutoTaskCreation *bool   `json:"allow_auto_task_creation"`
	} `json:"agent_preferences"`
	EmailPreferences *struct {
		ImportantSenders *[]string `json:"important_senders"`
		FilteredDomains  *[]string `json:"filtered_domains"`
	} `json:"email_preferences"`
	AgendaSynthesis *struct {
		Tone               *string `json:"tone"`
		IncludeLowPriority *bool   `json:"include_low_priority"`
		MaxMessages        *int    `json:"max_messages"`
	} `json:"agenda_synthesis"`
}

// Update merges preference fields. Unknown fields are ignored by the
// parser; fields outside the preference blocks cannot be written
// through this surface.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req profilePatch
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}

	fields := map[string]any{}
	if ap := req.AgentPreferences; ap != nil {
		putIf(fields, "agent_preferences.autonomous_mode_enabled", ap.AutonomousModeEnabled)
		putIf(fields, "agent_preferences.suggestion_frequency", ap.SuggestionFrequency)
		putIf(fields, "agent_preferences.allow_auto_archiving", ap.AllowAutoArchiving)
		putIf(fields, "agent_preferences.allow_auto_categorization", ap.AllowAutoCategorize)
		putIf(fields, "agent_preferences.allow_auto_draft", ap.AllowAutoDraft)
		putIf(fields, "agent_preferences.daily_summary_enabled", ap.DailySummaryEnabled)
		putIf(fields, "agent_preferences.allow_auto_task_creation", ap.AllowAutoTaskCreation)
	}
	if ep := req.EmailPreferences; ep != nil {
		putIf(fields, "email_preferences.important_senders", ep.ImportantSenders)
		putIf(fields, "email_preferences.filtered_domains", ep.FilteredDomains)
	}
	if as := req.AgendaSynthesis; as != nil {
		if as.Tone != nil && *as.Tone != "brief" && *as.Tone != "detailed" {
			return ErrorResponse(c, 400, "agenda_synthesis.tone must be brief or detailed")
		}
		putIf(fields, "agenda_synthesis.tone", as.Tone)
		putIf(fields, "agenda_synthesis.include_low_priority", as.IncludeLowPriority)
		putIf(fields, "agenda_synthesis.max_messages", as.MaxMessages)
	}
	if len(fields) == 0 {
		return ErrorResponse(c, 400, "no recognized preference fields in body")
	}

	if err := h.profiles.UpdatePreferences(c.Context(), userID, fields); err != nil {
		return AppErrorResponse(c, err)
	}

	profile, err := h.profiles.Profile(c.Context(), userID)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, profile)
}

func putIf[T any](fields map[string]any, key string, v *T) {
	if v != nil {
		fields[key] = *v
	}
}
