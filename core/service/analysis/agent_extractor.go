package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/SaKinLord/ai-email-agent-sub000/core/domain"
	"github.com/SaKinLord/ai-email-agent-sub000/core/port/out"
)

const taskExtractorSystem = `You extract concrete to-do items from an email. Respond with a JSON array (possibly empty), nothing else. Schema per object:
{"task_description": string, "deadline": "YYYY-MM-DD" or null, "stakeholders": [string]}`

// ExtractTasks pulls actionable to-dos out of a message. Extraction
// failures return an empty slice; the pipeline fails open.
func (s *Service) ExtractTasks(ctx context.Context, msg *domain.Message) []*domain.Task {
	if s.llm == nil {
		return nil
	}

	user := fmt.Sprintf("From: %s\nSubject: %s\n\n%s",
		msg.Sender, msg.Subject, truncate(msg.BodyText, s.cfg.AnalysisMaxInputChars))
	raw, err := s.llm.Complete(ctx, taskExtractorSystem, user, s.cfg.AnalysisMaxTokens, s.cfg.AnalysisTemperature)
	if err != nil {
		return nil
	}

	var rows []struct {
		Description  string   `json:"task_description"`
		Deadline     *string  `json:"deadline"`
		Stakeholders []string `json:"stakeholders"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &rows); err != nil {
		return nil
	}

	tasks := make([]*domain.Task, 0, len(rows))
	for _, row := range rows {
		if row.Description == "" {
			continue
		}
		task := &domain.Task{
			ID:               uuid.NewString(),
			UserID:           msg.UserID,
			Description:      row.Description,
			Stakeholders:     row.Stakeholders,
			RelatedMessageID: msg.ID,
			CreationMethod:   "autonomous",
			Status:           domain.TaskStatusPending,
			CreatedAt:        time.Now().UTC(),
		}
		if row.Deadline != nil {
			if d, err := time.Parse("2006-01-02", *row.Deadline); err == nil {
				task.Deadline = &d
			}
		}
		tasks = append(tasks, task)
	}
	return tasks
}

const meetingExtractorSystem = `You extract a proposed meeting from an email. Respond with a single JSON object, nothing else. Schema:
{"found": bool, "title": string, "description": string, "location": string, "start": "RFC3339 timestamp", "end": "RFC3339 timestamp", "attendees": [string], "confidence": float 0-1}
If no concrete meeting is proposed, set found=false.`

// ExtractMeeting pulls calendar-event fields from a meeting-like message.
// Returns (nil, 0, nil) when the model finds no concrete meeting.
func (s *Service) ExtractMeeting(ctx context.Context, msg *domain.Message) (*out.CalendarEvent, float64, error) {
	if s.llm == nil {
		return nil, 0, nil
	}

	user := fmt.Sprintf("From: %s\nSubject: %s\nReceived: %s\n\n%s",
		msg.Sender, msg.Subject, msg.ReceivedAt.Format(time.RFC3339),
		truncate(msg.BodyText, s.cfg.AnalysisMaxInputChars))
	raw, err := s.llm.Complete(ctx, meetingExtractorSystem, user, s.cfg.AnalysisMaxTokens, s.cfg.AnalysisTemperature)
	if err != nil {
		return nil, 0, err
	}

	var parsed struct {
		Found       bool     `json:"found"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Location    string   `json:"location"`
		Start       string   `json:"start"`
		End         string   `json:"end"`
		Attendees   []string `json:"attendees"`
		Confidence  float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &parsed); err != nil {
		return nil, 0, err
	}
	if !parsed.Found || parsed.Title == "" {
		return nil, 0, nil
	}

	start, err := time.Parse(time.RFC3339, parsed.Start)
	if err != nil {
		return nil, 0, nil
	}
	end, err := time.Parse(time.RFC3339, parsed.End)
	if err != nil {
		end = start.Add(time.Hour)
	}
	return &out.CalendarEvent{
		Title:       parsed.Title,
		Description: parsed.Description,
		Location:    parsed.Location,
		Start:       start,
		End:         end,
		Attendees:   parsed.Attendees,
	}, parsed.Confidence, nil
}
