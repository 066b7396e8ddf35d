package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Producer struct {
	stream *RedisStream
}

func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

func (p *Producer) PublishInboxScan(ctx context.Context, userID string, maxResults int) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "inbox.scan",
		Payload: map[string]any{
			"user_id":     userID,
			"max_results": maxResults,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamInbox, job)
}

func (p *Producer) PublishReclassify(ctx context.Context, userID, messageID string) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "inbox.reclassify",
		Payload: map[string]any{
			"user_id":    userID,
			"message_id": messageID,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamInbox, job)
}

func (p *Producer) PublishRetrain(ctx context.Context, userID string) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "ml.retrain",
		Payload: map[string]any{
			"user_id": userID,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamRetrain, job)
}

func (p *Producer) PublishAutonomousRun(ctx context.Context, userID string) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "autonomous.run",
		Payload: map[string]any{
			"user_id": userID,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamAutonomous, job)
}
