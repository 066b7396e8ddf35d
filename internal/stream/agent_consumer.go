package stream

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/SaKinLord/ai-email-agent-sub000/adapter/in/worker"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/logger"
)

type Consumer struct {
	stream *RedisStream
	pool   *worker.Pool
	name   string
}

func NewConsumer(stream *RedisStream, pool *worker.Pool, name string) *Consumer {
	return &Consumer{
		stream: stream,
		pool:   pool,
		name:   name,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	streams := []string{StreamInbox, StreamRetrain, StreamAutonomous}
	for _, s := range streams {
		if err := c.stream.CreateGroup(ctx, s); err != nil {
			logger.Error("Failed to create group for %s: %v", s, err)
		}
	}

	go c.consume(ctx, StreamInbox)
	go c.consume(ctx, StreamRetrain)
	go c.consume(ctx, StreamAutonomous)
}

func (c *Consumer) consume(ctx context.Context, stream string) {
	c.stream.Consume(ctx, stream, c.name, func(id string, data []byte) error {
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			logger.Error("Failed to unmarshal job: %v", err)
			return err
		}

		msg := &worker.Message{
			ID:        job.ID,
			Type:      job.Type,
			Payload:   job.Payload,
			CreatedAt: job.CreatedAt,
		}

		if !c.pool.Submit(msg) {
			logger.Warn("Pool rejected job %s (%s)", job.ID, job.Type)
		}
		return nil
	})
}
