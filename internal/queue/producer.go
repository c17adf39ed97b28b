package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"kwik.app/dispatch/internal/model"
)

type Producer interface {
	Enqueue(ctx context.Context, task ConversationTask) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task ConversationTask) error {
	fields, err := taskValues(task)
	if err != nil {
		return err
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue conversation: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued conversation task",
		"conversation_id", task.ConversationID,
		"emotion_count", len(task.Emotions),
		"attempt", fields["attempt"])
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

func taskValues(task ConversationTask) (map[string]any, error) {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	emotions := task.Emotions
	if emotions == nil {
		emotions = []model.EmotionReading{}
	}
	encoded, err := json.Marshal(emotions)
	if err != nil {
		return nil, fmt.Errorf("encoding emotions: %w", err)
	}

	fields := map[string]any{
		"task_type":       string(TaskTypeConversationEnded),
		"conversation_id": task.ConversationID,
		"caller_number":   task.CallerNumber,
		"transcript":      task.Transcript,
		"emotions":        string(encoded),
		"attempt":         attempt,
	}
	if task.TraceID != nil && *task.TraceID != "" {
		fields["trace_id"] = *task.TraceID
	}
	return fields, nil
}
