package worker

import (
	"context"

	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// TaskProcessor turns an ended conversation into a persisted call record.
type TaskProcessor interface {
	Process(ctx context.Context, task queue.ConversationTask) (*model.EmergencyCall, error)
}
