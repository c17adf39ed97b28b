package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"kwik.app/dispatch/common/logger"
	"kwik.app/dispatch/internal/queue"
)

var ErrProducerClosed = errors.New("producer closed")

// InlineProducer processes conversation tasks in-process, one goroutine per
// task. The server uses it when no Redis stream is configured.
type InlineProducer struct {
	processor TaskProcessor

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ queue.Producer = (*InlineProducer)(nil)

func NewInlineProducer(processor TaskProcessor) *InlineProducer {
	return &InlineProducer{processor: processor}
}

func (p *InlineProducer) Enqueue(ctx context.Context, task queue.ConversationTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProducerClosed
	}

	ctx = logger.WithLogFields(context.WithoutCancel(ctx), logger.LogFields{
		ConversationID: logger.Ptr(task.ConversationID),
		Component:      "dispatch.worker.inline",
	})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "panic recovered in inline processing", "panic", r)
			}
		}()

		call, err := p.processor.Process(ctx, task)
		if err != nil {
			slog.ErrorContext(ctx, "inline conversation processing failed", "error", err)
			return
		}
		slog.InfoContext(ctx, "conversation triaged",
			"call_id", call.ID,
			"severity", call.Severity,
			"severity_score", call.SeverityScore)
	}()
	return nil
}

// Close stops accepting tasks and waits for running ones to finish.
func (p *InlineProducer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}
