package worker_test

import (
	"context"
	"sync"
	"time"

	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/queue"
)

type mockConsumer struct {
	mu       sync.Mutex
	batches  [][]queue.Message
	acked    []string
	requeued []string
	dlq      []string
	reasons  []string
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.batches) == 0 {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Millisecond):
		}
		return nil, nil
	}
	batch := m.batches[0]
	m.batches = m.batches[1:]
	return batch, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, msg.ID)
	m.reasons = append(m.reasons, errMsg)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, msg.ID)
	m.reasons = append(m.reasons, errMsg)
	return nil
}

func (m *mockConsumer) Acked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

type mockProcessor struct {
	mu        sync.Mutex
	processFn func(ctx context.Context, task queue.ConversationTask) (*model.EmergencyCall, error)
	tasks     []queue.ConversationTask
}

func (m *mockProcessor) Process(ctx context.Context, task queue.ConversationTask) (*model.EmergencyCall, error) {
	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()
	if m.processFn != nil {
		return m.processFn(ctx, task)
	}
	return &model.EmergencyCall{ID: task.ConversationID}, nil
}

func (m *mockProcessor) Tasks() []queue.ConversationTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.ConversationTask(nil), m.tasks...)
}
