package worker

import (
	"context"
	"fmt"

	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/queue"
	"kwik.app/dispatch/internal/store"
	"kwik.app/dispatch/internal/triage"
)

// CallBuilder mirrors service.CallBuilder - defined here to avoid import cycles.
type CallBuilder interface {
	Build(ctx context.Context, req triage.BuildRequest) (*model.EmergencyCall, error)
}

type Processor struct {
	builder CallBuilder
	calls   store.CallStore
}

func NewProcessor(builder CallBuilder, calls store.CallStore) *Processor {
	return &Processor{
		builder: builder,
		calls:   calls,
	}
}

// Process builds the call record of an ended conversation and saves it under the
// conversation id, so a redelivered task overwrites instead of duplicating.
func (p *Processor) Process(ctx context.Context, task queue.ConversationTask) (*model.EmergencyCall, error) {
	call, err := p.builder.Build(ctx, triage.BuildRequest{
		CallID:       task.ConversationID,
		CallerNumber: task.CallerNumber,
		Transcript:   task.Transcript,
		Emotions:     task.Emotions,
	})
	if err != nil {
		return nil, fmt.Errorf("building call: %w", err)
	}

	if err := p.calls.Save(ctx, call); err != nil {
		return nil, fmt.Errorf("saving call: %w", err)
	}
	return call, nil
}
