package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kwik.app/dispatch/common/logger"
	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/store"
	"kwik.app/dispatch/internal/triage"
)

var ErrInvalidStatus = errors.New("invalid status")

// CallBuilder mirrors triage.Builder so services can be tested without an extractor.
type CallBuilder interface {
	Build(ctx context.Context, req triage.BuildRequest) (*model.EmergencyCall, error)
}

type CreateCallParams struct {
	CallerNumber   string
	Transcript     model.Transcript
	Emotions       []model.EmotionReading
	ConversationID string // used as the call id when set
}

type CallService interface {
	Create(ctx context.Context, params CreateCallParams) (*model.EmergencyCall, error)
	Get(ctx context.Context, id string) (*model.EmergencyCall, error)
	List(ctx context.Context, limit int) ([]model.EmergencyCall, error)
	// UpdateStatus changes the lifecycle fields. Empty values keep the stored ones.
	UpdateStatus(ctx context.Context, id string, status model.Status, callStatus model.CallStatus) (*model.EmergencyCall, error)
}

type callService struct {
	calls   store.CallStore
	builder CallBuilder
	now     func() time.Time
}

func NewCallService(calls store.CallStore, builder CallBuilder) CallService {
	return &callService{
		calls:   calls,
		builder: builder,
		now:     time.Now,
	}
}

func (s *callService) Create(ctx context.Context, params CreateCallParams) (*model.EmergencyCall, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: nonEmpty(params.ConversationID),
		Component:      "dispatch.service.call",
	})

	call, err := s.builder.Build(ctx, triage.BuildRequest{
		CallID:       params.ConversationID,
		CallerNumber: params.CallerNumber,
		Transcript:   params.Transcript.Text(),
		Emotions:     params.Emotions,
	})
	if err != nil {
		return nil, err
	}

	if err := s.calls.Save(ctx, call); err != nil {
		return nil, fmt.Errorf("saving call: %w", err)
	}

	slog.InfoContext(ctx, "emergency call created",
		"call_id", call.ID,
		"severity", call.Severity,
		"severity_score", call.SeverityScore,
		"top_emotion", call.TopEmotion,
		"incident_type", call.IncidentType)

	return call, nil
}

func (s *callService) Get(ctx context.Context, id string) (*model.EmergencyCall, error) {
	return s.calls.GetByID(ctx, id)
}

func (s *callService) List(ctx context.Context, limit int) ([]model.EmergencyCall, error) {
	return s.calls.List(ctx, limit)
}

func (s *callService) UpdateStatus(ctx context.Context, id string, status model.Status, callStatus model.CallStatus) (*model.EmergencyCall, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidStatus, status)
	}
	if callStatus != "" && !callStatus.Valid() {
		return nil, fmt.Errorf("%w: call_status %q", ErrInvalidStatus, callStatus)
	}
	if status == "" && callStatus == "" {
		return nil, fmt.Errorf("%w: status or call_status is required", ErrInvalidStatus)
	}

	if status == "" || callStatus == "" {
		current, err := s.calls.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if status == "" {
			status = current.Status
		}
		if callStatus == "" {
			callStatus = current.CallStatus
		}
	}

	call, err := s.calls.UpdateStatus(ctx, id, status, callStatus, s.now().UTC())
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "call status updated",
		"call_id", id,
		"status", call.Status,
		"call_status", call.CallStatus)
	return call, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
