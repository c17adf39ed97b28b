package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kwik.app/dispatch/common/logger"
	"kwik.app/dispatch/internal/emotion"
	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/queue"
)

type EventType string

const (
	EventConversationStarted EventType = "evi:conversation:started"
	EventUserMessage         EventType = "evi:message:user"
	EventEmotionUpdate       EventType = "evi:emotion:update"
	EventConversationEnded   EventType = "evi:conversation:ended"
)

const DefaultFlagsLimit = 5

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationEnded    = errors.New("conversation already ended")
	ErrInvalidEvent         = errors.New("invalid conversation event")
)

// ConversationEvent is one webhook delivery from the emotion provider.
type ConversationEvent struct {
	Type           EventType
	ConversationID string
	CallerNumber   string
	MessageID      string
	Text           string
	Emotions       model.EmotionFrame
	TopEmotion     string
	Intensity      *float64
	At             time.Time
}

type EventResult struct {
	ConversationID string
	Handled        bool
	Enqueued       bool
}

type ConversationFlags struct {
	ConversationID string
	TopEmotions    []model.TopEmotion
	Flags          model.EmergencyFlags
}

type ConversationService interface {
	HandleEvent(ctx context.Context, event ConversationEvent) (*EventResult, error)
	Flags(ctx context.Context, conversationID string, limit int) (*ConversationFlags, error)
	Snapshot(ctx context.Context, conversationID string) (*model.ConversationData, error)
	// Prune drops sessions whose last event is older than cutoff.
	Prune(cutoff time.Time) int
}

type session struct {
	buffer       *emotion.ConversationBuffer
	callerNumber string
	lastSeen     time.Time
	// unqueued holds the task of a finalized conversation whose enqueue
	// failed; a repeated end event retries it.
	unqueued *queue.ConversationTask
}

type conversationService struct {
	mu       sync.Mutex
	sessions map[string]*session
	producer queue.Producer
	now      func() time.Time
}

func NewConversationService(producer queue.Producer) ConversationService {
	return &conversationService{
		sessions: make(map[string]*session),
		producer: producer,
		now:      time.Now,
	}
}

func (s *conversationService) HandleEvent(ctx context.Context, event ConversationEvent) (*EventResult, error) {
	if event.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", ErrInvalidEvent)
	}
	if event.At.IsZero() {
		event.At = s.now().UTC()
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: logger.Ptr(event.ConversationID),
		EventType:      logger.Ptr(string(event.Type)),
		Component:      "dispatch.service.conversation",
	})

	result := &EventResult{ConversationID: event.ConversationID, Handled: true}

	switch event.Type {
	case EventConversationStarted:
		return result, s.start(ctx, event)
	case EventUserMessage:
		slog.DebugContext(ctx, "caller message", "text", logger.Truncate(event.Text, 120))
		return result, s.withOpenSession(event, func(sess *session) {
			sess.buffer.RecordMessage(model.ConversationMessage{
				Type:           model.MessageTypeUserMessage,
				Text:           event.Text,
				Emotions:       event.Emotions,
				Timestamp:      event.At,
				ConversationID: event.ConversationID,
				MessageID:      event.MessageID,
			})
		})
	case EventEmotionUpdate:
		frame := event.Emotions
		if len(frame) == 0 && event.TopEmotion != "" && event.Intensity != nil {
			frame = model.EmotionFrame{{Emotion: event.TopEmotion, Intensity: *event.Intensity}}
		}
		return result, s.withOpenSession(event, func(sess *session) {
			sess.buffer.RecordMessage(model.ConversationMessage{
				Type:           model.MessageTypeEmotionUpdate,
				Emotions:       frame,
				Timestamp:      event.At,
				ConversationID: event.ConversationID,
				MessageID:      event.MessageID,
			})
		})
	case EventConversationEnded:
		if err := s.end(ctx, event); err != nil {
			return nil, err
		}
		result.Enqueued = true
		return result, nil
	default:
		slog.WarnContext(ctx, "ignoring unknown conversation event")
		result.Handled = false
		return result, nil
	}
}

func (s *conversationService) start(ctx context.Context, event ConversationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[event.ConversationID]
	if ok && sess.buffer.Finalized() {
		return ErrConversationEnded
	}
	if !ok {
		sess = &session{buffer: emotion.NewConversationBuffer(event.At)}
		s.sessions[event.ConversationID] = sess
	}
	if event.CallerNumber != "" {
		sess.callerNumber = event.CallerNumber
	}
	sess.lastSeen = event.At
	sess.buffer.RecordMessage(model.ConversationMessage{
		Type:           model.MessageTypeConversationStart,
		Timestamp:      event.At,
		ConversationID: event.ConversationID,
		MessageID:      event.MessageID,
	})

	slog.InfoContext(ctx, "conversation started", "caller_known", sess.callerNumber != "")
	return nil
}

func (s *conversationService) withOpenSession(event ConversationEvent, fn func(sess *session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[event.ConversationID]
	if !ok {
		return ErrConversationNotFound
	}
	if sess.buffer.Finalized() {
		return ErrConversationEnded
	}
	if event.CallerNumber != "" {
		sess.callerNumber = event.CallerNumber
	}
	sess.lastSeen = event.At
	fn(sess)
	return nil
}

func (s *conversationService) end(ctx context.Context, event ConversationEvent) error {
	task, retry, err := s.finalize(event)
	if err != nil {
		return err
	}
	if retry {
		slog.InfoContext(ctx, "retrying enqueue of ended conversation")
	}

	if traceID := logger.TraceID(ctx); traceID != "" {
		task.TraceID = &traceID
	}

	if err := s.producer.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueueing ended conversation: %w", err)
	}
	s.markQueued(event.ConversationID)

	slog.InfoContext(ctx, "conversation ended, triage queued",
		"emotion_count", len(task.Emotions),
		"transcript_len", len(task.Transcript))
	return nil
}

// finalize closes the session and snapshots its task. For a session that is
// already finalized it returns the task still waiting to be queued, if any.
func (s *conversationService) finalize(event ConversationEvent) (queue.ConversationTask, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[event.ConversationID]
	if !ok {
		return queue.ConversationTask{}, false, ErrConversationNotFound
	}
	sess.lastSeen = event.At

	if sess.buffer.Finalized() {
		if sess.unqueued == nil {
			return queue.ConversationTask{}, false, ErrConversationEnded
		}
		return *sess.unqueued, true, nil
	}

	if event.CallerNumber != "" {
		sess.callerNumber = event.CallerNumber
	}
	sess.buffer.RecordMessage(model.ConversationMessage{
		Type:           model.MessageTypeConversationEnd,
		Timestamp:      event.At,
		ConversationID: event.ConversationID,
		MessageID:      event.MessageID,
	})
	sess.buffer.Finalize(event.At)

	task := queue.ConversationTask{
		ConversationID: event.ConversationID,
		CallerNumber:   sess.callerNumber,
		Transcript:     sess.buffer.Transcript(),
		Emotions:       sess.buffer.Readings(),
	}
	sess.unqueued = &task
	return task, false, nil
}

func (s *conversationService) markQueued(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[conversationID]; ok {
		sess.unqueued = nil
	}
}

func (s *conversationService) Flags(_ context.Context, conversationID string, limit int) (*ConversationFlags, error) {
	if limit <= 0 {
		limit = DefaultFlagsLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return &ConversationFlags{
		ConversationID: conversationID,
		TopEmotions:    sess.buffer.TopEmotions(limit),
		Flags:          sess.buffer.AnalyzeForEmergencyFlags(),
	}, nil
}

func (s *conversationService) Snapshot(_ context.Context, conversationID string) (*model.ConversationData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	data := sess.buffer.Data()
	return &data, nil
}

func (s *conversationService) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			pruned++
		}
	}
	return pruned
}
