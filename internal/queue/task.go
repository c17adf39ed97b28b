package queue

import "kwik.app/dispatch/internal/model"

type TaskType string

const (
	TaskTypeConversationEnded TaskType = "conversation_ended"
)

// ConversationTask is the snapshot of an ended conversation that the worker
// turns into a call record.
type ConversationTask struct {
	ConversationID string
	CallerNumber   string
	Transcript     string
	Emotions       []model.EmotionReading
	TraceID        *string
	Attempt        int
}
