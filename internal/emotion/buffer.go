package emotion

import (
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"kwik.app/dispatch/internal/model"
)

// ConversationBuffer accumulates the messages and emotion frames of exactly one
// conversation. It is not safe for concurrent use; each session owns its buffer
// and feeds it one event at a time.
type ConversationBuffer struct {
	conversationID string
	fallbackID     string
	messages       []model.ConversationMessage
	frames         []model.EmotionFrame
	startedAt      time.Time
	endedAt        *time.Time
}

func NewConversationBuffer(startedAt time.Time) *ConversationBuffer {
	return &ConversationBuffer{
		fallbackID: "conv_" + uuid.NewString(),
		startedAt:  startedAt,
	}
}

// Record appends one emotion frame. Frames arriving after Finalize are dropped.
func (b *ConversationBuffer) Record(frame model.EmotionFrame) {
	if b.endedAt != nil || len(frame) == 0 {
		return
	}
	b.frames = append(b.frames, slices.Clone(frame))
}

// RecordMessage appends a message and any emotions it carries. The first
// upstream conversation id seen becomes the buffer's id.
func (b *ConversationBuffer) RecordMessage(msg model.ConversationMessage) {
	if b.endedAt != nil {
		return
	}
	if b.conversationID == "" && msg.ConversationID != "" {
		b.conversationID = msg.ConversationID
	}
	if msg.ConversationID == "" {
		msg.ConversationID = b.ConversationID()
	}
	msg.Emotions = slices.Clone(msg.Emotions)
	b.messages = append(b.messages, msg)
	b.Record(msg.Emotions)
}

// Finalize marks the conversation as ended. Only the first call has effect.
func (b *ConversationBuffer) Finalize(at time.Time) bool {
	if b.endedAt != nil {
		return false
	}
	b.endedAt = &at
	return true
}

func (b *ConversationBuffer) Finalized() bool {
	return b.endedAt != nil
}

func (b *ConversationBuffer) ConversationID() string {
	if b.conversationID != "" {
		return b.conversationID
	}
	return b.fallbackID
}

// TopEmotions averages each label over the frames it appeared in and returns
// at most limit labels by descending average. Ties keep first-appearance order.
func (b *ConversationBuffer) TopEmotions(limit int) []model.TopEmotion {
	if limit <= 0 || len(b.frames) == 0 {
		return []model.TopEmotion{}
	}

	var order []string
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, frame := range b.frames {
		for _, r := range frame {
			if math.IsNaN(r.Intensity) {
				continue
			}
			if _, seen := counts[r.Emotion]; !seen {
				order = append(order, r.Emotion)
			}
			sums[r.Emotion] += r.Intensity
			counts[r.Emotion]++
		}
	}

	top := make([]model.TopEmotion, 0, len(order))
	for _, label := range order {
		top = append(top, model.TopEmotion{
			Emotion:   label,
			Intensity: sums[label] / float64(counts[label]),
		})
	}

	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Intensity > top[j].Intensity
	})

	if len(top) > limit {
		top = top[:limit]
	}
	return top
}

// AnalyzeForEmergencyFlags runs DefaultFlagRules over the top ten emotions.
func (b *ConversationBuffer) AnalyzeForEmergencyFlags() model.EmergencyFlags {
	return EvaluateFlags(b.TopEmotions(flagWindow), DefaultFlagRules)
}

// Readings flattens all frames into one ordered list of readings.
func (b *ConversationBuffer) Readings() []model.EmotionReading {
	var out []model.EmotionReading
	for _, frame := range b.frames {
		out = append(out, frame...)
	}
	return out
}

// Transcript joins the caller's message texts with single spaces.
func (b *ConversationBuffer) Transcript() string {
	var parts []string
	for _, m := range b.messages {
		if m.Type == model.MessageTypeUserMessage && m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Data returns a copy of the buffered conversation.
func (b *ConversationBuffer) Data() model.ConversationData {
	data := model.ConversationData{
		ConversationID: b.ConversationID(),
		Messages:       slices.Clone(b.messages),
		Emotions:       make([]model.EmotionFrame, len(b.frames)),
		StartedAt:      b.startedAt,
	}
	for i, f := range b.frames {
		data.Emotions[i] = slices.Clone(f)
	}
	if b.endedAt != nil {
		endedAt := *b.endedAt
		data.EndedAt = &endedAt
	}
	if data.Messages == nil {
		data.Messages = []model.ConversationMessage{}
	}
	return data
}
