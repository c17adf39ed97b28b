package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeUserMessage       MessageType = "user_message"
	MessageTypeAssistantMessage  MessageType = "assistant_message"
	MessageTypeEmotionUpdate     MessageType = "emotion_update"
	MessageTypeConversationStart MessageType = "conversation_start"
	MessageTypeConversationEnd   MessageType = "conversation_end"
)

type ConversationMessage struct {
	Type           MessageType  `json:"type"`
	Text           string       `json:"text,omitempty"`
	Emotions       EmotionFrame `json:"emotions,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
	ConversationID string       `json:"conversationId,omitempty"`
	MessageID      string       `json:"messageId,omitempty"`
}

// ConversationData is a snapshot of one conversation buffer.
type ConversationData struct {
	ConversationID string                `json:"conversationId"`
	Messages       []ConversationMessage `json:"messages"`
	Emotions       []EmotionFrame        `json:"emotions"`
	StartedAt      time.Time             `json:"startedAt"`
	EndedAt        *time.Time            `json:"endedAt,omitempty"`
}

// Transcript is what transcription providers hand over: either a plain string
// or an ordered list of {"text": ...} segments.
type Transcript struct {
	Segments []TranscriptSegment
}

type TranscriptSegment struct {
	Text string `json:"text"`
}

func TranscriptFromText(text string) Transcript {
	if text == "" {
		return Transcript{}
	}
	return Transcript{Segments: []TranscriptSegment{{Text: text}}}
}

// Text joins segment texts with single spaces in order.
func (t Transcript) Text() string {
	parts := make([]string, len(t.Segments))
	for i, s := range t.Segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

func (t Transcript) IsEmpty() bool {
	return len(t.Segments) == 0
}

func (t *Transcript) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Transcript{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding transcript: %w", err)
		}
		*t = TranscriptFromText(s)
		return nil
	case '[':
		var segments []TranscriptSegment
		if err := json.Unmarshal(data, &segments); err != nil {
			return fmt.Errorf("decoding transcript segments: %w", err)
		}
		*t = Transcript{Segments: segments}
		return nil
	}
	return fmt.Errorf("decoding transcript: expected string or array")
}

func (t Transcript) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Text())
}
