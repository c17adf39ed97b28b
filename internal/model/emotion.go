package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EmotionReading is one label/intensity pair as delivered by the emotion provider.
type EmotionReading struct {
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
}

// EmotionFrame holds the readings of a single utterance in provider order.
// On the wire it is a JSON object {"fear": 0.8, ...}; key order is kept
// because it decides ties between equally intense labels.
type EmotionFrame []EmotionReading

// Get returns the intensity recorded for label.
func (f EmotionFrame) Get(label string) (float64, bool) {
	for _, r := range f {
		if r.Emotion == label {
			return r.Intensity, true
		}
	}
	return 0, false
}

// Set replaces the intensity of an existing label in place or appends a new one.
func (f EmotionFrame) Set(label string, intensity float64) EmotionFrame {
	for i := range f {
		if f[i].Emotion == label {
			f[i].Intensity = intensity
			return f
		}
	}
	return append(f, EmotionReading{Emotion: label, Intensity: intensity})
}

func (f EmotionFrame) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Emotion)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Intensity)
		if err != nil {
			return nil, fmt.Errorf("encoding intensity for %q: %w", r.Emotion, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *EmotionFrame) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decoding emotion frame: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decoding emotion frame: expected object, got %v", tok)
	}

	frame := EmotionFrame{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decoding emotion frame key: %w", err)
		}
		label, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decoding emotion frame: unexpected key %v", keyTok)
		}
		var intensity float64
		if err := dec.Decode(&intensity); err != nil {
			return fmt.Errorf("decoding intensity for %q: %w", label, err)
		}
		frame = frame.Set(label, intensity)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decoding emotion frame: %w", err)
	}

	*f = frame
	return nil
}

// TopEmotion is a label with its average intensity over a conversation.
type TopEmotion struct {
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
}

// EmergencyFlags is the rule-based priority assessment of a conversation.
type EmergencyFlags struct {
	IsHighPriority bool     `json:"isHighPriority"`
	Flags          []string `json:"flags"`
	DistressLevel  float64  `json:"distressLevel"`
}
