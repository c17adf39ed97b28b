package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Handlers enrich the context once and every downstream slog.*Context call picks the
// fields up through TraceHandler.
type LogFields struct {
	CallID         *string // Emergency call record ID
	ConversationID *string // Upstream voice conversation ID
	MessageID      *string // Redis stream message ID
	CallerNumber   *string // Caller phone number (masked before logging)
	EventType      *string // Webhook event type (e.g., "evi:conversation:ended")
	Component      string  // Component name (e.g., "dispatch.triage.builder")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.CallID != nil {
		result.CallID = new.CallID
	}
	if new.ConversationID != nil {
		result.ConversationID = new.ConversationID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.CallerNumber != nil {
		result.CallerNumber = new.CallerNumber
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// MaskPhone keeps the last four digits of a phone number.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-4 && phone[i] >= '0' && phone[i] <= '9' {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
