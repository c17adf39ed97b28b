package dto

import (
	"time"

	"kwik.app/dispatch/internal/model"
)

// CreateCallRequest accepts the transcript either as a string or as a list of
// {"text": ...} segments.
type CreateCallRequest struct {
	PhoneNumber    string                 `json:"phoneNumber"`
	Transcript     model.Transcript       `json:"transcript"`
	Emotions       []model.EmotionReading `json:"emotions"`
	ConversationID string                 `json:"conversationId"`
}

type CreateCallResponse struct {
	Success bool         `json:"success"`
	Call    CallResponse `json:"call"`
	Message string       `json:"message"`
}

type CallResponse struct {
	model.EmergencyCall
	TimeElapsed string `json:"time_elapsed"`
}

type ListCallsResponse struct {
	Calls []CallResponse `json:"calls"`
	Count int            `json:"count"`
}

type UpdateCallStatusRequest struct {
	Status     model.Status     `json:"status"`
	CallStatus model.CallStatus `json:"call_status"`
}

func NewCallResponse(call model.EmergencyCall, now time.Time) CallResponse {
	if call.ImmediateThreats == nil {
		call.ImmediateThreats = []string{}
	}
	return CallResponse{
		EmergencyCall: call,
		TimeElapsed:   model.TimeElapsed(call.CreatedAt, now),
	}
}
