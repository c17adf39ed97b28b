package dto

import "kwik.app/dispatch/internal/model"

// EmotionWebhookRequest is one event delivered by the emotion provider.
// callId is accepted in place of conversationId.
type EmotionWebhookRequest struct {
	Type           string             `json:"type" binding:"required"`
	ConversationID string             `json:"conversationId"`
	CallID         string             `json:"callId"`
	CallerNumber   string             `json:"callerNumber"`
	MessageID      string             `json:"messageId"`
	Text           string             `json:"text"`
	Emotions       model.EmotionFrame `json:"emotions"`
	TopEmotion     string             `json:"topEmotion"`
	Intensity      *float64           `json:"intensity"`
}

type EmotionWebhookResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Enqueued bool   `json:"enqueued"`
}

type ConversationFlagsResponse struct {
	ConversationID string             `json:"conversationId"`
	TopEmotions    []model.TopEmotion `json:"topEmotions"`
	model.EmergencyFlags
}
