package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kwik.app/dispatch/internal/http/dto"
	"kwik.app/dispatch/internal/service"
)

type ConversationHandler struct {
	service service.ConversationService
}

func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// Webhook ingests one emotion provider event. Unknown event types are
// acknowledged so the provider does not retry them.
func (h *ConversationHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.EmotionWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid emotion webhook", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = req.CallID
	}

	result, err := h.service.HandleEvent(ctx, service.ConversationEvent{
		Type:           service.EventType(req.Type),
		ConversationID: conversationID,
		CallerNumber:   req.CallerNumber,
		MessageID:      req.MessageID,
		Text:           req.Text,
		Emotions:       req.Emotions,
		TopEmotion:     req.TopEmotion,
		Intensity:      req.Intensity,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, service.ErrConversationEnded):
			c.JSON(http.StatusConflict, gin.H{"error": "conversation already ended"})
		default:
			slog.ErrorContext(ctx, "emotion webhook processing failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.EmotionWebhookResponse{
		Success:  true,
		Message:  "Webhook processed",
		Enqueued: result.Enqueued,
	})
}

func (h *ConversationHandler) Flags(c *gin.Context) {
	ctx := c.Request.Context()

	limit := service.DefaultFlagsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	flags, err := h.service.Flags(ctx, c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to analyze conversation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to analyze conversation"})
		return
	}

	c.JSON(http.StatusOK, dto.ConversationFlagsResponse{
		ConversationID: flags.ConversationID,
		TopEmotions:    flags.TopEmotions,
		EmergencyFlags: flags.Flags,
	})
}

// Get returns the live snapshot of an open or recently ended conversation.
func (h *ConversationHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	data, err := h.service.Snapshot(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load conversation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	c.JSON(http.StatusOK, data)
}
