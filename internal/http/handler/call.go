package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kwik.app/dispatch/internal/http/dto"
	"kwik.app/dispatch/internal/service"
	"kwik.app/dispatch/internal/store"
	"kwik.app/dispatch/internal/triage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type CallHandler struct {
	service service.CallService
	now     func() time.Time
}

func NewCallHandler(service service.CallService) *CallHandler {
	return &CallHandler{
		service: service,
		now:     time.Now,
	}
}

func (h *CallHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid create call request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	call, err := h.service.Create(ctx, service.CreateCallParams{
		CallerNumber:   req.PhoneNumber,
		Transcript:     req.Transcript,
		Emotions:       req.Emotions,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		if errors.Is(err, triage.ErrMissingCallerNumber) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Phone number is required"})
			return
		}
		slog.ErrorContext(ctx, "failed to create call", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create call"})
		return
	}

	c.JSON(http.StatusOK, dto.CreateCallResponse{
		Success: true,
		Call:    dto.NewCallResponse(*call, h.now()),
		Message: "Emergency call created successfully",
	})
}

func (h *CallHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	calls, err := h.service.List(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list calls", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list calls"})
		return
	}

	now := h.now()
	resp := dto.ListCallsResponse{
		Calls: make([]dto.CallResponse, 0, len(calls)),
		Count: len(calls),
	}
	for _, call := range calls {
		resp.Calls = append(resp.Calls, dto.NewCallResponse(call, now))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CallHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	call, err := h.service.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to get call", "error", err, "call_id", c.Param("id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get call"})
		return
	}

	c.JSON(http.StatusOK, dto.NewCallResponse(*call, h.now()))
}

func (h *CallHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UpdateCallStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	call, err := h.service.UpdateStatus(ctx, c.Param("id"), req.Status, req.CallStatus)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		default:
			slog.ErrorContext(ctx, "failed to update call status", "error", err, "call_id", c.Param("id"))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update call status"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewCallResponse(*call, h.now()))
}
