package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kwik.app/dispatch/internal/http/dto"
	"kwik.app/dispatch/internal/triage"
)

type TriageHandler struct {
	provider triage.Provider
	weights  triage.Weights
	timeout  time.Duration
}

// NewTriageHandler exposes the configured extractor. provider may be nil.
func NewTriageHandler(provider triage.Provider, weights triage.Weights, timeout time.Duration) *TriageHandler {
	if timeout <= 0 {
		timeout = triage.DefaultTimeout
	}
	return &TriageHandler{
		provider: provider,
		weights:  weights,
		timeout:  timeout,
	}
}

func (h *TriageHandler) Extract(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	transcript := req.Transcript.Text()
	if strings.TrimSpace(transcript) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transcript is required"})
		return
	}
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "triage extractor not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	extraction, err := h.provider.Extract(ctx, transcript)
	if err != nil {
		slog.WarnContext(ctx, "triage extraction failed", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"error": "triage extraction failed"})
		return
	}

	c.JSON(http.StatusOK, dto.ExtractResponse{Extraction: extraction})
}

func (h *TriageHandler) Weights(c *gin.Context) {
	c.JSON(http.StatusOK, h.weights)
}
