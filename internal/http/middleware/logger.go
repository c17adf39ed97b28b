package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"kwik.app/dispatch/common/logger"
)

// Logger logs one line per request and echoes the trace id in traceHeader so
// dispatcher clients can correlate a call with the worker's logs.
func Logger(traceHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
			Component: "dispatch.http",
		})
		c.Request = c.Request.WithContext(ctx)

		if traceID := logger.TraceID(ctx); traceID != "" && traceHeader != "" {
			c.Header(traceHeader, traceID)
		}

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "request error", attrs...)
		default:
			slog.InfoContext(ctx, "request", attrs...)
		}
	}
}
