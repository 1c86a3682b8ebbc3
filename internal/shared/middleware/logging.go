package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/videogen/internal/shared/logger"
)

// Logging returns a middleware that logs HTTP requests. It also stores log in
// the request context, so handlers and Recovery log with the request ID.
func Logging(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.New(nil)
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), log))

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			logger.Int("status", status),
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("latency_ms", int(latency.Milliseconds())),
			logger.String("client_ip", c.ClientIP()),
		}
		if query != "" {
			attrs = append(attrs, logger.String("query", query))
		}
		if userAgent := c.Request.UserAgent(); userAgent != "" {
			attrs = append(attrs, logger.String("user_agent", userAgent))
		}
		if jobID, ok := c.Get("job_id"); ok {
			attrs = append(attrs, logger.Any("job_id", jobID))
		}
		if last := c.Errors.Last(); last != nil {
			attrs = append(attrs, logger.Err(last.Err))
		}

		reqLog := logger.FromContext(c.Request.Context())
		msg := "HTTP Request"
		switch {
		case status >= 500:
			reqLog.Error(msg, attrs...)
		case status >= 400:
			reqLog.Warn(msg, attrs...)
		default:
			reqLog.Info(msg, attrs...)
		}
	}
}
