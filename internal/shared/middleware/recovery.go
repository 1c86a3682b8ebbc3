package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	apperrors "github.com/uniedit/videogen/internal/shared/errors"
	"github.com/uniedit/videogen/internal/shared/logger"
)

// Recovery returns a middleware that recovers from panics.
// It logs with the request's logger when Logging ran, otherwise with log.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.FromContextOr(c.Request.Context(), log).Error("Panic recovered",
					logger.Any("error", err),
					logger.String("method", c.Request.Method),
					logger.String("path", c.Request.URL.Path),
					logger.String("client_ip", c.ClientIP()),
					logger.String("stack", string(debug.Stack())),
				)

				appErr := apperrors.Internal("internal server error", nil)
				c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
			}
		}()
		c.Next()
	}
}
