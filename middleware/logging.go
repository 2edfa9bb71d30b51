package middleware

import (
	"fmt"
	"net/http"
	"time"

	"storefront-backend/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestLogger tags each request with an id, carries request fields on the
// request context and logs completion.
func RequestLogger(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)

		ctx := logg.WithRequestID(c.Request.Context(), reqID)
		ctx = logg.WithFields(ctx, map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		if id := UserID(c); id != nil {
			ctx = logg.WithUserID(ctx, id.String())
		}
		ctx = logg.WithFields(ctx, map[string]any{
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		logg.Info(ctx, "request.complete")
	}
}

// Recoverer turns a panic into a 500 response and logs it.
func Recoverer(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				ctx := logg.WithField(c.Request.Context(), "panic", rec)
				logg.Error(ctx, "panic.recovered", fmt.Errorf("panic: %v", rec))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
		}()
		c.Next()
	}
}
