package middleware

import (
	"fmt"
	"net/http"

	"template-service/internal/api/respond"
	"template-service/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	requestIDKey    = "requestId"

	msgUnexpected = "An unexpected error occurred while generating the image"
)

// RequestID echoes X-Request-ID or assigns a fresh one, and starts the
// processing clock.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		respond.MarkStart(c)

		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog logs one line per request after it completes.
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		fields := map[string]interface{}{
			"requestId":  GetRequestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"durationMs": respond.Elapsed(c).Milliseconds(),
			"clientIp":   c.ClientIP(),
		}
		if last := c.Errors.Last(); last != nil {
			fields["error"] = last.Error()
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request completed", fields)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request completed", fields)
		default:
			log.Info("request completed", fields)
		}
	}
}

// Recovery turns a panic into a status 0 response with HTTP 500.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("panic while handling request", map[string]interface{}{
			"requestId": GetRequestID(c),
			"path":      c.Request.URL.Path,
			"panic":     fmt.Sprint(recovered),
		})
		respond.Failed(c, http.StatusInternalServerError, msgUnexpected)
		c.Abort()
	})
}
