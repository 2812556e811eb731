package obs

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Middleware struct {
	Logger *slog.Logger
}

func (m Middleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), id))
		c.Writer.Header().Set("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

func (m Middleware) LoggerMiddleware() gin.HandlerFunc {
	log := m.Logger
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}
		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log.Log(c.Request.Context(), level, "http",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		)
	}
}

// Recovery turns a panic into a 500 with the API error body.
func (m Middleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				if m.Logger != nil {
					m.Logger.Error("panic recovered", "panic", rec, "path", c.Request.URL.Path, "request_id", c.GetString("request_id"))
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": gin.H{
					"kind":    "internal",
					"message": "internal error",
				}})
			}
		}()
		c.Next()
	}
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
