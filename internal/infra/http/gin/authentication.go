package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"chaletbook/internal/app/middleware"
	"chaletbook/internal/infra/security"
)

type OperatorVerifier interface {
	Verify(key string) error
}

// Guards authenticate the operator console and the cron trigger.
type Guards struct {
	Operator OperatorVerifier
	Cron     security.SharedSecret
	Logger   *slog.Logger
}

// RequireOperator checks X-Operator-Key and marks the request context so
// operator-only commands pass authorization.
func (g Guards) RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Operator-Key")
		if g.Operator == nil || g.Operator.Verify(key) != nil {
			if g.Logger != nil && key != "" {
				g.Logger.Warn("operator key rejected", "path", c.FullPath(), "client_ip", c.ClientIP())
			}
			abortUnauthorized(c, "operator key required")
			return
		}
		c.Request = c.Request.WithContext(middleware.WithOperator(c.Request.Context()))
		c.Next()
	}
}

func (g Guards) RequireCron() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Cron.Matches(c.GetHeader("X-Cron-Secret")) {
			abortUnauthorized(c, "cron secret required")
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errorBody{
		Kind:    "unauthorized",
		Reason:  "unauthorized",
		Message: msg,
	}})
}
