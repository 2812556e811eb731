package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"chaletbook/internal/app/apperr"
	"chaletbook/internal/app/middleware"
)

type errorBody struct {
	Kind             string   `json:"kind"`
	Reason           string   `json:"reason,omitempty"`
	Message          string   `json:"message"`
	ConflictingDates []string `json:"conflicting_dates,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict, apperr.KindStateConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError renders err with the status its classification maps to.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	if errors.Is(err, middleware.ErrOperatorRequired) {
		c.JSON(http.StatusForbidden, gin.H{"error": errorBody{Kind: "forbidden", Reason: "operator_required", Message: "operator credentials required"}})
		return
	}
	ae := apperr.From(err)
	status := statusFor(ae.Kind)
	if logger != nil {
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed",
			"status", status,
			"kind", ae.Kind,
			"reason", ae.Reason,
			"error", err,
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
		)
	}
	c.JSON(status, gin.H{"error": errorBody{
		Kind:             string(ae.Kind),
		Reason:           ae.Reason,
		Message:          ae.Message,
		ConflictingDates: ae.Dates,
	}})
}

func respondBadBody(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errorBody{
		Kind:    string(apperr.KindValidation),
		Reason:  "invalid_body",
		Message: err.Error(),
	}})
}
