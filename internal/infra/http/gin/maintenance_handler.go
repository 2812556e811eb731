package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	reservationsapp "chaletbook/internal/app/handlers/reservations"
)

type MaintenanceHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

func (h MaintenanceHandler) Sweep(c *gin.Context) {
	result, err := commands.Dispatch[reservationsapp.SweepExpiredCommand, dto.SweepResult](c.Request.Context(), h.Commands, reservationsapp.SweepExpiredCommand{})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ MaintenanceHTTP = MaintenanceHandler{}
