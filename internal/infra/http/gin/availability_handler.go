package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"chaletbook/internal/app/dto"
	availabilityapp "chaletbook/internal/app/handlers/availability"
	"chaletbook/internal/app/queries"
)

type ChaletHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h ChaletHandler) List(c *gin.Context) {
	result, err := queries.Ask[availabilityapp.ListChaletsQuery, []dto.ChaletSummary](c.Request.Context(), h.Queries, availabilityapp.ListChaletsQuery{})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": result})
}

func (h ChaletHandler) Availability(c *gin.Context) {
	query := availabilityapp.CheckAvailabilityQuery{
		ChaletID: c.Param("id"),
		CheckIn:  c.Query("check_in"),
		CheckOut: c.Query("check_out"),
	}
	result, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChaletHandler) Calendar(c *gin.Context) {
	query := availabilityapp.GetCalendarQuery{ChaletID: c.Param("id"), From: c.Query("from"), To: c.Query("to")}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, result)
}

var _ ChaletHTTP = ChaletHandler{}
