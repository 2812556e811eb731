package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	reservationsapp "chaletbook/internal/app/handlers/reservations"
	"chaletbook/internal/app/queries"
)

type ReservationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createReservationRequest struct {
	ChaletID string `json:"chalet_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Guest    struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"guest"`
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

func (h ReservationHandler) Create(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}
	cmd := reservationsapp.CreateReservationCommand{
		ChaletID:        req.ChaletID,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		GuestName:       req.Guest.Name,
		GuestEmail:      req.Guest.Email,
		GuestPhone:      req.Guest.Phone,
		Adults:          req.Adults,
		Children:        req.Children,
		Infants:         req.Infants,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[reservationsapp.CreateReservationCommand, *dto.ReservationCreated](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ReservationHandler) Get(c *gin.Context) {
	result, err := queries.Ask[reservationsapp.GetReservationQuery, dto.ReservationView](c.Request.Context(), h.Queries, reservationsapp.GetReservationQuery{ID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type extendHoldRequest struct {
	Method string `json:"method"`
}

func (h ReservationHandler) ExtendHold(c *gin.Context) {
	var req extendHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}
	cmd := reservationsapp.ExtendHoldCommand{ReservationID: c.Param("id"), Method: req.Method}
	result, err := commands.Dispatch[reservationsapp.ExtendHoldCommand, dto.Transition](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ReservationHTTP = ReservationHandler{}
