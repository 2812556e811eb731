package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"chaletbook/internal/app/commands"
	"chaletbook/internal/app/dto"
	blocksapp "chaletbook/internal/app/handlers/blocks"
	channelsapp "chaletbook/internal/app/handlers/channels"
	paymentsapp "chaletbook/internal/app/handlers/payments"
	reservationsapp "chaletbook/internal/app/handlers/reservations"
	"chaletbook/internal/app/queries"
)

// AdminHandler serves the operator console. Every route sits behind
// Guards.RequireOperator.
type AdminHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h AdminHandler) ListReservations(c *gin.Context) {
	q := reservationsapp.ListReservationsQuery{ChaletID: c.Query("chalet_id"), Status: c.Query("status")}
	result, err := queries.Ask[reservationsapp.ListReservationsQuery, dto.ReservationCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type confirmRequest struct {
	PaymentReference string `json:"payment_reference"`
	Method           string `json:"method"`
	Partial          bool   `json:"partial"`
}

func (h AdminHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	cmd := reservationsapp.ConfirmReservationCommand{
		ReservationID:    c.Param("id"),
		PaymentReference: req.PaymentReference,
		Method:           req.Method,
		Partial:          req.Partial,
	}
	result, err := commands.Dispatch[reservationsapp.ConfirmReservationCommand, dto.Transition](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type cancelRequest struct {
	Reason string `json:"reason"`
	Refund bool   `json:"refund"`
}

func (h AdminHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	cmd := reservationsapp.CancelReservationCommand{ReservationID: c.Param("id"), Reason: req.Reason, Refund: req.Refund}
	result, err := commands.Dispatch[reservationsapp.CancelReservationCommand, dto.Transition](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) PollPayment(c *gin.Context) {
	cmd := paymentsapp.PollPaymentCommand{ReservationID: c.Param("id")}
	result, err := commands.Dispatch[paymentsapp.PollPaymentCommand, dto.PaymentOutcome](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) SyncReservation(c *gin.Context) {
	cmd := channelsapp.SyncReservationCommand{ReservationID: c.Param("id")}
	result, err := commands.Dispatch[channelsapp.SyncReservationCommand, dto.ReservationSyncResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) ListBlocks(c *gin.Context) {
	q := blocksapp.ListManualBlocksQuery{ChaletID: c.Param("id"), From: c.Query("from"), To: c.Query("to")}
	result, err := queries.Ask[blocksapp.ListManualBlocksQuery, dto.ManualBlockCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type addBlocksRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

func (h AdminHandler) AddBlocks(c *gin.Context) {
	var req addBlocksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}
	cmd := blocksapp.AddManualBlocksCommand{ChaletID: c.Param("id"), From: req.From, To: req.To, Reason: req.Reason}
	result, err := commands.Dispatch[blocksapp.AddManualBlocksCommand, dto.BlockChange](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h AdminHandler) RemoveBlock(c *gin.Context) {
	cmd := blocksapp.RemoveManualBlocksCommand{ChaletID: c.Param("id"), Dates: []string{c.Param("date")}}
	result, err := commands.Dispatch[blocksapp.RemoveManualBlocksCommand, dto.BlockChange](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) SyncBlocks(c *gin.Context) {
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))
	cmd := channelsapp.SyncManualBlocksCommand{ChaletID: c.Param("id"), DryRun: dryRun}
	result, err := commands.Dispatch[channelsapp.SyncManualBlocksCommand, dto.BlockSyncResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) SyncPending(c *gin.Context) {
	result, err := commands.Dispatch[channelsapp.SyncPendingCommand, dto.PendingSyncResult](c.Request.Context(), h.Commands, channelsapp.SyncPendingCommand{})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		respondBadBody(c, err)
		return false
	}
	return true
}

var _ AdminHTTP = AdminHandler{}
