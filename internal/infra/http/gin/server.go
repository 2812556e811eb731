package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"chaletbook/internal/infra/config"
	"chaletbook/internal/infra/obs"
)

type ChaletHTTP interface {
	List(c *gin.Context)
	Availability(c *gin.Context)
	Calendar(c *gin.Context)
}

type ReservationHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	ExtendHold(c *gin.Context)
}

type PaymentHTTP interface {
	MidtransNotification(c *gin.Context)
	Webhook(c *gin.Context)
}

type MaintenanceHTTP interface {
	Sweep(c *gin.Context)
}

type AdminHTTP interface {
	ListReservations(c *gin.Context)
	Confirm(c *gin.Context)
	Cancel(c *gin.Context)
	PollPayment(c *gin.Context)
	SyncReservation(c *gin.Context)
	ListBlocks(c *gin.Context)
	AddBlocks(c *gin.Context)
	RemoveBlock(c *gin.Context)
	SyncBlocks(c *gin.Context)
	SyncPending(c *gin.Context)
}

type Handlers struct {
	Chalets      ChaletHTTP
	Reservations ReservationHTTP
	Payments     PaymentHTTP
	Maintenance  MaintenanceHTTP
	Admin        AdminHTTP
	Guards       Guards
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine with every route group wired.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(obsMW.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", "X-Operator-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Chalets != nil {
		api.GET("/chalets", h.Chalets.List)
		api.GET("/chalets/:id/availability", h.Chalets.Availability)
		api.GET("/chalets/:id/calendar", h.Chalets.Calendar)
	}
	if h.Reservations != nil {
		api.POST("/reservations", h.Reservations.Create)
		api.GET("/reservations/:id", h.Reservations.Get)
		api.POST("/reservations/:id/hold-extension", h.Reservations.ExtendHold)
	}
	if h.Payments != nil {
		api.POST("/payments/midtrans/notifications", h.Payments.MidtransNotification)
		api.POST("/payments/webhook", h.Payments.Webhook)
	}
	if h.Maintenance != nil {
		api.POST("/maintenance/sweep", h.Guards.RequireCron(), h.Maintenance.Sweep)
	}
	if h.Admin != nil {
		admin := api.Group("/admin", h.Guards.RequireOperator())
		admin.GET("/reservations", h.Admin.ListReservations)
		admin.POST("/reservations/:id/confirm", h.Admin.Confirm)
		admin.POST("/reservations/:id/cancel", h.Admin.Cancel)
		admin.POST("/reservations/:id/poll-payment", h.Admin.PollPayment)
		admin.POST("/reservations/:id/sync", h.Admin.SyncReservation)
		admin.GET("/chalets/:id/blocks", h.Admin.ListBlocks)
		admin.POST("/chalets/:id/blocks", h.Admin.AddBlocks)
		admin.DELETE("/chalets/:id/blocks/:date", h.Admin.RemoveBlock)
		admin.POST("/chalets/:id/channels/sync-blocks", h.Admin.SyncBlocks)
		admin.POST("/channels/sync-pending", h.Admin.SyncPending)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
