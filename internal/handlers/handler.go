package handlers

import (
	"smartdoor/internal/door"
	"smartdoor/internal/fingerprint"
	"smartdoor/internal/logger"
	"smartdoor/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// DoorControl is the slice of the door controller the HTTP layer needs.
type DoorControl interface {
	OpenDoor()
	CloseDoor()
	State() door.State
	IsConnected() bool
	HoldTime() int
	SetHoldTime(seconds int)
}

// Provisioner is the synchronous fingerprint provisioning surface.
type Provisioner interface {
	Enroll() fingerprint.Result
	Delete(id int) fingerprint.Result
	DeleteAll() fingerprint.Result
	FirstEmptySlot() fingerprint.Result
}

// Handler wires the HTTP layer to services, the door controller, and the
// fingerprint channel.
type Handler struct {
	services *service.Service
	door     DoorControl
	fp       Provisioner
	hub      *Hub
	log      *logger.Logger
}

// NewHandler constructs the HTTP handler with its dependencies. hub may be
// nil when the websocket stream is not wanted (tests).
func NewHandler(services *service.Service, doorCtrl DoorControl, fp Provisioner, hub *Hub, log *logger.Logger) *Handler {
	return &Handler{services: services, door: doorCtrl, fp: fp, hub: hub, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live serial-line / door-state stream — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerDoorRoutes(api)
		h.registerPasscodeRoutes(api)
		h.registerFingerprintRoutes(api)
		h.registerLogRoutes(api)
		h.registerSettingsRoutes(api)
	}
}

func (h *Handler) registerDoorRoutes(api *gin.RouterGroup) {
	d := api.Group("/door")
	{
		d.POST("/open", h.openDoor)
		d.POST("/close", h.closeDoor)
		d.GET("/state", h.doorState)
		d.PUT("/hold-time", h.setHoldTime)
	}
}

func (h *Handler) registerPasscodeRoutes(api *gin.RouterGroup) {
	p := api.Group("/passcodes")
	{
		p.PUT("/main", h.setMainPasscode)
		p.GET("/main/reveal", h.revealMainPasscode)
		p.POST("/guest", h.createGuestPasscode)
		p.GET("/guest", h.listGuestPasscodes)
		p.DELETE("/guest/:id", h.deleteGuestPasscode)
	}
}

func (h *Handler) registerFingerprintRoutes(api *gin.RouterGroup) {
	f := api.Group("/fingerprints")
	{
		f.POST("/enroll", h.enrollFingerprint)
		f.DELETE("/:id", h.deleteFingerprint)
		f.DELETE("", h.deleteAllFingerprints)
		f.GET("/first-empty", h.firstEmptySlot)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("", h.listLogs)
		logs.GET("/recent", h.recentOpenings)
		logs.DELETE("", h.clearLogs)
		logs.DELETE("/:id", h.deleteLog)
	}
}

func (h *Handler) registerSettingsRoutes(api *gin.RouterGroup) {
	s := api.Group("/settings")
	{
		s.GET("", h.getSettings)
		s.PUT("/toggles", h.setToggle)
	}
}
