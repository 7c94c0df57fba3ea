package handlers

import (
	"thermostat_control/internal/logger"
	"thermostat_control/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log.Named("http")}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.accessLog)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// state stream, same port
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
	api := r.Group("/api/v1", h.requireOperator)
	{
		h.registerThermostatRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerThermostatRoutes(api *gin.RouterGroup) {
	thermostats := api.Group("/thermostats")
	{
		thermostats.GET("", h.listThermostats)
		thermostats.GET("/:id/state", h.getState)
		thermostats.GET("/:id/settings", h.getSettings)
		thermostats.POST("/:id/enable", h.enable)
		thermostats.POST("/:id/disable", h.disable)
		// Body example: {"setpoint":21.5}
		thermostats.POST("/:id/setpoint", h.setSetpoint)
		// Body example: {"hysteresisHigh":-0.1,"temperatureSources":{"v1/home/boiler/T1/value":1}}
		thermostats.POST("/:id/settings", h.applySettings)
		thermostats.POST("/:id/ack-alarm", h.ackAlarm)
		thermostats.POST("/:id/samples", h.recordSample)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
