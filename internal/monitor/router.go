// internal/monitor/router.go
package monitor

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fc-link/internal/config"
	"fc-link/internal/utils"
)

// Router holds the monitor's routing dependencies
type Router struct {
	config        *config.Config
	logger        *zap.Logger
	statusHandler *StatusHandler
	wsHandler     *WebSocketHandler
}

// NewRouter creates a new monitor router
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	statusHandler *StatusHandler,
	wsHandler *WebSocketHandler,
) *Router {
	return &Router{
		config:        cfg,
		logger:        logger,
		statusHandler: statusHandler,
		wsHandler:     wsHandler,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(RecoveryMiddleware(r.logger))

	serviceLogger := utils.NewServiceLogger(r.logger, "monitor")
	router.Use(LoggingMiddleware(serviceLogger))

	router.Use(CORSMiddleware(&r.config.Monitor))
}

// addRoutes sets up all monitor routes
func (r *Router) addRoutes(router *gin.Engine) {
	router.GET("/healthz", r.statusHandler.Health)

	apiV1 := router.Group("/api/v1")
	apiV1.GET("/link/status", r.statusHandler.GetStatus)

	ws := router.Group("/ws")
	ws.GET("/events", r.wsHandler.HandleEvents)

	r.logger.Info("Monitor routes configured")
}
