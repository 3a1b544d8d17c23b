package routes

import (
	"aaisaheb/controllers"
	"aaisaheb/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Controllers groups every handler mounted on the edge server.
type Controllers struct {
	SOS            *controllers.SOSController
	OfflineRequest *controllers.OfflineRequestController
	Proxy          *controllers.ProxyController
	WebSocket      *controllers.WebSocketController
	Health         *controllers.HealthController
}

type Options struct {
	Environment    string
	AllowedOrigins []string
	LocalAPIToken  string
}

// SetupRoutes initializes all application routes
func SetupRoutes(ctrl *Controllers, opts Options) *gin.Engine {
	router := gin.New()

	setupGlobalMiddleware(router, opts)

	router.GET("/health", ctrl.Health.HealthCheck)

	if ctrl.Proxy != nil {
		setupProxyRoutes(router, ctrl.Proxy)
	}
	setupSOSRoutes(router, ctrl, opts)

	if ctrl.WebSocket != nil {
		router.GET("/ws", ctrl.WebSocket.HandleWebSocket)
	}

	return router
}

func setupGlobalMiddleware(router *gin.Engine, opts Options) {
	router.Use(middleware.NewErrorHandler(opts.Environment, logrus.StandardLogger()).Handle())
	router.Use(middleware.DefaultLoggerMiddleware())
	router.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig(opts.AllowedOrigins)))
}

// Browser-facing SOS endpoints, forwarded upstream through the interception transport
func setupProxyRoutes(router *gin.Engine, proxy *controllers.ProxyController) {
	router.POST("/activate_sos", proxy.Forward)
	router.POST("/api/sos/activate", proxy.Forward)
	router.POST("/cancel_sos", proxy.Forward)
	router.POST("/api/sos/cancel", proxy.Forward)
}

func setupSOSRoutes(router *gin.Engine, ctrl *Controllers, opts Options) {
	sos := router.Group("/sos")
	sos.Use(middleware.LocalTokenAuth(opts.LocalAPIToken))
	{
		sos.POST("/activate", ctrl.SOS.Activate)
		sos.POST("/cancel", ctrl.SOS.Cancel)
		sos.GET("/status", ctrl.SOS.GetStatus)
		sos.GET("/queue", ctrl.SOS.GetQueue)
		sos.POST("/sync", ctrl.SOS.Sync)
		sos.GET("/failed", ctrl.SOS.GetFailed)
	}

	if ctrl.OfflineRequest != nil {
		offline := sos.Group("/offline-requests")
		{
			offline.GET("", ctrl.OfflineRequest.List)
			offline.POST("/reconcile", ctrl.OfflineRequest.Reconcile)
		}
	}

	if ctrl.WebSocket != nil {
		sos.GET("/ws-stats", ctrl.WebSocket.GetStats)
	}
}
