package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stock_alerts_backend/controllers"
	"stock_alerts_backend/middleware"
	"stock_alerts_backend/services/realtime"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	AlertController *controllers.AlertController
	PushController  *controllers.PushController
	Realtime        *realtime.Handler
	Verifier        *middleware.TokenVerifier
	Limiter         *middleware.RateLimiter
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The websocket handler authenticates on its own because browsers
	// cannot set headers on the upgrade request.
	router.GET("/ws", d.Realtime.Serve)

	// API v1 group
	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(d.Verifier))
	{
		// Alert routes
		alerts := api.Group("/alerts")
		{
			alerts.POST("", middleware.RateLimitMiddleware(d.Limiter, "alert_create"), d.AlertController.CreateAlert)
			alerts.GET("", d.AlertController.GetAlerts)
			alerts.DELETE("/:id", d.AlertController.DeactivateAlert)
			alerts.POST("/:id/rearm", d.AlertController.RearmAlert)
		}

		// Push subscription routes
		push := api.Group("/push")
		{
			push.GET("/key", d.PushController.GetVAPIDKey)
			push.POST("/subscribe", d.PushController.Subscribe)
			push.POST("/unsubscribe", d.PushController.Unsubscribe)
		}
	}
}
