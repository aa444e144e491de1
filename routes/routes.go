package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"route-feedback-api/config"
	"route-feedback-api/controllers"
	"route-feedback-api/middleware"
	"route-feedback-api/monitor"
)

func SetupRoutes(router *gin.Engine, settings *config.Settings) {
	monitor.RegisterMetricsRoute(router)
	monitor.RegisterLogsRoute(router, settings.LogsToken, config.LogFilePath())
	monitor.RegisterMonitorPage(router, settings.LogsToken)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"status":  "ok",
				"message": "Route Feedback API is running",
			})
		})
		v1.GET("/form", controllers.GetForm)

		limiter := middleware.NewRateLimiter(settings.SubmitRatePerMinute)
		v1.POST("/submissions", middleware.RateLimitMiddleware(limiter), controllers.SubmitFeedback)

		v1.POST("/admin/login", controllers.AdminLogin)

		// Admin routes (require an admin token)
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(settings.JWTSecret), middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.GET("/submissions", controllers.ListSubmissions)
			admin.GET("/submissions/:id", controllers.GetSubmission)
			admin.GET("/export", controllers.DownloadExport)
			admin.POST("/export/resync", controllers.ResyncExport)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Endpoint not found"})
	})
}
