package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Маршруты для управления проблемами (CRUD)
	issues := api.Group("/issues")
	{
		issues.POST("", h.createIssue)
		issues.GET("", h.listIssues)
		issues.GET("/:id", h.getIssue)
		issues.PUT("/:id", h.updateIssue)
		issues.PUT("/:id/resolve", h.resolveIssue)
		issues.DELETE("/:id", h.deleteIssue)
	}

	api.GET("/map", h.mapIssues)

	backup := api.Group("/backup")
	{
		backup.GET("/export", h.exportIssues)
		backup.POST("/import", h.importIssues)
	}

	settings := api.Group("/settings")
	{
		settings.GET("", h.getSettings)
		settings.PUT("", h.updateSettings)
		settings.POST("/reset", h.resetData)
	}

	tracking := api.Group("/tracking")
	{
		tracking.GET("", h.trackingStatus)
		tracking.POST("/start", h.startTracking)
		tracking.POST("/stop", h.stopTracking)
		tracking.PUT("/background", h.setBackgroundActivity)
		tracking.PUT("/permission", h.setPermission)
		// Отметки идут с устройства непрерывно, поэтому ограничиваем частоту
		tracking.POST("/fixes", RateLimitMiddleware(h.cfg.FixRateLimitRPS, h.cfg.FixRateLimitBurst, h.logger), h.pushFix)
		tracking.POST("/feed-error", h.reportFeedError)
		tracking.GET("/live", h.liveLocation)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
