package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallplates/internal/service"
)

// HealthCheck 提供负载均衡与监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}

// GetSystemSettings 返回当前系统设置。
func (a *API) GetSystemSettings(c *gin.Context) {
	settings, err := a.system.GetSettings(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "failed to load settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// UpdateSystemSettings 保存系统设置。
func (a *API) UpdateSystemSettings(c *gin.Context) {
	var payload service.SystemSettingsInput
	if !bindJSON(c, &payload, "invalid system settings") {
		return
	}

	settings, err := a.system.UpdateSettings(c.Request.Context(), payload)
	if err != nil {
		a.respondServiceError(c, err, "failed to save settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "settings saved",
		"settings": settings,
	})
}
