package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/tokengate/tokengate/internal/models"
	"github.com/tokengate/tokengate/internal/services"
)

// HealthHandler reports subsystem status for load balancers and probes.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	taskQueue := services.GetTaskQueue()
	queueMode := "sync"
	if taskQueue != nil && taskQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	var activeTokens int64
	models.GetDB().Model(&models.UserToken{}).
		Where("enabled = ?", true).
		Count(&activeTokens)

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "tokengate",
		"components": gin.H{
			"database":      dbStatus,
			"queue_mode":    queueMode,
			"active_tokens": activeTokens,
		},
	})
}
