package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tokengate/tokengate/internal/models"
	"github.com/tokengate/tokengate/internal/services"
)

var startTime = time.Now()

// Metrics returns Prometheus-compatible text format metrics.
func Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "tokengate_uptime_seconds", "Time since server start in seconds", float64(time.Since(startTime).Seconds()))
	writeGauge(&b, "tokengate_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "tokengate_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "tokengate_memory_sys_bytes", "Total memory obtained from OS in bytes", float64(m.Sys))
	writeGauge(&b, "tokengate_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	db := models.GetDB()
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			stats := sqlDB.Stats()
			writeGauge(&b, "tokengate_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
			writeGauge(&b, "tokengate_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
			writeGauge(&b, "tokengate_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
		}
	}

	// -- Queue metrics --
	taskQueue := services.GetTaskQueue()
	queueAsync := 0.0
	if taskQueue != nil && taskQueue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "tokengate_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Token fleet metrics --
	if db != nil {
		var totalTokens, enabledTokens int64
		db.Model(&models.UserToken{}).Count(&totalTokens)
		db.Model(&models.UserToken{}).Where("enabled = ?", true).Count(&enabledTokens)
		writeGauge(&b, "tokengate_tokens_total", "Total number of issued tokens", float64(totalTokens))
		writeGauge(&b, "tokengate_tokens_enabled", "Number of enabled tokens", float64(enabledTokens))

		var totalAccess, blockedAccess int64
		db.Model(&models.AccessLog{}).Count(&totalAccess)
		db.Model(&models.AccessLog{}).Where("blocked = ?", true).Count(&blockedAccess)
		writeGauge(&b, "tokengate_access_requests_total", "Total gateway authorization attempts recorded", float64(totalAccess))
		writeGauge(&b, "tokengate_access_blocked_total", "Total denied authorization attempts recorded", float64(blockedAccess))

		var bucket models.UsageDay
		if err := db.Where("day = ?", time.Now().Format("2006-01-02")).First(&bucket).Error; err == nil {
			writeGauge(&b, "tokengate_requests_today", "Requests accounted in today's usage bucket", float64(bucket.Requests))
			writeGauge(&b, "tokengate_tokens_used_today", "Consumption accounted in today's usage bucket", float64(bucket.TokensUsed))
		}
	}

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n", name, value)
}
