package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"weaponwatch/alerting/internal/hoststats"
	"weaponwatch/alerting/internal/models"
	"weaponwatch/alerting/internal/query"
	"weaponwatch/alerting/internal/repository"
)

// HostStats reads host load for the status page.
type HostStats interface {
	Collect(ctx context.Context) hoststats.Snapshot
}

type HealthHandler struct {
	checker repository.HealthChecker
	store   AlertReader
	host    HostStats
	started time.Time
	now     func() time.Time
}

func NewHealthHandler(checker repository.HealthChecker, store AlertReader, host HostStats, started time.Time) *HealthHandler {
	return &HealthHandler{checker: checker, store: store, host: host, started: started, now: time.Now}
}

func (h *HealthHandler) Health(ctx *gin.Context) {
	if err := h.checker.CheckHealth(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type SystemStatusResponse struct {
	Status          string              `json:"status"`
	TotalDetections int                 `json:"total_detections"`
	PendingAlerts   int                 `json:"pending_alerts"`
	CriticalAlerts  int                 `json:"critical_alerts"`
	LastAlert       *models.Alert       `json:"last_alert"`
	UptimeSeconds   int64               `json:"uptime_seconds"`
	Host            *hoststats.Snapshot `json:"host,omitempty"`
}

func (h *HealthHandler) SystemStatus(ctx *gin.Context) {
	stats := query.Aggregate(h.store.List())

	response := SystemStatusResponse{
		Status:          "online",
		TotalDetections: stats.Total,
		PendingAlerts:   stats.PendingCount,
		CriticalAlerts:  stats.CriticalCount,
		UptimeSeconds:   int64(h.now().Sub(h.started).Seconds()),
	}
	if err := h.checker.CheckHealth(); err != nil {
		response.Status = "degraded"
	}

	for alert := range h.store.List() {
		if response.LastAlert == nil || alert.Timestamp.After(response.LastAlert.Timestamp) {
			a := alert
			response.LastAlert = &a
		}
	}
	if h.host != nil {
		snap := h.host.Collect(ctx.Request.Context())
		response.Host = &snap
	}
	ctx.JSON(http.StatusOK, response)
}
