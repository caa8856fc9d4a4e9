package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/alert-engine/internal/api/middleware"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
	"github.com/frostdev-ops/alert-engine/pkg/utils"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type acknowledgeRequest struct {
	UserID string `json:"user_id"`
}

type resolveRequest struct {
	UserID     string `json:"user_id"`
	Resolution string `json:"resolution"`
}

// FireAlert records an externally observed alert
func (h *Handlers) FireAlert(c *gin.Context) {
	var req monitoring.FireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid alert: "+err.Error())
		return
	}

	alert, outcome, err := h.manager.FireAlertWithOutcome(c.Request.Context(), req)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	status := http.StatusCreated
	switch outcome {
	case monitoring.FireUpdated:
		status = http.StatusOK
	case monitoring.FireSuppressed:
		status = http.StatusAccepted
	}
	utils.SendStatus(c, status, alert)
}

// GetActiveAlerts lists active alerts, optionally for one tenant
func (h *Handlers) GetActiveAlerts(c *gin.Context) {
	alerts := h.manager.GetActiveAlerts(c.Query("tenant"))
	utils.SendSuccessWithMeta(c, alerts, gin.H{"count": len(alerts)})
}

// AcknowledgeAlert moves an open alert to acknowledged
func (h *Handlers) AcknowledgeAlert(c *gin.Context) {
	var req acknowledgeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.SendError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
	}

	alert, err := h.manager.AcknowledgeAlert(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c, req.UserID))
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}

// ResolveAlert closes an active alert
func (h *Handlers) ResolveAlert(c *gin.Context) {
	var req resolveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.SendError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
	}

	alert, err := h.manager.ResolveAlert(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c, req.UserID), req.Resolution)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}

// GetAlertHistory queries stored alerts, newest first
func (h *Handlers) GetAlertHistory(c *gin.Context) {
	filter := monitoring.AlertHistoryFilter{
		Status:    monitoring.AlertStatus(c.Query("status")),
		Severity:  monitoring.AlertSeverity(c.Query("severity")),
		Component: c.Query("component"),
		TenantID:  c.Query("tenant"),
		Limit:     defaultHistoryLimit,
	}

	if filter.Severity != "" && !filter.Severity.Valid() {
		utils.SendError(c, http.StatusBadRequest, fmt.Sprintf("Unknown severity %q", filter.Severity))
		return
	}

	if since := c.Query("since"); since != "" {
		t, err := parseSince(since, time.Now())
		if err != nil {
			utils.SendError(c, http.StatusBadRequest, err.Error())
			return
		}
		filter.Since = t
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			utils.SendError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		filter.Limit = n
	}

	alerts, err := h.manager.GetAlertHistory(c.Request.Context(), filter)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccessWithMeta(c, alerts, gin.H{"count": len(alerts), "limit": filter.Limit})
}

// GetAlertMetrics aggregates alerts created within the window
func (h *Handlers) GetAlertMetrics(c *gin.Context) {
	window, err := monitoring.ParseDuration(c.DefaultQuery("window", "24h"))
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	top, err := strconv.Atoi(c.DefaultQuery("top", "5"))
	if err != nil || top < 0 {
		utils.SendError(c, http.StatusBadRequest, "top must be a non-negative integer")
		return
	}

	stats, err := h.manager.GetAlertMetrics(c.Request.Context(), window, top)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, stats)
}

// parseSince accepts an RFC 3339 timestamp or a lookback such as "24h"
func parseSince(value string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	d, err := monitoring.ParseDuration(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("since must be RFC 3339 or a duration like 24h")
	}
	return now.Add(-d), nil
}
