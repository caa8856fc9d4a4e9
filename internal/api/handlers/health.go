package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/alert-engine/internal/core/metrics"
)

// Health reports component health; unhealthy answers 503
func (h *Handlers) Health(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": metrics.StatusHealthy})
		return
	}

	report := h.health.Check(c.Request.Context())

	status := http.StatusOK
	if report.Status == metrics.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
