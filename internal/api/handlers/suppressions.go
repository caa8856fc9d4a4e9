package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/alert-engine/internal/api/middleware"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
	"github.com/frostdev-ops/alert-engine/pkg/utils"
)

// CreateSuppression mutes matching alerts for a duration
func (h *Handlers) CreateSuppression(c *gin.Context) {
	var req monitoring.SuppressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid suppression: "+err.Error())
		return
	}
	req.CreatedBy = middleware.CurrentUser(c, req.CreatedBy)

	suppression, err := h.manager.SuppressAlerts(c.Request.Context(), req)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendStatus(c, http.StatusCreated, suppression)
}

// GetSuppressions lists unexpired suppressions
func (h *Handlers) GetSuppressions(c *gin.Context) {
	suppressions := h.manager.GetSuppressions()
	utils.SendSuccessWithMeta(c, suppressions, gin.H{"count": len(suppressions)})
}
