package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
	"github.com/frostdev-ops/alert-engine/pkg/utils"
)

type updateIncidentRequest struct {
	Status     monitoring.IncidentStatus `json:"status"`
	RootCause  string                    `json:"root_cause"`
	Resolution string                    `json:"resolution"`
}

// GetIncidents lists open incidents, optionally for one tenant
func (h *Handlers) GetIncidents(c *gin.Context) {
	incidents := h.manager.GetIncidents(c.Query("tenant"))
	utils.SendSuccessWithMeta(c, incidents, gin.H{"count": len(incidents)})
}

// UpdateIncident changes an open incident's status or annotations
func (h *Handlers) UpdateIncident(c *gin.Context) {
	var req updateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	incident, err := h.manager.UpdateIncident(c.Request.Context(), c.Param("id"), req.Status, req.RootCause, req.Resolution)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, incident)
}
