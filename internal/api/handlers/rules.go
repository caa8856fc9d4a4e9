package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
	"github.com/frostdev-ops/alert-engine/pkg/utils"
)

// CreateRule registers or replaces an alert rule
func (h *Handlers) CreateRule(c *gin.Context) {
	var rule monitoring.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid rule: "+err.Error())
		return
	}

	// origin is owned by the rules file loader
	rule.Origin = ""
	created, err := h.manager.CreateRule(c.Request.Context(), &rule)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendStatus(c, http.StatusCreated, created)
}

// DeleteRule removes an alert rule
func (h *Handlers) DeleteRule(c *gin.Context) {
	if err := h.manager.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"id": c.Param("id"), "deleted": true})
}

// GetRules lists the registered rules
func (h *Handlers) GetRules(c *gin.Context) {
	rules := h.manager.GetRules()
	utils.SendSuccessWithMeta(c, rules, gin.H{"count": len(rules)})
}
