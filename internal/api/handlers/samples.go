package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/alert-engine/pkg/utils"
)

type sampleRequest struct {
	Metric     string     `json:"metric" binding:"required"`
	TenantID   string     `json:"tenant_id"`
	Value      *float64   `json:"value" binding:"required"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// RecordSample stores a pushed metric sample for rule evaluation
func (h *Handlers) RecordSample(c *gin.Context) {
	if h.samples == nil {
		utils.SendError(c, http.StatusServiceUnavailable, "Sample storage is not configured")
		return
	}

	var req sampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid sample: "+err.Error())
		return
	}

	var at time.Time
	if req.RecordedAt != nil {
		at = *req.RecordedAt
	}

	if err := h.samples.RecordSample(c.Request.Context(), req.Metric, req.TenantID, *req.Value, at); err != nil {
		h.log.WithError(err).WithField("metric", req.Metric).Error("Failed to record metric sample")
		utils.SendError(c, http.StatusInternalServerError, "Failed to record sample")
		return
	}

	utils.SendStatus(c, http.StatusCreated, gin.H{
		"metric":    req.Metric,
		"tenant_id": req.TenantID,
		"value":     *req.Value,
	})
}

// GetSamples lists recent samples of one metric
func (h *Handlers) GetSamples(c *gin.Context) {
	if h.samples == nil {
		utils.SendError(c, http.StatusServiceUnavailable, "Sample storage is not configured")
		return
	}

	metric := c.Query("metric")
	if metric == "" {
		utils.SendError(c, http.StatusBadRequest, "metric is required")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		utils.SendError(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	samples, err := h.samples.ListSamples(c.Request.Context(), metric, c.Query("tenant"), limit)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccessWithMeta(c, samples, gin.H{"count": len(samples)})
}
