package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/alert-engine/internal/websocket"
	"github.com/frostdev-ops/alert-engine/pkg/utils"
)

// WebSocketHandler upgrades /ws connections onto the event hub
func (h *Handlers) WebSocketHandler() gin.HandlerFunc {
	if h.wsHub == nil {
		return func(c *gin.Context) {
			utils.SendError(c, http.StatusServiceUnavailable, "Live stream is not enabled")
		}
	}
	return websocket.HandleWebSocketGin(h.wsHub)
}

// GetWebSocketStats returns hub statistics
func (h *Handlers) GetWebSocketStats(c *gin.Context) {
	if h.wsHub == nil {
		utils.SendError(c, http.StatusServiceUnavailable, "Live stream is not enabled")
		return
	}
	utils.SendSuccess(c, h.wsHub.GetStats())
}
