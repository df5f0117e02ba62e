package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/linkhub/pkg/api/types"
	"github.com/urmzd/linkhub/pkg/house"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	house *house.House
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(h *house.House) *HealthHandler {
	return &HealthHandler{house: h}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Returns the health status of the API and the modem
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Service is healthy"
// @Failure      503  {object}  types.HealthResponse  "Service is degraded"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(healthStatus(h.house))
}

func healthStatus(h *house.House) (int, types.HealthResponse) {
	resp := types.HealthResponse{
		Status:    "healthy",
		Modem:     "connected",
		Jobs:      len(h.Jobs().Running()),
		Timestamp: time.Now(),
	}
	if hub := h.HubID(); !hub.IsNull() {
		resp.Hub = hub.String()
	}
	if !h.Transport().IsConnected() {
		resp.Status = "degraded"
		resp.Modem = "disconnected"
		return http.StatusServiceUnavailable, resp
	}
	return http.StatusOK, resp
}
