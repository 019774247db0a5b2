package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/venturegraph/venturegraph"
	"github.com/venturegraph/venturegraph/pkg/server/dto"
)

// StatsHandler serves graph-level statistics
type StatsHandler struct {
	client venturegraph.VentureGraph
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(client venturegraph.VentureGraph) *StatsHandler {
	return &StatsHandler{client: client}
}

// Statistics handles GET /api/v1/stats
func (h *StatsHandler) Statistics(c *gin.Context) {
	stats, err := h.client.Statistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
