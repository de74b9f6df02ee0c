package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pravha/api/internal/service"
)

// StatsHandler serves the operator dashboard snapshot.
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetStats returns the cached snapshot when fresh, falling back to a live
// computation on a cache miss.
func (h *StatsHandler) GetStats(c *gin.Context) {
	if stats, ok := h.statsService.Cached(c.Request.Context()); ok {
		c.JSON(http.StatusOK, stats)
		return
	}

	stats, err := h.statsService.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
