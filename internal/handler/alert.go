package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pravha/api/internal/model"
	"pravha/api/internal/service"
)

// Representative probabilities for manual alerts filed with a severity label
// instead of a model score.
var severityProbability = map[model.RiskLevel]float64{
	model.RiskLow:      0.15,
	model.RiskModerate: 0.45,
	model.RiskHigh:     0.7,
	model.RiskCritical: 0.9,
}

// AlertHandler handles alert endpoints.
type AlertHandler struct {
	alertService *service.AlertService
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(alertService *service.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

// Create ingests a new alert from a prediction score or a severity label.
func (h *AlertHandler) Create(c *gin.Context) {
	var req model.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Location) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location must be [lat, lon]"})
		return
	}

	var probability float64
	switch {
	case req.Probability != nil:
		probability = *req.Probability
	case req.Severity != "":
		p, ok := severityProbability[req.Severity]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "unknown severity",
				"code":  string(service.CodeValidation),
			})
			return
		}
		probability = p
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "probability or severity required",
			"code":  string(service.CodeValidation),
		})
		return
	}

	message := req.Message
	if message == "" && req.AlertType != "" {
		message = req.AlertType
	}

	alert, err := h.alertService.Ingest(c.Request.Context(), probability,
		model.Location{Lat: req.Location[0], Lon: req.Location[1]}, message)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, alert)
}

// Get returns one alert with its derived risk level.
func (h *AlertHandler) Get(c *gin.Context) {
	alert, err := h.alertService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// Active returns all currently active alerts.
func (h *AlertHandler) Active(c *gin.Context) {
	alerts := h.alertService.ListActive(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"data":  alerts,
		"total": len(alerts),
	})
}

// History returns recent alerts regardless of status, newest first.
func (h *AlertHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	alerts := h.alertService.History(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{
		"data":  alerts,
		"total": len(alerts),
	})
}

// RecentBroadcasts returns the cached broadcast intents, newest first. Empty
// without a Redis cache.
func (h *AlertHandler) RecentBroadcasts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	intents := h.alertService.RecentBroadcasts(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{
		"data":  intents,
		"total": len(intents),
	})
}

// Broadcast issues (or re-issues) a broadcast for an active alert.
func (h *AlertHandler) Broadcast(c *gin.Context) {
	alert, err := h.alertService.Broadcast(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// Resolve marks an active alert resolved.
func (h *AlertHandler) Resolve(c *gin.Context) {
	alert, err := h.alertService.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}
