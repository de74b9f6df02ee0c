package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pravha/api/internal/model"
	"pravha/api/internal/service"
)

// ShelterHandler handles shelter endpoints.
type ShelterHandler struct {
	shelterService *service.ShelterService
}

// NewShelterHandler creates a new shelter handler.
func NewShelterHandler(shelterService *service.ShelterService) *ShelterHandler {
	return &ShelterHandler{shelterService: shelterService}
}

// List returns all shelters with derived status.
func (h *ShelterHandler) List(c *gin.Context) {
	shelters := h.shelterService.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"data":  shelters,
		"total": len(shelters),
	})
}

// Get returns one shelter.
func (h *ShelterHandler) Get(c *gin.Context) {
	shelter, err := h.shelterService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shelter)
}

// Nearby returns usable shelters closest to a query point, nearest first.
func (h *ShelterHandler) Nearby(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lat"})
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lon"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	radius, _ := strconv.ParseFloat(c.DefaultQuery("radius_km", "50"), 64)

	shelters, err := h.shelterService.FindNearest(c.Request.Context(),
		model.Location{Lat: lat, Lon: lon}, limit, radius)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  shelters,
		"total": len(shelters),
	})
}

// Create registers a new shelter.
func (h *ShelterHandler) Create(c *gin.Context) {
	var req model.CreateShelterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shelter, err := h.shelterService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, shelter)
}

// Update edits shelter metadata. Occupancy is not editable here.
func (h *ShelterHandler) Update(c *gin.Context) {
	var req model.UpdateShelterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shelter, err := h.shelterService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, shelter)
}

// AdjustOccupancy applies a bounded occupancy delta (check-ins positive,
// check-outs negative).
func (h *ShelterHandler) AdjustOccupancy(c *gin.Context) {
	var req struct {
		Delta int `json:"delta" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shelter, err := h.shelterService.AdjustOccupancy(c.Request.Context(), c.Param("id"), req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, shelter)
}

// SetMaintenance flags a shelter in or out of maintenance.
func (h *ShelterHandler) SetMaintenance(c *gin.Context) {
	var req struct {
		Maintenance *bool `json:"maintenance" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shelter, err := h.shelterService.SetMaintenance(c.Request.Context(), c.Param("id"), *req.Maintenance)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, shelter)
}
