package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pravha/api/internal/middleware"
	"pravha/api/internal/model"
	"pravha/api/internal/service"
)

// SOSHandler handles SOS request endpoints.
type SOSHandler struct {
	sosService *service.SOSService
	geocode    *service.GeocodeService
}

// NewSOSHandler creates a new SOS handler.
func NewSOSHandler(sosService *service.SOSService, geocode *service.GeocodeService) *SOSHandler {
	return &SOSHandler{sosService: sosService, geocode: geocode}
}

// Submit files a new SOS request for the authenticated user and returns the
// created record plus nearby shelter recommendations.
func (h *SOSHandler) Submit(c *gin.Context) {
	var req model.SubmitSOSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Location) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location must be [lat, lon]"})
		return
	}
	loc := model.Location{Lat: req.Location[0], Lon: req.Location[1]}

	// Best effort; submission never waits on or fails over geocoding.
	address := ""
	if h.geocode != nil {
		address = h.geocode.ReverseGeocode(c.Request.Context(), loc.Lat, loc.Lon)
	}

	submission, err := h.sosService.Submit(c.Request.Context(),
		middleware.UserIDFromContext(c), loc, req.EmergencyType, req.Message, address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}

// Get returns one SOS request.
func (h *SOSHandler) Get(c *gin.Context) {
	req, err := h.sosService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// List returns SOS requests, optionally filtered by status.
func (h *SOSHandler) List(c *gin.Context) {
	status := model.SOSStatus(c.Query("status"))
	requests := h.sosService.ListByStatus(c.Request.Context(), status)
	c.JSON(http.StatusOK, gin.H{
		"data":  requests,
		"total": len(requests),
	})
}

// Update applies an operator lifecycle transition. The target status in the
// body picks the operation.
func (h *SOSHandler) Update(c *gin.Context) {
	var req model.UpdateSOSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()

	var (
		updated model.SOSRequest
		err     error
	)
	switch req.Status {
	case model.SOSStatusAssigned:
		updated, err = h.sosService.Assign(ctx, id, req.AssignedOfficer)
	case model.SOSStatusInProgress:
		updated, err = h.sosService.MarkInProgress(ctx, id)
	case model.SOSStatusResolved:
		updated, err = h.sosService.Resolve(ctx, id, req.ResolutionNotes)
	case model.SOSStatusCancelled:
		updated, err = h.sosService.Cancel(ctx, id)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown target status",
			"code":  string(service.CodeValidation),
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}
