package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pravha/api/internal/service"
)

// respondError maps service error codes onto HTTP statuses. Validation
// failures are 400, missing records 404, and state conflicts (transitions,
// capacity, broadcast on resolved) 409.
func respondError(c *gin.Context, err error) {
	code := service.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case service.CodeValidation:
		status = http.StatusBadRequest
	case service.CodeNotFound:
		status = http.StatusNotFound
	case service.CodeInvalidTransition, service.CodeTerminalState,
		service.CodeCapacityExceeded, service.CodeUnderflow, service.CodeNotActive:
		status = http.StatusConflict
	}

	body := gin.H{"error": err.Error()}
	if code != "" {
		body["code"] = string(code)
	}
	c.JSON(status, body)
}
