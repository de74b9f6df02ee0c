package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pravha/api/internal/model"
	"pravha/api/internal/service"
)

// ReportHandler serves operator spreadsheet exports.
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// ExportSOS streams an xlsx of SOS requests, optionally filtered by status.
func (h *ReportHandler) ExportSOS(c *gin.Context) {
	status := model.SOSStatus(c.Query("status"))

	buf, err := h.reportService.GenerateSOSReport(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("sos-report-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
