package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"pravha/api/internal/model"
)

// ReportService produces operator-facing exports from the coordination stores.
type ReportService struct {
	sos      *SOSService
	shelters *ShelterService
}

// NewReportService creates the export service.
func NewReportService(sos *SOSService, shelters *ShelterService) *ReportService {
	return &ReportService{sos: sos, shelters: shelters}
}

// GenerateSOSReport renders all SOS requests (optionally filtered by status)
// into a spreadsheet for offline incident review.
func (s *ReportService) GenerateSOSReport(ctx context.Context, status model.SOSStatus) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "SOS Requests"
	f.SetSheetName("Sheet1", sheetName)

	headers := []string{"ID", "Requester", "Latitude", "Longitude", "Address",
		"Type", "Status", "Officer", "Created", "Resolved", "Response (min)"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheetName, cell, header)
	}

	requests := s.sos.ListByStatus(ctx, status)
	for row, req := range requests {
		values := []interface{}{
			req.ID, req.RequesterID, req.Lat, req.Lon, req.Address,
			string(req.EmergencyType), string(req.Status), req.AssignedOfficer,
			req.CreatedAt.Format("2006-01-02 15:04:05"), "", "",
		}
		if req.ResolvedAt != nil {
			values[9] = req.ResolvedAt.Format("2006-01-02 15:04:05")
		}
		if req.ResponseTimeMinutes != nil {
			values[10] = fmt.Sprintf("%.1f", *req.ResponseTimeMinutes)
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(sheetName, cell, v)
		}
	}

	f.SetColWidth(sheetName, "A", "B", 38)
	f.SetColWidth(sheetName, "C", "H", 14)
	f.SetColWidth(sheetName, "I", "K", 20)

	// Second sheet: shelter occupancy summary.
	shelterSheet := "Shelters"
	f.NewSheet(shelterSheet)
	shelterHeaders := []string{"ID", "Name", "Capacity", "Occupancy", "Status"}
	for i, header := range shelterHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(shelterSheet, cell, header)
	}
	for row, shelter := range s.shelters.List(ctx) {
		values := []interface{}{
			shelter.ID, shelter.Name, shelter.Capacity,
			shelter.CurrentOccupancy, string(shelter.Status),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(shelterSheet, cell, v)
		}
	}
	f.SetColWidth(shelterSheet, "A", "B", 38)
	f.SetColWidth(shelterSheet, "C", "E", 14)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}
