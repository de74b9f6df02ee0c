package model

import (
	"time"
)

// SOSStatus is a stop on the request lifecycle.
type SOSStatus string

const (
	SOSStatusPending    SOSStatus = "PENDING"
	SOSStatusAssigned   SOSStatus = "ASSIGNED"
	SOSStatusInProgress SOSStatus = "IN_PROGRESS"
	SOSStatusResolved   SOSStatus = "RESOLVED"
	SOSStatusCancelled  SOSStatus = "CANCELLED"
)

// Terminal reports whether the status accepts no further transitions.
func (s SOSStatus) Terminal() bool {
	return s == SOSStatusResolved || s == SOSStatusCancelled
}

// EmergencyType classifies an SOS request.
type EmergencyType string

const (
	EmergencyFlood      EmergencyType = "FLOOD"
	EmergencyMedical    EmergencyType = "MEDICAL"
	EmergencyFire       EmergencyType = "FIRE"
	EmergencyStructural EmergencyType = "STRUCTURAL"
	EmergencyOther      EmergencyType = "OTHER"
)

// KnownEmergencyType reports whether t is one of the defined categories.
func KnownEmergencyType(t EmergencyType) bool {
	switch t {
	case EmergencyFlood, EmergencyMedical, EmergencyFire, EmergencyStructural, EmergencyOther:
		return true
	}
	return false
}

// SOSRequest is a citizen-submitted emergency assistance record. It starts
// PENDING and only moves forward through operator actions; RESOLVED and
// CANCELLED records are immutable.
type SOSRequest struct {
	ID                  string        `json:"id" gorm:"primaryKey;size:36"`
	RequesterID         string        `json:"requester_id" gorm:"size:36;index"`
	Lat                 float64       `json:"lat"`
	Lon                 float64       `json:"lon"`
	Address             string        `json:"address,omitempty" gorm:"size:200"`
	EmergencyType       EmergencyType `json:"emergency_type" gorm:"size:20;not null"`
	Message             string        `json:"message,omitempty" gorm:"size:500"`
	Status              SOSStatus     `json:"status" gorm:"size:20;not null;index"`
	AssignedOfficer     string        `json:"assigned_officer,omitempty" gorm:"size:100"`
	ResolutionNotes     string        `json:"resolution_notes,omitempty" gorm:"type:text"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	ResolvedAt          *time.Time    `json:"resolved_at,omitempty"`
	ResponseTimeMinutes *float64      `json:"response_time_minutes,omitempty"`
}

func (SOSRequest) TableName() string {
	return "sos_requests"
}

// Location returns the request's GPS point.
func (r SOSRequest) Location() Location {
	return Location{Lat: r.Lat, Lon: r.Lon}
}

// SubmitSOSRequest is the citizen submission payload.
type SubmitSOSRequest struct {
	Location      []float64     `json:"location" binding:"required"` // [lat, lon]
	EmergencyType EmergencyType `json:"emergency_type"`
	Message       string        `json:"message"`
}

// UpdateSOSRequest carries an operator transition.
type UpdateSOSRequest struct {
	Status          SOSStatus `json:"status" binding:"required"`
	AssignedOfficer string    `json:"assigned_officer"`
	ResolutionNotes string    `json:"resolution_notes"`
}

// SOSSubmission is the response to a submission: the created request plus
// nearby shelter recommendations.
type SOSSubmission struct {
	Request             SOSRequest        `json:"request"`
	RecommendedShelters []ShelterDistance `json:"recommended_shelters,omitempty"`
}
