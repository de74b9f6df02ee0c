package model

import (
	"time"
)

// ShelterStatus is derived from occupancy, never stored.
type ShelterStatus string

const (
	ShelterStatusReady       ShelterStatus = "READY"
	ShelterStatusOccupied    ShelterStatus = "OCCUPIED"
	ShelterStatusFull        ShelterStatus = "FULL"
	ShelterStatusMaintenance ShelterStatus = "MAINTENANCE"
)

// Shelter represents an emergency shelter. Occupancy is mutated only through
// bounded adjustments; shelters are never deleted, only flagged for maintenance.
type Shelter struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	Name             string     `json:"name" gorm:"size:100;not null"`
	Address          string     `json:"address" gorm:"size:200"`
	Lat              float64    `json:"lat"`
	Lon              float64    `json:"lon"`
	Capacity         int        `json:"capacity" gorm:"not null"`
	CurrentOccupancy int        `json:"current_occupancy" gorm:"not null;default:0"`
	Maintenance      bool       `json:"maintenance" gorm:"default:false"`
	Facilities       StringList `json:"facilities" gorm:"type:jsonb"`
	Contact          string     `json:"contact" gorm:"size:100"`
	Phone            string     `json:"phone" gorm:"size:20"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (Shelter) TableName() string {
	return "shelters"
}

// Status derives the shelter status from its raw fields. An explicit
// maintenance flag wins; otherwise the occupancy ratio decides.
func (s Shelter) Status() ShelterStatus {
	switch {
	case s.Maintenance:
		return ShelterStatusMaintenance
	case s.CurrentOccupancy >= s.Capacity:
		return ShelterStatusFull
	case float64(s.CurrentOccupancy) >= 0.5*float64(s.Capacity):
		return ShelterStatusOccupied
	default:
		return ShelterStatusReady
	}
}

// Location returns the shelter's GPS point.
func (s Shelter) Location() Location {
	return Location{Lat: s.Lat, Lon: s.Lon}
}

// ShelterInfo is the wire view of a shelter with its derived status attached.
type ShelterInfo struct {
	Shelter
	Status ShelterStatus `json:"status"`
}

// ShelterDistance pairs a shelter with its great-circle distance from a query
// point, as returned by nearest-shelter search.
type ShelterDistance struct {
	ShelterInfo
	DistanceKm float64 `json:"distance_km"`
}

// CreateShelterRequest is the registration payload.
type CreateShelterRequest struct {
	Name       string    `json:"name" binding:"required"`
	Address    string    `json:"address"`
	Location   []float64 `json:"location" binding:"required"` // [lat, lon]
	Capacity   int       `json:"capacity" binding:"required"`
	Occupancy  int       `json:"occupancy"`
	Contact    string    `json:"contact"`
	Phone      string    `json:"phone"`
	Facilities []string  `json:"facilities"`
}

// UpdateShelterRequest carries metadata edits. Occupancy is excluded on
// purpose; it only moves through the bounded adjustment operation.
type UpdateShelterRequest struct {
	Name       *string   `json:"name"`
	Address    *string   `json:"address"`
	Contact    *string   `json:"contact"`
	Phone      *string   `json:"phone"`
	Facilities *[]string `json:"facilities"`
}
