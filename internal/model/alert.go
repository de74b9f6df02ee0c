package model

import (
	"time"
)

// RiskLevel is a discretized severity label derived from a flood-risk
// probability. It is never mutated independently of the probability.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// AlertStatus tracks whether an alert is still live.
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "ACTIVE"
	AlertStatusResolved AlertStatus = "RESOLVED"
)

// Alert is a flood-risk warning produced from a prediction result or an
// operator action. The risk level is not a column; it is recomputed from the
// probability on every read.
type Alert struct {
	ID              string      `json:"id" gorm:"primaryKey;size:36"`
	Probability     float64     `json:"probability" gorm:"not null"`
	Lat             float64     `json:"lat"`
	Lon             float64     `json:"lon"`
	Message         string      `json:"message" gorm:"type:text"`
	Status          AlertStatus `json:"status" gorm:"size:20;not null;index"`
	BroadcastCount  int         `json:"broadcast_count" gorm:"not null;default:0"`
	LastBroadcastAt *time.Time  `json:"last_broadcast_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`
}

func (Alert) TableName() string {
	return "alerts"
}

// Location returns the alert's GPS point.
func (a Alert) Location() Location {
	return Location{Lat: a.Lat, Lon: a.Lon}
}

// AlertView is the wire view of an alert with its derived risk level attached.
type AlertView struct {
	Alert
	RiskLevel RiskLevel `json:"risk_level"`
}

// CreateAlertRequest is the ingest payload. Either a raw probability or a
// severity label is accepted; the label maps to a representative probability.
type CreateAlertRequest struct {
	AlertType   string    `json:"alert_type"`
	Probability *float64  `json:"probability"`
	Severity    RiskLevel `json:"severity"`
	Location    []float64 `json:"location" binding:"required"` // [lat, lon]
	Message     string    `json:"message"`
}

// BroadcastIntent is published to NATS whenever a (re)broadcast is issued.
// Delivery to SMS/email channels is the subscriber's responsibility.
type BroadcastIntent struct {
	AlertID        string    `json:"alert_id"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Probability    float64   `json:"probability"`
	Location       Location  `json:"location"`
	Message        string    `json:"message"`
	BroadcastCount int       `json:"broadcast_count"`
	IssuedAt       time.Time `json:"issued_at"`
}
