package model

import "time"

// SystemStats is the dashboard snapshot combining all stores. It is a pure
// read-combination; generating it never mutates anything.
type SystemStats struct {
	TotalUsers         int64     `json:"total_users"`
	ActiveUsers        int64     `json:"active_users"`
	TotalAlerts        int64     `json:"total_alerts"`
	ActiveAlerts       int64     `json:"active_alerts"`
	TotalSOSRequests   int64     `json:"total_sos_requests"`
	PendingSOSRequests int64     `json:"pending_sos_requests"`
	TotalShelters      int64     `json:"total_shelters"`
	AvailableShelters  int64     `json:"available_shelters"`
	GeneratedAt        time.Time `json:"generated_at"`
}
