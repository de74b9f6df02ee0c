package service

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pravha/api/internal/model"
)

type stubUserCounter struct {
	total, active int64
}

func (s stubUserCounter) CountUsers(ctx context.Context) (int64, int64, error) {
	return s.total, s.active, nil
}

func newTestStatsService(t *testing.T) (*StatsService, *SOSService, *ShelterService, *AlertService, *clockwork.FakeClock) {
	t.Helper()
	fake := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	shelters := NewShelterService(nil)
	shelters.SetClock(fake)
	alerts := NewAlertService(nil, nil, nil, defaultThresholds())
	alerts.SetClock(fake)
	sos := NewSOSService(nil, nil, shelters, alerts, 500)
	sos.SetClock(fake)

	stats := NewStatsService(sos, shelters, alerts, stubUserCounter{total: 12, active: 7}, nil, nil)
	stats.SetClock(fake)
	return stats, sos, shelters, alerts, fake
}

func TestStatsSnapshot(t *testing.T) {
	ctx := context.Background()
	stats, sos, shelters, alerts, _ := newTestStatsService(t)

	_, err := shelters.Register(ctx, model.CreateShelterRequest{
		Name:     "Community Hall",
		Location: []float64{28.6139, 77.2090},
		Capacity: 10,
	})
	require.NoError(t, err)
	full, err := shelters.Register(ctx, model.CreateShelterRequest{
		Name:     "School Gym",
		Location: []float64{28.62, 77.21},
		Capacity: 5,
	})
	require.NoError(t, err)
	_, err = shelters.AdjustOccupancy(ctx, full.ID, 5)
	require.NoError(t, err)

	_, err = sos.Submit(ctx, "user-1", model.Location{Lat: 28.6139, Lon: 77.2090},
		model.EmergencyFlood, "trapped on roof", "")
	require.NoError(t, err)
	assigned, err := sos.Submit(ctx, "user-2", model.Location{Lat: 28.6139, Lon: 77.2090},
		model.EmergencyFlood, "", "")
	require.NoError(t, err)
	_, err = sos.Assign(ctx, assigned.Request.ID, "officer-1")
	require.NoError(t, err)

	_, err = alerts.Ingest(ctx, 0.4, model.Location{Lat: 28.6, Lon: 77.2}, "manual")
	require.NoError(t, err)

	snap, err := stats.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(12), snap.TotalUsers)
	assert.Equal(t, int64(7), snap.ActiveUsers)
	// Each SOS submission auto-raises an alert, plus the manual one.
	assert.Equal(t, int64(3), snap.TotalAlerts)
	assert.Equal(t, int64(3), snap.ActiveAlerts)
	assert.Equal(t, int64(2), snap.TotalSOSRequests)
	assert.Equal(t, int64(1), snap.PendingSOSRequests)
	assert.Equal(t, int64(2), snap.TotalShelters)
	assert.Equal(t, int64(1), snap.AvailableShelters, "full shelter is not available")
}

func TestStatsSnapshotIdempotent(t *testing.T) {
	ctx := context.Background()
	stats, sos, _, _, fake := newTestStatsService(t)

	_, err := sos.Submit(ctx, "user-1", model.Location{Lat: 28.6139, Lon: 77.2090},
		model.EmergencyFlood, "", "")
	require.NoError(t, err)

	first, err := stats.Snapshot(ctx)
	require.NoError(t, err)
	fake.Advance(time.Minute)
	second, err := stats.Snapshot(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.GeneratedAt, second.GeneratedAt)
	first.GeneratedAt = second.GeneratedAt
	assert.Equal(t, first, second)
}
