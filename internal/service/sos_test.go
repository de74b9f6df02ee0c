package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pravha/api/internal/model"
)

func newTestSOSService() (*SOSService, *clockwork.FakeClock) {
	fake := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc := NewSOSService(nil, nil, nil, nil, 500)
	svc.SetClock(fake)
	return svc, fake
}

func submitTestRequest(t *testing.T, svc *SOSService) model.SOSRequest {
	t.Helper()
	sub, err := svc.Submit(context.Background(), "citizen-1",
		model.Location{Lat: 28.6139, Lon: 77.2090}, model.EmergencyFlood, "water rising fast", "")
	require.NoError(t, err)
	return sub.Request
}

func TestSOSSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending request", func(t *testing.T) {
		svc, fake := newTestSOSService()
		sub, err := svc.Submit(ctx, "citizen-1", model.Location{Lat: 28.6139, Lon: 77.2090},
			model.EmergencyMedical, "need insulin", "")

		require.NoError(t, err)
		assert.Equal(t, model.SOSStatusPending, sub.Request.Status)
		assert.Equal(t, "citizen-1", sub.Request.RequesterID)
		assert.Equal(t, model.EmergencyMedical, sub.Request.EmergencyType)
		assert.Equal(t, fake.Now(), sub.Request.CreatedAt)
		assert.NotEmpty(t, sub.Request.ID)
	})

	t.Run("defaults emergency type to flood", func(t *testing.T) {
		svc, _ := newTestSOSService()
		sub, err := svc.Submit(ctx, "citizen-1", model.Location{Lat: 1, Lon: 1}, "", "", "")

		require.NoError(t, err)
		assert.Equal(t, model.EmergencyFlood, sub.Request.EmergencyType)
	})

	t.Run("rejects out-of-range coordinates", func(t *testing.T) {
		svc, _ := newTestSOSService()
		_, err := svc.Submit(ctx, "citizen-1", model.Location{Lat: 91, Lon: 0}, model.EmergencyFlood, "", "")

		require.Error(t, err)
		assert.True(t, IsCode(err, CodeValidation))
	})

	t.Run("rejects over-length message", func(t *testing.T) {
		svc, _ := newTestSOSService()
		_, err := svc.Submit(ctx, "citizen-1", model.Location{Lat: 1, Lon: 1},
			model.EmergencyFlood, strings.Repeat("x", 501), "")

		require.Error(t, err)
		assert.True(t, IsCode(err, CodeValidation))
	})

	t.Run("counts message length in runes", func(t *testing.T) {
		svc, _ := newTestSOSService()
		// 500 Devanagari characters, three bytes each.
		msg := strings.Repeat("प", 500)
		sub, err := svc.Submit(ctx, "citizen-1", model.Location{Lat: 1, Lon: 1},
			model.EmergencyFlood, msg, "")

		require.NoError(t, err)
		assert.Equal(t, msg, sub.Request.Message)

		_, err = svc.Submit(ctx, "citizen-1", model.Location{Lat: 1, Lon: 1},
			model.EmergencyFlood, msg+"प", "")
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeValidation))
	})

	t.Run("rejects unknown emergency type", func(t *testing.T) {
		svc, _ := newTestSOSService()
		_, err := svc.Submit(ctx, "citizen-1", model.Location{Lat: 1, Lon: 1}, "TSUNAMI", "", "")

		require.Error(t, err)
		assert.True(t, IsCode(err, CodeValidation))
	})

	t.Run("recommends nearby shelters", func(t *testing.T) {
		shelters := NewShelterService(nil)
		_, err := shelters.Register(ctx, model.CreateShelterRequest{
			Name: "Community Hall", Location: []float64{28.62, 77.21}, Capacity: 100,
		})
		require.NoError(t, err)

		svc := NewSOSService(nil, nil, shelters, nil, 500)
		sub, err := svc.Submit(ctx, "citizen-1", model.Location{Lat: 28.6139, Lon: 77.2090},
			model.EmergencyFlood, "", "")

		require.NoError(t, err)
		require.Len(t, sub.RecommendedShelters, 1)
		assert.Equal(t, "Community Hall", sub.RecommendedShelters[0].Name)
	})

	t.Run("raises a high severity alert", func(t *testing.T) {
		alerts := NewAlertService(nil, nil, nil, defaultThresholds())
		svc := NewSOSService(nil, nil, nil, alerts, 500)

		_, err := svc.Submit(ctx, "citizen-1", model.Location{Lat: 19.0760, Lon: 72.8777},
			model.EmergencyFlood, "", "")

		require.NoError(t, err)
		active := alerts.ListActive(ctx)
		require.Len(t, active, 1)
		assert.Equal(t, model.RiskCritical, active[0].RiskLevel)
		assert.Contains(t, active[0].Message, "SOS Emergency")
	})
}

func TestSOSLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path through the DAG", func(t *testing.T) {
		svc, fake := newTestSOSService()
		req := submitTestRequest(t, svc)

		assigned, err := svc.Assign(ctx, req.ID, "Officer A")
		require.NoError(t, err)
		assert.Equal(t, model.SOSStatusAssigned, assigned.Status)
		assert.Equal(t, "Officer A", assigned.AssignedOfficer)

		inProgress, err := svc.MarkInProgress(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SOSStatusInProgress, inProgress.Status)

		fake.Advance(45 * time.Minute)
		resolved, err := svc.Resolve(ctx, req.ID, "evacuated to shelter")
		require.NoError(t, err)
		assert.Equal(t, model.SOSStatusResolved, resolved.Status)
		assert.Equal(t, "evacuated to shelter", resolved.ResolutionNotes)
		require.NotNil(t, resolved.ResolvedAt)
		require.NotNil(t, resolved.ResponseTimeMinutes)
		assert.InDelta(t, 45.0, *resolved.ResponseTimeMinutes, 0.001)
	})

	t.Run("resolve straight from assigned", func(t *testing.T) {
		svc, _ := newTestSOSService()
		req := submitTestRequest(t, svc)

		_, err := svc.Assign(ctx, req.ID, "Officer B")
		require.NoError(t, err)
		resolved, err := svc.Resolve(ctx, req.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.SOSStatusResolved, resolved.Status)
	})

	t.Run("assign requires pending", func(t *testing.T) {
		svc, _ := newTestSOSService()
		req := submitTestRequest(t, svc)

		_, err := svc.Assign(ctx, req.ID, "Officer A")
		require.NoError(t, err)

		_, err = svc.Assign(ctx, req.ID, "Officer B")
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeInvalidTransition))
	})

	t.Run("resolve requires assignment first", func(t *testing.T) {
		svc, _ := newTestSOSService()
		req := submitTestRequest(t, svc)

		_, err := svc.Resolve(ctx, req.ID, "")
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeInvalidTransition))
	})

	t.Run("cancel works from every non-terminal state", func(t *testing.T) {
		svc, _ := newTestSOSService()

		for _, setup := range []func(id string){
			func(id string) {},
			func(id string) { svc.Assign(ctx, id, "Officer A") },
			func(id string) { svc.Assign(ctx, id, "Officer A"); svc.MarkInProgress(ctx, id) },
		} {
			req := submitTestRequest(t, svc)
			setup(req.ID)
			cancelled, err := svc.Cancel(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, model.SOSStatusCancelled, cancelled.Status)
		}
	})

	t.Run("terminal states are immutable", func(t *testing.T) {
		svc, _ := newTestSOSService()
		req := submitTestRequest(t, svc)
		_, err := svc.Cancel(ctx, req.ID)
		require.NoError(t, err)

		_, err = svc.Assign(ctx, req.ID, "Officer A")
		assert.True(t, IsCode(err, CodeTerminalState))
		_, err = svc.Cancel(ctx, req.ID)
		assert.True(t, IsCode(err, CodeTerminalState))
		_, err = svc.Resolve(ctx, req.ID, "")
		assert.True(t, IsCode(err, CodeTerminalState))
	})

	t.Run("unknown id", func(t *testing.T) {
		svc, _ := newTestSOSService()
		_, err := svc.Assign(ctx, "nope", "Officer A")
		assert.True(t, IsCode(err, CodeNotFound))
		_, err = svc.Get(ctx, "nope")
		assert.True(t, IsCode(err, CodeNotFound))
	})
}

func TestSOSConcurrentAssign(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestSOSService()
	req := submitTestRequest(t, svc)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = svc.Assign(ctx, req.ID, "Officer")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, IsCode(err, CodeInvalidTransition))
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent assign must win")
}

func TestSOSListByStatus(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestSOSService()

	first := submitTestRequest(t, svc)
	fake.Advance(time.Minute)
	second := submitTestRequest(t, svc)
	_, err := svc.Assign(ctx, second.ID, "Officer A")
	require.NoError(t, err)

	pending := svc.ListByStatus(ctx, model.SOSStatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	all := svc.ListByStatus(ctx, "")
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	total, pendingCount := svc.Counts()
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), pendingCount)
}
