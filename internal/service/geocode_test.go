package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestReverseGeocode(t *testing.T) {
	ctx := context.Background()

	t.Run("returns display name", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
			w.Write([]byte(`{"display_name": "Connaught Place, New Delhi"}`))
		}))
		defer srv.Close()

		svc := NewGeocodeService(srv.URL, time.Second, 5*time.Minute)
		got := svc.ReverseGeocode(ctx, 28.6139, 77.2090)
		assert.Equal(t, "Connaught Place, New Delhi", got)
	})

	t.Run("empty on upstream failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		svc := NewGeocodeService(srv.URL, time.Second, 5*time.Minute)
		assert.Equal(t, "", svc.ReverseGeocode(ctx, 28.6139, 77.2090))
	})

	t.Run("caches by rounded coordinates", func(t *testing.T) {
		var hits int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt64(&hits, 1)
			w.Write([]byte(`{"display_name": "Somewhere"}`))
		}))
		defer srv.Close()

		fake := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
		svc := NewGeocodeService(srv.URL, time.Second, 5*time.Minute)
		svc.SetClock(fake)

		svc.ReverseGeocode(ctx, 28.6139, 77.2090)
		svc.ReverseGeocode(ctx, 28.61391, 77.20901) // same 4-decimal bucket
		assert.Equal(t, int64(1), atomic.LoadInt64(&hits))

		fake.Advance(6 * time.Minute)
		svc.ReverseGeocode(ctx, 28.6139, 77.2090)
		assert.Equal(t, int64(2), atomic.LoadInt64(&hits), "expired entry refetches")
	})
}
