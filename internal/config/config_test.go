package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, 0.3, cfg.Risk.Moderate)
	assert.Equal(t, 0.6, cfg.Risk.High)
	assert.Equal(t, 0.85, cfg.Risk.Critical)
	assert.Equal(t, 500, cfg.MaxMessageLen)
	assert.Equal(t, "@every 30s", cfg.StatsRefreshSpec)
	assert.Equal(t, 24*time.Hour, cfg.AlertTTL)
	assert.Equal(t, 10, cfg.SOSRateLimit)
	assert.Equal(t, time.Minute, cfg.SOSRateWindow)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("RISK_THRESHOLD_CRITICAL", "0.95")
	t.Setenv("ALERT_TTL", "48h")
	t.Setenv("SOS_MAX_MESSAGE_LEN", "200")

	cfg := Load()

	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, 0.95, cfg.Risk.Critical)
	assert.Equal(t, 48*time.Hour, cfg.AlertTTL)
	assert.Equal(t, 200, cfg.MaxMessageLen)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("API_PORT", "not-a-number")
	t.Setenv("RISK_THRESHOLD_HIGH", "high")
	t.Setenv("ALERT_TTL", "-1h")

	cfg := Load()

	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, 0.6, cfg.Risk.High)
	assert.Equal(t, 24*time.Hour, cfg.AlertTTL)
}
