package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 30*time.Minute, cfg.FlowTTL)
	assert.Equal(t, 2*time.Hour, cfg.CustomerSessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 5, cfg.OTPMaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.QueueEntryTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FLOW_TTL", "10m")
	t.Setenv("OTP_MAX_ATTEMPTS", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.FlowTTL)
	assert.Equal(t, 3, cfg.OTPMaxAttempts)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("OTP_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("FLOW_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 5, cfg.OTPMaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.FlowTTL)
}
