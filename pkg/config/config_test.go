package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	require.NoError(t, err)

	assert.Equal(t, ":8443", cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "./images", cfg.ImageDir)
	assert.Equal(t, 1.0, cfg.TraceProbability)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadServerFromEnv(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/orderdesk")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("USERS", "admin:secret,clerk:pw")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("TRACE_PROBABILITY", "0.25")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "postgres://localhost/orderdesk", cfg.DatabaseURL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, map[string]string{"admin": "secret", "clerk": "pw"}, cfg.Users)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 0.25, cfg.TraceProbability)
}

func TestLoadServerRejectsHalfTLS(t *testing.T) {
	t.Setenv("TLS_CERT", "certs/server.crt")
	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadServerRejectsBadProbability(t *testing.T) {
	t.Setenv("TRACE_PROBABILITY", "2")
	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("API_URL", "http://localhost:8080")
	t.Setenv("API_TIMEOUT", "5s")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "warn", cfg.LogLevel)
}
