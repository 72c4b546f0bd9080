package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.trueque.app")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.trueque.app", cfg.APIBaseURL)
	assert.Equal(t, "wss://api.trueque.app/ws", cfg.WSURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
}

func TestLoadExplicitWSURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:8080")
	t.Setenv("WS_URL", "ws://realtime.local/ws")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://realtime.local/ws", cfg.WSURL)
}

func TestDeriveWSURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://api.trueque.app/v1", "wss://api.trueque.app/v1/ws"},
		{"ws://host", "ws://host/ws"},
	}
	for _, tt := range tests {
		got, err := deriveWSURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := deriveWSURL("ftp://nope")
	assert.Error(t, err)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:8080")
	t.Setenv("HTTP_TIMEOUT", "-1s")

	_, err := Load()
	assert.Error(t, err)
}
