// Package config loads client configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the client needs to reach the backend and keep
// local state.
type Config struct {
	// APIBaseURL is the REST base, e.g. https://api.trueque.app.
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// WSURL is the realtime endpoint. When empty it is derived from
	// APIBaseURL by swapping the scheme and appending /ws.
	WSURL string `mapstructure:"WS_URL"`
	// DataDir holds the credential database and seal secret.
	DataDir string `mapstructure:"DATA_DIR"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// HTTPTimeout bounds every REST call.
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT"`
	// ReconnectDelay is the fixed wait between realtime re-dial attempts.
	ReconnectDelay time.Duration `mapstructure:"RECONNECT_DELAY"`
}

// Load reads .env if present, then the environment, applies defaults and
// derives WSURL when unset. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	home, _ := os.UserHomeDir()
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("WS_URL", "")
	v.SetDefault("DATA_DIR", filepath.Join(home, ".trueque"))
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("RECONNECT_DELAY", "5s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.APIBaseURL == "" {
		return nil, errors.New("config: API_BASE_URL must be set")
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.WSURL == "" {
		derived, err := deriveWSURL(cfg.APIBaseURL)
		if err != nil {
			return nil, err
		}
		cfg.WSURL = derived
	}

	if cfg.HTTPTimeout <= 0 {
		return nil, errors.New("config: HTTP_TIMEOUT must be positive")
	}
	if cfg.ReconnectDelay <= 0 {
		return nil, errors.New("config: RECONNECT_DELAY must be positive")
	}

	return &cfg, nil
}

// deriveWSURL maps http(s)://host[/base] to ws(s)://host[/base]/ws.
func deriveWSURL(apiBase string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("config: invalid API_BASE_URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already a websocket URL
	default:
		return "", fmt.Errorf("config: unsupported scheme %q in API_BASE_URL", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
