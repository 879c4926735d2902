package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBridgeWSURL  = "ws://localhost:8000/ws"
	defaultHistoryURL   = "http://localhost:8000/history"
	defaultPort         = 8080
	defaultRetryDelay   = 5 * time.Second
	defaultHistoryLimit = 100
)

// Config holds environment-driven settings for the dashboard service.
type Config struct {
	BridgeWSURL  string
	HistoryURL   string
	Port         int
	RetryDelay   time.Duration
	HistoryLimit int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		BridgeWSURL:  defaultBridgeWSURL,
		HistoryURL:   defaultHistoryURL,
		Port:         defaultPort,
		RetryDelay:   defaultRetryDelay,
		HistoryLimit: defaultHistoryLimit,
	}

	if url := os.Getenv("BRIDGE_WS_URL"); url != "" {
		cfg.BridgeWSURL = url
	}
	if url := os.Getenv("BRIDGE_HISTORY_URL"); url != "" {
		cfg.HistoryURL = url
	}

	if portStr := os.Getenv("DASHBOARD_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			return cfg, fmt.Errorf("invalid DASHBOARD_PORT: %s", portStr)
		}
		cfg.Port = port
	}

	if delayStr := os.Getenv("RECONNECT_INTERVAL"); delayStr != "" {
		delay, err := time.ParseDuration(delayStr)
		if err != nil {
			return cfg, fmt.Errorf("invalid RECONNECT_INTERVAL: %w", err)
		}
		cfg.RetryDelay = delay
	}

	if limitStr := os.Getenv("HISTORY_LIMIT"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			return cfg, fmt.Errorf("invalid HISTORY_LIMIT: %s", limitStr)
		}
		cfg.HistoryLimit = limit
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
