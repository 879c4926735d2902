package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBrokerAddr   = "localhost:1883"
	defaultTopic        = "group1/water_quality"
	defaultClientID     = "water_quality_bridge"
	defaultPort         = 8000
	defaultHistoryLimit = 100
	defaultRetryDelay   = 5 * time.Second
)

// Config holds environment-driven settings for the bridge service.
type Config struct {
	BrokerAddr   string
	Topic        string
	ClientID     string
	Port         int
	HistoryLimit int
	RetryDelay   time.Duration
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		BrokerAddr:   defaultBrokerAddr,
		Topic:        defaultTopic,
		ClientID:     defaultClientID,
		Port:         defaultPort,
		HistoryLimit: defaultHistoryLimit,
		RetryDelay:   defaultRetryDelay,
	}

	if addr := os.Getenv("MQTT_BROKER"); addr != "" {
		cfg.BrokerAddr = addr
	}
	if topic := os.Getenv("MQTT_TOPIC"); topic != "" {
		cfg.Topic = topic
	}
	if id := os.Getenv("MQTT_CLIENT_ID"); id != "" {
		cfg.ClientID = id
	}

	if portStr := os.Getenv("BRIDGE_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			return cfg, fmt.Errorf("invalid BRIDGE_PORT: %s", portStr)
		}
		cfg.Port = port
	}

	if limitStr := os.Getenv("HISTORY_LIMIT"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			return cfg, fmt.Errorf("invalid HISTORY_LIMIT: %s", limitStr)
		}
		cfg.HistoryLimit = limit
	}

	if delayStr := os.Getenv("MQTT_RECONNECT_INTERVAL"); delayStr != "" {
		delay, err := time.ParseDuration(delayStr)
		if err != nil {
			return cfg, fmt.Errorf("invalid MQTT_RECONNECT_INTERVAL: %w", err)
		}
		cfg.RetryDelay = delay
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
