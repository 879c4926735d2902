package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const defaultPort = 1883

// Config holds environment-driven settings for the embedded broker.
type Config struct {
	Port int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{Port: defaultPort}

	if portStr := os.Getenv("MQTT_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			return cfg, fmt.Errorf("invalid MQTT_PORT: %s", portStr)
		}
		cfg.Port = port
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the TCP listener.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
