package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultSerialPort      = "/dev/ttyUSB0"
	defaultBaudRate        = 9600
	defaultBrokerAddr      = "localhost:1883"
	defaultTopic           = "group1/water_quality"
	defaultClientID        = "water_quality_gateway"
	defaultLocation        = "raspberry_pi_1"
	defaultSensorType      = "AS7265X_Spectral"
	defaultPublishInterval = 10 * time.Second
)

// Config holds environment-driven settings for the gateway service.
type Config struct {
	SerialPort      string
	BaudRate        int
	BrokerAddr      string
	Topic           string
	ClientID        string
	Location        string
	SensorType      string
	PublishInterval time.Duration
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		SerialPort:      defaultSerialPort,
		BaudRate:        defaultBaudRate,
		BrokerAddr:      defaultBrokerAddr,
		Topic:           defaultTopic,
		ClientID:        defaultClientID,
		Location:        defaultLocation,
		SensorType:      defaultSensorType,
		PublishInterval: defaultPublishInterval,
	}

	if port := os.Getenv("SERIAL_PORT"); port != "" {
		cfg.SerialPort = port
	}
	if baudStr := os.Getenv("BAUD_RATE"); baudStr != "" {
		baud, err := strconv.Atoi(baudStr)
		if err != nil || baud <= 0 {
			return cfg, fmt.Errorf("invalid BAUD_RATE: %s", baudStr)
		}
		cfg.BaudRate = baud
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
	if location := os.Getenv("LOCATION"); location != "" {
		cfg.Location = location
	}
	if sensorType := os.Getenv("SENSOR_TYPE"); sensorType != "" {
		cfg.SensorType = sensorType
	}

	if intervalStr := os.Getenv("PUBLISH_INTERVAL"); intervalStr != "" {
		interval, err := time.ParseDuration(intervalStr)
		if err != nil {
			return cfg, fmt.Errorf("invalid PUBLISH_INTERVAL: %w", err)
		}
		cfg.PublishInterval = interval
	}

	return cfg, nil
}
