package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBrokerAddr = "localhost:1883"
	defaultTopic      = "group1/water_quality"
	defaultClientID   = "water_quality_alerter"
	defaultSender     = "onboarding@resend.dev"
	defaultCooldown   = time.Hour
	defaultLogPath    = "water_quality_alerts.jsonl"
)

// Config holds environment-driven settings for the alerter service.
type Config struct {
	BrokerAddr   string
	Topic        string
	ClientID     string
	ResendAPIKey string
	SenderEmail  string
	Recipients   []string
	Cooldown     time.Duration
	AlertLogPath string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		BrokerAddr:   defaultBrokerAddr,
		Topic:        defaultTopic,
		ClientID:     defaultClientID,
		SenderEmail:  defaultSender,
		Cooldown:     defaultCooldown,
		AlertLogPath: defaultLogPath,
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

	cfg.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	if cfg.ResendAPIKey == "" {
		return cfg, errors.New("RESEND_API_KEY is required")
	}

	if sender := os.Getenv("SENDER_EMAIL"); sender != "" {
		cfg.SenderEmail = sender
	}

	recipients := os.Getenv("RECIPIENT_EMAIL")
	if recipients == "" {
		return cfg, errors.New("RECIPIENT_EMAIL is required")
	}
	for _, r := range strings.Split(recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			cfg.Recipients = append(cfg.Recipients, r)
		}
	}

	if cooldownStr := os.Getenv("ALERT_COOLDOWN"); cooldownStr != "" {
		cooldown, err := time.ParseDuration(cooldownStr)
		if err != nil {
			return cfg, fmt.Errorf("invalid ALERT_COOLDOWN: %w", err)
		}
		cfg.Cooldown = cooldown
	}

	if path := os.Getenv("ALERT_LOG_PATH"); path != "" {
		cfg.AlertLogPath = path
	}

	return cfg, nil
}
