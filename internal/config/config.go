// Package config loads application configuration from environment variables
// and an optional YAML tuning file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath       string
	ListenAddr   string
	PollInterval time.Duration
	LogLevel     slog.Level
	// CommandTimeout bounds how long an admin API command waits for the
	// control loop.
	CommandTimeout time.Duration
	MQTT           MQTTConfig
	// ConfigFile is the path of the YAML tuning file, empty when unset.
	ConfigFile string
	Tuning     Tuning
}

// MQTTConfig holds the broker settings for the remote channel.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
}

// Enabled reports whether a broker is configured. Without one the remote
// channel stays offline and events are only written to the audit log.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// Optional variables with defaults: GATEKEEPER_DB_PATH (gatekeeper.db),
// GATEKEEPER_LISTEN_ADDR (127.0.0.1:8080), GATEKEEPER_POLL_INTERVAL (100ms),
// GATEKEEPER_LOG_LEVEL (info), GATEKEEPER_COMMAND_TIMEOUT (30s),
// GATEKEEPER_MQTT_CLIENT_ID (gatekeeper), GATEKEEPER_MQTT_TOPIC_PREFIX (gatekeeper).
// GATEKEEPER_MQTT_BROKER, GATEKEEPER_MQTT_USERNAME and GATEKEEPER_MQTT_PASSWORD
// default to empty. GATEKEEPER_CONFIG_FILE names an optional YAML tuning file.
func Load() (*Config, error) {
	pollInterval, err := durationEnv("GATEKEEPER_POLL_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return nil, err
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("GATEKEEPER_POLL_INTERVAL must be positive, got %s", pollInterval)
	}

	commandTimeout, err := durationEnv("GATEKEEPER_COMMAND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	if commandTimeout <= 0 {
		return nil, fmt.Errorf("GATEKEEPER_COMMAND_TIMEOUT must be positive, got %s", commandTimeout)
	}

	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("GATEKEEPER_LOG_LEVEL"); ok && v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("GATEKEEPER_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	cfg := &Config{
		DBPath:         stringEnv("GATEKEEPER_DB_PATH", "gatekeeper.db"),
		ListenAddr:     stringEnv("GATEKEEPER_LISTEN_ADDR", "127.0.0.1:8080"),
		PollInterval:   pollInterval,
		LogLevel:       logLevel,
		CommandTimeout: commandTimeout,
		MQTT: MQTTConfig{
			Broker:      os.Getenv("GATEKEEPER_MQTT_BROKER"),
			ClientID:    stringEnv("GATEKEEPER_MQTT_CLIENT_ID", "gatekeeper"),
			TopicPrefix: stringEnv("GATEKEEPER_MQTT_TOPIC_PREFIX", "gatekeeper"),
			Username:    os.Getenv("GATEKEEPER_MQTT_USERNAME"),
			Password:    os.Getenv("GATEKEEPER_MQTT_PASSWORD"),
		},
		ConfigFile: os.Getenv("GATEKEEPER_CONFIG_FILE"),
	}

	if cfg.ConfigFile != "" {
		tuning, err := LoadTuning(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg.Tuning = tuning
	}

	return cfg, nil
}

func stringEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}
