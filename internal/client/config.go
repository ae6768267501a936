package client

import (
	"errors"
	"net/url"
	"os"
	"time"
)

// Config holds the upload client configuration.
type Config struct {
	// ServerURL is the base URL of a running docspeak server.
	ServerURL string
	// Language is sent as the form's language field; empty lets the server
	// decide from its own defaults.
	Language string
	Timeout  time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads client configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerURL: getEnvString("DOCSPEAK_URL", "http://localhost:8080"),
		Language:  os.Getenv("DOCSPEAK_LANGUAGE"),
		Timeout:   getEnvDuration("DOCSPEAK_TIMEOUT", 2*time.Minute),
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("DOCSPEAK_URL cannot be empty")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("DOCSPEAK_URL must be an absolute http(s) URL")
	}

	if c.Timeout <= 0 {
		return errors.New("DOCSPEAK_TIMEOUT must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
