// Package config loads service settings from defaults, an optional YAML
// file, a .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// HTTP settings
	HTTPPort int `yaml:"http_port"`

	// Limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	MaxTextChars   int   `yaml:"max_text_chars"`
	StrictMIME     bool  `yaml:"strict_mime"`

	// Artifact storage
	StorageDir    string        `yaml:"storage_dir"`
	ArtifactTTL   time.Duration `yaml:"artifact_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// TTS settings
	TTSEngine        string        `yaml:"tts_engine"`
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout"`
	GoogleTTSURL     string        `yaml:"google_tts_url"`
	GoogleTTSTLD     string        `yaml:"google_tts_tld"`
	PiperPath        string        `yaml:"piper_path"`
	PiperModelEN     string        `yaml:"piper_model_en"`
	PiperModelES     string        `yaml:"piper_model_es"`
	PiperExtraArgs   string        `yaml:"piper_extra_args"`
	AudioFormat      string        `yaml:"audio_format"`

	// Logging settings
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:         8080,
		MaxUploadBytes:   10 * 1024 * 1024,
		MaxTextChars:     5000,
		StorageDir:       filepath.Join(os.TempDir(), "docspeak"),
		ArtifactTTL:      time.Hour,
		SweepInterval:    5 * time.Minute,
		TTSEngine:        "google",
		SynthesisTimeout: 60 * time.Second,
		GoogleTTSTLD:     "com",
		PiperPath:        "piper",
		AudioFormat:      "native",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load reads configuration. A .env file in the working directory is loaded
// first if present; CONFIG_FILE names an optional YAML file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile reads defaults, then the YAML file at path (if path is not empty),
// then environment overrides, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)

	c.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.MaxTextChars = getEnvInt("MAX_TEXT_CHARS", c.MaxTextChars)
	c.StrictMIME = getEnvBool("STRICT_MIME", c.StrictMIME)

	c.StorageDir = getEnvString("STORAGE_DIR", c.StorageDir)
	c.ArtifactTTL = getEnvDuration("ARTIFACT_TTL", c.ArtifactTTL)
	c.SweepInterval = getEnvDuration("SWEEP_INTERVAL", c.SweepInterval)

	c.TTSEngine = strings.ToLower(getEnvString("TTS_ENGINE", c.TTSEngine))
	c.SynthesisTimeout = getEnvDuration("SYNTHESIS_TIMEOUT", c.SynthesisTimeout)
	c.GoogleTTSURL = getEnvString("GOOGLE_TTS_URL", c.GoogleTTSURL)
	c.GoogleTTSTLD = getEnvString("GOOGLE_TTS_TLD", c.GoogleTTSTLD)
	c.PiperPath = getEnvString("PIPER_PATH", c.PiperPath)
	c.PiperModelEN = getEnvString("PIPER_MODEL_EN", c.PiperModelEN)
	c.PiperModelES = getEnvString("PIPER_MODEL_ES", c.PiperModelES)
	c.PiperExtraArgs = getEnvString("PIPER_EXTRA_ARGS", c.PiperExtraArgs)
	c.AudioFormat = strings.ToLower(getEnvString("AUDIO_FORMAT", c.AudioFormat))

	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvString("LOG_FORMAT", c.LogFormat)
}

// PiperModels maps each language to its configured voice model.
func (c *Config) PiperModels() map[string]string {
	return map[string]string{
		"en": c.PiperModelEN,
		"es": c.PiperModelES,
	}
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	if c.MaxUploadBytes < 1 {
		return errors.New("MAX_UPLOAD_BYTES must be at least 1")
	}

	if c.MaxTextChars < 1 {
		return errors.New("MAX_TEXT_CHARS must be at least 1")
	}

	if c.StorageDir == "" {
		return errors.New("STORAGE_DIR must not be empty")
	}

	if c.ArtifactTTL <= 0 {
		return errors.New("ARTIFACT_TTL must be positive")
	}

	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}

	if c.SynthesisTimeout <= 0 {
		return errors.New("SYNTHESIS_TIMEOUT must be positive")
	}

	switch c.TTSEngine {
	case "google":
	case "piper":
		if c.PiperModelEN == "" {
			return errors.New("PIPER_MODEL_EN is required when TTS_ENGINE is piper")
		}
	default:
		return errors.New("TTS_ENGINE must be one of: google, piper")
	}

	validAudioFormats := map[string]bool{"native": true, "mp3": true}
	if !validAudioFormats[c.AudioFormat] {
		return errors.New("AUDIO_FORMAT must be one of: native, mp3")
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

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns the environment variable as an int64 or a default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
