package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ReaderConfig configures one door reader device
type ReaderConfig struct {
	DoorID              int64         `yaml:"door_id"`
	ServerURL           string        `yaml:"server_url"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	Dwell               time.Duration `yaml:"dwell"`
	IdleAfter           time.Duration `yaml:"idle_after"`
	IdleTick            time.Duration `yaml:"idle_tick"`
	DisplayInitAttempts int           `yaml:"display_init_attempts"`
	EscalateAfter       int           `yaml:"escalate_after"`
	RetryWait           time.Duration `yaml:"retry_wait"`
	EscalatedWait       time.Duration `yaml:"escalated_wait"`
	LinkRetryWait       time.Duration `yaml:"link_retry_wait"`
	LogLevel            string        `yaml:"log_level"`
}

// DefaultReaderConfig returns the reader defaults
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		ServerURL:           "http://localhost:8080",
		RequestTimeout:      5 * time.Second,
		PollInterval:        100 * time.Millisecond,
		Dwell:               2 * time.Second,
		IdleAfter:           60 * time.Second,
		IdleTick:            time.Second,
		DisplayInitAttempts: 3,
		EscalateAfter:       3,
		RetryWait:           time.Second,
		EscalatedWait:       5 * time.Second,
		LinkRetryWait:       500 * time.Millisecond,
		LogLevel:            "info",
	}
}

// LoadReader reads a YAML reader config over the defaults. An empty path uses
// defaults only. DOOR_ID and SERVER_URL override the file.
func LoadReader(path string) (*ReaderConfig, error) {
	cfg := DefaultReaderConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read reader config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse reader config %s: %w", path, err)
		}
	}

	if v := os.Getenv("DOOR_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DOOR_ID: %w", err)
		}
		cfg.DoorID = id
	}
	if v := os.Getenv("SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and positive durations
func (c *ReaderConfig) Validate() error {
	if c.DoorID <= 0 {
		return errors.New("door_id must be a positive integer")
	}
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	for name, d := range map[string]time.Duration{
		"request_timeout": c.RequestTimeout,
		"poll_interval":   c.PollInterval,
		"dwell":           c.Dwell,
		"idle_after":      c.IdleAfter,
		"idle_tick":       c.IdleTick,
		"retry_wait":      c.RetryWait,
		"escalated_wait":  c.EscalatedWait,
		"link_retry_wait": c.LinkRetryWait,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.DisplayInitAttempts <= 0 || c.EscalateAfter <= 0 {
		return errors.New("display_init_attempts and escalate_after must be positive")
	}
	return nil
}
