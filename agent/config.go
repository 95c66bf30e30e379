// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/SladkyCitron/slogcolor"
	"github.com/choria-io/fisk"
	"github.com/goccy/go-yaml"

	iu "github.com/choria-io/pkgstore/internal/util"
	"github.com/choria-io/pkgstore/manager"
	"github.com/choria-io/pkgstore/model"
)

// Config holds the agent configuration
type Config struct {
	// Backend is the store backend to serve, empty selects the most suitable one for the machine
	Backend string `yaml:"backend"`

	// Location is the directory of the store, empty uses the backend default location
	Location string `yaml:"location"`

	// SubjectPrefix is the NATS subject prefix requests are served on, operations are
	// served on <prefix>.<operation> and transaction events published on <prefix>.events.<tag>
	SubjectPrefix string `yaml:"subject_prefix"`

	// RefreshInterval is the time between repository index refreshes (e.g. "15m", "1h").
	// Must be at least MinRefreshInterval. Defaults to DefaultRefreshInterval.
	RefreshInterval         string `yaml:"refresh_interval"`
	refreshIntervalDuration time.Duration

	// HistoryDir keeps transaction events on disk, empty keeps them in memory
	HistoryDir string `yaml:"history_dir"`

	// MonitorPort is the port to listen on for accessing Prometheus stats
	MonitorPort int `yaml:"monitor_port"`

	// LogLevel is the log level to use
	// Valid values: debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// NatsContext is the NATS context used to connect
	NatsContext string `yaml:"nats_context"`
}

// ParseConfig parses YAML configuration and applies defaults
func ParseConfig(c []byte) (*Config, error) {
	cfg := &Config{
		SubjectPrefix:           DefaultSubjectPrefix,
		refreshIntervalDuration: DefaultRefreshInterval,
		LogLevel:                "info",
		NatsContext:             "PKGSTORE",
	}

	err := yaml.Unmarshal(c, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RefreshInterval != "" {
		cfg.refreshIntervalDuration, err = fisk.ParseDuration(cfg.RefreshInterval)
		if err != nil {
			return nil, err
		}
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if c.refreshIntervalDuration < MinRefreshInterval {
		return fmt.Errorf("refresh_interval must be at least %v", MinRefreshInterval)
	}

	if c.SubjectPrefix == "" {
		return fmt.Errorf("subject_prefix must be set")
	}

	if strings.ContainsAny(c.SubjectPrefix, "*> \t") || strings.HasSuffix(c.SubjectPrefix, ".") {
		return fmt.Errorf("subject_prefix %q is not a valid subject", c.SubjectPrefix)
	}

	if c.NatsContext == "" {
		return fmt.Errorf("nats_context must be set")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}

	return nil
}

// NewLogger creates the agent logger, colored when attached to a terminal
func (c *Config) NewLogger() (model.Logger, error) {
	var level slog.Level

	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	if iu.IsTerminal() {
		return manager.NewSlogLogger(
			slog.New(
				slogcolor.NewHandler(os.Stdout, &slogcolor.Options{
					Level: level,
				}))), nil
	}

	return manager.NewSlogLogger(
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))), nil
}
