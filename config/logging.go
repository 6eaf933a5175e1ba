package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/shopflow/core/eventlog"
)

// LoggingConfig sets the log verbosity.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level"`
	// Events logs every job lifecycle event at debug level.
	Events bool `json:"events"`
	// EventLog persists job events; disabled when no backend is set.
	EventLog eventlog.Config `json:"event_log"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name and the event log settings.
func (c LoggingConfig) Validate() error {
	var errs []error
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown level %s", c.Level))
	}
	return errors.Join(append(errs, c.EventLog.Validate())...)
}
