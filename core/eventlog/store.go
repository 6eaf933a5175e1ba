// Package eventlog persists job lifecycle events so runs can be inspected
// after the fact. Records are kept in JSONL files, optionally rotated, or in
// a SQLite database.
package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/shopflow/core/events"
)

// Record is one logged job event.
type Record struct {
	Timestamp time.Time       `json:"timestamp"`
	Run       string          `json:"run"`
	Scenario  string          `json:"scenario,omitempty"`
	Event     events.JobEvent `json:"event"`
}

// Query filters records. Zero fields match everything; To <= 0 leaves the
// simulated time unbounded above.
type Query struct {
	Run   string
	JobID string
	Type  events.Type
	From  float64
	To    float64
}

// Match reports whether r satisfies q.
func (q Query) Match(r Record) bool {
	switch {
	case q.Run != "" && r.Run != q.Run:
		return false
	case q.JobID != "" && r.Event.JobID != q.JobID:
		return false
	case q.Type != "" && r.Event.Type != q.Type:
		return false
	case r.Event.Time < q.From:
		return false
	case q.To > 0 && r.Event.Time > q.To:
		return false
	}
	return true
}

// Store persists Records and supports querying them in append order.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Backends.
const (
	BackendJSONL    = "jsonl"
	BackendRotating = "rotating"
	BackendSQLite   = "sqlite"
)

// Config selects and parameterizes a backend. An empty Backend disables the
// event log.
type Config struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// Rotation settings, only used by the rotating backend.
	MaxSizeMB  int `json:"max_size_mb"`
	MaxBackups int `json:"max_backups"`
	MaxAgeDays int `json:"max_age_days"`
}

// Enabled reports whether a backend is configured.
func (c Config) Enabled() bool { return c.Backend != "" }

// Validate checks the backend name and path.
func (c Config) Validate() error {
	switch c.Backend {
	case "":
		return nil
	case BackendJSONL, BackendRotating, BackendSQLite:
	default:
		return fmt.Errorf("eventlog: unknown backend %q", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("eventlog: path is required for backend %s", c.Backend)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("eventlog: rotation settings must not be negative")
	}
	return nil
}

// Open creates the configured store.
func Open(c Config) (Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Backend {
	case BackendJSONL:
		return NewJSONLStore(c.Path)
	case BackendRotating:
		size := c.MaxSizeMB
		if size == 0 {
			size = 10
		}
		return NewRotatingJSONLStore(c.Path, size, c.MaxBackups, c.MaxAgeDays)
	case BackendSQLite:
		return NewSQLiteStore(c.Path)
	}
	return nil, fmt.Errorf("eventlog: no backend configured")
}
