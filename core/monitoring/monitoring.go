// Package monitoring defines the error reporting hook used by the services.
package monitoring

import "time"

// Monitor reports errors and panics to an external tracker.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Recover must be deferred; it reports and re-panics.
	Recover()
	Flush(timeout time.Duration)
}

// NopMonitor drops everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}
