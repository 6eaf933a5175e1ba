// Package events defines the job lifecycle events produced by the planning
// core and applied by the event dispatcher.
package events
