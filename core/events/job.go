package events

import "github.com/kilianp07/shopflow/core/model"

// Type identifies a job lifecycle event.
type Type string

const (
	Dispatched              Type = "DISPATCHED"
	StartedMoving           Type = "STARTED_MOVING"
	StoppedMoving           Type = "STOPPED_MOVING"
	Arrived                 Type = "ARRIVED"
	ProcessingStarted       Type = "PROCESSING_STARTED"
	Completed               Type = "COMPLETED"
	Aborted                 Type = "ABORTED"
	MaterialNeedsCalculated Type = "MATERIAL_NEEDS_CALCULATED"
	Infeasible              Type = "INFEASIBLE"
	MaterialDelivered       Type = "MATERIAL_DELIVERED"
)

// JobEvent carries the job id, the (operation, station) pair where
// applicable and the simulated timestamp.
type JobEvent struct {
	Type      Type    `json:"type"`
	JobID     string  `json:"job_id"`
	Operation string  `json:"operation,omitempty"`
	Station   string  `json:"station,omitempty"`
	Vehicle   string  `json:"vehicle,omitempty"`
	Time      float64 `json:"time"`
	// Needs is only set on MATERIAL_NEEDS_CALCULATED.
	Needs []model.MaterialNeed `json:"needs,omitempty"`
	// Metrics is only set on COMPLETED.
	Metrics *model.JobMetrics `json:"metrics,omitempty"`
}

// New builds an event for j at time now, filling the planned pair if any.
func New(t Type, j *model.Job, now float64) JobEvent {
	ev := JobEvent{Type: t, JobID: j.ID, Time: now}
	if pl, ok := j.Planned(); ok {
		if pl.Operation != nil {
			ev.Operation = pl.Operation.Name
		}
		if pl.Station != nil {
			ev.Station = pl.Station.ID()
		}
	}
	if s, ok := j.Supply(); ok {
		ev.Vehicle = s.Vehicle
	}
	return ev
}
