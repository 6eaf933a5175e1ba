package model

import "github.com/google/uuid"

// JobStatus is the lifecycle state of a job.
type JobStatus int

const (
	JobWaiting JobStatus = iota
	JobQueued
	JobMoving
	JobProcessing
	JobCompleted
	JobInfeasible
)

// String returns a human-readable representation of the status.
func (s JobStatus) String() string {
	switch s {
	case JobWaiting:
		return "waiting"
	case JobQueued:
		return "queued"
	case JobMoving:
		return "moving"
	case JobProcessing:
		return "processing"
	case JobCompleted:
		return "completed"
	case JobInfeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for COMPLETED and INFEASIBLE.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobInfeasible
}

// Plan is the planning state of a job: Unplanned, Planned or
// PlannedWithSupply.
type Plan interface {
	plan()
}

// Unplanned means the job has no selected station or operation.
type Unplanned struct{}

// Planned holds the selected station and operation.
type Planned struct {
	Station   StationState
	Operation *Operation
}

// PlannedWithSupply is a plan with a reserved vehicle delivering material
// from a warehouse.
type PlannedWithSupply struct {
	Planned
	Vehicle   string
	Warehouse string
}

func (Unplanned) plan()         {}
func (Planned) plan()           {}
func (PlannedWithSupply) plan() {}

// PlannedOf extracts the station/operation pair of p if there is one.
func PlannedOf(p Plan) (Planned, bool) {
	switch v := p.(type) {
	case Planned:
		return v, true
	case PlannedWithSupply:
		return v.Planned, true
	default:
		return Planned{}, false
	}
}

// JobMetrics accumulates the simulated time decomposition of a job.
type JobMetrics struct {
	DispatchedAt float64 `json:"dispatched_at"`
	CompletedAt  float64 `json:"completed_at"`
	// LastTime is the timestamp of the last recorded job event.
	LastTime  float64 `json:"last_time"`
	LastEvent string  `json:"last_event"`
	Transport float64 `json:"transport"`
	Working   float64 `json:"working"`
	Waiting   float64 `json:"waiting"`
	// Unaccounted is the remainder of Total not covered by the three
	// components above; it is also added to Waiting on completion.
	Unaccounted float64 `json:"unaccounted"`
	Total       float64 `json:"total"`
	// Work sums the total time of every completed operation.
	Work float64 `json:"work"`
	// Route lists completed operation names in order.
	Route []string `json:"route"`
}

// Job is a production order moving through the operations of its product.
type Job struct {
	ID        string
	Product   *Product
	Status    JobStatus
	Completed []*Operation
	Plan      Plan
	Position  Point
	DueDate   float64
	Rush      bool
	Metrics   JobMetrics

	// MaterialArrived is set once the material of the planned operation is
	// at the station, or when the operation needs none.
	MaterialArrived bool
	// TransportEstimate is the travel time to the planned station.
	TransportEstimate float64

	Sequences     [][]int
	Stats         PositionStats
	MaterialNeeds []MaterialNeed
	// NeedsBuilt is set once a material need list was produced for the job.
	NeedsBuilt bool
}

// NewJob creates a waiting job. An empty id is replaced with a UUID.
func NewJob(id string, p *Product, dueDate float64, rush bool) *Job {
	if id == "" {
		id = uuid.NewString()
	}
	return &Job{ID: id, Product: p, Status: JobWaiting, Plan: Unplanned{}, DueDate: dueDate, Rush: rush}
}

// Done returns the completed set indexed by operation position.
func (j *Job) Done() []bool {
	done := make([]bool, len(j.Product.Operations))
	for _, op := range j.Completed {
		if i := j.Product.Index(op); i >= 0 {
			done[i] = true
		}
	}
	return done
}

// CompletedIndices returns the completed operations as arena indices.
func (j *Job) CompletedIndices() []int {
	out := make([]int, 0, len(j.Completed))
	for _, op := range j.Completed {
		out = append(out, j.Product.Index(op))
	}
	return out
}

// Uncompleted returns the operations not yet completed, in product order.
func (j *Job) Uncompleted() []*Operation {
	done := j.Done()
	var out []*Operation
	for i, op := range j.Product.Operations {
		if !done[i] {
			out = append(out, op)
		}
	}
	return out
}

// NextOperations returns the uncompleted operations whose predecessors are
// all completed.
func (j *Job) NextOperations() []*Operation {
	idx := j.Product.Graph.Eligible(j.Done())
	out := make([]*Operation, len(idx))
	for k, i := range idx {
		out[k] = j.Product.Operations[i]
	}
	return out
}

// Planned returns the current station/operation plan if any.
func (j *Job) Planned() (Planned, bool) {
	if j.Plan == nil {
		return Planned{}, false
	}
	return PlannedOf(j.Plan)
}

// Supply returns the reserved vehicle and warehouse of the plan if any.
func (j *Job) Supply() (PlannedWithSupply, bool) {
	s, ok := j.Plan.(PlannedWithSupply)
	return s, ok
}
