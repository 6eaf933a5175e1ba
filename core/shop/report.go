package shop

import (
	"math"

	"github.com/kilianp07/shopflow/core/model"
)

// JobReport is the final state of one job.
type JobReport struct {
	ID        string           `json:"id"`
	Product   string           `json:"product"`
	Status    string           `json:"status"`
	DueDate   float64          `json:"due_date"`
	Tardiness float64          `json:"tardiness"`
	Metrics   model.JobMetrics `json:"metrics"`
}

// Report summarizes a simulation run.
type Report struct {
	Jobs       []JobReport `json:"jobs"`
	Completed  []string    `json:"completed"`
	Infeasible []string    `json:"infeasible"`
	// Makespan is the completion time of the last completed job.
	Makespan float64 `json:"makespan"`
	Events   int     `json:"events"`
	Steps    int     `json:"steps"`
	// Pending is the number of jobs still waiting for a vehicle.
	Pending int `json:"pending"`
}

// Report builds the summary of the jobs registered so far, in release order.
func (f *Floor) Report() Report {
	r := Report{Events: f.events, Steps: f.engine.Steps(), Pending: f.planner.Pending.Len()}
	for _, j := range f.jobs {
		jr := JobReport{ID: j.ID, Product: j.Product.Name, Status: j.Status.String(), DueDate: j.DueDate, Metrics: j.Metrics}
		switch j.Status {
		case model.JobCompleted:
			r.Completed = append(r.Completed, j.ID)
			r.Makespan = math.Max(r.Makespan, j.Metrics.CompletedAt)
			jr.Tardiness = math.Max(0, j.Metrics.CompletedAt-j.DueDate)
		case model.JobInfeasible:
			r.Infeasible = append(r.Infeasible, j.ID)
		}
		r.Jobs = append(r.Jobs, jr)
	}
	return r
}
