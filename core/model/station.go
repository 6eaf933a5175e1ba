package model

import "math"

// Point is a position on the shop floor.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Router turns two coordinates into a travel duration.
type Router interface {
	TravelTime(from, to Point) float64
}

// JobOperation pairs a job with one of its operations.
type JobOperation struct {
	Job       *Job
	Operation *Operation
}

// StationState is the view of a work center consumed by the planning core.
// Station bookkeeping itself is owned by the shop floor.
type StationState interface {
	ID() string
	Origin() Point
	Disabled() bool
	Capable(op *Operation) bool
	// ExpectedFinishTime is the simulated time at which the station will
	// be done with its current work.
	ExpectedFinishTime() float64
	QueuedOperations() []JobOperation
	MovingOperations() []JobOperation
	ActiveOperation() (JobOperation, bool)
}

// QueuedDuration sums setup, processing and follow-up times of the queued
// operations of s.
func QueuedDuration(s StationState) float64 {
	var sum float64
	for _, jo := range s.QueuedOperations() {
		sum += jo.Operation.TotalTime()
	}
	return sum
}

// RemainingBusyTime returns how long s stays busy from now on, never negative.
func RemainingBusyTime(s StationState, now float64) float64 {
	return math.Max(0, s.ExpectedFinishTime()-now)
}
