package metrics

import (
	"errors"
	"time"
)

// JobCompletion is the final record of a job leaving the simulation, either
// completed or infeasible.
type JobCompletion struct {
	JobID       string
	Product     string
	Status      string
	Policy      string
	CompletedAt float64
	DueDate     float64
	Tardiness   float64
	Transport   float64
	Working     float64
	Waiting     float64
	Unaccounted float64
	Total       float64
	Time        time.Time
}

// MetricsSink records job outcomes for observability purposes.
type MetricsSink interface {
	RecordJobCompletion(c JobCompletion) error
}

// ScheduleSummary describes one batch scheduling run.
type ScheduleSummary struct {
	Jobs          int
	Vehicles      int
	BeamWidth     int
	WeightedDelay float64
	ProbableDelay float64
	Makespan      float64
	Elapsed       time.Duration
	Time          time.Time
}

// ScheduleRecorder records batch scheduling runs.
type ScheduleRecorder interface {
	RecordSchedule(s ScheduleSummary) error
}

// InfeasibleEvent is emitted when a job can no longer be completed.
type InfeasibleEvent struct {
	JobID     string
	Product   string
	Operation string
	SimTime   float64
	Time      time.Time
}

// InfeasibleRecorder records jobs that became infeasible.
type InfeasibleRecorder interface {
	RecordInfeasible(ev InfeasibleEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordJobCompletion(JobCompletion) error { return nil }
func (NopSink) RecordSchedule(ScheduleSummary) error    { return nil }
func (NopSink) RecordInfeasible(InfeasibleEvent) error  { return nil }

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordJobCompletion forwards the record to all sinks. Every sink is tried;
// failures are joined.
func (m *MultiSink) RecordJobCompletion(c JobCompletion) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordJobCompletion(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordSchedule forwards schedule summaries when supported by the sink.
func (m *MultiSink) RecordSchedule(sum ScheduleSummary) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ScheduleRecorder); ok {
			if err := rec.RecordSchedule(sum); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordInfeasible forwards infeasibility events when supported by the sink.
func (m *MultiSink) RecordInfeasible(ev InfeasibleEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(InfeasibleRecorder); ok {
			if err := rec.RecordInfeasible(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
