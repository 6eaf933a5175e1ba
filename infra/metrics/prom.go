package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/shopflow/core/metrics"
	"github.com/kilianp07/shopflow/core/model"
)

// PromSink records job outcomes and schedule runs in Prometheus metrics.
type PromSink struct {
	jobs       *prometheus.CounterVec
	tardiness  prometheus.Histogram
	breakdown  *prometheus.HistogramVec
	infeasible *prometheus.CounterVec
	schedules  prometheus.Counter
	delay      prometheus.Gauge
	makespan   prometheus.Gauge
}

// NewPromSink registers job metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopflow_jobs_total",
			Help: "Jobs that left the simulation, by final status",
		}, []string{"status", "policy"}),
		tardiness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shopflow_job_tardiness",
			Help:    "Simulated time a completed job finished after its due date",
			Buckets: []float64{0, 1, 5, 10, 30, 60, 120, 300},
		}),
		breakdown: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopflow_job_time",
			Help:    "Simulated time spent per job, by component",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"component"}),
		infeasible: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopflow_infeasible_jobs_total",
			Help: "Jobs left without a capable station",
		}, []string{"product"}),
		schedules: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopflow_schedule_runs_total",
			Help: "Batch scheduling runs",
		}),
		delay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shopflow_schedule_weighted_delay",
			Help: "Weighted delay of the last batch schedule",
		}),
		makespan: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shopflow_schedule_makespan",
			Help: "Makespan of the last batch schedule",
		}),
	}
	var err error
	if s.jobs, err = register(reg, s.jobs); err != nil {
		return nil, err
	}
	if s.tardiness, err = register(reg, s.tardiness); err != nil {
		return nil, err
	}
	if s.breakdown, err = register(reg, s.breakdown); err != nil {
		return nil, err
	}
	if s.infeasible, err = register(reg, s.infeasible); err != nil {
		return nil, err
	}
	if s.schedules, err = register(reg, s.schedules); err != nil {
		return nil, err
	}
	if s.delay, err = register(reg, s.delay); err != nil {
		return nil, err
	}
	if s.makespan, err = register(reg, s.makespan); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c was registered
// before, so several sinks can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordJobCompletion counts the job and observes its time breakdown.
func (s *PromSink) RecordJobCompletion(c coremetrics.JobCompletion) error {
	s.jobs.WithLabelValues(c.Status, c.Policy).Inc()
	if c.Status != model.JobCompleted.String() {
		return nil
	}
	s.tardiness.Observe(c.Tardiness)
	s.breakdown.WithLabelValues("transport").Observe(c.Transport)
	s.breakdown.WithLabelValues("working").Observe(c.Working)
	s.breakdown.WithLabelValues("waiting").Observe(c.Waiting)
	return nil
}

// RecordInfeasible counts infeasible jobs per product.
func (s *PromSink) RecordInfeasible(ev coremetrics.InfeasibleEvent) error {
	s.infeasible.WithLabelValues(ev.Product).Inc()
	return nil
}

// RecordSchedule stores the outcome of the last batch scheduling run.
func (s *PromSink) RecordSchedule(sum coremetrics.ScheduleSummary) error {
	s.schedules.Inc()
	s.delay.Set(sum.WeightedDelay)
	s.makespan.Set(sum.Makespan)
	return nil
}
