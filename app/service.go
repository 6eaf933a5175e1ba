// Package app wires configuration, infrastructure adapters and the planning
// core into runnable simulation and scheduling services.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/shopflow/config"
	"github.com/kilianp07/shopflow/core/batch"
	"github.com/kilianp07/shopflow/core/eventlog"
	"github.com/kilianp07/shopflow/core/events"
	coremetrics "github.com/kilianp07/shopflow/core/metrics"
	coremon "github.com/kilianp07/shopflow/core/monitoring"
	coremqtt "github.com/kilianp07/shopflow/core/mqtt"
	"github.com/kilianp07/shopflow/core/shop"
	"github.com/kilianp07/shopflow/infra/logger"
	"github.com/kilianp07/shopflow/infra/metrics"
	"github.com/kilianp07/shopflow/infra/monitoring"
	"github.com/kilianp07/shopflow/infra/mqtt"
	"github.com/kilianp07/shopflow/internal/eventbus"
	"github.com/kilianp07/shopflow/qa/scenarios"
)

// Options overrides the adapters built from configuration.
type Options struct {
	Sink      coremetrics.MetricsSink
	Publisher coremqtt.Publisher
	EventLog  eventlog.Store
	Monitor   coremon.Monitor
}

// Service runs simulations and batch schedules.
type Service struct {
	cfg        *config.Config
	sink       coremetrics.MetricsSink
	pub        coremqtt.Publisher
	disconnect func()
	store      eventlog.Store
	ownsStore  bool
	mon        coremon.Monitor
	bus        *eventbus.TypedBus[events.JobEvent]
	log        logger.Logger
}

// New creates a Service from the configuration. Adapters set in opts are
// used as given; the others are built from cfg.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	logger.SetLevel(cfg.Logging.Level)
	svc := &Service{
		cfg:   cfg,
		sink:  opts.Sink,
		pub:   opts.Publisher,
		store: opts.EventLog,
		mon:   opts.Monitor,
		bus:   eventbus.NewTyped[events.JobEvent](),
		log:   logger.New("service"),
	}
	if svc.mon == nil {
		mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
		if err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
		svc.mon = mon
	}
	if svc.sink == nil {
		sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		svc.sink = sink
	}
	if svc.pub == nil && cfg.MQTT.Enabled {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.pub = pub
		svc.disconnect = pub.Disconnect
	}
	if svc.store == nil && cfg.Logging.EventLog.Enabled() {
		store, err := eventlog.Open(cfg.Logging.EventLog)
		if err != nil {
			_ = svc.closeAdapters()
			return nil, fmt.Errorf("event log: %w", err)
		}
		svc.store = store
		svc.ownsStore = true
	}
	return svc, nil
}

// Bus exposes the job event bus. Subscribers must drain their channel.
func (s *Service) Bus() *eventbus.TypedBus[events.JobEvent] { return s.bus }

// ServeMetrics exposes Prometheus metrics until ctx is canceled when a port
// is configured.
func (s *Service) ServeMetrics(ctx context.Context) {
	addr := s.cfg.Metrics.PrometheusPort
	if addr == "" {
		return
	}
	go func() {
		defer s.mon.Recover()
		if err := metrics.StartPromServer(ctx, addr); err != nil {
			s.log.Errorf("prom server: %v", err)
			s.mon.CaptureException(err, map[string]string{"component": "prom-server"})
		}
	}()
}

// EventLog returns the configured event store, or nil.
func (s *Service) EventLog() eventlog.Store { return s.store }

// Simulate builds the scenario with the configured simulation settings, runs
// it and records one completion per job. Each run gets a fresh id in the
// event log.
func (s *Service) Simulate(ctx context.Context, sc *scenarios.Scenario) (shop.Report, error) {
	sim := s.cfg.Simulation
	dc, err := sim.Dispatch()
	if err != nil {
		return shop.Report{}, err
	}
	d := &EventDispatcher{
		Bus:       s.bus,
		Publisher: s.pub,
		Sink:      s.sink,
		Log:       logger.New("events"),
		Monitor:   s.mon,
		LogEvents: s.cfg.Logging.Events,
		Store:     s.store,
		Run:       uuid.NewString(),
		Scenario:  sc.Name,
	}
	floor, err := sc.Build(scenarios.BuildOptions{
		Dispatch:      dc,
		Speed:         sim.Speed,
		LoadDelay:     sim.LoadDelay,
		UnloadDelay:   sim.UnloadDelay,
		SequenceLimit: sim.SequenceLimit,
		Emit:          d.Handle,
		Logger:        logger.New("floor"),
	})
	if err != nil {
		return shop.Report{}, err
	}
	d.Jobs = floor.Job

	start := time.Now()
	report, runErr := floor.Run(ctx, sim.Horizon)
	handled, announced, failed := d.Stats()
	s.log.Infof("scenario %s run %s: %d completed, %d infeasible, makespan %.2f, %d events in %s",
		sc.Name, d.Run, len(report.Completed), len(report.Infeasible), report.Makespan, handled, time.Since(start))
	if announced > 0 || failed > 0 {
		s.log.Infof("material needs announced: %d, failed: %d", announced, failed)
	}
	if dropped := s.bus.Dropped(); dropped > 0 {
		s.log.Warnf("%d events dropped by slow subscribers", dropped)
	}
	policy := floor.Planner().Policy
	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
		s.mon.CaptureException(runErr, map[string]string{"scenario": sc.Name, "run": d.Run})
	}
	for _, jr := range report.Jobs {
		m := jr.Metrics
		if err := s.sink.RecordJobCompletion(coremetrics.JobCompletion{
			JobID:       jr.ID,
			Product:     jr.Product,
			Status:      jr.Status,
			Policy:      string(policy),
			CompletedAt: m.CompletedAt,
			DueDate:     jr.DueDate,
			Tardiness:   jr.Tardiness,
			Transport:   m.Transport,
			Working:     m.Working,
			Waiting:     m.Waiting,
			Unaccounted: m.Unaccounted,
			Total:       m.Total,
			Time:        time.Now(),
		}); err != nil {
			s.log.Errorf("record job %s: %v", jr.ID, err)
		}
	}
	return report, errors.Join(errs...)
}

// Schedule runs the robust batch scheduler and records a summary.
func (s *Service) Schedule(ctx context.Context, jobs []batch.Job, p batch.Params) (batch.Result, error) {
	start := time.Now()
	res, err := batch.Schedule(ctx, jobs, p)
	if err != nil {
		s.mon.CaptureException(err, map[string]string{"component": "batch"})
		return res, err
	}
	elapsed := time.Since(start)
	s.log.Infof("scheduled %d jobs on %d vehicles: weighted delay %.3f, makespan %.2f (%s)",
		len(jobs), p.Vehicles, res.Best.WeightedDelay, res.Best.Makespan, elapsed)
	if rec, ok := s.sink.(coremetrics.ScheduleRecorder); ok {
		if err := rec.RecordSchedule(coremetrics.ScheduleSummary{
			Jobs:          len(jobs),
			Vehicles:      p.Vehicles,
			BeamWidth:     p.BeamWidth,
			WeightedDelay: res.Best.WeightedDelay,
			ProbableDelay: res.Probable.Delay,
			Makespan:      res.Best.Makespan,
			Elapsed:       elapsed,
			Time:          time.Now(),
		}); err != nil {
			s.log.Errorf("record schedule: %v", err)
		}
	}
	return res, nil
}

// Close releases the MQTT connection, the event log and the event bus, and
// flushes pending error reports.
func (s *Service) Close() error {
	err := s.closeAdapters()
	s.bus.Close()
	s.mon.Flush(2 * time.Second)
	return err
}

func (s *Service) closeAdapters() error {
	if s.disconnect != nil {
		s.disconnect()
		s.disconnect = nil
	}
	if s.ownsStore && s.store != nil {
		err := s.store.Close()
		s.store = nil
		return err
	}
	return nil
}
