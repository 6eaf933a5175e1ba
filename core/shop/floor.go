// Package shop provides in-memory stations, a Euclidean router and the Floor
// orchestrator that applies planning decisions on the simulation clock.
package shop

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/shopflow/core/dispatch"
	"github.com/kilianp07/shopflow/core/events"
	"github.com/kilianp07/shopflow/core/fleet"
	"github.com/kilianp07/shopflow/core/forecast"
	"github.com/kilianp07/shopflow/core/lifecycle"
	"github.com/kilianp07/shopflow/core/logger"
	"github.com/kilianp07/shopflow/core/model"
	"github.com/kilianp07/shopflow/core/sequence"
	"github.com/kilianp07/shopflow/core/sim"
)

// Options configures a Floor.
type Options struct {
	Dispatch dispatch.Config
	Router   model.Router
	Stations []*Station
	// Fleet may be nil for shops without vehicles.
	Fleet      *fleet.Fleet
	Forecaster *forecast.Forecaster
	// Source is where released jobs appear, Sink where finished jobs go.
	Source, Sink  model.Point
	SequenceLimit int
	// Emit receives every job event in order. It may be nil.
	Emit   func(events.JobEvent)
	Logger logger.Logger
}

// Floor drives jobs through the shop. It is single-threaded: every state
// change happens inside a simulation event.
type Floor struct {
	engine    *sim.Engine
	planner   *lifecycle.Planner
	fleet     *fleet.Fleet
	router    model.Router
	policy    dispatch.Policy
	admission dispatch.AdmissionScorer
	stations  []*Station
	byID      map[string]*Station
	source    model.Point
	sink      model.Point

	jobs       []*model.Job
	jobByID    map[string]*model.Job
	planGen    map[string]uint64
	deliveries map[string]uint64

	emit   func(events.JobEvent)
	log    logger.Logger
	events int
	errs   []error
}

// NewFloor wires a Floor and its planner.
func NewFloor(opts Options) *Floor {
	log := logger.OrNop(opts.Logger)
	router := opts.Router
	if router == nil {
		router = EuclideanRouter{Speed: 1}
	}
	var vehicles lifecycle.Vehicles
	if opts.Fleet != nil {
		vehicles = opts.Fleet
	}
	planner := lifecycle.New(opts.Dispatch, vehicles, opts.Forecaster, log)
	if opts.SequenceLimit > 0 {
		planner.SequenceLimit = opts.SequenceLimit
	} else {
		planner.SequenceLimit = sequence.DefaultLimit
	}
	f := &Floor{
		engine:     sim.New(),
		planner:    planner,
		fleet:      opts.Fleet,
		router:     router,
		policy:     opts.Dispatch.Policy,
		admission:  dispatch.AdmissionScorer{Weights: opts.Dispatch.Weights, Policy: opts.Dispatch.Policy},
		stations:   opts.Stations,
		byID:       make(map[string]*Station, len(opts.Stations)),
		source:     opts.Source,
		sink:       opts.Sink,
		jobByID:    map[string]*model.Job{},
		planGen:    map[string]uint64{},
		deliveries: map[string]uint64{},
		emit:       opts.Emit,
		log:        log,
	}
	for _, s := range opts.Stations {
		f.byID[s.ID()] = s
	}
	return f
}

// Engine exposes the simulation clock.
func (f *Floor) Engine() *sim.Engine { return f.engine }

// Planner exposes the job planner.
func (f *Floor) Planner() *lifecycle.Planner { return f.planner }

// Job returns a registered job.
func (f *Floor) Job(id string) (*model.Job, bool) {
	j, ok := f.jobByID[id]
	return j, ok
}

// AddJob registers j and releases it at time at.
func (f *Floor) AddJob(j *model.Job, at float64) error {
	if _, dup := f.jobByID[j.ID]; dup {
		return fmt.Errorf("shop: duplicate job %s", j.ID)
	}
	j.Position = f.source
	f.jobs = append(f.jobs, j)
	f.jobByID[j.ID] = j
	f.engine.Schedule(at, func(now float64) {
		out, evs, err := f.planner.Dispatch(j, f.decision())
		f.handle(j, out, evs, err)
	})
	return nil
}

// DisableStation takes a station out of service at time at. Jobs moving to
// or queued at it are aborted and planned again. Vehicles freed by the aborts
// go to the pending queue.
func (f *Floor) DisableStation(id string, at float64) error {
	st, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("shop: unknown station %s", id)
	}
	f.engine.Schedule(at, func(now float64) {
		st.disabled = true
		var affected []*model.Job
		for _, jo := range append(st.MovingOperations(), st.QueuedOperations()...) {
			affected = append(affected, jo.Job)
		}
		for _, j := range affected {
			st.drop(j)
			out, evs, err := f.planner.Abort(j, f.decision())
			f.handle(j, out, evs, err)
		}
		f.retryPending(now)
	})
	return nil
}

// Run advances the simulation until no event remains or until is reached.
func (f *Floor) Run(ctx context.Context, until float64) (Report, error) {
	if err := f.engine.Run(ctx, until); err != nil {
		return f.Report(), err
	}
	return f.Report(), errors.Join(f.errs...)
}

func (f *Floor) decision() dispatch.DecisionContext {
	states := make([]model.StationState, len(f.stations))
	for i, s := range f.stations {
		states[i] = s
	}
	ctx := dispatch.DecisionContext{Now: f.engine.Now(), Router: f.router, Stations: states}
	if f.fleet != nil {
		ctx.Supply = f.fleet
	}
	return ctx
}

func (f *Floor) publish(evs []events.JobEvent) {
	for _, ev := range evs {
		f.events++
		if f.emit != nil {
			f.emit(ev)
		}
	}
}

func (f *Floor) fail(err error) {
	f.log.Errorf("%v", err)
	f.errs = append(f.errs, err)
}

// handle publishes the events of a transition and applies its outcome.
func (f *Floor) handle(j *model.Job, out lifecycle.Outcome, evs []events.JobEvent, err error) {
	if err != nil {
		f.fail(err)
		return
	}
	f.publish(evs)
	f.planGen[j.ID]++
	switch out.Kind {
	case lifecycle.Move, lifecycle.StayInStation:
		st := f.byID[out.Station.ID()]
		st.addMoving(model.JobOperation{Job: j, Operation: out.Operation})
		if _, ok := j.Supply(); ok {
			f.startDelivery(j)
		}
		gen := f.planGen[j.ID]
		f.engine.After(out.TravelTime, func(now float64) {
			if f.planGen[j.ID] == gen {
				f.arrive(j, st, now)
			}
		})
	case lifecycle.Completed:
		for _, s := range f.stations {
			s.drop(j)
		}
		j.Position = f.sink
	case lifecycle.Infeasible:
		f.log.Warnf("job %s removed from planning", j.ID)
	}
}

func (f *Floor) arrive(j *model.Job, st *Station, now float64) {
	st.arrive(j)
	evs, err := f.planner.SetQueued(j, now)
	if err != nil {
		f.fail(err)
		return
	}
	f.publish(evs)
	pl, _ := j.Planned()
	if f.policy == dispatch.PolicyReactive && pl.Operation.MaterialRequired && !j.MaterialArrived {
		ok, err := f.planner.RequestSupply(j, now)
		if err != nil {
			f.fail(err)
		} else if ok {
			f.startDelivery(j)
		}
	}
	f.tryStart(st, now)
}

func (f *Floor) startDelivery(j *model.Job) {
	s, ok := j.Supply()
	if !ok || f.fleet == nil {
		return
	}
	v, ok := f.fleet.Get(s.Vehicle)
	if !ok {
		f.fail(fmt.Errorf("%w: %s", fleet.ErrUnknownVehicle, s.Vehicle))
		return
	}
	if err := f.fleet.StartDelivery(s.Vehicle, v.SupplyCompleteAt); err != nil {
		f.fail(err)
		return
	}
	f.deliveries[s.Vehicle]++
	gen := f.deliveries[s.Vehicle]
	f.engine.Schedule(v.SupplyCompleteAt, func(now float64) {
		if f.deliveries[s.Vehicle] != gen {
			return
		}
		cur, ok := f.fleet.Get(s.Vehicle)
		if !ok || cur.JobID != j.ID || cur.Status != fleet.StatusDelivering {
			return
		}
		f.deliver(j, s, now)
	})
}

func (f *Floor) deliver(j *model.Job, s model.PlannedWithSupply, now float64) {
	f.publish([]events.JobEvent{f.planner.MaterialDelivered(j, now)})
	back := 0.0
	home := s.Station.Origin()
	if w, ok := f.fleet.Warehouse(s.Warehouse); ok {
		back = f.router.TravelTime(s.Station.Origin(), w.Position)
		home = w.Position
	}
	gen := f.deliveries[s.Vehicle]
	f.engine.After(back, func(now float64) {
		if f.deliveries[s.Vehicle] != gen {
			return
		}
		if err := f.fleet.Release(s.Vehicle, &home); err != nil {
			f.fail(err)
			return
		}
		f.retryPending(now)
	})
	if st, ok := f.byID[s.Station.ID()]; ok {
		f.tryStart(st, now)
	}
}

// retryPending hands freed vehicles to parked jobs in arrival order.
func (f *Floor) retryPending(now float64) {
	for _, e := range f.planner.Pending.Entries() {
		j, ok := f.jobByID[e.JobID]
		if !ok || j.Status.IsTerminal() {
			f.planner.Pending.Remove(e.JobID)
			continue
		}
		got, err := f.planner.RequestSupply(j, now)
		if err != nil {
			f.planner.Pending.Remove(e.JobID)
			f.fail(err)
			continue
		}
		if !got {
			return
		}
		f.startDelivery(j)
	}
}

// tryStart scores every job queued at st and starts the winner if the
// station is idle. A winner still waiting for material holds the station
// until its delivery; jobs with material come first so they win ties.
func (f *Floor) tryStart(st *Station, now float64) {
	if st.active != nil {
		return
	}
	var norms dispatch.AdmissionNorms
	for _, s := range f.stations {
		norms.ObserveNorms(f.admissionCandidates(s), now)
	}
	cands := f.admissionCandidates(st)
	best := f.admission.Best(cands, norms, now)
	if best < 0 {
		return
	}
	j := cands[best].Job
	if !j.MaterialArrived {
		f.log.Debugf("station %s held for job %s awaiting material", st.ID(), j.ID)
		return
	}
	jo, ok := st.start(j, now)
	if !ok {
		return
	}
	evs, err := f.planner.SetProcessing(j, now)
	if err != nil {
		f.fail(err)
		return
	}
	f.publish(evs)
	f.engine.Schedule(st.finishAt, func(now float64) {
		f.complete(st, jo.Job, now)
	})
}

// admissionCandidates lists the queued jobs of st, those with material first,
// each group in arrival order. Without a fleet nothing can be delivered, so
// jobs still waiting for material are left out.
func (f *Floor) admissionCandidates(st *Station) []dispatch.AdmissionCandidate {
	var ready, waiting []dispatch.AdmissionCandidate
	for _, jo := range st.queue {
		if jo.Job.Status != model.JobQueued {
			continue
		}
		c := dispatch.AdmissionCandidate{Job: jo.Job, Operation: jo.Operation, LastOperation: st.last}
		if s, ok := jo.Job.Supply(); ok && f.fleet != nil {
			if v, found := f.fleet.Get(s.Vehicle); found && v.JobID == jo.Job.ID {
				c.HasVehicle = true
				c.SupplyReadyAt = v.SupplyCompleteAt
			}
		}
		switch {
		case jo.Job.MaterialArrived:
			ready = append(ready, c)
		case f.fleet != nil:
			waiting = append(waiting, c)
		}
	}
	return append(ready, waiting...)
}

func (f *Floor) complete(st *Station, j *model.Job, now float64) {
	st.finish()
	out, evs, err := f.planner.CompleteOperation(j, f.decision())
	f.handle(j, out, evs, err)
	f.tryStart(st, now)
}
