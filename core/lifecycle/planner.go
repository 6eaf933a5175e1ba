// Package lifecycle drives jobs through their decision state machine:
// WAITING, QUEUED, MOVING, PROCESSING and the COMPLETED or INFEASIBLE
// terminals. Every transition returns the events to emit instead of
// publishing them.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/kilianp07/shopflow/core/dispatch"
	"github.com/kilianp07/shopflow/core/events"
	"github.com/kilianp07/shopflow/core/fleet"
	"github.com/kilianp07/shopflow/core/forecast"
	"github.com/kilianp07/shopflow/core/logger"
	"github.com/kilianp07/shopflow/core/model"
	"github.com/kilianp07/shopflow/core/sequence"
)

// ErrInvalidTransition is returned when a transition is not allowed from the
// current job status.
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

// Kind is the result of a planning round.
type Kind int

const (
	// Move means the job travels to the planned station.
	Move Kind = iota
	// StayInStation means the planned station is where the job already is.
	StayInStation
	// Completed means no operation remains.
	Completed
	// Infeasible means operations remain but no station can run them.
	Infeasible
)

func (k Kind) String() string {
	switch k {
	case Move:
		return "move"
	case StayInStation:
		return "stay"
	case Completed:
		return "completed"
	case Infeasible:
		return "infeasible"
	}
	return "unknown"
}

// Outcome describes what the caller has to do after a transition.
type Outcome struct {
	Kind       Kind
	Station    model.StationState
	Operation  *model.Operation
	TravelTime float64
	// Parked is set when the operation needs material and no vehicle could
	// be reserved. The job sits in the pending queue.
	Parked bool
	// Candidates is the number of scored (station, operation) pairs.
	Candidates int
}

// Vehicles is the part of the fleet the planner mutates.
type Vehicles interface {
	dispatch.SupplyOracle
	Reserve(id, jobID, station string, readyAt float64) error
	Release(id string, pos *model.Point) error
	Warehouse(id string) (fleet.Warehouse, bool)
}

// Planner applies the job state machine.
type Planner struct {
	Selector      dispatch.Selector
	Policy        dispatch.Policy
	Vehicles      Vehicles
	Pending       *dispatch.PendingQueue
	Forecaster    *forecast.Forecaster
	SequenceLimit int
	Logger        logger.Logger
}

// New returns a Planner. vehicles may be nil when the shop has no fleet.
func New(cfg dispatch.Config, vehicles Vehicles, fc *forecast.Forecaster, log logger.Logger) *Planner {
	return &Planner{
		Selector:      dispatch.NewSelector(cfg),
		Policy:        cfg.Policy,
		Vehicles:      vehicles,
		Pending:       &dispatch.PendingQueue{},
		Forecaster:    fc,
		SequenceLimit: sequence.DefaultLimit,
		Logger:        logger.OrNop(log),
	}
}

// Dispatch releases a waiting job and plans its first operation.
func (p *Planner) Dispatch(j *model.Job, ctx dispatch.DecisionContext) (Outcome, []events.JobEvent, error) {
	if j.Status != model.JobWaiting {
		return Outcome{}, nil, fmt.Errorf("%w: dispatch job %s in status %s", ErrInvalidTransition, j.ID, j.Status)
	}
	j.Metrics.DispatchedAt = ctx.Now
	evs := []events.JobEvent{p.touch(j, events.New(events.Dispatched, j, ctx.Now))}
	out, more := p.plan(j, ctx)
	return out, append(evs, more...), nil
}

// SetQueued records the arrival of a moving job at its planned station.
func (p *Planner) SetQueued(j *model.Job, now float64) ([]events.JobEvent, error) {
	pl, ok := j.Planned()
	if j.Status != model.JobMoving || !ok {
		return nil, fmt.Errorf("%w: queue job %s in status %s", ErrInvalidTransition, j.ID, j.Status)
	}
	j.Metrics.Transport += now - j.Metrics.LastTime
	if pl.Station != nil {
		j.Position = pl.Station.Origin()
	}
	j.Status = model.JobQueued
	stopped := p.touch(j, events.New(events.StoppedMoving, j, now))
	arrived := p.touch(j, events.New(events.Arrived, j, now))
	return []events.JobEvent{stopped, arrived}, nil
}

// SetProcessing starts the planned operation of a queued job.
func (p *Planner) SetProcessing(j *model.Job, now float64) ([]events.JobEvent, error) {
	if j.Status != model.JobQueued {
		return nil, fmt.Errorf("%w: process job %s in status %s", ErrInvalidTransition, j.ID, j.Status)
	}
	j.Metrics.Waiting += now - j.Metrics.LastTime
	j.Status = model.JobProcessing
	return []events.JobEvent{p.touch(j, events.New(events.ProcessingStarted, j, now))}, nil
}

// CompleteOperation records the planned operation as done and plans the next
// one. The completed list stays a topological prefix of the product.
func (p *Planner) CompleteOperation(j *model.Job, ctx dispatch.DecisionContext) (Outcome, []events.JobEvent, error) {
	pl, ok := j.Planned()
	if j.Status != model.JobProcessing || !ok {
		return Outcome{}, nil, fmt.Errorf("%w: complete job %s in status %s", ErrInvalidTransition, j.ID, j.Status)
	}
	idx := j.Product.Index(pl.Operation)
	if !j.Product.Graph.Ready(idx, j.Done()) {
		return Outcome{}, nil, fmt.Errorf("%w: operation %s of job %s has open predecessors", ErrInvalidTransition, pl.Operation.Name, j.ID)
	}
	j.Metrics.Working += ctx.Now - j.Metrics.LastTime
	j.Metrics.LastTime = ctx.Now
	j.Metrics.Work += pl.Operation.TotalTime()
	j.Metrics.Route = append(j.Metrics.Route, pl.Operation.Name)
	j.Completed = append(j.Completed, pl.Operation)
	j.Plan = model.Unplanned{}
	j.MaterialArrived = false
	out, evs := p.plan(j, ctx)
	return out, evs, nil
}

// Abort cancels the current plan, releases any reserved vehicle and plans
// again.
func (p *Planner) Abort(j *model.Job, ctx dispatch.DecisionContext) (Outcome, []events.JobEvent, error) {
	if j.Status.IsTerminal() {
		return Outcome{}, nil, fmt.Errorf("%w: abort job %s in status %s", ErrInvalidTransition, j.ID, j.Status)
	}
	elapsed := ctx.Now - j.Metrics.LastTime
	switch j.Status {
	case model.JobMoving:
		j.Metrics.Transport += elapsed
	case model.JobProcessing:
		j.Metrics.Working += elapsed
	default:
		j.Metrics.Waiting += elapsed
	}
	evs := []events.JobEvent{p.touch(j, events.New(events.Aborted, j, ctx.Now))}
	p.releaseSupply(j)
	j.Plan = model.Unplanned{}
	j.MaterialArrived = false
	out, more := p.plan(j, ctx)
	return out, append(evs, more...), nil
}

// RequestSupply reserves the fastest idle vehicle for the planned operation
// of j. It is used by the reactive policy on arrival and to retry parked
// jobs. ok is false when no vehicle is free; the job is then parked.
func (p *Planner) RequestSupply(j *model.Job, now float64) (bool, error) {
	pl, planned := j.Planned()
	if !planned || pl.Station == nil {
		return false, fmt.Errorf("%w: supply for unplanned job %s", ErrInvalidTransition, j.ID)
	}
	if _, has := j.Supply(); has || j.MaterialArrived {
		return true, nil
	}
	if p.Vehicles == nil {
		p.park(j, pl)
		dispatch.ObserveReservation("none")
		return false, nil
	}
	offer, ok := p.Vehicles.BestOffer(pl.Station.Origin())
	if !ok {
		p.park(j, pl)
		dispatch.ObserveReservation("none")
		return false, nil
	}
	return p.reserve(j, pl, offer, now), nil
}

// MaterialDelivered marks the material of the planned operation as present.
func (p *Planner) MaterialDelivered(j *model.Job, now float64) events.JobEvent {
	j.MaterialArrived = true
	return events.New(events.MaterialDelivered, j, now)
}

// plan is the re-entry point after dispatch, completion and abort.
func (p *Planner) plan(j *model.Job, ctx dispatch.DecisionContext) (Outcome, []events.JobEvent) {
	if len(j.Uncompleted()) == 0 {
		return Outcome{Kind: Completed}, []events.JobEvent{p.finish(j, ctx.Now)}
	}
	sel, ok := p.Selector.Select(j, ctx)
	if !ok {
		j.Status = model.JobInfeasible
		j.Plan = model.Unplanned{}
		p.Logger.Warnf("job %s infeasible: no enabled station for %d remaining operations", j.ID, len(j.Uncompleted()))
		return Outcome{Kind: Infeasible}, []events.JobEvent{p.touch(j, events.New(events.Infeasible, j, ctx.Now))}
	}
	pl := model.Planned{Station: sel.Station, Operation: sel.Operation}
	j.Plan = pl
	j.TransportEstimate = sel.Transport
	j.MaterialArrived = !sel.Operation.MaterialRequired || !p.Policy.RequiresMaterial()
	p.Logger.Debugw("station selected", map[string]any{
		"job": j.ID, "station": sel.Station.ID(), "operation": sel.Operation.Name,
		"score": sel.Score, "candidates": sel.Candidates,
	})

	out := Outcome{Kind: Move, Station: sel.Station, Operation: sel.Operation, TravelTime: sel.Transport, Candidates: sel.Candidates}
	if sel.Transport == 0 {
		out.Kind = StayInStation
	}
	if p.Policy.Proactive() && sel.Operation.MaterialRequired {
		if !sel.HasOffer || p.Vehicles == nil {
			p.park(j, pl)
			dispatch.ObserveReservation("none")
			out.Parked = true
		} else if !p.reserve(j, pl, sel.Offer, ctx.Now) {
			out.Parked = true
		}
	}

	var evs []events.JobEvent
	if ev, ok := p.forecast(j, sel.Station, ctx.Now); ok {
		evs = append(evs, ev)
	}
	j.Status = model.JobMoving
	evs = append(evs, p.touch(j, events.New(events.StartedMoving, j, ctx.Now)))
	return out, evs
}

func (p *Planner) reserve(j *model.Job, pl model.Planned, o fleet.Offer, now float64) bool {
	if err := p.Vehicles.Reserve(o.Vehicle, j.ID, pl.Station.ID(), now+o.Duration); err != nil {
		p.Logger.Warnf("job %s: reserve %s: %v", j.ID, o.Vehicle, err)
		p.park(j, pl)
		dispatch.ObserveReservation("busy")
		return false
	}
	j.Plan = model.PlannedWithSupply{Planned: pl, Vehicle: o.Vehicle, Warehouse: o.Warehouse}
	p.Pending.Remove(j.ID)
	dispatch.ObserveReservation("reserved")
	return true
}

func (p *Planner) park(j *model.Job, pl model.Planned) {
	p.Pending.Push(dispatch.PendingEntry{JobID: j.ID, Station: pl.Station.ID()})
	p.Logger.Infof("job %s parked: no vehicle for %s at %s", j.ID, pl.Operation.Name, pl.Station.ID())
}

func (p *Planner) releaseSupply(j *model.Job) {
	p.Pending.Remove(j.ID)
	s, ok := j.Supply()
	if !ok || p.Vehicles == nil {
		return
	}
	if err := p.Vehicles.Release(s.Vehicle, nil); err != nil {
		p.Logger.Errorf("job %s: release %s: %v", j.ID, s.Vehicle, err)
	}
}

// forecast regenerates the sequences of j and, under a material policy,
// rebuilds its material needs. When enumeration fails the previous results
// are dropped.
func (p *Planner) forecast(j *model.Job, st model.StationState, now float64) (events.JobEvent, bool) {
	if err := sequence.Regenerate(j, p.SequenceLimit); err != nil {
		p.Logger.Warnf("job %s: sequence enumeration skipped: %v", j.ID, err)
		j.Sequences = nil
		j.Stats = nil
		j.MaterialNeeds = nil
		return events.JobEvent{}, false
	}
	if p.Forecaster == nil || !p.Policy.RequiresMaterial() {
		return events.JobEvent{}, false
	}
	var wh *fleet.Warehouse
	if s, ok := j.Supply(); ok && p.Vehicles != nil {
		if w, found := p.Vehicles.Warehouse(s.Warehouse); found {
			wh = &w
		}
	}
	_, ev := p.Forecaster.Forecast(j, st, wh, now)
	return ev, true
}

func (p *Planner) finish(j *model.Job, now float64) events.JobEvent {
	m := &j.Metrics
	m.CompletedAt = now
	m.Total = now - m.DispatchedAt
	m.Unaccounted = m.Total - (m.Transport + m.Working + m.Waiting)
	m.Waiting += m.Unaccounted
	j.Status = model.JobCompleted
	j.Plan = model.Unplanned{}
	p.Pending.Remove(j.ID)
	ev := p.touch(j, events.New(events.Completed, j, now))
	snapshot := *m
	ev.Metrics = &snapshot
	p.Logger.Infof("job %s completed at %.2f (total %.2f)", j.ID, now, m.Total)
	return ev
}

// touch records ev as the last job event.
func (p *Planner) touch(j *model.Job, ev events.JobEvent) events.JobEvent {
	j.Metrics.LastTime = ev.Time
	j.Metrics.LastEvent = string(ev.Type)
	return ev
}
