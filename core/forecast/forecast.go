// Package forecast estimates when the pending material-requiring operations
// of a job will be reached, so vehicles can be dispatched ahead of time.
package forecast

import (
	"github.com/kilianp07/shopflow/core/events"
	"github.com/kilianp07/shopflow/core/fleet"
	"github.com/kilianp07/shopflow/core/logger"
	"github.com/kilianp07/shopflow/core/model"
)

// Forecaster builds MaterialNeed lists from the enumerated sequences of a job.
type Forecaster struct {
	// LoadDelay is added for every preceding operation that needs material.
	LoadDelay float64
	Logger    logger.Logger
}

// New returns a Forecaster. A nil logger is replaced by a NopLogger.
func New(loadDelay float64, log logger.Logger) *Forecaster {
	return &Forecaster{LoadDelay: loadDelay, Logger: logger.OrNop(log)}
}

type positions struct {
	earliest, latest             int
	beforeEarliest, beforeLatest []int
}

// Forecast replaces the material need list of j. st is the station of the
// planned operation and wh the warehouse supplying it, both may be nil.
// The job sequences must be regenerated beforehand; a job without sequences
// yields an empty list.
func (f *Forecaster) Forecast(j *model.Job, st model.StationState, wh *fleet.Warehouse, now float64) ([]model.MaterialNeed, events.JobEvent) {
	ops := j.Product.Operations
	var order []string
	byName := map[string]*positions{}
	for _, seq := range j.Sequences {
		for idx, opIdx := range seq {
			op := ops[opIdx]
			if !op.MaterialRequired {
				continue
			}
			p, seen := byName[op.Name]
			if !seen {
				byName[op.Name] = &positions{earliest: idx, latest: idx, beforeEarliest: seq[:idx], beforeLatest: seq[:idx]}
				order = append(order, op.Name)
				continue
			}
			if idx < p.earliest {
				p.earliest = idx
				p.beforeEarliest = seq[:idx]
			}
			if idx > p.latest {
				p.latest = idx
				p.beforeLatest = seq[:idx]
			}
		}
	}

	base := f.baseTime(j, st, wh, now)
	needs := make([]model.MaterialNeed, 0, len(order))
	for _, name := range order {
		p := byName[name]
		op, _ := j.Product.ByName(name)
		needs = append(needs, model.MaterialNeed{
			OperationID:        op.ID,
			Name:               name,
			EarliestPosition:   p.earliest,
			LatestPosition:     p.latest,
			EarliestTime:       base + f.precedingTime(ops, p.beforeEarliest),
			EarliestPercentage: j.Stats.Percentage(p.earliest, name),
			LatestTime:         base + f.precedingTime(ops, p.beforeLatest),
			// latest percentage is not derived from the statistics
			LatestPercentage: 100,
		})
	}
	j.MaterialNeeds = needs
	j.NeedsBuilt = true
	logger.OrNop(f.Logger).Debugf("job %s: %d material needs forecast", j.ID, len(needs))

	ev := events.New(events.MaterialNeedsCalculated, j, now)
	ev.Needs = append([]model.MaterialNeed(nil), needs...)
	return needs, ev
}

// baseTime is the part of the estimate shared by every need of the job:
// the planned processing time, a first-time unload wait and the contention
// at the target station.
func (f *Forecaster) baseTime(j *model.Job, st model.StationState, wh *fleet.Warehouse, now float64) float64 {
	t := now
	pl, planned := j.Planned()
	if planned {
		t += pl.Operation.ProcessingTime
		if !j.NeedsBuilt && pl.Operation.MaterialRequired && wh != nil {
			t += wh.UnloadDelay
		}
	}
	if st == nil {
		return t
	}
	for _, jo := range st.MovingOperations() {
		if jo.Job == j || jo.Job == nil {
			continue
		}
		// only a mover arriving together with j is counted
		if jo.Job.TransportEstimate == j.TransportEstimate {
			t += jo.Operation.ProcessingTime
		}
	}
	if _, active := st.ActiveOperation(); active {
		t += model.QueuedDuration(st)
	}
	return t
}

func (f *Forecaster) precedingTime(ops []*model.Operation, before []int) float64 {
	var t float64
	for _, i := range before {
		t += ops[i].ProcessingTime + 1
		if ops[i].MaterialRequired {
			t += f.LoadDelay
		}
	}
	return t
}
