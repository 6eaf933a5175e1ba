package dispatch

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/shopflow/core/fleet"
	"github.com/kilianp07/shopflow/core/model"
)

// Candidate is one feasible (station, operation) pair with its raw costs.
type Candidate struct {
	Station    model.StationState
	Operation  *model.Operation
	Transport  float64
	Processing float64
	Remaining  float64
	Queued     float64
	// Supply is the material delivery time not hidden behind the other
	// four costs. It stays zero unless the policy is proactive. Under the
	// predictive policy the forecast lead of the operation hides it too.
	Supply   float64
	Offer    fleet.Offer
	HasOffer bool
	Score    float64
}

// Selection is the outcome of one station choice.
type Selection struct {
	Candidate
	// Candidates is the number of pairs that were scored.
	Candidates int
}

// Means holds the normalization denominators of one decision round.
type Means struct {
	Transport, Processing, Remaining, Queued, Supply float64
}

// Selector scores every capable station for the next operations of a job.
// It never mutates jobs, stations or vehicles.
type Selector struct {
	Weights Weights
	Policy  Policy
}

// NewSelector returns a Selector for the given configuration.
func NewSelector(cfg Config) Selector {
	return Selector{Weights: cfg.Weights, Policy: cfg.Policy}
}

// Candidates lists every (station, operation) pair where the station is
// enabled and capable, operations first then stations in the given order.
func (s Selector) Candidates(j *model.Job, ctx DecisionContext) []Candidate {
	var out []Candidate
	offers := map[string]*fleet.Offer{}
	for _, op := range j.NextOperations() {
		for _, st := range ctx.Stations {
			if st.Disabled() || !st.Capable(op) {
				continue
			}
			c := Candidate{
				Station:    st,
				Operation:  op,
				Processing: op.ProcessingTime,
				Remaining:  model.RemainingBusyTime(st, ctx.Now),
				Queued:     model.QueuedDuration(st),
			}
			if ctx.Router != nil {
				c.Transport = ctx.Router.TravelTime(j.Position, st.Origin())
			}
			if s.Policy.Proactive() && op.MaterialRequired && ctx.Supply != nil {
				o, seen := offers[st.ID()]
				if !seen {
					if best, ok := ctx.Supply.BestOffer(st.Origin()); ok {
						o = &best
					}
					offers[st.ID()] = o
				}
				if o != nil {
					c.Offer, c.HasOffer = *o, true
					hidden := c.Transport + c.Processing + c.Remaining + c.Queued
					if s.Policy == PolicyPredictive {
						hidden = math.Max(hidden, forecastLead(j, op, ctx.Now))
					}
					c.Supply = math.Max(0, o.Duration-hidden)
				}
			}
			out = append(out, c)
		}
	}
	return out
}

// MeansOf computes the arithmetic mean of each cost over cands. A zero mean is
// replaced by 1.
func (s Selector) MeansOf(cands []Candidate) Means {
	n := len(cands)
	tt, pt, rst, qod, ms := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, c := range cands {
		tt[i], pt[i], rst[i], qod[i], ms[i] = c.Transport, c.Processing, c.Remaining, c.Queued, c.Supply
	}
	m := Means{Transport: 1, Processing: 1, Remaining: 1, Queued: 1, Supply: 1}
	if n == 0 {
		return m
	}
	m.Transport = nonZero(stat.Mean(tt, nil))
	m.Processing = nonZero(stat.Mean(pt, nil))
	m.Remaining = nonZero(stat.Mean(rst, nil))
	m.Queued = nonZero(stat.Mean(qod, nil))
	if s.Policy.Proactive() {
		m.Supply = nonZero(stat.Mean(ms, nil))
	}
	return m
}

// ScoreOf returns 1 / weighted sum of the normalized costs of c. A zero sum
// yields +Inf.
func (s Selector) ScoreOf(c Candidate, m Means) float64 {
	w := s.Weights
	sum := w.Transport*(c.Transport/m.Transport) +
		w.Processing*(c.Processing/m.Processing) +
		w.RemainingTime*(c.Remaining/m.Remaining) +
		w.QueuedDuration*(c.Queued/m.Queued)
	if s.Policy.Proactive() {
		sum += w.MaterialSupply * (c.Supply / m.Supply)
	}
	if sum == 0 {
		return math.Inf(1)
	}
	return 1 / sum
}

// Select scores every candidate for j and returns the best one. The first
// candidate wins ties. ok is false when no capable enabled station exists.
func (s Selector) Select(j *model.Job, ctx DecisionContext) (Selection, bool) {
	cands := s.Candidates(j, ctx)
	candidateCount.Observe(float64(len(cands)))
	if len(cands) == 0 {
		return Selection{}, false
	}
	m := s.MeansOf(cands)
	best := -1
	for i := range cands {
		cands[i].Score = s.ScoreOf(cands[i], m)
		if best < 0 || cands[i].Score > cands[best].Score {
			best = i
		}
	}
	stationSelections.WithLabelValues(string(s.Policy)).Inc()
	return Selection{Candidate: cands[best], Candidates: len(cands)}, true
}

// forecastLead is how far ahead of now the last material forecast of j
// expects op to be reached, or 0 when op has no forecast.
func forecastLead(j *model.Job, op *model.Operation, now float64) float64 {
	for _, n := range j.MaterialNeeds {
		if n.Name == op.Name {
			return math.Max(0, n.EarliestTime-now)
		}
	}
	return 0
}

func nonZero(v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return 1
	}
	return v
}
