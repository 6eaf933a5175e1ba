package dispatch

import (
	"math"

	"github.com/kilianp07/shopflow/core/model"
)

// AdmissionCandidate is a job waiting in a station queue.
type AdmissionCandidate struct {
	Job       *model.Job
	Operation *model.Operation
	// LastOperation is the operation last run by the station, nil if none.
	LastOperation *model.Operation
	// SupplyReadyAt is the reserved vehicle's expected supply completion
	// time. It is only meaningful when HasVehicle is set.
	SupplyReadyAt float64
	HasVehicle    bool
}

// AdmissionNorms are the global maxima used to normalize admission scores.
type AdmissionNorms struct {
	MaxRemaining    float64
	MaxSetup        float64
	MaxMaterialWait float64
}

// ObserveNorms widens n with the given candidates observed at time now.
func (n *AdmissionNorms) ObserveNorms(cands []AdmissionCandidate, now float64) {
	for _, c := range cands {
		n.MaxRemaining = math.Max(n.MaxRemaining, math.Max(0, c.Job.DueDate-now))
		n.MaxSetup = math.Max(n.MaxSetup, c.Operation.SetupTime)
		if c.HasVehicle && !c.Job.MaterialArrived {
			n.MaxMaterialWait = math.Max(n.MaxMaterialWait, c.SupplyReadyAt-now)
		}
	}
}

// AdmissionScorer ranks jobs waiting at a station. Higher is better.
type AdmissionScorer struct {
	Weights Weights
	Policy  Policy
}

// Score returns 1 / weighted sum of the normalized due-date slack, setup and
// material wait of c. Terms whose maximum is zero are dropped.
func (a AdmissionScorer) Score(c AdmissionCandidate, n AdmissionNorms, now float64) float64 {
	w := a.Weights
	var sum float64
	if n.MaxRemaining > 0 {
		sum += w.DueDate * (math.Max(0, c.Job.DueDate-now) / n.MaxRemaining)
	}
	if n.MaxSetup > 0 {
		setup := c.Operation.SetupTime
		if c.LastOperation != nil && c.LastOperation == c.Operation {
			setup = 0
		}
		sum += w.Setup * (setup / n.MaxSetup)
	}
	if a.Policy.Proactive() && n.MaxMaterialWait > 0 {
		var wait float64
		switch {
		case c.Job.MaterialArrived:
			wait = 0
		case c.HasVehicle:
			wait = c.SupplyReadyAt - now
		default:
			wait = n.MaxMaterialWait
		}
		sum += w.MaterialArrival * (wait / n.MaxMaterialWait)
	}
	if sum == 0 {
		return math.Inf(1)
	}
	return 1 / sum
}

// Best returns the index of the highest scoring candidate, the first on ties,
// or -1 for an empty list.
func (a AdmissionScorer) Best(cands []AdmissionCandidate, n AdmissionNorms, now float64) int {
	best := -1
	bestScore := math.Inf(-1)
	for i, c := range cands {
		if s := a.Score(c, n, now); best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
