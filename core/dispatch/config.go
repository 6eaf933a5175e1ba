package dispatch

import (
	"fmt"
	"strings"
)

// Policy is the material-supply policy.
type Policy string

const (
	// PolicyNone ignores material supply when planning.
	PolicyNone Policy = "none"
	// PolicyReactive requests a vehicle once the job is at the station.
	PolicyReactive Policy = "reactive"
	// PolicyControlled reserves a vehicle when the station is chosen.
	PolicyControlled Policy = "controlled"
	// PolicyPredictive reserves like PolicyControlled but lets the forecast
	// material needs of a job absorb delivery time when scoring stations.
	PolicyPredictive Policy = "predictive"
)

// ParsePolicy converts a name into a Policy. An empty name means none.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PolicyNone, nil
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Validate reports unknown policies.
func (p Policy) Validate() error {
	switch p {
	case PolicyNone, PolicyReactive, PolicyControlled, PolicyPredictive:
		return nil
	}
	return fmt.Errorf("dispatch: unknown supply policy %q", string(p))
}

// Proactive is true for the policies that reserve vehicles while planning.
func (p Policy) Proactive() bool {
	return p == PolicyControlled || p == PolicyPredictive
}

// RequiresMaterial is true when processing must wait for material.
func (p Policy) RequiresMaterial() bool {
	return p != PolicyNone && p != ""
}

// Weights are the strategy weights shared by the station scorer (A-D, G) and
// the queue admission scorer (E, F, H). Values are immutable once passed in.
type Weights struct {
	Transport       float64 `json:"pA"`
	Processing      float64 `json:"pB"`
	RemainingTime   float64 `json:"pC"`
	QueuedDuration  float64 `json:"pD"`
	DueDate         float64 `json:"pE"`
	Setup           float64 `json:"pF"`
	MaterialSupply  float64 `json:"pG"`
	MaterialArrival float64 `json:"pH"`
}

// DefaultWeights weighs every term equally.
func DefaultWeights() Weights {
	return Weights{1, 1, 1, 1, 1, 1, 1, 1}
}

// Validate rejects negative weights.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"pA": w.Transport, "pB": w.Processing, "pC": w.RemainingTime, "pD": w.QueuedDuration,
		"pE": w.DueDate, "pF": w.Setup, "pG": w.MaterialSupply, "pH": w.MaterialArrival,
	} {
		if v < 0 {
			return fmt.Errorf("dispatch: weight %s must not be negative", name)
		}
	}
	return nil
}

// Config defines dispatch-related settings.
type Config struct {
	Policy  Policy  `json:"policy"`
	Weights Weights `json:"weights"`
}
