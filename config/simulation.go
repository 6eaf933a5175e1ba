package config

import (
	"fmt"

	"github.com/kilianp07/shopflow/core/dispatch"
	"github.com/kilianp07/shopflow/core/sequence"
)

// SimulationConfig drives the discrete-event shop simulation.
type SimulationConfig struct {
	// Policy is one of none, reactive, controlled or predictive.
	Policy  string           `json:"policy"`
	Weights dispatch.Weights `json:"weights"`
	// Speed is the travel speed of jobs and vehicles in distance per time unit.
	Speed float64 `json:"speed"`
	// LoadDelay and UnloadDelay apply to warehouses that do not set their own.
	LoadDelay   float64 `json:"load_delay"`
	UnloadDelay float64 `json:"unload_delay"`
	// Horizon stops the run at this simulated time; 0 runs to completion.
	Horizon       float64 `json:"horizon"`
	SequenceLimit int     `json:"sequence_limit"`
	// Scenario is the default scenario file for the simulate command.
	Scenario string `json:"scenario"`
}

// DefaultSimulation returns the simulation defaults, including weights, so
// a partial weights section only overrides what it names.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		Policy:        string(dispatch.PolicyControlled),
		Weights:       dispatch.DefaultWeights(),
		Speed:         1,
		LoadDelay:     1,
		UnloadDelay:   1,
		SequenceLimit: sequence.DefaultLimit,
	}
}

// SetDefaults fills zero values.
func (c *SimulationConfig) SetDefaults() {
	d := DefaultSimulation()
	if c.Policy == "" {
		c.Policy = d.Policy
	}
	if c.Speed == 0 {
		c.Speed = d.Speed
	}
	if c.SequenceLimit == 0 {
		c.SequenceLimit = d.SequenceLimit
	}
}

// Validate checks ranges and the policy name.
func (c SimulationConfig) Validate() error {
	if _, err := dispatch.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.Speed <= 0 {
		return fmt.Errorf("simulation: speed must be positive")
	}
	if c.LoadDelay < 0 || c.UnloadDelay < 0 {
		return fmt.Errorf("simulation: delays must not be negative")
	}
	if c.Horizon < 0 {
		return fmt.Errorf("simulation: horizon must not be negative")
	}
	if c.SequenceLimit < 0 {
		return fmt.Errorf("simulation: sequence_limit must not be negative")
	}
	return nil
}

// Dispatch returns the planning configuration.
func (c SimulationConfig) Dispatch() (dispatch.Config, error) {
	p, err := dispatch.ParsePolicy(c.Policy)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{Policy: p, Weights: c.Weights}, nil
}
