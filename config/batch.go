package config

import "github.com/kilianp07/shopflow/core/batch"

// BatchConfig holds the robust batch scheduler parameters.
type BatchConfig struct {
	Vehicles  int     `json:"vehicles"`
	Blend     float64 `json:"blend"`
	BatchSize int     `json:"batch_size"`
	BeamWidth int     `json:"beam_width"`
	Workers   int     `json:"workers"`
	// Jobs is the default deadline table for the schedule command.
	Jobs string `json:"jobs"`
}

// SetDefaults fills zero values.
func (c *BatchConfig) SetDefaults() {
	if c.Vehicles == 0 {
		c.Vehicles = 1
	}
	if c.BatchSize == 0 {
		c.BatchSize = 4
	}
	if c.BeamWidth == 0 {
		c.BeamWidth = 16
	}
}

// Validate checks the parameter ranges.
func (c BatchConfig) Validate() error {
	return c.Params().Validate()
}

// Params converts the section to scheduler parameters.
func (c BatchConfig) Params() batch.Params {
	return batch.Params{
		Vehicles:  c.Vehicles,
		Blend:     c.Blend,
		BatchSize: c.BatchSize,
		BeamWidth: c.BeamWidth,
		Workers:   c.Workers,
	}
}
