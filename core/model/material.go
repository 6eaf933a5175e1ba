package model

// PositionStat counts how often an operation occurs at one sequence position.
type PositionStat struct {
	Count         int     `json:"count"`
	Percentage    float64 `json:"percentage"`
	NeedsMaterial bool    `json:"needs_material"`
	// FinishingTime is only set at position 0.
	FinishingTime float64 `json:"finishing_time,omitempty"`
}

// PositionStats maps each sequence position to per-operation statistics
// keyed by operation name.
type PositionStats []map[string]PositionStat

// Percentage returns the percentage of name at pos, or 0 when unknown.
func (s PositionStats) Percentage(pos int, name string) float64 {
	if pos < 0 || pos >= len(s) {
		return 0
	}
	return s[pos][name].Percentage
}

// MaterialNeed forecasts when a pending material-requiring operation of a job
// will be reached.
type MaterialNeed struct {
	OperationID        string  `json:"operation_id"`
	Name               string  `json:"name"`
	EarliestPosition   int     `json:"earliest_position"`
	LatestPosition     int     `json:"latest_position"`
	EarliestTime       float64 `json:"earliest_time"`
	EarliestPercentage float64 `json:"earliest_percentage"`
	LatestTime         float64 `json:"latest_time"`
	LatestPercentage   float64 `json:"latest_percentage"`
}
