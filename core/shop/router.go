package shop

import "github.com/kilianp07/shopflow/core/model"

// EuclideanRouter converts straight-line distance into travel time.
type EuclideanRouter struct {
	// Speed is the distance covered per time unit. Values <= 0 mean 1.
	Speed float64
}

// TravelTime implements model.Router.
func (r EuclideanRouter) TravelTime(from, to model.Point) float64 {
	speed := r.Speed
	if speed <= 0 {
		speed = 1
	}
	return from.Distance(to) / speed
}
