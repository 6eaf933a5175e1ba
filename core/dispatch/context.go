package dispatch

import (
	"github.com/kilianp07/shopflow/core/fleet"
	"github.com/kilianp07/shopflow/core/model"
)

// SupplyOracle reports the fastest idle vehicle able to bring material to a
// station. It is implemented by fleet.Fleet.
type SupplyOracle interface {
	BestOffer(station model.Point) (fleet.Offer, bool)
}

// DecisionContext provides the shop state observed at one decision point.
type DecisionContext struct {
	Now      float64
	Router   model.Router
	Stations []model.StationState
	// Supply may be nil when no vehicles exist.
	Supply SupplyOracle
}
