// Package fleet tracks the AGVs delivering material from warehouses to
// stations and guards their exclusive reservation.
package fleet

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kilianp07/shopflow/core/model"
)

var (
	// ErrVehicleBusy is returned when reserving a vehicle that is not idle.
	ErrVehicleBusy = errors.New("fleet: vehicle busy")
	// ErrUnknownVehicle is returned for ids that are not registered.
	ErrUnknownVehicle = errors.New("fleet: unknown vehicle")
)

// Status is the availability of a vehicle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusReserved   Status = "reserved"
	StatusDelivering Status = "delivering"
)

// Warehouse holds material and the constant handling delays of a vehicle
// visit.
type Warehouse struct {
	ID          string      `json:"id" yaml:"id"`
	Position    model.Point `json:"position" yaml:"position"`
	LoadDelay   float64     `json:"load_delay" yaml:"load_delay"`
	UnloadDelay float64     `json:"unload_delay" yaml:"unload_delay"`
}

// Vehicle captures the current known state of an AGV.
type Vehicle struct {
	ID       string      `json:"id"`
	Position model.Point `json:"position"`
	Status   Status      `json:"status"`
	JobID    string      `json:"job_id,omitempty"`
	Station  string      `json:"station,omitempty"`
	// SupplyCompleteAt is the expected simulated time of material arrival.
	SupplyCompleteAt float64 `json:"supply_complete_at"`
}

// Offer is the fastest way a vehicle can bring material to a station.
type Offer struct {
	Vehicle   string
	Warehouse string
	Duration  float64
}

// Fleet is an in-memory vehicle registry safe for concurrent use.
type Fleet struct {
	mu         sync.RWMutex
	router     model.Router
	warehouses []Warehouse
	data       map[string]*Vehicle
}

// New returns an empty fleet served by the given warehouses.
func New(router model.Router, warehouses []Warehouse) *Fleet {
	return &Fleet{router: router, warehouses: warehouses, data: map[string]*Vehicle{}}
}

// Add registers an idle vehicle at pos.
func (f *Fleet) Add(id string, pos model.Point) {
	f.mu.Lock()
	f.data[id] = &Vehicle{ID: id, Position: pos, Status: StatusIdle}
	f.mu.Unlock()
}

// Warehouses returns the configured warehouses.
func (f *Fleet) Warehouses() []Warehouse {
	return append([]Warehouse(nil), f.warehouses...)
}

// Warehouse looks up a warehouse by id.
func (f *Fleet) Warehouse(id string) (Warehouse, bool) {
	for _, w := range f.warehouses {
		if w.ID == id {
			return w, true
		}
	}
	return Warehouse{}, false
}

// Get returns a copy of the vehicle state.
func (f *Fleet) Get(id string) (Vehicle, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[id]
	if !ok {
		return Vehicle{}, false
	}
	return *v, true
}

// List returns all vehicles sorted by id.
func (f *Fleet) List() []Vehicle {
	f.mu.RLock()
	defer f.mu.RUnlock()
	res := make([]Vehicle, 0, len(f.data))
	for _, v := range f.data {
		res = append(res, *v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Available returns the idle vehicles sorted by id.
func (f *Fleet) Available() []Vehicle {
	all := f.List()
	out := all[:0]
	for _, v := range all {
		if v.Status == StatusIdle {
			out = append(out, v)
		}
	}
	return out
}

// DeliveryTime estimates how long v needs to fetch material from w and
// unload it at station: travel to the warehouse, loading, travel to the
// station and unloading.
func (f *Fleet) DeliveryTime(v Vehicle, w Warehouse, station model.Point) float64 {
	return f.router.TravelTime(v.Position, w.Position) + w.LoadDelay +
		f.router.TravelTime(w.Position, station) + w.UnloadDelay
}

// BestOffer returns the idle vehicle and warehouse with the minimum delivery
// time to station. Ties keep the first vehicle in id order.
func (f *Fleet) BestOffer(station model.Point) (Offer, bool) {
	best := Offer{Duration: math.Inf(1)}
	found := false
	for _, v := range f.Available() {
		for _, w := range f.warehouses {
			d := f.DeliveryTime(v, w, station)
			if d < best.Duration {
				best = Offer{Vehicle: v.ID, Warehouse: w.ID, Duration: d}
				found = true
			}
		}
	}
	return best, found
}

// Reserve marks the vehicle busy for job. It fails if the vehicle is not
// idle, so two jobs can never hold the same vehicle.
func (f *Fleet) Reserve(id, jobID, station string, readyAt float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, id)
	}
	if v.Status != StatusIdle {
		return fmt.Errorf("%w: %s held by job %s", ErrVehicleBusy, id, v.JobID)
	}
	v.Status = StatusReserved
	v.JobID = jobID
	v.Station = station
	v.SupplyCompleteAt = readyAt
	return nil
}

// StartDelivery moves a reserved vehicle to delivering.
func (f *Fleet) StartDelivery(id string, readyAt float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, id)
	}
	v.Status = StatusDelivering
	v.SupplyCompleteAt = readyAt
	return nil
}

// Release returns the vehicle to idle at pos. A nil pos keeps the position.
func (f *Fleet) Release(id string, pos *model.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, id)
	}
	v.Status = StatusIdle
	v.JobID = ""
	v.Station = ""
	v.SupplyCompleteAt = 0
	if pos != nil {
		v.Position = *pos
	}
	return nil
}
