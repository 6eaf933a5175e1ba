package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	stationSelections   *prometheus.CounterVec
	candidateCount      prometheus.Histogram
	vehicleReservations *prometheus.CounterVec
	pendingMaterialJobs prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, *prometheus.CounterVec, prometheus.Gauge) {
	sel := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopflow_station_selections_total",
			Help: "Number of station selections",
		},
		[]string{"policy"},
	)
	cand := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopflow_selection_candidates",
			Help:    "Number of (station, operation) pairs scored per selection",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		},
	)
	res := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopflow_vehicle_reservations_total",
			Help: "Vehicle reservation attempts by result",
		},
		[]string{"result"},
	)
	pend := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopflow_pending_material_jobs",
			Help: "Jobs parked until a vehicle becomes available",
		},
	)
	return sel, cand, res, pend
}

func init() {
	stationSelections, candidateCount, vehicleReservations, pendingMaterialJobs = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(stationSelections, candidateCount, vehicleReservations, pendingMaterialJobs)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	stationSelections, candidateCount, vehicleReservations, pendingMaterialJobs = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

// ObserveReservation counts a reservation attempt. result is "reserved",
// "busy" or "none".
func ObserveReservation(result string) {
	vehicleReservations.WithLabelValues(result).Inc()
}
