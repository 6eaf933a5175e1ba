package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistration(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	// touch metrics so they are exported
	stationSelections.WithLabelValues("none").Inc()
	candidateCount.Observe(3)
	ObserveReservation("reserved")
	var q PendingQueue
	q.Push(PendingEntry{JobID: "j1", Station: "s1"})
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[*mf.Name] = true
	}
	expected := []string{
		"shopflow_station_selections_total",
		"shopflow_selection_candidates",
		"shopflow_vehicle_reservations_total",
		"shopflow_pending_material_jobs",
	}
	for _, n := range expected {
		if !names[n] {
			t.Errorf("metric %s not registered", n)
		}
	}
}
