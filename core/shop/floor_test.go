package shop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/shopflow/core/dispatch"
	"github.com/kilianp07/shopflow/core/events"
	"github.com/kilianp07/shopflow/core/fleet"
	"github.com/kilianp07/shopflow/core/forecast"
	"github.com/kilianp07/shopflow/core/model"
	"github.com/kilianp07/shopflow/core/precedence"
)

func linearProduct(t *testing.T) *model.Product {
	t.Helper()
	g, err := precedence.FromPredecessors(3, [][]int{nil, {0}, {1}})
	require.NoError(t, err)
	p, err := model.NewProduct("linear", []*model.Operation{
		{Name: "op1", ProcessingTime: 5},
		{Name: "op2", ProcessingTime: 3, MaterialRequired: true},
		{Name: "op3", ProcessingTime: 2},
	}, g)
	require.NoError(t, err)
	return p
}

type recorder struct{ evs []events.JobEvent }

func (r *recorder) emit(ev events.JobEvent) { r.evs = append(r.evs, ev) }

func (r *recorder) of(t events.Type) []events.JobEvent {
	var out []events.JobEvent
	for _, ev := range r.evs {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func allOps() []string { return []string{"op1", "op2", "op3"} }

func TestFloorSingleJobNoSupply(t *testing.T) {
	rec := &recorder{}
	f := NewFloor(Options{
		Dispatch: dispatch.Config{Policy: dispatch.PolicyNone, Weights: dispatch.DefaultWeights()},
		Stations: []*Station{NewStation("s1", model.Point{X: 4}, allOps())},
		Emit:     rec.emit,
	})
	j := model.NewJob("j1", linearProduct(t), 20, false)
	require.NoError(t, f.AddJob(j, 0))

	r, err := f.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"j1"}, r.Completed)
	assert.Equal(t, 14.0, r.Makespan)
	m := r.Jobs[0].Metrics
	assert.Equal(t, 4.0, m.Transport)
	assert.Equal(t, 10.0, m.Working)
	assert.Equal(t, 0.0, m.Waiting)
	assert.Equal(t, 14.0, m.Total)
	assert.Equal(t, []string{"op1", "op2", "op3"}, m.Route)
	assert.Zero(t, r.Jobs[0].Tardiness)
	assert.Len(t, rec.of(events.ProcessingStarted), 3)
	assert.Len(t, rec.of(events.Completed), 1)
	assert.Equal(t, len(rec.evs), r.Events)
}

func supplyFloor(t *testing.T, policy dispatch.Policy, rec *recorder) *Floor {
	t.Helper()
	router := EuclideanRouter{Speed: 1}
	fl := fleet.New(router, []fleet.Warehouse{{ID: "w1", Position: model.Point{Y: 3}, LoadDelay: 1, UnloadDelay: 1}})
	fl.Add("agv1", model.Point{})
	return NewFloor(Options{
		Dispatch:   dispatch.Config{Policy: policy, Weights: dispatch.DefaultWeights()},
		Router:     router,
		Stations:   []*Station{NewStation("s1", model.Point{X: 4}, allOps())},
		Fleet:      fl,
		Forecaster: forecast.New(1, nil),
		Emit:       rec.emit,
	})
}

func TestFloorSharesSingleVehicle(t *testing.T) {
	for _, policy := range []dispatch.Policy{dispatch.PolicyControlled, dispatch.PolicyPredictive, dispatch.PolicyReactive} {
		t.Run(string(policy), func(t *testing.T) {
			rec := &recorder{}
			f := supplyFloor(t, policy, rec)
			p := linearProduct(t)
			require.NoError(t, f.AddJob(model.NewJob("j1", p, 50, false), 0))
			require.NoError(t, f.AddJob(model.NewJob("j2", p, 50, false), 0))

			r, err := f.Run(context.Background(), 0)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"j1", "j2"}, r.Completed)
			assert.Zero(t, r.Pending)

			delivered := rec.of(events.MaterialDelivered)
			require.Len(t, delivered, 2)
			assert.NotEqual(t, delivered[0].JobID, delivered[1].JobID)
			v, ok := f.fleet.Get("agv1")
			require.True(t, ok)
			assert.Equal(t, fleet.StatusIdle, v.Status)

			// processing of op2 never starts before its material
			for _, ev := range rec.of(events.ProcessingStarted) {
				if ev.Operation != "op2" {
					continue
				}
				at := -1.0
				for _, d := range delivered {
					if d.JobID == ev.JobID {
						at = d.Time
					}
				}
				assert.GreaterOrEqual(t, ev.Time, at)
				assert.GreaterOrEqual(t, at, 0.0)
			}
		})
	}
}

func TestFloorControlledTimeline(t *testing.T) {
	rec := &recorder{}
	f := supplyFloor(t, dispatch.PolicyControlled, rec)
	p := linearProduct(t)
	require.NoError(t, f.AddJob(model.NewJob("j1", p, 50, false), 0))
	require.NoError(t, f.AddJob(model.NewJob("j2", p, 50, false), 0))
	r, err := f.Run(context.Background(), 0)
	require.NoError(t, err)

	byID := map[string]JobReport{}
	for _, jr := range r.Jobs {
		byID[jr.ID] = jr
	}
	assert.Equal(t, 24.0, byID["j1"].Metrics.CompletedAt)
	assert.Equal(t, 36.0, byID["j2"].Metrics.CompletedAt)
	assert.Equal(t, 36.0, r.Makespan)
}

func TestFloorPredictivePublishesNeeds(t *testing.T) {
	rec := &recorder{}
	f := supplyFloor(t, dispatch.PolicyPredictive, rec)
	require.NoError(t, f.AddJob(model.NewJob("j1", linearProduct(t), 50, false), 0))
	_, err := f.Run(context.Background(), 0)
	require.NoError(t, err)

	needs := rec.of(events.MaterialNeedsCalculated)
	require.NotEmpty(t, needs)
	first := needs[0]
	require.Len(t, first.Needs, 1)
	assert.Equal(t, "op2", first.Needs[0].Name)
	assert.Equal(t, 0, first.Needs[0].EarliestPosition)
	assert.Equal(t, 100.0, first.Needs[0].EarliestPercentage)
}

func TestFloorDisableStationReroutes(t *testing.T) {
	rec := &recorder{}
	f := NewFloor(Options{
		Dispatch: dispatch.Config{Policy: dispatch.PolicyNone, Weights: dispatch.DefaultWeights()},
		Stations: []*Station{
			NewStation("s1", model.Point{X: 4}, allOps()),
			NewStation("s2", model.Point{X: 8}, allOps()),
		},
		Emit: rec.emit,
	})
	require.NoError(t, f.AddJob(model.NewJob("j1", linearProduct(t), 50, false), 0))
	require.NoError(t, f.DisableStation("s1", 1))
	assert.Error(t, f.DisableStation("nope", 1))

	r, err := f.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"j1"}, r.Completed)
	aborted := rec.of(events.Aborted)
	require.Len(t, aborted, 1)
	assert.Equal(t, "s1", aborted[0].Station)
	m := r.Jobs[0].Metrics
	assert.Equal(t, 19.0, m.CompletedAt)
	assert.Equal(t, 9.0, m.Transport)
	for _, ev := range rec.of(events.ProcessingStarted) {
		assert.Equal(t, "s2", ev.Station)
	}
}

func TestFloorDisableOnlyStationMakesJobInfeasible(t *testing.T) {
	f := NewFloor(Options{
		Dispatch: dispatch.Config{Policy: dispatch.PolicyNone, Weights: dispatch.DefaultWeights()},
		Stations: []*Station{NewStation("s1", model.Point{X: 4}, allOps())},
	})
	require.NoError(t, f.AddJob(model.NewJob("j1", linearProduct(t), 50, false), 0))
	require.NoError(t, f.DisableStation("s1", 1))
	r, err := f.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"j1"}, r.Infeasible)
	assert.Empty(t, r.Completed)
}

func TestFloorAdmissionPrefersEarlierDueDate(t *testing.T) {
	g, err := precedence.FromPredecessors(1, nil)
	require.NoError(t, err)
	p, err := model.NewProduct("single", []*model.Operation{{Name: "a", ProcessingTime: 5}}, g)
	require.NoError(t, err)
	rec := &recorder{}
	f := NewFloor(Options{
		Dispatch: dispatch.Config{Policy: dispatch.PolicyNone, Weights: dispatch.DefaultWeights()},
		Stations: []*Station{NewStation("s1", model.Point{X: 4}, []string{"a"})},
		Emit:     rec.emit,
	})
	require.NoError(t, f.AddJob(model.NewJob("blocker", p, 10, false), 0))
	require.NoError(t, f.AddJob(model.NewJob("late", p, 100, false), 1))
	require.NoError(t, f.AddJob(model.NewJob("soon", p, 20, false), 1))
	assert.Error(t, f.AddJob(model.NewJob("soon", p, 20, false), 1))

	_, err = f.Run(context.Background(), 0)
	require.NoError(t, err)
	var order []string
	for _, ev := range rec.of(events.ProcessingStarted) {
		order = append(order, ev.JobID)
	}
	assert.Equal(t, []string{"blocker", "soon", "late"}, order)
}

func TestFloorDeterministic(t *testing.T) {
	run := func() Report {
		f := supplyFloor(t, dispatch.PolicyControlled, &recorder{})
		p := linearProduct(t)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, f.AddJob(model.NewJob(id, p, 30, false), 0))
		}
		r, err := f.Run(context.Background(), 0)
		require.NoError(t, err)
		return r
	}
	assert.Equal(t, run(), run())
}

func TestEuclideanRouter(t *testing.T) {
	assert.Equal(t, 2.5, EuclideanRouter{Speed: 2}.TravelTime(model.Point{}, model.Point{X: 3, Y: 4}))
	assert.Equal(t, 5.0, EuclideanRouter{}.TravelTime(model.Point{}, model.Point{X: 3, Y: 4}))
}

func product(t *testing.T, name string, preds [][]int, ops ...*model.Operation) *model.Product {
	t.Helper()
	g, err := precedence.FromPredecessors(len(ops), preds)
	require.NoError(t, err)
	p, err := model.NewProduct(name, ops, g)
	require.NoError(t, err)
	return p
}

func TestFloorAbortHandsVehicleToParkedJob(t *testing.T) {
	router := EuclideanRouter{Speed: 1}
	fl := fleet.New(router, []fleet.Warehouse{{ID: "w1", Position: model.Point{X: 4}}})
	fl.Add("agv1", model.Point{})
	rec := &recorder{}
	f := NewFloor(Options{
		Dispatch: dispatch.Config{Policy: dispatch.PolicyControlled, Weights: dispatch.DefaultWeights()},
		Router:   router,
		Stations: []*Station{
			NewStation("s1", model.Point{X: 4}, []string{"b"}),
			NewStation("s2", model.Point{Y: 4}, []string{"a"}),
			NewStation("s3", model.Point{X: 8}, []string{"c"}),
		},
		Fleet: fl,
		Emit:  rec.emit,
	})
	// a and b are independent; b needs material and only s1 runs it
	two := product(t, "two", nil,
		&model.Operation{Name: "a", ProcessingTime: 5},
		&model.Operation{Name: "b", ProcessingTime: 1, MaterialRequired: true})
	kit := product(t, "kit", nil, &model.Operation{Name: "c", ProcessingTime: 1, MaterialRequired: true})
	require.NoError(t, f.AddJob(model.NewJob("holder", two, 50, false), 0))
	require.NoError(t, f.AddJob(model.NewJob("parked", kit, 50, false), 0))
	require.NoError(t, f.DisableStation("s1", 0.5))

	r, err := f.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"parked"}, r.Completed)
	assert.Equal(t, []string{"holder"}, r.Infeasible)
	assert.Zero(t, r.Pending)

	delivered := rec.of(events.MaterialDelivered)
	require.Len(t, delivered, 1)
	assert.Equal(t, "parked", delivered[0].JobID)
	// 4 to the warehouse and 4 on to s3, starting at the abort
	assert.Equal(t, 8.5, delivered[0].Time)
	v, ok := fl.Get("agv1")
	require.True(t, ok)
	assert.Equal(t, fleet.StatusIdle, v.Status)
}

func TestFloorMaterialWeightDecidesAdmission(t *testing.T) {
	order := func(pH float64) []string {
		router := EuclideanRouter{Speed: 1}
		fl := fleet.New(router, []fleet.Warehouse{{ID: "w1", Position: model.Point{Y: 3}, LoadDelay: 1, UnloadDelay: 1}})
		fl.Add("agv1", model.Point{})
		w := dispatch.DefaultWeights()
		w.MaterialArrival = pH
		rec := &recorder{}
		f := NewFloor(Options{
			Dispatch: dispatch.Config{Policy: dispatch.PolicyControlled, Weights: w},
			Router:   router,
			Stations: []*Station{NewStation("s1", model.Point{X: 4}, []string{"plain", "kit"})},
			Fleet:    fl,
			Emit:     rec.emit,
		})
		plain := product(t, "plain", nil, &model.Operation{Name: "plain", ProcessingTime: 5})
		kit := product(t, "kit", nil, &model.Operation{Name: "kit", ProcessingTime: 5, MaterialRequired: true})
		require.NoError(t, f.AddJob(model.NewJob("blocker", plain, 1, false), 0))
		require.NoError(t, f.AddJob(model.NewJob("relaxed", plain, 100, false), 0))
		// its material arrives at 10, one unit after the blocker finishes
		require.NoError(t, f.AddJob(model.NewJob("urgent", kit, 10, false), 0))

		r, err := f.Run(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, r.Completed, 3)
		var out []string
		for _, ev := range rec.of(events.ProcessingStarted) {
			out = append(out, ev.JobID)
		}
		return out
	}

	assert.Equal(t, []string{"blocker", "relaxed", "urgent"}, order(1))
	// without the material term the urgent job wins and holds the station
	assert.Equal(t, []string{"blocker", "urgent", "relaxed"}, order(0))
}
