package scenarios

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/shopflow/core/dispatch"
	"github.com/kilianp07/shopflow/core/events"
)

func runScenario(t *testing.T, sc *Scenario) []events.JobEvent {
	t.Helper()
	var evs []events.JobEvent
	floor, err := sc.Build(BuildOptions{
		Dispatch:    dispatch.Config{Weights: dispatch.DefaultWeights()},
		LoadDelay:   1,
		UnloadDelay: 1,
		Emit:        func(ev events.JobEvent) { evs = append(evs, ev) },
	})
	require.NoError(t, err)
	r, err := floor.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.NoError(t, sc.Check(r))
	assert.Zero(t, r.Pending)
	return evs
}

func TestScenarios(t *testing.T) {
	files, err := filepath.Glob("*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		sc, err := Load(f)
		require.NoError(t, err, f)
		t.Run(sc.Name, func(t *testing.T) {
			runScenario(t, sc)
		})
	}
}

func TestPredictiveScenarioPublishesNeeds(t *testing.T) {
	sc, err := Load("predictive_fleet.yaml")
	require.NoError(t, err)
	evs := runScenario(t, sc)
	needs := map[string]bool{}
	for _, ev := range evs {
		if ev.Type == events.MaterialNeedsCalculated {
			needs[ev.JobID] = true
		}
	}
	assert.Equal(t, map[string]bool{"job-1": true, "job-2": true, "job-3": true}, needs)
}

func TestBuildErrors(t *testing.T) {
	cases := map[string]string{
		"unknown product": `
name: bad
stations: [{id: s1, capabilities: [a]}]
products: [{name: p, operations: [{name: a, processing_time: 1}]}]
jobs: [{id: j1, product: q}]
`,
		"unknown predecessor": `
name: bad
products: [{name: p, operations: [{name: a, after: [z]}]}]
`,
		"cycle": `
name: bad
products: [{name: p, operations: [{name: a, after: [b]}, {name: b, after: [a]}]}]
`,
		"unknown policy": `
name: bad
policy: greedy
`,
		"unknown disrupted station": `
name: bad
disruptions: [{station: s9, at: 1}]
`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			sc, err := Decode(strings.NewReader(data))
			require.NoError(t, err)
			_, err = sc.Build(BuildOptions{Dispatch: dispatch.Config{Weights: dispatch.DefaultWeights()}})
			assert.Error(t, err)
		})
	}
}

func TestCheckReportsMismatch(t *testing.T) {
	sc, err := Load("uncapable_product.yaml")
	require.NoError(t, err)
	floor, err := sc.Build(BuildOptions{Dispatch: dispatch.Config{Weights: dispatch.DefaultWeights()}})
	require.NoError(t, err)
	r, err := floor.Run(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, sc.Check(r))

	r.Completed = nil
	assert.Error(t, sc.Check(r))
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load("no-file.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestAssertions(t *testing.T) {
	sc, err := Load("uncapable_product.yaml")
	require.NoError(t, err)
	floor, err := sc.Build(BuildOptions{Dispatch: dispatch.Config{Weights: dispatch.DefaultWeights()}})
	require.NoError(t, err)
	r, err := floor.Run(context.Background(), 0)
	require.NoError(t, err)

	env := reportEnv(r)
	assert.NoError(t, evaluate(`len(completed) == 1 && makespan == 14`, env))
	assert.NoError(t, evaluate(`any(jobs, {#.product == "exotic" && #.status == "infeasible"})`, env))
	assert.Error(t, evaluate(`makespan < 10`, env))
	assert.Error(t, evaluate(`makespan +`, env))
	assert.Error(t, evaluate(`makespan`, env))

	sc.Expected.Assertions = []string{"pending > 0"}
	err = sc.Check(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending > 0")
}
