package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/shopflow/core/shop"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), err
}

const deadlines = `jobs:
  - {id: j1, earliest_duration: 1, latest_duration: 1, earliest: {time: 2}, probable: {time: 2}}
  - {id: j2, earliest_duration: 1, latest_duration: 1, earliest: {time: 10}, probable: {time: 10}}
  - {id: j3, earliest_duration: 1, latest_duration: 1, earliest: {time: 5}, probable: {time: 5}}
`

func TestScheduleCommandCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(deadlines), 0o644))

	out, err := execute(t, "schedule", "--jobs", path, "--format", "csv", "--vehicles", "1", "--batch-size", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "vehicle,job_id"))
	for _, l := range lines[1:] {
		assert.True(t, strings.HasPrefix(l, "1,"), l)
	}
}

func TestScheduleCommandRejectsFormat(t *testing.T) {
	_, err := execute(t, "schedule", "--format", "xml")
	assert.Error(t, err)
}

func TestSimulateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	_, err := execute(t, "simulate", "--scenario", "../qa/scenarios/controlled_shared_agv.yaml", "--output", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report shop.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Len(t, report.Completed, 2)
	assert.Equal(t, 36.0, report.Makespan)
}

func TestSimulateCommandMissingScenario(t *testing.T) {
	_, err := execute(t, "simulate", "--scenario", "does-not-exist.yaml")
	assert.Error(t, err)
}

func TestEventsCommandQueriesLog(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "shopflow.yaml")
	conf := "logging:\n  event_log:\n    backend: jsonl\n    path: " + filepath.Join(dir, "events.jsonl") + "\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(conf), 0o644))
	t.Cleanup(func() { cfgPath = "" })

	_, err := execute(t, "simulate", "-c", cfgFile, "--scenario", "../qa/scenarios/controlled_shared_agv.yaml", "-o", filepath.Join(dir, "report.json"))
	require.NoError(t, err)

	out, err := execute(t, "events", "-c", cfgFile, "--type", "COMPLETED")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 2)
	for _, l := range lines {
		assert.Contains(t, l, `"type":"COMPLETED"`)
	}
}
