package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/shopflow/core/events"
)

func sample() []Record {
	now := time.Unix(1700000000, 0).UTC()
	return []Record{
		{Timestamp: now, Run: "r1", Event: events.JobEvent{Type: events.Dispatched, JobID: "j1", Time: 0}},
		{Timestamp: now, Run: "r1", Event: events.JobEvent{Type: events.Arrived, JobID: "j1", Station: "s1", Time: 4}},
		{Timestamp: now, Run: "r1", Event: events.JobEvent{Type: events.Dispatched, JobID: "j2", Time: 1}},
		{Timestamp: now, Run: "r2", Event: events.JobEvent{Type: events.Completed, JobID: "j1", Time: 9}},
	}
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	jsonl, err := Open(Config{Backend: BackendJSONL, Path: filepath.Join(dir, "events.jsonl")})
	require.NoError(t, err)
	rot, err := Open(Config{Backend: BackendRotating, Path: filepath.Join(dir, "rot", "events.jsonl"), MaxBackups: 2})
	require.NoError(t, err)
	db, err := Open(Config{Backend: BackendSQLite, Path: filepath.Join(dir, "events.db")})
	require.NoError(t, err)
	stores := map[string]Store{"jsonl": jsonl, "rotating": rot, "sqlite": db}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoresQuery(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, rec := range sample() {
				require.NoError(t, store.Append(ctx, rec))
			}
			all, err := store.Query(ctx, Query{})
			require.NoError(t, err)
			assert.Equal(t, sample(), all)

			out, err := store.Query(ctx, Query{Run: "r1", JobID: "j1"})
			require.NoError(t, err)
			require.Len(t, out, 2)
			assert.Equal(t, events.Arrived, out[1].Event.Type)

			out, err = store.Query(ctx, Query{Type: events.Dispatched})
			require.NoError(t, err)
			assert.Len(t, out, 2)

			out, err = store.Query(ctx, Query{From: 1, To: 5})
			require.NoError(t, err)
			assert.Len(t, out, 2)
		})
	}
}

func TestRotatingStoreReadsBackups(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 5, 0)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	var big []events.JobEvent
	for i := 0; i < 3000; i++ {
		big = append(big, events.JobEvent{Type: events.Dispatched, JobID: fmt.Sprintf("job-%04d", i), Operation: strings.Repeat("x", 400)})
	}
	for _, ev := range big {
		require.NoError(t, store.Append(ctx, Record{Run: "r", Event: ev}))
	}
	files, err := store.files()
	require.NoError(t, err)
	assert.Greater(t, len(files), 1)

	out, err := store.Query(ctx, Query{Run: "r"})
	require.NoError(t, err)
	require.Len(t, out, len(big))
	assert.Equal(t, "job-0000", out[0].Event.JobID)
	assert.Equal(t, "job-2999", out[len(out)-1].Event.JobID)
}

func TestQueryMatch(t *testing.T) {
	r := Record{Run: "r", Event: events.JobEvent{Type: events.Completed, JobID: "j", Time: 5}}
	assert.True(t, Query{}.Match(r))
	assert.True(t, Query{From: 5, To: 5}.Match(r))
	assert.False(t, Query{To: 4}.Match(r))
	assert.False(t, Query{From: 6}.Match(r))
	assert.False(t, Query{Type: events.Arrived}.Match(r))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.False(t, Config{}.Enabled())
	assert.Error(t, Config{Backend: "kafka", Path: "x"}.Validate())
	assert.Error(t, Config{Backend: BackendJSONL}.Validate())
	assert.Error(t, Config{Backend: BackendRotating, Path: "x", MaxSizeMB: -1}.Validate())
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestRecordJSON(t *testing.T) {
	data, err := json.Marshal(sample()[1])
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"timestamp", "run", "event"} {
		assert.Contains(t, m, k)
	}
	assert.NotContains(t, m, "scenario")
}
