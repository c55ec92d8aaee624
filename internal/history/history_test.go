package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/synthcheck/internal/schema"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(profile string, at time.Time, engineCells, romCells int) *schema.Report {
	return &schema.Report{
		GeneratedAt: at,
		Input:       schema.Input{Profile: profile},
		Modules: []schema.ModuleEntry{
			{Name: "fft_engine", Stats: schema.StatsArtifact{Present: true, Metrics: schema.MetricRecord{
				schema.MetricCells: engineCells, schema.MetricWires: 100,
			}}},
			{Name: "twiddle_rom", Stats: schema.StatsArtifact{Present: true, Metrics: schema.MetricRecord{
				schema.MetricCells: romCells,
			}}},
			{Name: "fft_control", Stats: schema.StatsArtifact{Present: false}},
		},
		Totals: schema.MetricRecord{
			schema.MetricCells: engineCells + romCells, schema.MetricWires: 100,
		},
		Estimate: schema.DerivedEstimate{Transistors: 1234},
		Summary:  schema.Summary{Overall: schema.StatusPass},
	}
}

var t0 = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func TestStore_RecordAndLatest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Latest(ctx, "fft")
	require.NoError(t, err)
	assert.False(t, ok, "empty store has no baseline")

	first, err := s.Record(ctx, sampleReport("fft", t0, 4000, 2500))
	require.NoError(t, err)
	assert.NotEmpty(t, first.RunID)
	second, err := s.Record(ctx, sampleReport("fft", t0.Add(time.Hour), 4100, 2400))
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	_, err = s.Record(ctx, sampleReport("generic", t0.Add(2*time.Hour), 1, 1))
	require.NoError(t, err)

	latest, ok, err := s.Latest(ctx, "fft")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.RunID, latest.RunID)
	assert.Equal(t, 4100, latest.Scopes["fft_engine"][schema.MetricCells])
	assert.Equal(t, 6500, latest.Scopes[schema.ScopeTotal][schema.MetricCells])
	assert.NotContains(t, latest.Scopes, "fft_control")
	assert.Equal(t, 1234, latest.Transistors)
	assert.True(t, t0.Add(time.Hour).Equal(latest.RecordedAt))

	all, err := s.List(ctx, "fft", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.RunID, all[1].RunID, "newest first")
}

func TestStore_PrefixIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Record(ctx, sampleReport("fft-strict", t0, 1, 1))
	require.NoError(t, err)

	_, ok, err := s.Latest(ctx, "fft")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Persistent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	ctx := context.Background()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	rec, err := s.Record(ctx, sampleReport("fft", t0, 10, 20))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()
	got, ok, err := s.Latest(ctx, "fft")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.RunID, got.RunID)
}

func TestStore_Cancelled(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Record(ctx, sampleReport("fft", t0, 1, 1))
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = s.Latest(ctx, "fft")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	prev := SnapshotOf(sampleReport("fft", t0, 4000, 2500))
	prev.RunID = "run-1"
	cur := sampleReport("fft", t0.Add(time.Hour), 4100, 2500)
	cur.Modules = append(cur.Modules, schema.ModuleEntry{
		Name:  "memory_interface",
		Stats: schema.StatsArtifact{Present: true, Metrics: schema.MetricRecord{schema.MetricCells: 800}},
	})

	b := Compare(prev, cur)
	assert.Equal(t, "run-1", b.RunID)
	assert.Equal(t, []schema.Delta{
		{Scope: "fft_engine", Metric: schema.MetricCells, Previous: 4000, Current: 4100},
		{Scope: "fft_engine", Metric: schema.MetricWires, Previous: 100, Current: 100},
		{Scope: "twiddle_rom", Metric: schema.MetricCells, Previous: 2500, Current: 2500},
		{Scope: schema.ScopeTotal, Metric: schema.MetricCells, Previous: 6500, Current: 6600},
		{Scope: schema.ScopeTotal, Metric: schema.MetricWires, Previous: 100, Current: 100},
	}, b.Deltas)
	assert.Equal(t, 100, b.Deltas[0].Change())
}

func TestCompare_NothingInCommon(t *testing.T) {
	b := Compare(Snapshot{RunID: "x"}, sampleReport("fft", t0, 1, 1))
	assert.NotNil(t, b.Deltas)
	assert.Empty(t, b.Deltas)
}
