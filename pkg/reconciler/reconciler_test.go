package reconciler

import (
	"testing"

	"github.com/rxtx-hosting/stationlens/pkg/serverlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	series  map[string]Series
	removed []string
}

func newFakeSink() *fakeSink {
	return &fakeSink{series: make(map[string]Series)}
}

func (f *fakeSink) SetServer(s Series) { f.series[s.Server] = s }

func (f *fakeSink) RemoveServer(name string) {
	f.removed = append(f.removed, name)
	delete(f.series, name)
}

func servers(names ...string) []serverlist.Server {
	out := make([]serverlist.Server, 0, len(names))
	for i, name := range names {
		out = append(out, serverlist.Server{Name: name, PlayerCount: float64(i + 1), FPS: 60, BuildVersion: 42})
	}
	return out
}

func TestReconcile_AlphaScenario(t *testing.T) {
	sink := newFakeSink()
	current := []serverlist.Server{{Name: "Alpha", PlayerCount: 5, FPS: 60, BuildVersion: 42, IngameTime: "13:30:00"}}

	plan := Reconcile(sink, current, NewLabelSet())

	assert.Equal(t, NewLabelSet("Alpha"), plan.Labels)
	assert.Equal(t, []string{"Alpha"}, plan.Added)
	assert.Empty(t, plan.Stale)
	assert.Equal(t, Series{Server: "Alpha", Players: 5, FPS: 60, Version: 42, TimeMinutes: 810}, sink.series["Alpha"])
}

func TestReconcile_RemovesVanishedServers(t *testing.T) {
	sink := newFakeSink()

	first := Reconcile(sink, servers("Alpha", "Beta"), NewLabelSet())
	second := Reconcile(sink, servers("Beta"), first.Labels)

	assert.Equal(t, []string{"Alpha"}, second.Stale)
	assert.Empty(t, second.Added)
	assert.Equal(t, NewLabelSet("Beta"), second.Labels)
	assert.Equal(t, []string{"Alpha"}, sink.removed)
	assert.Contains(t, sink.series, "Beta")
	assert.NotContains(t, sink.series, "Alpha")
}

func TestReconcile_EmptyFetchClearsEverything(t *testing.T) {
	sink := newFakeSink()
	first := Reconcile(sink, servers("Alpha", "Beta", "Gamma"), NewLabelSet())

	plan := Reconcile(sink, nil, first.Labels)

	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, plan.Stale)
	assert.Empty(t, plan.Labels)
	assert.Empty(t, sink.series)
}

func TestReconcile_Idempotent(t *testing.T) {
	sink := newFakeSink()
	input := servers("Alpha", "Beta")

	first := Reconcile(sink, input, NewLabelSet())
	snapshot := make(map[string]Series, len(sink.series))
	for k, v := range sink.series {
		snapshot[k] = v
	}

	second := Reconcile(sink, input, first.Labels)

	assert.Equal(t, first.Labels, second.Labels)
	assert.Empty(t, second.Stale)
	assert.Empty(t, second.Added)
	assert.Equal(t, snapshot, sink.series)
}

func TestMakePlan_DuplicateNamesKeepLastValue(t *testing.T) {
	current := []serverlist.Server{
		{Name: "Alpha", PlayerCount: 1},
		{Name: "Beta", PlayerCount: 2},
		{Name: "Alpha", PlayerCount: 9, IngameTime: "00:30"},
	}

	plan := MakePlan(current, NewLabelSet())

	require.Len(t, plan.Upserts, 2)
	assert.Equal(t, "Alpha", plan.Upserts[0].Server)
	assert.Equal(t, float64(9), plan.Upserts[0].Players)
	assert.Equal(t, float64(30), plan.Upserts[0].TimeMinutes)
	assert.Equal(t, "Beta", plan.Upserts[1].Server)
	assert.Equal(t, []string{"Alpha", "Beta"}, plan.Added)
	assert.Equal(t, NewLabelSet("Alpha", "Beta"), plan.Labels)
}

func TestMakePlan_UnparsableTimeIsZero(t *testing.T) {
	current := []serverlist.Server{{Name: "X", PlayerCount: 3, IngameTime: "half past never"}}

	plan := MakePlan(current, nil)

	require.Len(t, plan.Upserts, 1)
	assert.Equal(t, float64(0), plan.Upserts[0].TimeMinutes)
	assert.Equal(t, float64(3), plan.Upserts[0].Players)
}

func TestLabelSet_Sorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, NewLabelSet("c", "a", "b").Sorted())
	assert.Empty(t, LabelSet(nil).Sorted())
}
