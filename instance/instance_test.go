package instance

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/timetable"
)

func buildSimple(t *testing.T) (*network.Network, *timetable.Timetable) {
	t.Helper()
	n := network.New()
	a := n.AddVertex("A", network.VertexTTD)
	b := n.AddVertex("B", network.VertexTTD)
	c := n.AddVertex("C", network.VertexTTD)
	e1, err := n.AddEdge(a, b, 500, 20, true, 50)
	require.NoError(t, err)
	e2, err := n.AddEdge(b, c, 500, 20, true, 50)
	require.NoError(t, err)
	require.NoError(t, n.AddSuccessor(e1, e2))

	tt := timetable.New()
	tr1 := tt.AddTrain(timetable.Train{Name: "T1", EntryEdge: e1, ExitEdge: e2, MaxSpeed: 20})
	tt.AddSchedule(timetable.Schedule{Train: tr1})
	return n, tt
}

func TestNewInstance(t *testing.T) {
	n, tt := buildSimple(t)
	inst, err := New(n, tt, 1.0, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, inst.NumTrains())
	require.Equal(t, 1.0, inst.Weight(0))
	require.False(t, inst.Optional(0))
}

func TestShortestPathPrecomputed(t *testing.T) {
	n, tt := buildSimple(t)
	inst, err := New(n, tt, 1.0, DefaultOptions())
	require.NoError(t, err)
	d, ok := inst.ShortestPath(0, 1)
	require.True(t, ok)
	require.InDelta(t, 25.0, d, 1e-9)
}

func TestSetWeightAndOptional(t *testing.T) {
	n, tt := buildSimple(t)
	inst, err := New(n, tt, 1.0, DefaultOptions())
	require.NoError(t, err)
	inst.SetWeight(0, 2.5)
	inst.SetOptional(0, true)
	require.Equal(t, 2.5, inst.Weight(0))
	require.True(t, inst.Optional(0))
}

func TestRejectsNilNetwork(t *testing.T) {
	_, tt := buildSimple(t)
	_, err := New(nil, tt, 1, DefaultOptions())
	require.Error(t, err)
}
