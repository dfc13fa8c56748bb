package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ts2/mbsolve/network"
)

func buildNet(t *testing.T) *network.Network {
	t.Helper()
	n := network.New()
	a := n.AddVertex("A", network.VertexTTD)
	b := n.AddVertex("B", network.VertexTTD)
	e, err := n.AddEdge(a, b, 1000, 20, true, 0)
	require.NoError(t, err)
	_ = e
	return n
}

func TestScheduleForFound(t *testing.T) {
	tt := New()
	tr := tt.AddTrain(Train{Name: "IC1", MaxSpeed: 20})
	tt.AddSchedule(Schedule{Train: tr})
	s, ok := tt.ScheduleFor(tr)
	require.True(t, ok)
	require.Equal(t, tr, s.Train)
}

func TestCheckConsistencyRejectsInvertedWindow(t *testing.T) {
	n := buildNet(t)
	tt := New()
	tr := tt.AddTrain(Train{Name: "IC1"})
	stA := tt.AddStation(Station{Name: "A", Vertices: []int{0}})
	tt.AddSchedule(Schedule{Train: tr, Stops: []Stop{
		{Station: stA, EarliestEntry: 10 * time.Second, LatestEntry: 0},
	}})
	require.Error(t, tt.CheckConsistency(n))
}

func TestCheckConsistencyAcceptsReasonableWindow(t *testing.T) {
	n := buildNet(t)
	tt := New()
	tr := tt.AddTrain(Train{Name: "IC1"})
	stA := tt.AddStation(Station{Name: "A", Vertices: []int{0}})
	stB := tt.AddStation(Station{Name: "B", Vertices: []int{1}})
	tt.AddSchedule(Schedule{Train: tr, Stops: []Stop{
		{Station: stA, EarliestEntry: 0, LatestEntry: 30 * time.Second},
		{Station: stB, EarliestEntry: time.Hour, LatestEntry: time.Hour + 30*time.Second},
	}})
	require.NoError(t, tt.CheckConsistency(n))
}
