package solution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/timetable"
)

func buildInstance(t *testing.T) *instance.Instance {
	t.Helper()
	n := network.New()
	a := n.AddVertex("A", network.VertexTTD)
	b := n.AddVertex("B", network.VertexTTD)
	e, err := n.AddEdge(a, b, 1000, 20, true, 50)
	require.NoError(t, err)
	tt := timetable.New()
	tr := tt.AddTrain(timetable.Train{Name: "T1", EntryEdge: e, ExitEdge: e, MaxSpeed: 20, Accel: 1, Decel: 1})
	tt.AddSchedule(timetable.Schedule{Train: tr})
	inst, err := instance.New(n, tt, 1.0, instance.DefaultOptions())
	require.NoError(t, err)
	return inst
}

func TestTrainStateInterpolates(t *testing.T) {
	sol := New(partialstate.New(1, 0, 2), []bool{true}, 0, Feasible)
	sol.SetTrajectory(0, []Sample{
		{T: 0, Pos: 0, Speed: 0, Edge: 0},
		{T: 10 * time.Second, Pos: 100, Speed: 10, Edge: 0},
	})
	pt, ok := sol.TrainState(0, 5*time.Second)
	require.True(t, ok)
	require.InDelta(t, 50, pt.NormPos, 1e-9)
}

func TestTrainStateOutOfRange(t *testing.T) {
	sol := New(partialstate.New(1, 0, 2), []bool{true}, 0, Feasible)
	sol.SetTrajectory(0, []Sample{{T: 0, Pos: 0, Speed: 0, Edge: 0}})
	_, ok := sol.TrainState(0, 100*time.Second)
	require.False(t, ok)
}

func TestCheckConsistencyRejectsOverspeed(t *testing.T) {
	inst := buildInstance(t)
	sol := New(partialstate.New(1, 0, 2), []bool{true}, 0, Feasible)
	sol.SetTrajectory(0, []Sample{
		{T: 0, Pos: 0, Speed: 100, Edge: 0},
		{T: time.Second, Pos: 100, Speed: 100, Edge: 0},
	})
	require.Error(t, sol.CheckConsistency(inst))
}

func TestCheckConsistencyAcceptsReasonableTrajectory(t *testing.T) {
	inst := buildInstance(t)
	sol := New(partialstate.New(1, 0, 2), []bool{true}, 0, Feasible)
	sol.SetTrajectory(0, []Sample{
		{T: 0, Pos: 0, Speed: 0, Edge: 0},
		{T: 10 * time.Second, Pos: 50, Speed: 10, Edge: 0},
	})
	require.NoError(t, sol.CheckConsistency(inst))
}

func TestCheckConsistencyRequiresTrajectoryForRoutedTrain(t *testing.T) {
	inst := buildInstance(t)
	sol := New(partialstate.New(1, 0, 2), []bool{true}, 0, Feasible)
	require.Error(t, sol.CheckConsistency(inst))
}
