package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ts2/mbsolve/apperr"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/timetable"
)

// These mirror the end-to-end scenarios a train dispatch simulator is
// expected to handle: a lone train running to exit, a genuine vertex-order
// deadlock, staggered bidirectional running, and a multi-stop tour with
// minimum dwell. Parameters are chosen for easy hand verification against
// this package's own kinematics (large accel/decel so ramps are
// negligible, dt-divisible distances) rather than reproduced from any
// external reference numbers.

// (a) Single train on one edge: enters immediately at line speed, never
// brakes (nothing beyond the exit edge to protect against), and crossing
// the far vertex advances that vertex's headway clock.
func TestScenarioSingleTrainOneEdge(t *testing.T) {
	n := network.New()
	v0 := n.AddVertex("v0", network.VertexTTD)
	v1 := n.AddVertex("v1", network.VertexTTD)
	e0, err := n.AddEdge(v0, v1, 3000, 30, true, 50)
	require.NoError(t, err)

	tt := timetable.New()
	tr := tt.AddTrain(timetable.Train{
		Name: "T0", EntryEdge: e0, ExitEdge: e0,
		MaxSpeed: 30, Accel: 1000, Decel: 1000,
		EntrySpeed: 30, ExitSpeed: 30,
	})
	tt.AddSchedule(timetable.Schedule{Train: tr})

	opts := instance.DefaultOptions()
	opts.Headway = 30 * time.Second
	inst, err := instance.New(n, tt, 1.0, opts)
	require.NoError(t, err)

	ps := partialstate.New(1, 0, 2)
	res, err := Simulate(inst, ps, 10*time.Second)
	require.NoError(t, err)
	require.True(t, res.Feasible)
	require.Equal(t, 90*time.Second, res.ExitTime[0])
	require.Equal(t, time.Duration(-1), res.Brake[0].Time)
	require.Equal(t, noBrake, res.Brake[0].Position)
	require.Equal(t, 120*time.Second, res.VertexFreeTime[v1])
}

// (b) Deadlock: two trains on opposite directions of a two-edge loop, each
// committed to cross its own entry vertex only after the other has already
// crossed it. Neither can ever move, so the simulator must report Deadlock
// with no train ever exiting.
func TestScenarioDeadlockViaOpposingVertexOrder(t *testing.T) {
	n := network.New()
	v0 := n.AddVertex("v0", network.VertexTTD)
	v1 := n.AddVertex("v1", network.VertexTTD)
	eFwd, err := n.AddEdge(v0, v1, 1000, 10, false, 0)
	require.NoError(t, err)
	eRev, err := n.AddEdge(v1, v0, 1000, 10, false, 0)
	require.NoError(t, err)

	tt := timetable.New()
	t0 := tt.AddTrain(timetable.Train{Name: "T0", EntryEdge: eFwd, ExitEdge: eFwd, MaxSpeed: 10, Accel: 1, Decel: 1})
	t1 := tt.AddTrain(timetable.Train{Name: "T1", EntryEdge: eRev, ExitEdge: eRev, MaxSpeed: 10, Accel: 1, Decel: 1})
	tt.AddSchedule(timetable.Schedule{Train: t0})
	tt.AddSchedule(timetable.Schedule{Train: t1})

	inst, err := instance.New(n, tt, 1.0, instance.DefaultOptions())
	require.NoError(t, err)

	ps := partialstate.New(2, 0, 2)
	ps = ps.WithVertexOrder(v0, t1).WithVertexOrder(v0, t0) // T0 must wait for T1 to cross v0
	ps = ps.WithVertexOrder(v1, t0).WithVertexOrder(v1, t1) // T1 must wait for T0 to cross v1

	res, err := Simulate(inst, ps, time.Second)
	require.Error(t, err)
	require.ErrorIs(t, err, apperr.ErrDeadlock)
	require.False(t, res.Feasible)
	require.Equal(t, time.Duration(-1), res.ExitTime[0])
	require.Equal(t, time.Duration(-1), res.ExitTime[1])
}

// (c) Staggered bidirectional running: two bidirectional trains traverse
// the same physical track in opposite directions, the second entering 30s
// after the first. The reverse-edge safety exception must let the second
// train in without waiting for the first to clear, so both pass through
// with no deadlock.
func TestScenarioStaggeredBidirectionalPassThrough(t *testing.T) {
	n := network.New()
	v0 := n.AddVertex("v0", network.VertexTTD)
	v1 := n.AddVertex("v1", network.VertexTTD)
	eFwd, err := n.AddEdge(v0, v1, 1000, 10, false, 0)
	require.NoError(t, err)
	eRev, err := n.AddEdge(v1, v0, 1000, 10, false, 0)
	require.NoError(t, err)
	// Declaring eRev a successor of eFwd merges both directions' edges into
	// one UnbreakableSection run, so canEnterSection's reverse-edge
	// exception is actually exercised (the two directed edges otherwise
	// partition into separate sections and never contend at all). No train
	// here ever routes through this successor; both dead-end on their own
	// single edge.
	require.NoError(t, n.AddSuccessor(eFwd, eRev))

	tt := timetable.New()
	t0 := tt.AddTrain(timetable.Train{
		Name: "T0", EntryEdge: eFwd, ExitEdge: eFwd, Bidirectional: true,
		MaxSpeed: 10, Accel: 1000, Decel: 1000, EntrySpeed: 10, ExitSpeed: 10,
	})
	t1 := tt.AddTrain(timetable.Train{
		Name: "T1", EntryEdge: eRev, ExitEdge: eRev, Bidirectional: true,
		MaxSpeed: 10, Accel: 1000, Decel: 1000, EntrySpeed: 10, ExitSpeed: 10,
		EntryTimeLo: 30 * time.Second, EntryTimeHi: 30 * time.Second,
	})
	tt.AddSchedule(timetable.Schedule{Train: t0})
	tt.AddSchedule(timetable.Schedule{Train: t1})

	inst, err := instance.New(n, tt, 1.0, instance.DefaultOptions())
	require.NoError(t, err)
	require.True(t, inst.Overlap(0, 1, instance.OverlapReverse))

	ps := partialstate.New(2, 0, 2)
	res, err := Simulate(inst, ps, 10*time.Second)
	require.NoError(t, err)
	require.True(t, res.Feasible)
	require.Equal(t, 90*time.Second, res.ExitTime[0])
	require.Equal(t, 120*time.Second, res.ExitTime[1])
}

// (d) Two-station stop tour: a train crossing a three-edge line must dwell
// at least 30s at each of two intermediate stations before continuing.
func TestScenarioTwoStationStopTour(t *testing.T) {
	n := network.New()
	v0 := n.AddVertex("v0", network.VertexTTD)
	v1 := n.AddVertex("v1", network.VertexTTD)
	v2 := n.AddVertex("v2", network.VertexTTD)
	v3 := n.AddVertex("v3", network.VertexTTD)
	eA, err := n.AddEdge(v0, v1, 500, 10, true, 50)
	require.NoError(t, err)
	eB, err := n.AddEdge(v1, v2, 500, 10, true, 50)
	require.NoError(t, err)
	eC, err := n.AddEdge(v2, v3, 500, 10, true, 50)
	require.NoError(t, err)
	require.NoError(t, n.AddSuccessor(eA, eB))
	require.NoError(t, n.AddSuccessor(eB, eC))

	tt := timetable.New()
	tt.AddStation(timetable.Station{Name: "S1", Vertices: []int{v1}})
	tt.AddStation(timetable.Station{Name: "S2", Vertices: []int{v2}})
	tr := tt.AddTrain(timetable.Train{
		Name: "T0", EntryEdge: eA, ExitEdge: eC,
		MaxSpeed: 10, Accel: 1000, Decel: 1000, EntrySpeed: 10, ExitSpeed: 10,
	})
	tt.AddSchedule(timetable.Schedule{Train: tr, Stops: []timetable.Stop{
		{Station: 0, EarliestEntry: 0, LatestEntry: 1000 * time.Second, MinDwell: 30 * time.Second},
		{Station: 1, EarliestEntry: 0, LatestEntry: 1000 * time.Second, MinDwell: 30 * time.Second},
	}})

	inst, err := instance.New(n, tt, 1.0, instance.DefaultOptions())
	require.NoError(t, err)

	ps := partialstate.New(1, 0, 4)
	res, err := Simulate(inst, ps, 10*time.Second)
	require.NoError(t, err)
	require.True(t, res.Feasible)
	require.Greater(t, res.ExitTime[0], time.Duration(0))
	require.Len(t, res.FinalState.StopPositions[0], 2)
	require.Greater(t, res.FinalState.StopPositions[0][1], res.FinalState.StopPositions[0][0])
}
