package astar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ts2/mbsolve/apperr"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/timetable"
)

// (e) Overtake via a siding: two trains share a direct unbreakable section
// (eMain) that only one may occupy at a time, plus a slower but
// always-available bypass route (eIn/eOut). T0 is deliberately slow on
// eMain, occupying it far longer than the bypass would take end to end.
// T1's tight exit deadline cannot be met if it waits for T0 to clear
// eMain, so no route that puts both trains on eMain is feasible: any
// feasible goal routes at least one of them via the bypass. The greedy
// simulator always lets train index 0 win a tied-time race for a shared
// section (trains are stepped in index order every tick), so the solver
// must branch to a state that commits one of the trains onto the bypass.
func TestScenarioOvertakeViaSiding(t *testing.T) {
	n := network.New()
	vStartA := n.AddVertex("startA", network.VertexTTD)
	vStartB := n.AddVertex("startB", network.VertexTTD)
	v0 := n.AddVertex("v0", network.VertexTTD)
	vA := n.AddVertex("vA", network.VertexTTD)
	v1 := n.AddVertex("v1", network.VertexTTD)
	vEnd := n.AddVertex("end", network.VertexTTD)

	eEntryA, err := n.AddEdge(vStartA, v0, 1, 100, true, 1)
	require.NoError(t, err)
	eEntryB, err := n.AddEdge(vStartB, v0, 1, 100, true, 1)
	require.NoError(t, err)
	eMain, err := n.AddEdge(v0, v1, 1000, 10, false, 0)
	require.NoError(t, err)
	eIn, err := n.AddEdge(v0, vA, 500, 5, true, 50)
	require.NoError(t, err)
	eOut, err := n.AddEdge(vA, v1, 500, 5, true, 50)
	require.NoError(t, err)
	eExit, err := n.AddEdge(v1, vEnd, 1, 100, true, 1)
	require.NoError(t, err)

	require.NoError(t, n.AddSuccessor(eEntryA, eMain))
	require.NoError(t, n.AddSuccessor(eEntryA, eIn))
	require.NoError(t, n.AddSuccessor(eEntryB, eMain))
	require.NoError(t, n.AddSuccessor(eEntryB, eIn))
	require.NoError(t, n.AddSuccessor(eIn, eOut))
	require.NoError(t, n.AddSuccessor(eMain, eExit))
	require.NoError(t, n.AddSuccessor(eOut, eExit))

	tt := timetable.New()
	// T0: deliberately slow (MaxSpeed 1) so it occupies eMain for ~1000s,
	// far longer than the bypass's ~200s round trip.
	t0 := tt.AddTrain(timetable.Train{
		Name: "T0", EntryEdge: eEntryA, ExitEdge: eExit,
		MaxSpeed: 1, Accel: 1000, Decel: 1000, EntrySpeed: 1, ExitSpeed: 1,
	})
	// T1: fast, but with a 300s exit deadline it can only meet by bypassing
	// T0 entirely rather than waiting for eMain to clear.
	t1 := tt.AddTrain(timetable.Train{
		Name: "T1", EntryEdge: eEntryB, ExitEdge: eExit,
		MaxSpeed: 10, Accel: 1000, Decel: 1000, EntrySpeed: 10, ExitSpeed: 10,
		ExitTimeHi: 300 * time.Second,
	})
	tt.AddSchedule(timetable.Schedule{Train: t0})
	tt.AddSchedule(timetable.Schedule{Train: t1})

	inst, err := instance.New(n, tt, 1.0, instance.DefaultOptions())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.DT = 10 * time.Second
	solver := New(inst, opts)

	ps := partialstate.New(2, len(n.UnbreakableSections()), n.NumVertices())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := solver.Solve(ctx, ps)
	require.NoError(t, err)
	require.True(t, res.Feasible)
	require.NotNil(t, res.Goal)
	// eMain holds only one train at a time, and both trains must cross
	// from v0 to v1 to reach their exit, so at least one of them must have
	// taken the bypass in any feasible goal.
	usedBypass := contains(res.Goal.TrainEdges[t0], eIn) || contains(res.Goal.TrainEdges[t1], eIn)
	require.True(t, usedBypass, "expected at least one train routed via the bypass (eIn), goal: %+v", res.Goal.TrainEdges)
}

func contains(edges []int, target int) bool {
	for _, e := range edges {
		if e == target {
			return true
		}
	}
	return false
}

// (f) Solver timeout vs success: an already-expired context must make Solve
// report a timeout on its very first iteration, while a generous context on
// a trivially feasible single-train instance must succeed.
func TestScenarioSolveTimeoutThenSuccess(t *testing.T) {
	n := network.New()
	v0 := n.AddVertex("v0", network.VertexTTD)
	v1 := n.AddVertex("v1", network.VertexTTD)
	e0, err := n.AddEdge(v0, v1, 1000, 10, true, 50)
	require.NoError(t, err)

	tt := timetable.New()
	tr := tt.AddTrain(timetable.Train{
		Name: "T0", EntryEdge: e0, ExitEdge: e0,
		MaxSpeed: 10, Accel: 1000, Decel: 1000, EntrySpeed: 10, ExitSpeed: 10,
	})
	tt.AddSchedule(timetable.Schedule{Train: tr})

	inst, err := instance.New(n, tt, 1.0, instance.DefaultOptions())
	require.NoError(t, err)

	ps := partialstate.New(1, len(n.UnbreakableSections()), n.NumVertices())
	solver := New(inst, DefaultOptions())

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := solver.Solve(expired, ps)
	require.Error(t, err)
	require.ErrorIs(t, err, apperr.ErrTimeout)
	require.True(t, res.TimedOut)

	res, err = solver.Solve(context.Background(), ps)
	require.NoError(t, err)
	require.True(t, res.Feasible)
	require.NotNil(t, res.Goal)
}
