package astar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/timetable"
)

func buildInstance(t *testing.T) (*instance.Instance, int) {
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
	tr := tt.AddTrain(timetable.Train{Name: "T1", EntryEdge: e1, ExitEdge: e2, MaxSpeed: 20, Accel: 1, Decel: 1})
	tt.AddSchedule(timetable.Schedule{Train: tr})

	inst, err := instance.New(n, tt, 1.0, instance.DefaultOptions())
	require.NoError(t, err)
	return inst, 3 // 3 vertices
}

func TestSolveFindsFeasibleGoal(t *testing.T) {
	inst, numVerts := buildInstance(t)
	solver := New(inst, DefaultOptions())
	ps := partialstate.New(1, 0, numVerts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := solver.Solve(ctx, ps)
	require.NoError(t, err)
	require.True(t, res.Feasible)
}

func TestSolveParallelFindsFeasibleGoal(t *testing.T) {
	inst, numVerts := buildInstance(t)
	solver := New(inst, DefaultOptions())
	ps := partialstate.New(1, 0, numVerts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := solver.SolveParallel(ctx, ps, 2)
	require.NoError(t, err)
	require.True(t, res.Feasible)
}

func TestZeroHeuristicAlwaysAdmissible(t *testing.T) {
	inst, _ := buildInstance(t)
	ps := partialstate.New(1, 0, 3)
	require.Equal(t, time.Duration(0), Zero(inst, ps))
}

func TestSimpleHeuristicNonNegative(t *testing.T) {
	inst, _ := buildInstance(t)
	ps := partialstate.New(1, 0, 3).WithTrainEdge(0, 0)
	require.GreaterOrEqual(t, Simple(inst, ps), time.Duration(0))
}
