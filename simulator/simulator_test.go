package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/timetable"
)

func buildSingleTrainInstance(t *testing.T) *instance.Instance {
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
	tr := tt.AddTrain(timetable.Train{
		Name: "T1", EntryEdge: e1, ExitEdge: e2,
		MaxSpeed: 20, Accel: 1, Decel: 1,
	})
	tt.AddSchedule(timetable.Schedule{Train: tr})

	inst, err := instance.New(n, tt, 1.0, instance.DefaultOptions())
	require.NoError(t, err)
	return inst
}

func TestSimulateSingleTrainFeasible(t *testing.T) {
	inst := buildSingleTrainInstance(t)
	ps := partialstate.New(1, 0, 3)
	res, err := Simulate(inst, ps, time.Second)
	require.NoError(t, err)
	require.True(t, res.Feasible)
	require.Greater(t, res.ExitTime[0], time.Duration(0))
}

func TestSimulateRejectsNilInstance(t *testing.T) {
	ps := partialstate.New(1, 0, 1)
	_, err := Simulate(nil, ps, time.Second)
	require.Error(t, err)
}

func TestSimulateRejectsNonPositiveDT(t *testing.T) {
	inst := buildSingleTrainInstance(t)
	ps := partialstate.New(1, 0, 3)
	_, err := Simulate(inst, ps, 0)
	require.Error(t, err)
}
