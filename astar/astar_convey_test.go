package astar

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/timetable"
)

func buildConveySolverInstance() *instance.Instance {
	n := network.New()
	a := n.AddVertex("A", network.VertexTTD)
	b := n.AddVertex("B", network.VertexTTD)
	c := n.AddVertex("C", network.VertexTTD)
	e1, _ := n.AddEdge(a, b, 500, 20, true, 50)
	e2, _ := n.AddEdge(b, c, 500, 20, true, 50)
	_ = n.AddSuccessor(e1, e2)

	tt := timetable.New()
	tr := tt.AddTrain(timetable.Train{Name: "T1", EntryEdge: e1, ExitEdge: e2, MaxSpeed: 20, Accel: 1, Decel: 1})
	tt.AddSchedule(timetable.Schedule{Train: tr})

	inst, err := instance.New(n, tt, 1.0, instance.DefaultOptions())
	if err != nil {
		panic(err)
	}
	return inst
}

func TestSolveAndSolveParallelAgree(t *testing.T) {
	Convey("Given a solver over a small feasible instance", t, func() {
		inst := buildConveySolverInstance()
		solver := New(inst, DefaultOptions())
		ps := partialstate.New(1, 0, 3)

		Convey("Solve and SolveParallel both find a feasible goal", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			serial, err := solver.Solve(ctx, ps)
			So(err, ShouldBeNil)
			So(serial.Feasible, ShouldBeTrue)

			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			parallel, err := solver.SolveParallel(ctx2, ps, 3)
			So(err, ShouldBeNil)
			So(parallel.Feasible, ShouldBeTrue)

			Convey("And they report the same exit time for the single train", func() {
				So(serial.GoalResult.ExitTime[0], ShouldEqual, parallel.GoalResult.ExitTime[0])
			})
		})
	})
}
