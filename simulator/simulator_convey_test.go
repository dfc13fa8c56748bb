package simulator

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/timetable"

	"github.com/ts2/mbsolve/instance"
)

func buildConveyInstance() *instance.Instance {
	n := network.New()
	a := n.AddVertex("A", network.VertexTTD)
	b := n.AddVertex("B", network.VertexTTD)
	c := n.AddVertex("C", network.VertexTTD)
	e1, _ := n.AddEdge(a, b, 500, 20, true, 50)
	e2, _ := n.AddEdge(b, c, 500, 20, true, 50)
	_ = n.AddSuccessor(e1, e2)

	tt := timetable.New()
	tr := tt.AddTrain(timetable.Train{
		Name: "T1", EntryEdge: e1, ExitEdge: e2,
		MaxSpeed: 20, Accel: 1, Decel: 1,
	})
	tt.AddSchedule(timetable.Schedule{Train: tr})

	inst, err := instance.New(n, tt, 1.0, instance.DefaultOptions())
	if err != nil {
		panic(err)
	}
	return inst
}

func TestSimulateIsSafeForConcurrentReaders(t *testing.T) {
	Convey("Given a single fixed Instance", t, func() {
		inst := buildConveyInstance()

		Convey("When many goroutines call Simulate against it concurrently", func() {
			const numWorkers = 50
			ps := partialstate.New(1, 0, 3)
			results := make([]bool, numWorkers)
			var wg sync.WaitGroup
			wg.Add(numWorkers)
			for i := 0; i < numWorkers; i++ {
				i := i
				go func() {
					defer wg.Done()
					res, err := Simulate(inst, ps, time.Second)
					results[i] = err == nil && res != nil && res.Feasible
				}()
			}
			wg.Wait()

			Convey("Every invocation sees a feasible, identical result", func() {
				for _, ok := range results {
					So(ok, ShouldBeTrue)
				}
			})
		})
	})
}
