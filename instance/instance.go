// Package instance composes a network and a timetable into the immutable,
// read-shared problem definition the simulator and A* solver operate over.
// Once New returns, an *Instance has no exported mutating method other than
// SetWeight and SetOptional; while neither is being called, it can be read
// concurrently from any number of goroutines without a lock.
package instance

import (
	"time"

	"github.com/ts2/mbsolve/apperr"
	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/timetable"
)

// OverlapKind classifies why two trains' occupancy of the network may
// conflict.
type OverlapKind int

const (
	OverlapParallel OverlapKind = iota
	OverlapTTD
	OverlapReverse
	OverlapCrossing
)

// Options holds instance-wide tunables that the original hard-codes as
// constants; here they are explicit fields set once at construction.
type Options struct {
	VMin              float64
	LateEntryPossible bool
	LateExitPossible  bool
	LateStopPossible  bool
	DT                time.Duration
	// Headway is the minimum time gap the simulator enforces between two
	// trains crossing the same vertex, modeling the interlocking delay a
	// real signal takes to clear and re-set a route.
	Headway time.Duration
}

// DefaultOptions returns the conservative defaults: no lateness tolerated,
// a 1-second simulation step, a VMin of 0 (trains may fully stop), and no
// enforced crossing headway.
func DefaultOptions() Options {
	return Options{
		VMin:              0,
		LateEntryPossible: false,
		LateExitPossible:  false,
		LateStopPossible:  false,
		DT:                time.Second,
		Headway:           0,
	}
}

// Instance is the composed problem: a network, a timetable over it,
// per-train objective weights, optionality, and the tunables in Options.
// Once constructed it changes only through SetWeight and SetOptional.
type Instance struct {
	net      *network.Network
	tt       *timetable.Timetable
	weights  []float64
	optional []bool
	lambda   float64
	opts     Options

	possibleStops [][]int // possibleStops[train][stopIndex] -> vertex
	shortestPaths map[int]map[int]float64
	overlaps      map[overlapKey]bool
}

type overlapKey struct {
	t1, t2 int
	kind   OverlapKind
}

// New composes net and tt into an Instance, eagerly computing the all-pairs
// shortest-path matrix, per-train possible-stop vertices, and overlap
// tables. Train weights default to 1 and optionality to false, matching the
// original's initialize_vectors.
func New(net *network.Network, tt *timetable.Timetable, lambda float64, opts Options) (*Instance, error) {
	if net == nil || tt == nil {
		return nil, apperr.InvalidInput("instance", "nil network or timetable")
	}
	if err := net.CheckConsistency(); err != nil {
		return nil, err
	}
	if err := tt.CheckConsistency(net); err != nil {
		return nil, err
	}

	inst := &Instance{
		net:      net,
		tt:       tt,
		weights:  make([]float64, len(tt.Trains)),
		optional: make([]bool, len(tt.Trains)),
		lambda:   lambda,
		opts:     opts,
	}
	for i := range inst.weights {
		inst.weights[i] = 1
	}

	inst.computeShortestPaths()
	inst.computePossibleStops()
	inst.computeOverlaps()

	return inst, nil
}

// Network returns the underlying railway network.
func (i *Instance) Network() *network.Network { return i.net }

// Timetable returns the underlying timetable.
func (i *Instance) Timetable() *timetable.Timetable { return i.tt }

// Options returns the instance-wide tunables.
func (i *Instance) Options() Options { return i.opts }

// Weight returns the objective weight of a train.
func (i *Instance) Weight(train int) float64 {
	if train < 0 || train >= len(i.weights) {
		return 1
	}
	return i.weights[train]
}

// SetWeight sets the objective weight of a train. Exported for instance
// construction helpers (e.g. ioadapter), not for use once a solve has
// begun.
func (i *Instance) SetWeight(train int, w float64) {
	if train >= 0 && train < len(i.weights) {
		i.weights[train] = w
	}
}

// Optional reports whether a train may be dropped from the solution
// entirely.
func (i *Instance) Optional(train int) bool {
	if train < 0 || train >= len(i.optional) {
		return false
	}
	return i.optional[train]
}

// SetOptional marks a train as droppable from the schedule.
func (i *Instance) SetOptional(train int, optional bool) {
	if train >= 0 && train < len(i.optional) {
		i.optional[train] = optional
	}
}

// Lambda returns the delay-vs-rejection tradeoff weight: minutes of delay
// on a weight-one train considered "equal" to scheduling another
// weight-one train.
func (i *Instance) Lambda() float64 { return i.lambda }

// PossibleStopVertices returns the stop vertex for train's stopIndex'th
// scheduled stop: a one-element slice holding the first vertex listed for
// that stop's station. The station's other vertices are not returned, and
// no path-length check against the train's length is made.
func (i *Instance) PossibleStopVertices(train, stopIndex int) []int {
	if train < 0 || train >= len(i.possibleStops) {
		return nil
	}
	if stopIndex < 0 || stopIndex >= len(i.possibleStops[train]) {
		return nil
	}
	return []int{i.possibleStops[train][stopIndex]}
}

func (i *Instance) computePossibleStops() {
	i.possibleStops = make([][]int, len(i.tt.Trains))
	for t := range i.tt.Trains {
		sched, ok := i.tt.ScheduleFor(t)
		if !ok {
			continue
		}
		stops := make([]int, len(sched.Stops))
		for si, stop := range sched.Stops {
			if stop.Station >= 0 && stop.Station < len(i.tt.Stations) {
				verts := i.tt.Stations[stop.Station].Vertices
				if len(verts) > 0 {
					stops[si] = verts[0]
				}
			}
		}
		i.possibleStops[t] = stops
	}
}

func (i *Instance) computeShortestPaths() {
	i.shortestPaths = make(map[int]map[int]float64, i.net.NumEdges())
	for e := 0; e < i.net.NumEdges(); e++ {
		d, err := i.net.ShortestPathFromEdge(e)
		if err == nil {
			i.shortestPaths[e] = d
		}
	}
}

// ShortestPath returns the precomputed minimum time-cost from edge `from`
// to edge `to`.
func (i *Instance) ShortestPath(from, to int) (float64, bool) {
	m, ok := i.shortestPaths[from]
	if !ok {
		return 0, false
	}
	d, ok := m[to]
	return d, ok
}

// potentialEdges returns every edge a train routed from entry to exit could
// possibly traverse: edges reachable from entry (per the precomputed
// shortest-path map) from which exit is itself still reachable. This is
// the set overlap classification reasons about, since trains are routed by
// search rather than along one fixed path declared up front.
func (i *Instance) potentialEdges(entry, exit int) map[int]bool {
	out := map[int]bool{entry: true, exit: true}
	fromEntry, ok := i.shortestPaths[entry]
	if !ok {
		return out
	}
	for e := range fromEntry {
		if e == exit {
			out[e] = true
			continue
		}
		fromE, ok := i.shortestPaths[e]
		if !ok {
			continue
		}
		if _, reachesExit := fromE[exit]; reachesExit {
			out[e] = true
		}
	}
	return out
}

// computeOverlaps classifies every train pair by how their possible routes
// might conflict, consulting TTD-section membership (not just the trains'
// single entry/exit edges) so conflicts deep inside the network are caught:
// OverlapParallel when their potential edge sets share an edge outright,
// OverlapTTD when their potential edges touch a common unbreakable (TTD)
// section, whether or not they also share an edge, OverlapReverse when one train's potential route includes the
// reverse of an edge on the other's, and OverlapCrossing when their
// potential routes meet at a shared vertex.
func (i *Instance) computeOverlaps() {
	i.overlaps = make(map[overlapKey]bool)

	sections := i.net.UnbreakableSections()
	edgeSection := make(map[int]int, i.net.NumEdges())
	for si, sec := range sections {
		for _, e := range sec.Edges {
			edgeSection[e] = si
		}
	}

	potential := make([]map[int]bool, len(i.tt.Trains))
	for t, tr := range i.tt.Trains {
		potential[t] = i.potentialEdges(tr.EntryEdge, tr.ExitEdge)
	}

	n := len(i.tt.Trains)
	for t1 := 0; t1 < n; t1++ {
		p1 := potential[t1]
		sections1 := make(map[int]bool, len(p1))
		for e := range p1 {
			if si, ok := edgeSection[e]; ok {
				sections1[si] = true
			}
		}
		for t2 := t1 + 1; t2 < n; t2++ {
			p2 := potential[t2]
			for e2 := range p2 {
				if p1[e2] {
					i.overlaps[overlapKey{t1, t2, OverlapParallel}] = true
				}
				if si, ok := edgeSection[e2]; ok && sections1[si] {
					i.overlaps[overlapKey{t1, t2, OverlapTTD}] = true
				}
				if rev, ok := i.net.ReverseEdge(e2); ok && p1[rev] {
					i.overlaps[overlapKey{t1, t2, OverlapReverse}] = true
				}
				e2v, err := i.net.Edge(e2)
				if err != nil {
					continue
				}
				for e1 := range p1 {
					if e1 == e2 {
						continue
					}
					e1v, err := i.net.Edge(e1)
					if err != nil {
						continue
					}
					if e1v.Source == e2v.Source || e1v.Source == e2v.Target ||
						e1v.Target == e2v.Source || e1v.Target == e2v.Target {
						i.overlaps[overlapKey{t1, t2, OverlapCrossing}] = true
					}
				}
			}
		}
	}
}

// Overlap reports whether trains t1 and t2 may conflict in the given way.
// The pair is order-independent.
func (i *Instance) Overlap(t1, t2 int, kind OverlapKind) bool {
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	return i.overlaps[overlapKey{t1, t2, kind}]
}

// NumTrains returns the number of trains in the timetable.
func (i *Instance) NumTrains() int { return len(i.tt.Trains) }
