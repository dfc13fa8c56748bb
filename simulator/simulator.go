// Package simulator implements the greedy, fixed-step kinematic simulator:
// given an Instance and a PartialState describing train order commitments,
// it advances every active train forward in lockstep and reports whether
// the resulting schedule is feasible. A train never deviates from the
// route prefix already committed in its PartialState; it only falls back
// to shortest-path-to-exit routing once it runs past the end of that
// commitment, so different committed prefixes genuinely produce different
// simulated outcomes — the branching A* relies on.
package simulator

import (
	"math"
	"sync"
	"time"

	"github.com/ts2/mbsolve/apperr"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/kinematics"
	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/timetable"
)

// BrakeEvent records where and when a train began braking for a stop or
// movement-authority limit. Position is -1 and Time is -1 when the train
// never braked.
type BrakeEvent struct {
	Time     time.Duration
	Position float64
}

const noBrake = -1.0

// Result is everything Simulate computes for one forward pass: a pass/fail
// verdict plus enough per-train detail for diagnostics and for building a
// Solution even on failure.
type Result struct {
	Feasible       bool
	ExitTime       []time.Duration // per train, -1 if never exited
	Brake          []BrakeEvent    // per train
	VertexFreeTime []time.Duration // per vertex, time it next becomes free
	FinalState     partialstate.PartialState
	FailTrain      int // offending train index on infeasibility, -1 if none
}

// trainRuntime is the per-train mutable scratch state advanced each tick.
// Pulled from a sync.Pool keyed by train count so astar's hot loop doesn't
// allocate a fresh slice of these on every Simulate call.
type trainRuntime struct {
	entered      bool
	exited       bool
	edge         int
	rear         float64 // meters from edge.Source
	front        float64
	speed        float64
	brakeTime    time.Duration
	brakePos     float64
	distTraveled float64 // cumulative meters since entry, for StopPositions
	committedIdx int     // index into the input PartialState's committed route for this train, or -1
	nextStopIdx  int
	dwelling     bool
	dwellUntil   time.Duration
}

var runtimePool = sync.Pool{
	New: func() interface{} { return make([]trainRuntime, 0, 16) },
}

// maxSimTicks bounds the step loop so a genuinely deadlocked instance
// terminates instead of looping forever.
const maxSimTicks = 200000

// Simulate runs the greedy forward time-stepping loop described by the
// instance's network/timetable/options, starting from ps, and returns a
// Result plus the commit-order PartialState the run settled into. It takes
// no package-level mutable state: all scratch allocation is local to the
// call or pulled from a pool, so concurrent callers (astar's parallel
// expansion) never share state.
func Simulate(inst *instance.Instance, ps partialstate.PartialState, dt time.Duration) (*Result, error) {
	if inst == nil {
		return nil, apperr.InvalidInput("simulator", "nil instance")
	}
	if dt <= 0 {
		return nil, apperr.InvalidInput("simulator", "non-positive dt")
	}

	net := inst.Network()
	tt := inst.Timetable()
	opts := inst.Options()
	numTrains := len(tt.Trains)

	rt := acquireRuntimes(numTrains)
	defer releaseRuntimes(rt)

	result := &Result{
		ExitTime:       make([]time.Duration, numTrains),
		Brake:          make([]BrakeEvent, numTrains),
		VertexFreeTime: make([]time.Duration, net.NumVertices()),
		FailTrain:      -1,
	}
	for t := range result.ExitTime {
		result.ExitTime[t] = -1
		result.Brake[t] = BrakeEvent{Time: -1, Position: noBrake}
	}

	edgeHolder := make([]int, net.NumEdges())
	for i := range edgeHolder {
		edgeHolder[i] = -1
	}

	sections := net.UnbreakableSections()
	sectionOf := make(map[int]int, net.NumEdges())
	for si, sec := range sections {
		for _, e := range sec.Edges {
			sectionOf[e] = si
		}
	}
	sectionHolder := make([]int, len(sections))
	for i := range sectionHolder {
		sectionHolder[i] = -1
	}

	vertexCrossed := make([]map[int]bool, net.NumVertices())
	for v := range vertexCrossed {
		vertexCrossed[v] = make(map[int]bool)
	}
	headway := opts.Headway

	for t := range rt {
		if committed := ps.TrainEdges[t]; len(committed) > 0 && committed[0] == tt.Trains[t].EntryEdge {
			rt[t].committedIdx = 0
		} else {
			rt[t].committedIdx = -1
		}
	}

	state := ps
	now := time.Duration(0)
	activeCount := numTrains

	for tick := 0; tick < maxSimTicks && activeCount > 0; tick++ {
		for t := 0; t < numTrains; t++ {
			if rt[t].exited {
				continue
			}
			tr := tt.Trains[t]

			if !rt[t].entered {
				if !tr.EntryWindowOpen(now) {
					continue
				}
				if now > tr.EntryTimeHi && tr.EntryTimeHi > 0 && !opts.LateEntryPossible {
					result.Feasible = false
					result.FailTrain = t
					result.FinalState = state
					return result, apperr.ErrInfeasibleSchedule
				}
				entryVertex := edgeSource(net, tr.EntryEdge)
				if !canEnterSection(inst, net, edgeHolder, sectionHolder, sectionOf, tr, t, tr.EntryEdge) {
					continue
				}
				if !vertexCrossAllowed(ps, vertexCrossed, entryVertex, t) {
					continue
				}
				if entryVertex >= 0 && result.VertexFreeTime[entryVertex] > now {
					continue
				}
				rt[t].entered = true
				rt[t].edge = tr.EntryEdge
				rt[t].rear = 0
				rt[t].front = 0
				rt[t].speed = tr.EntrySpeed
				edgeHolder[tr.EntryEdge] = t
				if sec, ok := sectionOf[tr.EntryEdge]; ok {
					sectionHolder[sec] = t
				}
				if entryVertex >= 0 {
					vertexCrossed[entryVertex][t] = true
					result.VertexFreeTime[entryVertex] = now + headway
				}
				state = state.WithTrainEdge(t, tr.EntryEdge)
			}

			if rt[t].dwelling {
				if now < rt[t].dwellUntil {
					rt[t].speed = 0
					continue
				}
				rt[t].dwelling = false
				rt[t].nextStopIdx++
			}

			edge, err := net.Edge(rt[t].edge)
			if err != nil {
				result.Feasible = false
				result.FailTrain = t
				return result, apperr.NotExistent("edge", "")
			}

			candidate := candidateNextEdge(net, rt[t].edge, tr.ExitEdge, ps.TrainEdges[t], rt[t].committedIdx)

			ma, maxV := getMAAndMaxV(net, edgeHolder, sectionHolder, sectionOf, edge, rt[t].front, candidate)
			v1 := kinematics.GetV1FromMA(ma, tr.Decel)
			if v1 > maxV {
				v1 = maxV
			}
			if v1 > tr.MaxSpeed {
				v1 = tr.MaxSpeed
			}
			if v1 > edge.MaxSpeed {
				v1 = edge.MaxSpeed
			}

			if v1 < rt[t].speed && rt[t].brakePos == noBrake {
				rt[t].brakeTime = now
				rt[t].brakePos = rt[t].front
			}

			// MaxBrakingPosAfterLinearMovement returns the displacement over
			// this one tick starting from the train's current speed, plus a
			// trailing braking-distance margin folded in at the target
			// speed — a delta from the train's current position, not an
			// absolute position, so it is never offset by front.
			distance := kinematics.MaxBrakingPosAfterLinearMovement(rt[t].speed, v1, tr.Accel, tr.Decel, dt)
			if distance < 0 {
				distance = 0
			}
			remaining := ma
			if remaining >= 0 && distance > remaining {
				distance = remaining
			}
			rt[t].front += distance
			rt[t].speed = v1
			rt[t].rear += distance
			rt[t].distTraveled += distance
			if rt[t].rear > edge.Length {
				rt[t].rear = edge.Length
			}

			if rt[t].front < edge.Length-kinematics.LineSpeedAccuracy {
				continue
			}

			if rt[t].edge == tr.ExitEdge {
				if !tr.ExitWindowSatisfied(now) && !opts.LateExitPossible {
					result.Feasible = false
					result.FailTrain = t
					result.FinalState = state
					return result, apperr.ErrInfeasibleSchedule
				}
				rt[t].exited = true
				activeCount--
				result.ExitTime[t] = now
				result.Brake[t] = BrakeEvent{Time: rt[t].brakeTime, Position: rt[t].brakePos}
				if edgeHolder[rt[t].edge] == t {
					edgeHolder[rt[t].edge] = -1
				}
				if sec, ok := sectionOf[rt[t].edge]; ok && sectionHolder[sec] == t {
					sectionHolder[sec] = -1
				}
				vertexCrossed[edge.Target][t] = true
				result.VertexFreeTime[edge.Target] = now + headway
				continue
			}

			if stopVertex, ok := nextStopVertex(inst, t, rt[t].nextStopIdx); ok && stopVertex == edge.Target {
				stop, hasStop := scheduledStop(tt, t, rt[t].nextStopIdx)
				if hasStop {
					if now < stop.EarliestEntry {
						continue
					}
					if now > stop.LatestEntry && !opts.LateStopPossible {
						result.Feasible = false
						result.FailTrain = t
						result.FinalState = state
						return result, apperr.InconsistentSchedule("simulator", "stop window missed")
					}
				}
				rt[t].dwelling = true
				dwellStart := now
				if hasStop && dwellStart < stop.EarliestEntry {
					dwellStart = stop.EarliestEntry
				}
				minDwell := time.Duration(0)
				if hasStop {
					minDwell = stop.MinDwell
				}
				rt[t].dwellUntil = dwellStart + minDwell
				rt[t].speed = 0
				state = state.WithStopPosition(t, rt[t].distTraveled)
				continue
			}

			next := candidate
			if next >= 0 && canEnterSection(inst, net, edgeHolder, sectionHolder, sectionOf, tr, t, next) &&
				vertexCrossAllowed(ps, vertexCrossed, edge.Target, t) &&
				result.VertexFreeTime[edge.Target] <= now {
				if edgeHolder[rt[t].edge] == t {
					edgeHolder[rt[t].edge] = -1
				}
				if sec, ok := sectionOf[rt[t].edge]; ok && sectionHolder[sec] == t {
					sectionHolder[sec] = -1
				}
				if rt[t].committedIdx >= 0 && rt[t].committedIdx+1 < len(ps.TrainEdges[t]) && ps.TrainEdges[t][rt[t].committedIdx+1] == next {
					rt[t].committedIdx++
				} else {
					rt[t].committedIdx = -1
				}
				rt[t].edge = next
				rt[t].front = 0
				rt[t].rear = 0
				edgeHolder[next] = t
				if sec, ok := sectionOf[next]; ok {
					sectionHolder[sec] = t
				}
				vertexCrossed[edge.Target][t] = true
				result.VertexFreeTime[edge.Target] = now + headway
				state = state.WithTrainEdge(t, next)
			}
		}
		now += dt
	}

	if activeCount > 0 {
		stuck := make([]int, 0, activeCount)
		for t := range rt {
			if !rt[t].exited {
				stuck = append(stuck, t)
			}
		}
		result.Feasible = false
		if len(stuck) > 0 {
			result.FailTrain = stuck[0]
		}
		result.FinalState = state
		if opts.LateExitPossible {
			return result, apperr.ErrInfeasibleSchedule
		}
		return result, apperr.Deadlock(stuck)
	}

	result.Feasible = true
	result.FinalState = state
	return result, nil
}

// nextStopVertex returns the vertex train must still reach for its
// stopIdx'th scheduled stop, if one exists.
func nextStopVertex(inst *instance.Instance, train, stopIdx int) (int, bool) {
	verts := inst.PossibleStopVertices(train, stopIdx)
	if len(verts) == 0 {
		return 0, false
	}
	return verts[0], true
}

// scheduledStop returns the Stop definition for train's stopIdx'th stop, if
// its schedule reaches that far.
func scheduledStop(tt *timetable.Timetable, train, stopIdx int) (timetable.Stop, bool) {
	sched, ok := tt.ScheduleFor(train)
	if !ok || stopIdx < 0 || stopIdx >= len(sched.Stops) {
		return timetable.Stop{}, false
	}
	return sched.Stops[stopIdx], true
}

// edgeSource returns edge's source vertex, or -1 if edge doesn't exist.
func edgeSource(net *network.Network, edge int) int {
	e, err := net.Edge(edge)
	if err != nil {
		return -1
	}
	return e.Source
}

// isOkToEnterEdge reports whether edge currently holds no train.
func isOkToEnterEdge(edgeHolder []int, edge int) bool {
	if edge < 0 || edge >= len(edgeHolder) {
		return false
	}
	return edgeHolder[edge] == -1
}

// canEnterSection reports whether train may enter targetEdge, enforcing
// capacity at the TTD-section level (spec.md invariant: a TTD section holds
// at most one train, not just an edge). If the section is already held by
// another train, entry is refused unless the bidirectional reverse-edge
// safety exception applies: both trains are Bidirectional, the instance's
// overlap table classifies the pair as OverlapReverse, and targetEdge is
// literally the reverse of the edge the current holder occupies.
func canEnterSection(inst *instance.Instance, net *network.Network, edgeHolder, sectionHolder []int, sectionOf map[int]int, tr timetable.Train, train, targetEdge int) bool {
	if !isOkToEnterEdge(edgeHolder, targetEdge) {
		return false
	}
	sec, ok := sectionOf[targetEdge]
	if !ok {
		return true
	}
	holder := sectionHolder[sec]
	if holder == -1 || holder == train {
		return true
	}
	if !tr.Bidirectional {
		return false
	}
	holderTrain := inst.Timetable().Trains[holder]
	if !holderTrain.Bidirectional {
		return false
	}
	if !inst.Overlap(train, holder, instance.OverlapReverse) {
		return false
	}
	holderEdge := -1
	for e, h := range edgeHolder {
		if h == holder {
			holderEdge = e
			break
		}
	}
	if holderEdge < 0 {
		return false
	}
	rev, ok := net.ReverseEdge(holderEdge)
	return ok && rev == targetEdge
}

// vertexCrossAllowed enforces the commit order ps.VertexOrder[v] assigns
// at vertex v: a train with an assigned position in that order may cross
// only once every train committed ahead of it has already crossed.
func vertexCrossAllowed(ps partialstate.PartialState, vertexCrossed []map[int]bool, v, train int) bool {
	if v < 0 || v >= len(ps.VertexOrder) {
		return true
	}
	order := ps.VertexOrder[v]
	pos := -1
	for idx, tr := range order {
		if tr == train {
			pos = idx
			break
		}
	}
	if pos == -1 {
		return true
	}
	for idx := 0; idx < pos; idx++ {
		if !vertexCrossed[v][order[idx]] {
			return false
		}
	}
	return true
}

// getMAAndMaxV computes the movement authority (distance the train may
// still advance, from its current front position, before it must be able to
// stop) and the maximum speed allowed on the current edge. The MA lookahead
// never extends past candidate, the single edge the train is actually
// committed (or, absent a commitment, free-routed) to take next, so MA is
// capped at the end of whatever route has genuinely been committed in the
// PartialState, and shrinks as the train consumes the current edge.
//
// A negative candidate means the train has nothing left to protect against
// — either it is running off the end of the network on its exit edge, or
// its route genuinely dead-ends — so MA is left unconstrained rather than
// forcing a stop at an edge boundary that has nothing behind it. A candidate
// that exists but cannot currently be entered (held by another train, or its
// TTD section is occupied) is the one case that truly caps MA at the edge
// boundary: that is what a real movement authority protects against.
func getMAAndMaxV(net *network.Network, edgeHolder, sectionHolder []int, sectionOf map[int]int, e network.Edge, front float64, candidate int) (ma, maxV float64) {
	maxV = e.MaxSpeed
	remaining := e.Length - front
	if remaining < 0 {
		remaining = 0
	}
	if candidate < 0 {
		return math.Inf(1), maxV
	}
	free := isOkToEnterEdge(edgeHolder, candidate)
	if free {
		if sec, ok := sectionOf[candidate]; ok && sectionHolder[sec] != -1 {
			free = false
		}
	}
	if free {
		se, err := net.Edge(candidate)
		if err == nil {
			remaining += se.Length
		}
	}
	return remaining, maxV
}

// candidateNextEdge returns the single edge train should transition into
// once it reaches the end of current: the next entry in its committed
// route if the search has committed one, or a shortest-path-to-exit choice
// once the committed frontier has been exhausted.
func candidateNextEdge(net *network.Network, current, exit int, committed []int, committedIdx int) int {
	if committedIdx >= 0 && committedIdx+1 < len(committed) {
		return committed[committedIdx+1]
	}
	return nextEdgeTowardExit(net, current, exit)
}

// nextEdgeTowardExit picks the successor edge that lies on a shortest path
// toward the train's exit edge, falling back to the first valid successor.
func nextEdgeTowardExit(net *network.Network, current, exit int) int {
	succs := net.Successors(current)
	if len(succs) == 0 {
		return -1
	}
	if current == exit {
		return -1
	}
	best := -1
	bestDist := -1.0
	for _, s := range succs {
		dist, ok := net.ShortestPathFromEdgeTo(s, exit)
		if !ok {
			continue
		}
		if best == -1 || dist < bestDist {
			best = s
			bestDist = dist
		}
	}
	if best == -1 {
		return succs[0]
	}
	return best
}

func acquireRuntimes(n int) []trainRuntime {
	pooled := runtimePool.Get().([]trainRuntime)
	if cap(pooled) < n {
		pooled = make([]trainRuntime, n)
	} else {
		pooled = pooled[:n]
	}
	for t := range pooled {
		pooled[t] = trainRuntime{edge: partialstate.NoEdge, brakePos: noBrake, brakeTime: -1}
	}
	return pooled
}

func releaseRuntimes(rt []trainRuntime) {
	rt = rt[:0]
	runtimePool.Put(rt) //nolint:staticcheck // pool element reused by acquireRuntimes
}
