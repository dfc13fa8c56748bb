// Package astar implements the branching search over PartialState space:
// each node's cost g(S) comes from running the greedy simulator, its
// heuristic h(S) is pluggable, and successor states are generated by an
// ExpansionStrategy. The open set is a binary min-heap ordered on f(S); the
// closed set is a hash set keyed by PartialState.Hash().
package astar

import (
	"container/heap"
	"context"
	"sync"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/ts2/mbsolve/apperr"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/simulator"
)

// evalOut is one worker's result for a single open-set node: the simulator
// verdict plus the successor states to expand if it wasn't a goal.
type evalOut struct {
	node *openNode
	res  *simulator.Result
	err  error
	succ []partialstate.PartialState
}

// Heuristic estimates the remaining cost to a goal state. Zero always
// returns 0 (A* degrades to uniform-cost search, useful for correctness
// comparisons); Simple returns a shortest-path lower bound that ignores
// braking.
type Heuristic func(inst *instance.Instance, s partialstate.PartialState) time.Duration

// Zero is the trivial admissible heuristic.
func Zero(*instance.Instance, partialstate.PartialState) time.Duration { return 0 }

// Simple estimates remaining time as the sum, over trains not yet exited,
// of the shortest-path time from their current edge to their exit edge —
// an admissible lower bound since it ignores braking and conflicts that can
// only slow trains further.
func Simple(inst *instance.Instance, s partialstate.PartialState) time.Duration {
	tt := inst.Timetable()
	var total float64
	for t := range s.TrainEdges {
		edge := s.CurrentEdge(t)
		if edge == partialstate.NoEdge {
			continue
		}
		if t >= len(tt.Trains) {
			continue
		}
		exit := tt.Trains[t].ExitEdge
		if d, ok := inst.ShortestPath(edge, exit); ok {
			total += d
		}
	}
	return time.Duration(total * float64(time.Second))
}

// ExpansionStrategy generates successor states from a given state. Two
// strategies satisfy this interface as siblings, not subclasses of some
// abstract solver base: SingleEdge advances one train by one edge at a
// time; NextTTD advances a train to the end of its current TTD section.
type ExpansionStrategy interface {
	Successors(inst *instance.Instance, s partialstate.PartialState) []partialstate.PartialState
}

// edgeToSectionMap returns, for every edge that sits in some unbreakable
// (TTD) section, the index of that section.
func edgeToSectionMap(inst *instance.Instance) map[int]int {
	sections := inst.Network().UnbreakableSections()
	m := make(map[int]int, inst.Network().NumEdges())
	for si, sec := range sections {
		for _, e := range sec.Edges {
			m[e] = si
		}
	}
	return m
}

// commitEdge returns the successor state for train entering next from cur,
// also committing train's priority on next's TTD section (if any) and on
// the vertex it crosses to get there. simulator.Simulate enforces the vertex
// order; the TTD order is kept in the state (and so in its hash) but the
// simulator does not read it.
func commitEdge(inst *instance.Instance, s partialstate.PartialState, edgeToSection map[int]int, t, cur, next int) partialstate.PartialState {
	succ := s.WithTrainEdge(t, next)
	if sec, ok := edgeToSection[next]; ok {
		succ = succ.WithTTDOrder(sec, t)
	}
	net := inst.Network()
	if cur >= 0 {
		if e, err := net.Edge(cur); err == nil {
			succ = succ.WithVertexOrder(e.Target, t)
		}
	} else if t < len(inst.Timetable().Trains) {
		if e, err := net.Edge(next); err == nil {
			succ = succ.WithVertexOrder(e.Source, t)
		}
	}
	return succ
}

// entrySuccessor produces the successor that commits a not-yet-entered
// train to its fixed entry edge, so it participates in TTD/vertex order
// commitments from the start rather than entering the network for free.
func entrySuccessor(inst *instance.Instance, s partialstate.PartialState, edgeToSection map[int]int, t int) partialstate.PartialState {
	entry := inst.Timetable().Trains[t].EntryEdge
	return commitEdge(inst, s, edgeToSection, t, partialstate.NoEdge, entry)
}

// SingleEdge expands a state by moving exactly one train to each of its
// valid next edges — or, for a train that has not yet entered, committing
// it to its entry edge.
type SingleEdge struct{}

// Successors implements ExpansionStrategy.
func (SingleEdge) Successors(inst *instance.Instance, s partialstate.PartialState) []partialstate.PartialState {
	net := inst.Network()
	edgeToSection := edgeToSectionMap(inst)
	var out []partialstate.PartialState
	for t := range s.TrainEdges {
		cur := s.CurrentEdge(t)
		if cur == partialstate.NoEdge {
			if t < len(inst.Timetable().Trains) {
				out = append(out, entrySuccessor(inst, s, edgeToSection, t))
			}
			continue
		}
		for _, next := range net.Successors(cur) {
			out = append(out, commitEdge(inst, s, edgeToSection, t, cur, next))
		}
	}
	return out
}

// NextTTD expands a state by moving a train to the first edge past the end
// of its current unbreakable (TTD) section, producing a shallower search
// tree on TTD-sectioned networks than SingleEdge.
type NextTTD struct{}

// Successors implements ExpansionStrategy.
func (NextTTD) Successors(inst *instance.Instance, s partialstate.PartialState) []partialstate.PartialState {
	net := inst.Network()
	sections := net.UnbreakableSections()
	edgeToSection := edgeToSectionMap(inst)

	var out []partialstate.PartialState
	for t := range s.TrainEdges {
		cur := s.CurrentEdge(t)
		if cur == partialstate.NoEdge {
			if t < len(inst.Timetable().Trains) {
				out = append(out, entrySuccessor(inst, s, edgeToSection, t))
			}
			continue
		}
		sec, inSection := edgeToSection[cur]
		lastEdge := cur
		if inSection {
			lastEdge = sections[sec].Edges[len(sections[sec].Edges)-1]
		}
		for _, next := range net.Successors(lastEdge) {
			out = append(out, commitEdge(inst, s, edgeToSection, t, lastEdge, next))
		}
	}
	return out
}

// Options tunes the search.
type Options struct {
	Heuristic                Heuristic
	Strategy                 ExpansionStrategy
	DT                       time.Duration
	ConsiderEarliestExit     bool
	LimitSpeedByLeavingEdges bool
	Timeout                  time.Duration
	ParallelWorkers          int
}

// DefaultOptions returns Simple/NextTTD defaults, per the design's
// resolution of the heuristic/strategy open questions.
func DefaultOptions() Options {
	return Options{
		Heuristic: Simple,
		Strategy:  NextTTD{},
		DT:        time.Second,
		Timeout:   0,
	}
}

// SolverResult is the outcome of a Solve/SolveParallel call.
type SolverResult struct {
	Goal                 *partialstate.PartialState
	GoalResult           *simulator.Result
	Feasible             bool
	NodesExpanded        int
	SimulatorInvocations int
	TimedOut             bool
}

// Solver runs A* over a fixed Instance.
type Solver struct {
	Inst *instance.Instance
	Opts Options
}

// New returns a Solver for inst with opts; zero-value Heuristic/Strategy
// fields are filled with DefaultOptions' choices.
func New(inst *instance.Instance, opts Options) *Solver {
	if opts.Heuristic == nil {
		opts.Heuristic = Simple
	}
	if opts.Strategy == nil {
		opts.Strategy = NextTTD{}
	}
	if opts.DT <= 0 {
		opts.DT = time.Second
	}
	return &Solver{Inst: inst, Opts: opts}
}

type openNode struct {
	state partialstate.PartialState
	g, f  time.Duration
	idx   int
}

type openHeap []*openNode

func (h openHeap) Len() int            { return len(h) }
func (h openHeap) Less(i, j int) bool  { return h[i].f < h[j].f }
func (h openHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].idx = i; h[j].idx = j }
func (h *openHeap) Push(x interface{}) { n := x.(*openNode); n.idx = len(*h); *h = append(*h, n) }
func (h *openHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

func (s *Solver) isGoal(res *simulator.Result) bool {
	return res != nil && res.Feasible
}

// Solve runs a single-goroutine A* search, bounded by ctx's deadline if
// any, checked at every pop.
func (s *Solver) Solve(ctx context.Context, start partialstate.PartialState) (*SolverResult, error) {
	open := &openHeap{}
	heap.Init(open)
	startRes, err := simulator.Simulate(s.Inst, start, s.Opts.DT)
	invocations := 1
	g0 := time.Duration(0)
	if err == nil && startRes != nil {
		g0 = maxExitTime(startRes)
	}
	h0 := s.Opts.Heuristic(s.Inst, start)
	heap.Push(open, &openNode{state: start, g: g0, f: g0 + h0})

	closed := make(map[uint64]bool)
	result := &SolverResult{NodesExpanded: 0, SimulatorInvocations: invocations}

	for open.Len() > 0 {
		select {
		case <-ctx.Done():
			result.TimedOut = true
			return result, apperr.ErrTimeout
		default:
		}

		cur := heap.Pop(open).(*openNode)
		h := cur.state.Hash()
		if closed[h] {
			continue
		}
		closed[h] = true
		result.NodesExpanded++

		res, simErr := simulator.Simulate(s.Inst, cur.state, s.Opts.DT)
		result.SimulatorInvocations++
		if simErr == nil && s.isGoal(res) {
			goalState := cur.state
			result.Goal = &goalState
			result.GoalResult = res
			result.Feasible = true
			return result, nil
		}

		for _, succ := range s.Opts.Strategy.Successors(s.Inst, cur.state) {
			sh := succ.Hash()
			if closed[sh] {
				continue
			}
			g := cur.g + s.Opts.DT
			hcost := s.Opts.Heuristic(s.Inst, succ)
			heap.Push(open, &openNode{state: succ, g: g, f: g + hcost})
		}
	}

	result.Feasible = false
	return result, apperr.ErrInfeasibleSchedule
}

// SolveParallel fans candidate pops out to a bounded worker pool: each
// worker runs simulator.Simulate independently (Simulate takes no shared
// mutable state, so this is safe), and a single mutex guards the shared
// open/closed containers exactly as the concurrency model specifies — never
// a lock per node.
func (s *Solver) SolveParallel(ctx context.Context, start partialstate.PartialState, workers int) (*SolverResult, error) {
	if workers <= 0 {
		workers = s.Opts.ParallelWorkers
	}
	if workers <= 0 {
		workers = 4
	}

	var mu sync.Mutex
	open := &openHeap{}
	heap.Init(open)
	closed := make(map[uint64]bool)

	h0 := s.Opts.Heuristic(s.Inst, start)
	heap.Push(open, &openNode{state: start, g: 0, f: h0})

	result := &SolverResult{}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			result.TimedOut = true
			mu.Unlock()
			return result, apperr.ErrTimeout
		default:
		}

		mu.Lock()
		batch := make([]*openNode, 0, workers)
		for open.Len() > 0 && len(batch) < workers {
			n := heap.Pop(open).(*openNode)
			if closed[n.state.Hash()] {
				continue
			}
			batch = append(batch, n)
		}
		mu.Unlock()

		if len(batch) == 0 {
			if open.Len() == 0 {
				result.Feasible = false
				return result, apperr.ErrInfeasibleSchedule
			}
			continue
		}

		// Each batch member gets its own output channel; channerics.Merge
		// fans them back into a single stream for this loop to drain,
		// the same worker/merge split the reinforcement learner in the
		// example pack uses for its per-episode agent workers. errgroup
		// bounds and supervises the workers and surfaces the first error.
		done := ctx.Done()
		chans := make([]<-chan evalOut, len(batch))
		g, _ := errgroup.WithContext(ctx)
		for i, n := range batch {
			n := n
			out := make(chan evalOut, 1)
			chans[i] = out
			g.Go(func() error {
				defer close(out)
				res, err := simulator.Simulate(s.Inst, n.state, s.Opts.DT)
				var succs []partialstate.PartialState
				if !(err == nil && res != nil && res.Feasible) {
					succs = s.Opts.Strategy.Successors(s.Inst, n.state)
				}
				select {
				case out <- evalOut{node: n, res: res, err: err, succ: succs}:
				case <-done:
				}
				return nil
			})
		}

		var outs []evalOut
		for o := range channerics.Merge(done, chans...) {
			outs = append(outs, o)
		}
		if err := g.Wait(); err != nil {
			return result, err
		}

		mu.Lock()
		for _, o := range outs {
			h := o.node.state.Hash()
			if closed[h] {
				continue
			}
			closed[h] = true
			result.NodesExpanded++
			result.SimulatorInvocations++

			if o.err == nil && o.res != nil && o.res.Feasible {
				goalState := o.node.state
				result.Goal = &goalState
				result.GoalResult = o.res
				result.Feasible = true
				mu.Unlock()
				return result, nil
			}
			for _, succ := range o.succ {
				sh := succ.Hash()
				if closed[sh] {
					continue
				}
				hc := s.Opts.Heuristic(s.Inst, succ)
				heap.Push(open, &openNode{state: succ, g: o.node.g + s.Opts.DT, f: o.node.g + s.Opts.DT + hc})
			}
		}
		mu.Unlock()
	}
}

func maxExitTime(res *simulator.Result) time.Duration {
	var maxT time.Duration
	for _, t := range res.ExitTime {
		if t > maxT {
			maxT = t
		}
	}
	return maxT
}
