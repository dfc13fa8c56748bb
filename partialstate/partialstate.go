// Package partialstate implements the value-semantic, hashable search state
// consumed by the greedy simulator and A* solver. A PartialState holds four
// parallel sequences keyed by train, TTD section, and vertex — arena-style
// integer indices, never pointers, so the type stays trivially comparable
// and cheap to hash for the A* closed set. Each entry is itself an ordered
// sequence (the full commitment history, not just its current tail), so two
// states that arrived at the same "current" values by different commitment
// paths are never mistaken for the same search node.
package partialstate

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// NoEdge marks a train that has not yet entered the network (an empty
// TrainEdges[t]).
const NoEdge = -1

// PartialState is an immutable snapshot of every train's committed route
// prefix, the commit order on every TTD section, the commit order at every
// vertex, and each train's committed stop-position progress. With* methods
// return a new value; nothing here is ever mutated in place.
type PartialState struct {
	// TrainEdges[t] is the ordered sequence of edges train t has been
	// committed to, from its entry edge up to the search frontier. The
	// simulator must follow this prefix exactly; it may only free-route
	// past its end.
	TrainEdges [][]int
	// TTDOrder[ttd] is the ordered sequence of train indices committed to
	// enter TTD section ttd, in commit order (first entry holds priority).
	TTDOrder [][]int
	// VertexOrder[v] is the ordered sequence of train indices committed to
	// cross vertex v, in commit order.
	VertexOrder [][]int
	// StopPositions[t] is the increasing sequence of along-route distances
	// (meters from entry) at which train t has committed to make its
	// scheduled stops, one entry per stop reached so far.
	StopPositions [][]float64
}

// New returns a PartialState for numTrains trains, numTTD TTD sections and
// numVertices vertices, with every sequence empty.
func New(numTrains, numTTD, numVertices int) PartialState {
	return PartialState{
		TrainEdges:    make([][]int, numTrains),
		TTDOrder:      make([][]int, numTTD),
		VertexOrder:   make([][]int, numVertices),
		StopPositions: make([][]float64, numTrains),
	}
}

// CurrentEdge returns the edge train t currently occupies (the last entry
// of its committed route), or NoEdge if it has not yet entered.
func (ps PartialState) CurrentEdge(train int) int {
	if train < 0 || train >= len(ps.TrainEdges) {
		return NoEdge
	}
	seq := ps.TrainEdges[train]
	if len(seq) == 0 {
		return NoEdge
	}
	return seq[len(seq)-1]
}

// TTDHolder returns the train currently holding priority on ttd (the last
// committed entry), or -1 if none.
func (ps PartialState) TTDHolder(ttd int) int {
	if ttd < 0 || ttd >= len(ps.TTDOrder) {
		return -1
	}
	seq := ps.TTDOrder[ttd]
	if len(seq) == 0 {
		return -1
	}
	return seq[len(seq)-1]
}

// VertexHolder returns the train currently holding priority at vertex v (the
// last committed entry), or -1 if none.
func (ps PartialState) VertexHolder(v int) int {
	if v < 0 || v >= len(ps.VertexOrder) {
		return -1
	}
	seq := ps.VertexOrder[v]
	if len(seq) == 0 {
		return -1
	}
	return seq[len(seq)-1]
}

// clone returns a deep copy so With* methods never alias the receiver's
// backing slices-of-slices.
func (ps PartialState) clone() PartialState {
	out := PartialState{
		TrainEdges:    make([][]int, len(ps.TrainEdges)),
		TTDOrder:      make([][]int, len(ps.TTDOrder)),
		VertexOrder:   make([][]int, len(ps.VertexOrder)),
		StopPositions: make([][]float64, len(ps.StopPositions)),
	}
	for i, seq := range ps.TrainEdges {
		out.TrainEdges[i] = append([]int(nil), seq...)
	}
	for i, seq := range ps.TTDOrder {
		out.TTDOrder[i] = append([]int(nil), seq...)
	}
	for i, seq := range ps.VertexOrder {
		out.VertexOrder[i] = append([]int(nil), seq...)
	}
	for i, seq := range ps.StopPositions {
		out.StopPositions[i] = append([]float64(nil), seq...)
	}
	return out
}

// WithTrainEdge returns a copy with edge appended to train's committed route.
func (ps PartialState) WithTrainEdge(train, edge int) PartialState {
	out := ps.clone()
	out.TrainEdges[train] = append(out.TrainEdges[train], edge)
	return out
}

// WithTTDOrder returns a copy with train appended to ttd's commit order,
// i.e. train becomes the new priority holder.
func (ps PartialState) WithTTDOrder(ttd, train int) PartialState {
	out := ps.clone()
	out.TTDOrder[ttd] = append(out.TTDOrder[ttd], train)
	return out
}

// WithVertexOrder returns a copy with train appended to vertex's commit
// order.
func (ps PartialState) WithVertexOrder(vertex, train int) PartialState {
	out := ps.clone()
	out.VertexOrder[vertex] = append(out.VertexOrder[vertex], train)
	return out
}

// WithStopPosition returns a copy with distance appended to train's
// committed stop-position sequence.
func (ps PartialState) WithStopPosition(train int, distance float64) PartialState {
	out := ps.clone()
	out.StopPositions[train] = append(out.StopPositions[train], distance)
	return out
}

// Equal reports whether two states hold identical sequences in every field.
func (ps PartialState) Equal(other PartialState) bool {
	if len(ps.TrainEdges) != len(other.TrainEdges) ||
		len(ps.TTDOrder) != len(other.TTDOrder) ||
		len(ps.VertexOrder) != len(other.VertexOrder) ||
		len(ps.StopPositions) != len(other.StopPositions) {
		return false
	}
	for i := range ps.TrainEdges {
		if !intSliceEqual(ps.TrainEdges[i], other.TrainEdges[i]) {
			return false
		}
	}
	for i := range ps.TTDOrder {
		if !intSliceEqual(ps.TTDOrder[i], other.TTDOrder[i]) {
			return false
		}
	}
	for i := range ps.VertexOrder {
		if !intSliceEqual(ps.VertexOrder[i], other.VertexOrder[i]) {
			return false
		}
	}
	for i := range ps.StopPositions {
		if !floatSliceEqual(ps.StopPositions[i], other.StopPositions[i]) {
			return false
		}
	}
	return true
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func floatSliceEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Hash returns a deterministic digest of the state, used as the A* closed
// set key. Every nested sequence is length-prefixed before its elements are
// written, so two states whose flattened bytes would otherwise collide
// (e.g. one train committed to [1,23] vs two trains committed to [1] and
// [23]) never hash identically.
func (ps PartialState) Hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeInts := func(seqs [][]int) {
		writeUint(uint64(len(seqs)))
		for _, seq := range seqs {
			writeUint(uint64(len(seq)))
			for _, v := range seq {
				writeUint(uint64(int64(v)))
			}
		}
	}
	writeFloats := func(seqs [][]float64) {
		writeUint(uint64(len(seqs)))
		for _, seq := range seqs {
			writeUint(uint64(len(seq)))
			for _, v := range seq {
				writeUint(math.Float64bits(v))
			}
		}
	}
	writeInts(ps.TrainEdges)
	writeInts(ps.TTDOrder)
	writeInts(ps.VertexOrder)
	writeFloats(ps.StopPositions)
	return h.Sum64()
}
