// Package network implements the railway graph: vertices, edges, the
// successor relation between edges, and the shortest-path / TTD-partition
// queries built on top of it. Vertices and edges live in flat slices;
// every cross-reference is an int index into one of those slices, never a
// pointer, so the graph's natural cycles never fight the garbage collector
// and a Network can be shared read-only across goroutines without locking.
package network

import (
	"container/heap"
	"fmt"

	"github.com/ts2/mbsolve/apperr"
)

// VertexType classifies a vertex by which kind of boundary it sits on.
// A vertex may be a TTD (train detection) border, a VSS (virtual
// sub-section) border, neither, or both at once.
type VertexType int

const (
	VertexNoBorder VertexType = iota
	VertexVSS
	VertexTTD
	VertexNoBorderVSS
)

func (t VertexType) String() string {
	switch t {
	case VertexNoBorder:
		return "NoBorder"
	case VertexVSS:
		return "VSS"
	case VertexTTD:
		return "TTD"
	case VertexNoBorderVSS:
		return "NoBorderVSS"
	default:
		return "Unknown"
	}
}

// Vertex is a node in the railway graph.
type Vertex struct {
	Name string
	Type VertexType
}

// Edge is a directed track segment between two vertices.
type Edge struct {
	Source         int
	Target         int
	Length         float64
	MaxSpeed       float64
	Breakable      bool
	MinBlockLength float64
}

// Network is the railway graph: vertices, edges, and the successor relation
// between edges (which out-edges may follow a given in-edge at its target
// vertex).
type Network struct {
	vertices   []Vertex
	edges      []Edge
	successors [][]int // successors[e] = out-edges reachable after edge e
	nameToIdx  map[string]int
	edgeIdx    map[[2]int]int
}

// New returns an empty, mutable Network. Use the Add* methods to build it,
// then treat the result as immutable once handed to an Instance.
func New() *Network {
	return &Network{
		nameToIdx: make(map[string]int),
		edgeIdx:   make(map[[2]int]int),
	}
}

// AddVertex appends a new vertex and returns its index.
func (n *Network) AddVertex(name string, vtype VertexType) int {
	idx := len(n.vertices)
	n.vertices = append(n.vertices, Vertex{Name: name, Type: vtype})
	n.nameToIdx[name] = idx
	return idx
}

// AddEdge appends a new directed edge between two vertex indices and
// returns its index.
func (n *Network) AddEdge(source, target int, length, maxSpeed float64, breakable bool, minBlockLength float64) (int, error) {
	if source < 0 || source >= len(n.vertices) || target < 0 || target >= len(n.vertices) {
		return 0, apperr.InvalidInput("network", "edge endpoint out of range")
	}
	idx := len(n.edges)
	n.edges = append(n.edges, Edge{
		Source:         source,
		Target:         target,
		Length:         length,
		MaxSpeed:       maxSpeed,
		Breakable:      breakable,
		MinBlockLength: minBlockLength,
	})
	n.successors = append(n.successors, nil)
	n.edgeIdx[[2]int{source, target}] = idx
	return idx, nil
}

// AddSuccessor records that edgeOut may follow edgeIn.
func (n *Network) AddSuccessor(edgeIn, edgeOut int) error {
	if edgeIn < 0 || edgeIn >= len(n.edges) || edgeOut < 0 || edgeOut >= len(n.edges) {
		return apperr.InvalidInput("network", "successor edge out of range")
	}
	n.successors[edgeIn] = append(n.successors[edgeIn], edgeOut)
	return nil
}

// NumVertices returns the vertex count.
func (n *Network) NumVertices() int { return len(n.vertices) }

// NumEdges returns the edge count.
func (n *Network) NumEdges() int { return len(n.edges) }

// Vertex returns the vertex at index, or an error if out of range.
func (n *Network) Vertex(index int) (Vertex, error) {
	if index < 0 || index >= len(n.vertices) {
		return Vertex{}, apperr.NotExistent("vertex", fmt.Sprint(index))
	}
	return n.vertices[index], nil
}

// VertexIndex resolves a vertex name to its index.
func (n *Network) VertexIndex(name string) (int, error) {
	idx, ok := n.nameToIdx[name]
	if !ok {
		return 0, apperr.NotExistent("vertex", name)
	}
	return idx, nil
}

// Edge returns the edge at index, or an error if out of range.
func (n *Network) Edge(index int) (Edge, error) {
	if index < 0 || index >= len(n.edges) {
		return Edge{}, apperr.NotExistent("edge", fmt.Sprint(index))
	}
	return n.edges[index], nil
}

// EdgeIndex resolves a (source, target) vertex pair to an edge index.
func (n *Network) EdgeIndex(source, target int) (int, error) {
	idx, ok := n.edgeIdx[[2]int{source, target}]
	if !ok {
		return 0, apperr.NotExistent("edge", fmt.Sprintf("%d->%d", source, target))
	}
	return idx, nil
}

// Successors returns the out-edges that may validly follow edge.
func (n *Network) Successors(edge int) []int {
	if edge < 0 || edge >= len(n.successors) {
		return nil
	}
	return n.successors[edge]
}

// IsValidSuccessor reports whether e1 may directly follow e0.
func (n *Network) IsValidSuccessor(e0, e1 int) bool {
	for _, s := range n.Successors(e0) {
		if s == e1 {
			return true
		}
	}
	return false
}

// OutEdges returns the indices of edges whose source is vertex.
func (n *Network) OutEdges(vertex int) []int {
	var out []int
	for i, e := range n.edges {
		if e.Source == vertex {
			out = append(out, i)
		}
	}
	return out
}

// InEdges returns the indices of edges whose target is vertex.
func (n *Network) InEdges(vertex int) []int {
	var in []int
	for i, e := range n.edges {
		if e.Target == vertex {
			in = append(in, i)
		}
	}
	return in
}

// ReverseEdge returns the index of the edge running target->source for the
// given edge, if one exists.
func (n *Network) ReverseEdge(edge int) (int, bool) {
	e, err := n.Edge(edge)
	if err != nil {
		return 0, false
	}
	idx, err := n.EdgeIndex(e.Target, e.Source)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// weight is the time cost (seconds at max speed) of an edge, the quantity
// shortest paths are minimized over.
func (n *Network) weight(edge int) float64 {
	e := n.edges[edge]
	if e.MaxSpeed <= 0 {
		return n.edges[edge].Length
	}
	return e.Length / e.MaxSpeed
}

// pqItem is a line-graph node (a railway edge) ordered by tentative
// distance in the Dijkstra priority queue.
type pqItem struct {
	edge int
	dist float64
	idx  int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i]; pq[i].idx = i; pq[j].idx = j }
func (pq *priorityQueue) Push(x interface{}) {
	it := x.(*pqItem)
	it.idx = len(*pq)
	*pq = append(*pq, it)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}

// ShortestPathFromEdge runs Dijkstra over the edge-successor line graph
// starting from startEdge, returning the minimum time-cost to reach every
// other edge. Unreachable edges are omitted from the result map.
func (n *Network) ShortestPathFromEdge(startEdge int) (map[int]float64, error) {
	if startEdge < 0 || startEdge >= len(n.edges) {
		return nil, apperr.NotExistent("edge", fmt.Sprint(startEdge))
	}
	dist := make(map[int]float64, len(n.edges))
	dist[startEdge] = 0

	pq := &priorityQueue{{edge: startEdge, dist: 0}}
	heap.Init(pq)
	visited := make(map[int]bool, len(n.edges))

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pqItem)
		if visited[cur.edge] {
			continue
		}
		visited[cur.edge] = true
		for _, succ := range n.Successors(cur.edge) {
			nd := cur.dist + n.weight(succ)
			if old, ok := dist[succ]; !ok || nd < old {
				dist[succ] = nd
				heap.Push(pq, &pqItem{edge: succ, dist: nd})
			}
		}
	}
	return dist, nil
}

// ShortestPathFromEdgeTo returns the minimum time-cost from startEdge to
// toEdge, or (0, false) if toEdge is unreachable.
func (n *Network) ShortestPathFromEdgeTo(startEdge, toEdge int) (float64, bool) {
	dist, err := n.ShortestPathFromEdge(startEdge)
	if err != nil {
		return 0, false
	}
	d, ok := dist[toEdge]
	return d, ok
}

// ShortestPathBetweenSets returns the minimum time-cost path from any edge
// in `from` to any edge in `to`, or (0, false) if none of the targets are
// reachable from any of the sources.
func (n *Network) ShortestPathBetweenSets(from, to []int) (float64, bool) {
	best := 0.0
	found := false
	toSet := make(map[int]bool, len(to))
	for _, e := range to {
		toSet[e] = true
	}
	for _, start := range from {
		dist, err := n.ShortestPathFromEdge(start)
		if err != nil {
			continue
		}
		for e := range toSet {
			if d, ok := dist[e]; ok {
				if !found || d < best {
					best = d
					found = true
				}
			}
		}
	}
	return best, found
}

// AllPathsOfLengthStartingInVertex enumerates every simple path (no repeated
// vertices) of length at least minLen (in meters) beginning at startVertex,
// following the successor relation. Each returned path is a slice of edge
// indices. There is no pack library for bounded simple-path enumeration, so
// this is a direct DFS.
func (n *Network) AllPathsOfLengthStartingInVertex(startVertex int, minLen float64) [][]int {
	var out [][]int
	for _, startEdge := range n.OutEdges(startVertex) {
		visited := map[int]bool{startVertex: true}
		n.dfsPaths(startEdge, []int{startEdge}, n.edges[startEdge].Length, minLen, visited, &out)
	}
	return out
}

func (n *Network) dfsPaths(edge int, path []int, lenSoFar, minLen float64, visitedVertices map[int]bool, out *[][]int) {
	target := n.edges[edge].Target
	if lenSoFar >= minLen {
		cp := make([]int, len(path))
		copy(cp, path)
		*out = append(*out, cp)
	}
	if visitedVertices[target] {
		return
	}
	visitedVertices[target] = true
	defer delete(visitedVertices, target)

	for _, succ := range n.Successors(edge) {
		nextTarget := n.edges[succ].Target
		if visitedVertices[nextTarget] {
			continue
		}
		n.dfsPaths(succ, append(path, succ), lenSoFar+n.edges[succ].Length, minLen, visitedVertices, out)
	}
}

// UnbreakableSection is a run of edges with Breakable == false linked by the
// successor relation; these are the train-detection sections VSS boundaries
// can never subdivide. Vertex types are not consulted when building them.
type UnbreakableSection struct {
	Edges    []int
	FromVert int
	ToVert   int
}

// UnbreakableSections partitions all unbreakable edges into runs, by DFS
// along successors over the breakable==false subgraph, starting from each
// not-yet-visited unbreakable edge in index order. Successors only are
// followed, so an edge whose run was already started from a higher-index
// successor begins a separate section rather than joining that one.
func (n *Network) UnbreakableSections() []UnbreakableSection {
	visited := make([]bool, len(n.edges))
	var sections []UnbreakableSection

	for i, e := range n.edges {
		if visited[i] || e.Breakable {
			continue
		}
		var run []int
		stack := []int{i}
		visited[i] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			run = append(run, cur)
			for _, succ := range n.Successors(cur) {
				if !visited[succ] && !n.edges[succ].Breakable {
					visited[succ] = true
					stack = append(stack, succ)
				}
			}
		}
		sections = append(sections, UnbreakableSection{
			Edges:    run,
			FromVert: n.edges[run[0]].Source,
			ToVert:   n.edges[run[len(run)-1]].Target,
		})
	}
	return sections
}

// CheckConsistency validates the four InvalidGraph conditions: every edge
// endpoint must reference an existing vertex and have non-negative length;
// successors must reference existing edges whose source matches the
// predecessor's target; no non-border vertex (VertexNoBorder) may have
// three or more distinct neighbors, since a plain interior vertex models a
// single physical track with at most one predecessor and one successor; a
// breakable edge must carry a positive MinBlockLength (the VSS granularity
// it will be subdivided at); and a reverse edge, where one exists, must
// match its forward edge's length and breakability.
func (n *Network) CheckConsistency() error {
	for i, e := range n.edges {
		if e.Source < 0 || e.Source >= len(n.vertices) {
			return apperr.InvalidGraph("network", fmt.Sprintf("edge %d has invalid source", i))
		}
		if e.Target < 0 || e.Target >= len(n.vertices) {
			return apperr.InvalidGraph("network", fmt.Sprintf("edge %d has invalid target", i))
		}
		if e.Length < 0 {
			return apperr.InvalidGraph("network", fmt.Sprintf("edge %d has negative length", i))
		}
		if e.Breakable && e.MinBlockLength <= 0 {
			return apperr.InvalidGraph("network", fmt.Sprintf("edge %d is breakable but has non-positive MinBlockLength", i))
		}
		for _, succ := range n.successors[i] {
			if succ < 0 || succ >= len(n.edges) {
				return apperr.InvalidGraph("network", fmt.Sprintf("edge %d has invalid successor %d", i, succ))
			}
			if n.edges[succ].Source != e.Target {
				return apperr.InvalidGraph("network", fmt.Sprintf("edge %d -> %d does not share a vertex", i, succ))
			}
		}
		if rev, ok := n.ReverseEdge(i); ok {
			re := n.edges[rev]
			if re.Length != e.Length {
				return apperr.InvalidGraph("network", fmt.Sprintf("edge %d and its reverse %d have mismatched length", i, rev))
			}
			if re.Breakable != e.Breakable {
				return apperr.InvalidGraph("network", fmt.Sprintf("edge %d and its reverse %d disagree on breakability", i, rev))
			}
		}
	}

	neighbors := make([]map[int]bool, len(n.vertices))
	for v := range neighbors {
		neighbors[v] = make(map[int]bool)
	}
	for _, e := range n.edges {
		neighbors[e.Source][e.Target] = true
		neighbors[e.Target][e.Source] = true
	}
	for v, vtx := range n.vertices {
		if vtx.Type == VertexNoBorder && len(neighbors[v]) >= 3 {
			return apperr.InvalidGraph("network", fmt.Sprintf("vertex %d is a non-border vertex with %d neighbors", v, len(neighbors[v])))
		}
	}
	return nil
}
