package network

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildLinear(t *testing.T) *Network {
	t.Helper()
	n := New()
	a := n.AddVertex("A", VertexTTD)
	b := n.AddVertex("B", VertexNoBorder)
	c := n.AddVertex("C", VertexTTD)
	e1, err := n.AddEdge(a, b, 100, 10, false, 0)
	require.NoError(t, err)
	e2, err := n.AddEdge(b, c, 100, 10, false, 0)
	require.NoError(t, err)
	require.NoError(t, n.AddSuccessor(e1, e2))
	return n
}

func TestAddVertexAndEdge(t *testing.T) {
	n := buildLinear(t)
	require.Equal(t, 3, n.NumVertices())
	require.Equal(t, 2, n.NumEdges())
}

func TestSuccessorsAndValidSuccessor(t *testing.T) {
	n := buildLinear(t)
	succs := n.Successors(0)
	require.Equal(t, []int{1}, succs)
	require.True(t, n.IsValidSuccessor(0, 1))
	require.False(t, n.IsValidSuccessor(1, 0))
}

func TestShortestPathFromEdge(t *testing.T) {
	n := buildLinear(t)
	dist, err := n.ShortestPathFromEdge(0)
	require.NoError(t, err)
	require.InDelta(t, 0.0, dist[0], 1e-9)
	require.InDelta(t, 10.0, dist[1], 1e-9) // 100m / 10 m/s
}

func TestShortestPathBetweenSets(t *testing.T) {
	n := buildLinear(t)
	d, ok := n.ShortestPathBetweenSets([]int{0}, []int{1})
	require.True(t, ok)
	require.InDelta(t, 10.0, d, 1e-9)
}

func TestUnbreakableSections(t *testing.T) {
	n := buildLinear(t)
	sections := n.UnbreakableSections()
	require.Len(t, sections, 1)
	require.ElementsMatch(t, []int{0, 1}, sections[0].Edges)
}

func TestCheckConsistencyDetectsBadSuccessor(t *testing.T) {
	n := New()
	a := n.AddVertex("A", VertexTTD)
	b := n.AddVertex("B", VertexTTD)
	c := n.AddVertex("C", VertexTTD)
	e1, err := n.AddEdge(a, b, 10, 5, true, 0)
	require.NoError(t, err)
	e2, err := n.AddEdge(c, b, 10, 5, true, 0) // e2 source isn't e1's target
	require.NoError(t, err)
	require.NoError(t, n.AddSuccessor(e1, e2))
	require.Error(t, n.CheckConsistency())
}

func TestReverseEdge(t *testing.T) {
	n := New()
	a := n.AddVertex("A", VertexNoBorder)
	b := n.AddVertex("B", VertexNoBorder)
	fwd, err := n.AddEdge(a, b, 10, 5, true, 0)
	require.NoError(t, err)
	bwd, err := n.AddEdge(b, a, 10, 5, true, 0)
	require.NoError(t, err)
	rev, ok := n.ReverseEdge(fwd)
	require.True(t, ok)
	require.Equal(t, bwd, rev)
}

func TestAllPathsOfLengthStartingInVertex(t *testing.T) {
	n := buildLinear(t)
	paths := n.AllPathsOfLengthStartingInVertex(0, 150)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		total := 0.0
		for _, e := range p {
			edge, err := n.Edge(e)
			require.NoError(t, err)
			total += edge.Length
		}
		require.GreaterOrEqual(t, total, 150.0)
	}
}
