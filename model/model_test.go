package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitgraph/cas"
	"splitgraph/graph"
)

func TestNodeHash(t *testing.T) {
	a := NewNode(KindProp, "name").Set("value", "x")
	b := a.Clone()
	b.UID = graph.NewNodeID()
	b.CreatedAt++
	b.Merkle = cas.Sum([]byte("anything"))
	assert.Equal(t, a.NodeHash(), b.NodeHash(), "ids, timestamps and merkle hashes are not content")

	b.Set("value", "y")
	assert.NotEqual(t, a.NodeHash(), b.NodeHash())

	c := a.Clone()
	c.Name = "other"
	assert.NotEqual(t, a.NodeHash(), c.NodeHash())

	d := a.Clone()
	d.Type = KindSocket
	assert.NotEqual(t, a.NodeHash(), d.NodeHash())
}

func TestNodeHash_PayloadOrderIndependent(t *testing.T) {
	a := NewNode(KindFunc, "f").Set("a", "1").Set("b", "2")
	b := NewNode(KindFunc, "f").Set("b", "2").Set("a", "1")
	assert.Equal(t, a.NodeHash(), b.NodeHash())
}

func TestNodeClone(t *testing.T) {
	n := NewNode(KindComponent, "c").Set("k", "v")
	c := n.Clone()
	c.Set("k", "changed")
	c.Name = "renamed"
	assert.Equal(t, "v", n.Payload["k"])
	assert.Equal(t, "c", n.Name)
	assert.Equal(t, n.UID, c.UID)
	assert.Equal(t, n.UID, n.Lineage)
}

func TestEdge(t *testing.T) {
	e := DefaultEdge(EdgeUse)
	assert.True(t, e.IsDefault())
	assert.Equal(t, EdgeUse, e.Kind())
	assert.Equal(t, []byte{1}, e.Entropy())

	nd := e.CloneAsNonDefault()
	assert.False(t, nd.IsDefault())
	assert.True(t, e.IsDefault(), "clone leaves the original alone")
	assert.Equal(t, []byte{0}, nd.Entropy())

	slot := Edge{Type: EdgeSocket, At: "in"}
	assert.Equal(t, []byte{0, 'i', 'n'}, slot.Entropy())
	assert.Equal(t, "SOCKET", slot.Kind().String())
}

func TestEdge_AtUpserts(t *testing.T) {
	g, err := NewGraph(16)
	require.NoError(t, err)
	a, err := g.AddNode(NewNode(KindComponent, "a"))
	require.NoError(t, err)
	b, err := g.AddNode(NewNode(KindSocket, "b"))
	require.NoError(t, err)

	require.NoError(t, g.AddEdge(a, Edge{Type: EdgeSocket, At: "in"}, b))
	edges := g.EdgeCount()
	require.NoError(t, g.AddEdge(a, Edge{Type: EdgeSocket, At: "out"}, b))
	assert.Equal(t, edges, g.EdgeCount(), "one edge per endpoints and type")

	refs, err := g.EdgesDirected(a, graph.Outgoing)
	require.NoError(t, err)
	var sockets int
	for _, ref := range refs {
		if ref.Weight.Variant == graph.EdgeCustom && ref.Weight.Custom.Type == EdgeSocket {
			sockets++
			assert.Equal(t, "out", ref.Weight.Custom.At)
		}
	}
	assert.Equal(t, 1, sockets)
}

func TestSeed(t *testing.T) {
	g, err := NewGraph(1024)
	require.NoError(t, err)

	s, err := Seed(g, SeedOptions{Components: 3, PropsPerComponent: 2})
	require.NoError(t, err)
	require.Len(t, s.Components, 3)
	require.Len(t, s.Sockets, 3)

	require.NoError(t, g.Validate())
	assert.True(t, g.IsAcyclic())
	assert.Equal(t, 1, g.PartitionCount())
	// schema, func, and per component: itself, domain, two props, socket.
	assert.Len(t, g.CustomNodes(), 2+3*5)
	// root plus an ordering node for every component and domain prop.
	assert.Equal(t, 2+3*5+1+3*2, g.NodeCount())

	for _, cid := range s.Components {
		schema, err := g.NeighborByKind(cid, EdgeUse, graph.Outgoing)
		require.NoError(t, err)
		assert.Equal(t, s.Schema, schema)

		domain, err := g.NeighborByKind(cid, EdgeProp, graph.Outgoing)
		require.NoError(t, err)
		props, ok := g.OrderedChildren(domain)
		require.True(t, ok)
		assert.Len(t, props, 2)
	}

	next, err := g.NeighborByKind(s.Sockets[0], EdgeConnects, graph.Outgoing)
	require.NoError(t, err)
	assert.Equal(t, s.Sockets[1], next)
}

func TestSeed_Partitioned(t *testing.T) {
	g, err := NewGraph(4)
	require.NoError(t, err)
	s, err := Seed(g, SeedOptions{Components: 4, PropsPerComponent: 3})
	require.NoError(t, err)

	require.NoError(t, g.Validate())
	assert.Greater(t, g.PartitionCount(), 1)
	assert.Positive(t, g.Directory().CrossEdgeCount())
	assert.True(t, g.IsAcyclic())

	for _, cid := range s.Components {
		schema, err := g.NeighborByKind(cid, EdgeUse, graph.Outgoing)
		require.NoError(t, err)
		assert.Equal(t, s.Schema, schema, "placeholders resolve to the shared schema")
	}
}
