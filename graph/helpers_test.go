package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
	gonum "gonum.org/v1/gonum/graph"

	"splitgraph/cas"
)

type testKind string

func (k testKind) String() string { return string(k) }

const (
	kindUses     testKind = "uses"
	kindContains testKind = "contains"
)

type testNode struct {
	id      NodeID
	lineage NodeID
	value   string
	hash    cas.Hash
}

func newTestNode(value string) *testNode {
	id := NewNodeID()
	return &testNode{id: id, lineage: id, value: value}
}

func (n *testNode) ID() NodeID { return n.id }
func (n *testNode) SetID(id NodeID) { n.id = id }
func (n *testNode) LineageID() NodeID { return n.lineage }
func (n *testNode) SetLineageID(id NodeID) { n.lineage = id }
func (n *testNode) Kind() string { return "test" }
func (n *testNode) EntityKind() EntityKind { return "Test" }
func (n *testNode) MerkleTreeHash() cas.Hash { return n.hash }
func (n *testNode) SetMerkleTreeHash(h cas.Hash) { n.hash = h }
func (n *testNode) NodeHash() cas.Hash { return cas.Sum([]byte(n.value)) }
func (n *testNode) Describe() string { return "test(" + n.value + ")" }

func (n *testNode) Clone() *testNode {
	c := *n
	return &c
}

type testEdge struct {
	kind  testKind
	def   bool
	label string
}

func uses(label string) testEdge { return testEdge{kind: kindUses, label: label} }
func defaultUses(label string) testEdge { return testEdge{kind: kindUses, def: true, label: label} }

func (e testEdge) Kind() testKind { return e.kind }

func (e testEdge) Entropy() []byte {
	flag := byte(0)
	if e.def {
		flag = 1
	}
	return append([]byte{flag}, e.label...)
}

func (e testEdge) IsDefault() bool { return e.def }

func (e testEdge) CloneAsNonDefault() testEdge {
	e.def = false
	return e
}

type testGraph = SplitGraph[*testNode, testEdge, testKind]

var (
	_ gonum.Directed = (*LogicalView[*testNode, testEdge, testKind])(nil)
	_ gonum.Directed = (*RawView[*testNode, testEdge, testKind])(nil)
)

func newTestGraph(t *testing.T, threshold int) *testGraph {
	t.Helper()
	g, err := New[*testNode, testEdge, testKind](threshold)
	require.NoError(t, err)
	return g
}

func addTestNode(t *testing.T, g *testGraph, value string) NodeID {
	t.Helper()
	id, err := g.AddNode(newTestNode(value))
	require.NoError(t, err)
	return id
}

func mustRoot(t *testing.T, g *testGraph) NodeID {
	t.Helper()
	id, err := g.RootID()
	require.NoError(t, err)
	return id
}

func mustPartition(t *testing.T, g *testGraph, id NodeID) int {
	t.Helper()
	pi, ok := g.PartitionOf(id)
	require.True(t, ok, "node %s not placed", id)
	return pi
}

// physicalEdge is an edge reduced to what two separately built graphs can
// agree on.
type physicalEdge struct {
	source, target NodeID
	kind           string
	entropy        string
	def            bool
}

func edgeSet(t *testing.T, g *testGraph) map[physicalEdge]struct{} {
	t.Helper()
	out := make(map[physicalEdge]struct{})
	for i := 0; i < g.PartitionCount(); i++ {
		p, err := g.Partition(i)
		require.NoError(t, err)
		for _, pe := range p.Edges() {
			sw, _ := p.Node(pe.Source)
			tw, _ := p.Node(pe.Target)
			out[physicalEdge{
				source:  sw.ID(),
				target:  tw.ID(),
				kind:    pe.Weight.Kind().String(),
				entropy: string(pe.Weight.Entropy()),
				def:     pe.Weight.IsDefault(),
			}] = struct{}{}
		}
	}
	return out
}

func nodeSet(t *testing.T, g *testGraph) map[NodeID]cas.Hash {
	t.Helper()
	out := make(map[NodeID]cas.Hash)
	for i := 0; i < g.PartitionCount(); i++ {
		p, err := g.Partition(i)
		require.NoError(t, err)
		for _, idx := range p.NodeIndices() {
			w, _ := p.Node(idx)
			out[w.ID()] = w.NodeHash()
		}
	}
	return out
}

// references reports whether any node or edge in g still names id.
func references(t *testing.T, g *testGraph, id NodeID) bool {
	t.Helper()
	for i := 0; i < g.PartitionCount(); i++ {
		p, err := g.Partition(i)
		require.NoError(t, err)
		for _, idx := range p.NodeIndices() {
			w, _ := p.Node(idx)
			if w.ID() == id || (w.Variant == NodeExternalTarget && w.Target == id) {
				return true
			}
		}
		for _, pe := range p.Edges() {
			if pe.Weight.Variant == EdgeExternalSource && pe.Weight.SourceID == id {
				return true
			}
		}
	}
	return len(g.Directory().CrossEdgesFrom(id)) > 0
}

func countVariant(t *testing.T, g *testGraph, partition int, v NodeVariant) int {
	t.Helper()
	p, err := g.Partition(partition)
	require.NoError(t, err)
	n := 0
	for _, idx := range p.NodeIndices() {
		if w, _ := p.Node(idx); w.Variant == v {
			n++
		}
	}
	return n
}
