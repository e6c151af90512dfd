package graph

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitgraph/cas"
	"splitgraph/metrics"
)

// requireSameGraph checks node set, edge set and root hash.
func requireSameGraph(t *testing.T, want, got *testGraph) {
	t.Helper()
	want.RecalculateAllHashes()
	got.RecalculateAllHashes()
	assert.Equal(t, nodeSet(t, want), nodeSet(t, got))
	assert.Equal(t, edgeSet(t, want), edgeSet(t, got))

	wr, err := want.RawNodeWeight(mustRoot(t, want))
	require.NoError(t, err)
	gr, err := got.RawNodeWeight(mustRoot(t, got))
	require.NoError(t, err)
	assert.Equal(t, wr.MerkleTreeHash(), gr.MerkleTreeHash())
}

func replay(t *testing.T, base, updated *testGraph) *testGraph {
	t.Helper()
	base.RecalculateAllHashes()
	updated.RecalculateAllHashes()
	updates := base.DetectUpdates(updated)
	out := base.Clone()
	report := out.PerformUpdates(updates)
	require.Empty(t, report.Skipped)
	assert.Equal(t, len(updates), report.Applied)
	return out
}

func TestDetectUpdates_Identical(t *testing.T) {
	g := newTestGraph(t, 4)
	a := addTestNode(t, g, "A")
	require.NoError(t, g.AddEdge(mustRoot(t, g), uses(""), a))
	g.RecalculateAllHashes()

	assert.Nil(t, g.DetectUpdates(g))
	assert.Empty(t, g.DetectUpdates(g.Clone()))
	assert.Empty(t, g.DetectChanges(g.Clone()))
}

func TestDetectUpdates_RoundTrip(t *testing.T) {
	base := newTestGraph(t, 16)
	root := mustRoot(t, base)
	a, err := base.AddOrderedNode(newTestNode("A"))
	require.NoError(t, err)
	b := addTestNode(t, base, "B")
	c := addTestNode(t, base, "C")
	require.NoError(t, base.AddEdge(root, uses(""), a))
	require.NoError(t, base.AddOrderedEdge(a, uses(""), b))
	require.NoError(t, base.AddOrderedEdge(a, uses(""), c))

	updated := base.Clone()
	bn, err := updated.NodeWeight(b)
	require.NoError(t, err)
	changed := bn.Clone()
	changed.value = "B2"
	require.NoError(t, updated.UpdateNode(changed))
	d := addTestNode(t, updated, "D")
	require.NoError(t, updated.AddOrderedEdge(a, uses(""), d))
	require.NoError(t, updated.RemoveNode(c))
	require.NoError(t, updated.Reorder(a, func([]NodeID) []NodeID { return []NodeID{d, b} }))

	out := replay(t, base, updated)
	requireSameGraph(t, updated, out)

	children, ok := out.OrderedChildren(a)
	require.True(t, ok)
	assert.Equal(t, []NodeID{d, b}, children)
	got, err := out.NodeWeight(b)
	require.NoError(t, err)
	assert.Equal(t, "B2", got.value)
	require.NoError(t, out.Validate())

	// The base itself is untouched.
	children, _ = base.OrderedChildren(a)
	assert.Equal(t, []NodeID{b, c}, children)
}

func TestDetectUpdates_CrossPartition(t *testing.T) {
	base := newTestGraph(t, 2)
	root := mustRoot(t, base)
	a := addTestNode(t, base, "A")
	b := addTestNode(t, base, "B")
	c := addTestNode(t, base, "C")
	require.NoError(t, base.AddEdge(root, uses(""), a))
	require.NoError(t, base.AddEdge(a, uses(""), b))
	require.NoError(t, base.AddEdge(a, uses(""), c))

	updated := base.Clone()
	cn, err := updated.NodeWeight(c)
	require.NoError(t, err)
	changed := cn.Clone()
	changed.value = "C2"
	require.NoError(t, updated.UpdateNode(changed))
	require.NoError(t, updated.AddEdge(b, uses(""), c))
	e := addTestNode(t, updated, "E")
	require.Equal(t, 1, mustPartition(t, updated, e))
	require.NoError(t, updated.AddEdge(c, uses(""), e))

	out := replay(t, base, updated)
	requireSameGraph(t, updated, out)
	assert.ElementsMatch(t, updated.Directory().CrossEdgesFrom(b), out.Directory().CrossEdgesFrom(b))
	require.NoError(t, out.Validate())
}

func TestDetectUpdates_RewrittenID(t *testing.T) {
	base := newTestGraph(t, 16)
	root := mustRoot(t, base)
	a, err := base.AddOrderedNode(newTestNode("A"))
	require.NoError(t, err)
	b := addTestNode(t, base, "B")
	c := addTestNode(t, base, "C")
	require.NoError(t, base.AddEdge(root, uses(""), a))
	require.NoError(t, base.AddOrderedEdge(a, uses(""), b))
	require.NoError(t, base.AddEdge(b, uses(""), c))

	updated := base.Clone()
	next := NewNodeID()
	require.NoError(t, updated.RewriteNodeID(b, next, b))

	base.RecalculateAllHashes()
	updated.RecalculateAllHashes()
	for _, u := range base.DetectUpdates(updated) {
		assert.NotEqual(t, UpdateRemoveNode, u.Kind, "the rewritten node is re-keyed, not removed: %s", u)
	}

	out := replay(t, base, updated)
	requireSameGraph(t, updated, out)
	_, err = out.NodeWeight(b)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	nw, err := out.NodeWeight(next)
	require.NoError(t, err)
	assert.Equal(t, b, nw.LineageID())
	children, ok := out.OrderedChildren(a)
	require.True(t, ok)
	assert.Equal(t, []NodeID{next}, children)
	require.NoError(t, out.Validate())
}

func TestDetectUpdates_NewPartition(t *testing.T) {
	base := newTestGraph(t, 2)
	root := mustRoot(t, base)
	a := addTestNode(t, base, "A")
	b := addTestNode(t, base, "B")
	require.NoError(t, base.AddEdge(root, uses(""), a))
	require.NoError(t, base.AddEdge(a, uses(""), b))

	updated := base.Clone()
	c := addTestNode(t, updated, "C")
	require.NoError(t, updated.AddEdge(a, uses(""), c))
	require.Equal(t, 2, updated.PartitionCount())

	base.RecalculateAllHashes()
	updated.RecalculateAllHashes()
	updates := base.DetectUpdates(updated)
	var sawNewSubGraph bool
	for _, u := range updates {
		if u.Kind == UpdateNewSubGraph {
			sawNewSubGraph = true
			assert.Equal(t, 1, u.Partition)
		}
	}
	assert.True(t, sawNewSubGraph)

	out := replay(t, base, updated)
	assert.Equal(t, 2, out.PartitionCount())
	requireSameGraph(t, updated, out)
	require.NoError(t, out.Validate())
}

func TestDetectUpdates_RemovedEdge(t *testing.T) {
	base := newTestGraph(t, 16)
	root := mustRoot(t, base)
	a := addTestNode(t, base, "A")
	b := addTestNode(t, base, "B")
	require.NoError(t, base.AddEdge(root, uses(""), a))
	require.NoError(t, base.AddEdge(root, uses(""), b))
	require.NoError(t, base.AddEdge(a, uses("x"), b))

	updated := base.Clone()
	require.NoError(t, updated.RemoveEdge(a, kindUses, b))

	base.RecalculateAllHashes()
	updated.RecalculateAllHashes()
	updates := base.DetectUpdates(updated)
	require.Len(t, updates, 1)
	assert.Equal(t, UpdateRemoveEdge, updates[0].Kind)
	assert.Equal(t, a, updates[0].Source)
	assert.Equal(t, b, updates[0].Destination)
	assert.Equal(t, EdgeWeightKind[testKind]{Variant: EdgeCustom, Custom: kindUses}, updates[0].EdgeKind)

	out := replay(t, base, updated)
	requireSameGraph(t, updated, out)
}

func TestDetectUpdates_DefaultFlagChange(t *testing.T) {
	base := newTestGraph(t, 16)
	root := mustRoot(t, base)
	a := addTestNode(t, base, "A")
	b := addTestNode(t, base, "B")
	c := addTestNode(t, base, "C")
	require.NoError(t, base.AddEdge(root, uses(""), a))
	require.NoError(t, base.AddEdge(a, defaultUses("b"), b))
	require.NoError(t, base.AddEdge(a, uses("c"), c))

	updated := base.Clone()
	require.NoError(t, updated.AddEdge(a, defaultUses("c"), c))

	out := replay(t, base, updated)
	requireSameGraph(t, updated, out)
	ref, err := out.EdgesDirected(a, Outgoing)
	require.NoError(t, err)
	for _, r := range ref {
		assert.Equal(t, r.Target == c, r.Weight.IsDefault())
	}
}

func TestPerformUpdates_Skips(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	g, err := New[*testNode, testEdge, testKind](4, WithMetrics(m))
	require.NoError(t, err)
	root := mustRoot(t, g)
	a := addTestNode(t, g, "A")

	updates := []Update[*testNode, testEdge, testKind]{
		{Kind: UpdateRemoveNode, SubGraphRootID: NewNodeID(), ID: a},
		{Kind: UpdateNewEdge, SubGraphRootID: root, Source: a, Destination: NewNodeID(), EdgeWeight: CustomEdgeWeight[testEdge, testKind](uses(""))},
		{Kind: UpdateReplaceNode, SubGraphRootID: root, Node: CustomWeight[*testNode](newTestNode("ghost"))},
		{Kind: UpdateRemoveNode, SubGraphRootID: root, ID: root},
		{Kind: UpdateNewEdge, SubGraphRootID: root, Source: root, Destination: a, EdgeWeight: CustomEdgeWeight[testEdge, testKind](uses(""))},
	}
	report := g.PerformUpdates(updates)

	assert.Equal(t, 1, report.Applied)
	require.Len(t, report.Skipped, 4)
	assert.Equal(t, SkippedUpdate{Index: 0, Kind: UpdateRemoveNode, Reason: reasonPartition}, report.Skipped[0])
	assert.Equal(t, SkippedUpdate{Index: 1, Kind: UpdateNewEdge, Reason: reasonEndpoints}, report.Skipped[1])
	assert.Equal(t, SkippedUpdate{Index: 2, Kind: UpdateReplaceNode, Reason: reasonNode}, report.Skipped[2])
	assert.Equal(t, 3, report.Skipped[3].Index)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesApplied))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpdatesSkipped.WithLabelValues("RemoveNode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesSkipped.WithLabelValues("NewEdge")))

	out, err := g.EdgesDirected(root, Outgoing)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, a, out[0].Target)
}

func TestDetectChanges_ParentPropagation(t *testing.T) {
	base := newTestGraph(t, 2)
	root := mustRoot(t, base)
	a := addTestNode(t, base, "A")
	b := addTestNode(t, base, "B")
	c := addTestNode(t, base, "C")
	require.Equal(t, 1, mustPartition(t, base, c))
	require.NoError(t, base.AddEdge(root, uses(""), a))
	require.NoError(t, base.AddEdge(a, uses(""), b))
	require.NoError(t, base.AddEdge(a, uses(""), c))

	updated := base.Clone()
	cn, err := updated.NodeWeight(c)
	require.NoError(t, err)
	changed := cn.Clone()
	changed.value = "C2"
	require.NoError(t, updated.UpdateNode(changed))

	base.RecalculateAllHashes()
	updated.RecalculateAllHashes()
	changes := base.DetectChanges(updated)
	require.Len(t, changes, 3)

	cw, err := updated.RawNodeWeight(c)
	require.NoError(t, err)
	rw, err := updated.RawNodeWeight(root)
	require.NoError(t, err)
	aw, err := updated.RawNodeWeight(a)
	require.NoError(t, err)

	assert.Equal(t, Change{EntityID: root, EntityKind: EntityKindRoot, MerkleTreeHash: cas.Combine(cw.MerkleTreeHash(), rw.MerkleTreeHash())}, changes[0])
	assert.Equal(t, Change{EntityID: a, EntityKind: "Test", MerkleTreeHash: cas.Combine(cw.MerkleTreeHash(), aw.MerkleTreeHash())}, changes[1])
	assert.Equal(t, Change{EntityID: c, EntityKind: "Test", MerkleTreeHash: cw.MerkleTreeHash()}, changes[2])
}

func TestDetectChanges_Removed(t *testing.T) {
	base := newTestGraph(t, 16)
	root := mustRoot(t, base)
	a := addTestNode(t, base, "A")
	b := addTestNode(t, base, "B")
	require.NoError(t, base.AddEdge(root, uses(""), a))
	require.NoError(t, base.AddEdge(a, uses(""), b))

	updated := base.Clone()
	require.NoError(t, updated.RemoveNode(b))

	base.RecalculateAllHashes()
	updated.RecalculateAllHashes()
	changes := base.DetectChanges(updated)

	ids := make(map[NodeID]bool)
	for _, c := range changes {
		ids[c.EntityID] = true
	}
	assert.True(t, ids[root])
	assert.True(t, ids[a])
	assert.True(t, ids[b], "removed nodes are reported")
	assert.Len(t, changes, 3)
}
