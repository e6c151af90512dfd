package graph

import (
	"slices"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// nodeKey packs a GlobalIndex into a gonum node id.
func nodeKey(gi GlobalIndex) int64 {
	return int64(gi.Partition)<<32 | int64(gi.Index)
}

func keyIndex(key int64) GlobalIndex {
	return GlobalIndex{Partition: int(key >> 32), Index: NodeIndex(uint32(key))}
}

func nodesOf(keys []int64) gonum.Nodes {
	if len(keys) == 0 {
		return gonum.Empty
	}
	nodes := make([]gonum.Node, len(keys))
	for i, k := range keys {
		nodes[i] = simple.Node(k)
	}
	return iterator.NewOrderedNodes(nodes)
}

// LogicalView presents the logical graph to gonum algorithms: custom nodes
// and the graph root, joined by custom edges with placeholders resolved.
// It does not lock; callers hold the graph's lock or own the graph.
type LogicalView[N CustomNode[N], E CustomEdge[E, K], K EdgeKind] struct {
	g *SplitGraph[N, E, K]
}

func (v *LogicalView[N, E, K]) weight(key int64) (GlobalIndex, *NodeWeight[N], bool) {
	gi := keyIndex(key)
	if gi.Partition < 0 || gi.Partition >= len(v.g.partitions) {
		return gi, nil, false
	}
	w, ok := v.g.partitions[gi.Partition].nodes[gi.Index]
	if !ok || !w.IsLogical() {
		return gi, nil, false
	}
	return gi, w, true
}

// ID maps a gonum node id back to a NodeID.
func (v *LogicalView[N, E, K]) ID(key int64) (NodeID, bool) {
	_, w, ok := v.weight(key)
	if !ok {
		return NilID, false
	}
	return w.ID(), true
}

// Key maps a NodeID to its gonum node id.
func (v *LogicalView[N, E, K]) Key(id NodeID) (int64, bool) {
	gi, ok := v.g.locate(id)
	if !ok {
		return 0, false
	}
	return nodeKey(gi), true
}

func (v *LogicalView[N, E, K]) Node(id int64) gonum.Node {
	if _, _, ok := v.weight(id); !ok {
		return nil
	}
	return simple.Node(id)
}

func (v *LogicalView[N, E, K]) Nodes() gonum.Nodes {
	var keys []int64
	for pi, p := range v.g.partitions {
		for _, idx := range p.NodeIndices() {
			if p.nodes[idx].IsLogical() {
				keys = append(keys, nodeKey(GlobalIndex{Partition: pi, Index: idx}))
			}
		}
	}
	return nodesOf(keys)
}

func (v *LogicalView[N, E, K]) successors(key int64) []int64 {
	gi, _, ok := v.weight(key)
	if !ok {
		return nil
	}
	p := v.g.partitions[gi.Partition]
	var out []int64
	for _, ei := range p.outgoing[gi.Index] {
		pe := p.edges[ei]
		if pe.Weight.Variant != EdgeCustom {
			continue
		}
		var k int64
		switch tw := p.nodes[pe.Target]; {
		case tw.Variant == NodeExternalTarget:
			tl, ok := v.g.locate(tw.Target)
			if !ok {
				continue
			}
			k = nodeKey(tl)
		case tw.IsLogical():
			k = nodeKey(GlobalIndex{Partition: gi.Partition, Index: pe.Target})
		default:
			continue
		}
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

func (v *LogicalView[N, E, K]) predecessors(key int64) []int64 {
	gi, _, ok := v.weight(key)
	if !ok {
		return nil
	}
	p := v.g.partitions[gi.Partition]
	var out []int64
	for _, ei := range p.incoming[gi.Index] {
		pe := p.edges[ei]
		var k int64
		switch pe.Weight.Variant {
		case EdgeCustom:
			if !p.nodes[pe.Source].IsLogical() {
				continue
			}
			k = nodeKey(GlobalIndex{Partition: gi.Partition, Index: pe.Source})
		case EdgeExternalSource:
			sl, ok := v.g.locate(pe.Weight.SourceID)
			if !ok {
				continue
			}
			k = nodeKey(sl)
		default:
			continue
		}
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

func (v *LogicalView[N, E, K]) From(id int64) gonum.Nodes {
	return nodesOf(v.successors(id))
}

func (v *LogicalView[N, E, K]) To(id int64) gonum.Nodes {
	return nodesOf(v.predecessors(id))
}

func (v *LogicalView[N, E, K]) HasEdgeFromTo(uid, vid int64) bool {
	return slices.Contains(v.successors(uid), vid)
}

func (v *LogicalView[N, E, K]) HasEdgeBetween(xid, yid int64) bool {
	return v.HasEdgeFromTo(xid, yid) || v.HasEdgeFromTo(yid, xid)
}

func (v *LogicalView[N, E, K]) Edge(uid, vid int64) gonum.Edge {
	if !v.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

// RawView presents every physical node and edge, partition by partition.
// Partitions are disconnected from each other in this view.
type RawView[N CustomNode[N], E CustomEdge[E, K], K EdgeKind] struct {
	g *SplitGraph[N, E, K]
}

func (v *RawView[N, E, K]) partition(key int64) (*Partition[N, E, K], NodeIndex, bool) {
	gi := keyIndex(key)
	if gi.Partition < 0 || gi.Partition >= len(v.g.partitions) {
		return nil, 0, false
	}
	p := v.g.partitions[gi.Partition]
	if _, ok := p.nodes[gi.Index]; !ok {
		return nil, 0, false
	}
	return p, gi.Index, true
}

func (v *RawView[N, E, K]) Node(id int64) gonum.Node {
	if _, _, ok := v.partition(id); !ok {
		return nil
	}
	return simple.Node(id)
}

func (v *RawView[N, E, K]) Nodes() gonum.Nodes {
	var keys []int64
	for pi, p := range v.g.partitions {
		for _, idx := range p.NodeIndices() {
			keys = append(keys, nodeKey(GlobalIndex{Partition: pi, Index: idx}))
		}
	}
	return nodesOf(keys)
}

func (v *RawView[N, E, K]) From(id int64) gonum.Nodes {
	p, idx, ok := v.partition(id)
	if !ok {
		return gonum.Empty
	}
	pi := keyIndex(id).Partition
	var keys []int64
	for _, t := range p.successors(idx) {
		keys = append(keys, nodeKey(GlobalIndex{Partition: pi, Index: t}))
	}
	return nodesOf(keys)
}

func (v *RawView[N, E, K]) To(id int64) gonum.Nodes {
	p, idx, ok := v.partition(id)
	if !ok {
		return gonum.Empty
	}
	pi := keyIndex(id).Partition
	var keys []int64
	for _, ei := range p.incoming[idx] {
		k := nodeKey(GlobalIndex{Partition: pi, Index: p.edges[ei].Source})
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return nodesOf(keys)
}

func (v *RawView[N, E, K]) HasEdgeFromTo(uid, vid int64) bool {
	p, idx, ok := v.partition(uid)
	if !ok || keyIndex(uid).Partition != keyIndex(vid).Partition {
		return false
	}
	return slices.Contains(p.successors(idx), keyIndex(vid).Index)
}

func (v *RawView[N, E, K]) HasEdgeBetween(xid, yid int64) bool {
	return v.HasEdgeFromTo(xid, yid) || v.HasEdgeFromTo(yid, xid)
}

func (v *RawView[N, E, K]) Edge(uid, vid int64) gonum.Edge {
	if !v.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

// LogicalView returns an unlocked logical view of g.
func (g *SplitGraph[N, E, K]) LogicalView() *LogicalView[N, E, K] {
	return &LogicalView[N, E, K]{g: g}
}

// RawView returns an unlocked physical view of g.
func (g *SplitGraph[N, E, K]) RawView() *RawView[N, E, K] {
	return &RawView[N, E, K]{g: g}
}

// IsAcyclic reports whether the logical graph has no cycles.
func (g *SplitGraph[N, E, K]) IsAcyclic() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isAcyclic()
}

func (g *SplitGraph[N, E, K]) isAcyclic() bool {
	_, err := sortLogical(g.LogicalView())
	return err == nil
}

// sortLogical orders view topologically. topo.Sort only reports components
// of more than one node, so self-loops are checked separately.
func sortLogical[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](view *LogicalView[N, E, K]) ([]gonum.Node, error) {
	sorted, err := topo.Sort(view)
	if err != nil {
		return nil, ErrWouldCreateGraphCycle
	}
	for _, n := range sorted {
		if view.HasEdgeFromTo(n.ID(), n.ID()) {
			return nil, ErrWouldCreateGraphCycle
		}
	}
	return sorted, nil
}

// TopologicalOrder returns the logical nodes with parents before children.
func (g *SplitGraph[N, E, K]) TopologicalOrder() ([]NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	view := g.LogicalView()
	sorted, err := sortLogical(view)
	if err != nil {
		return nil, err
	}
	out := make([]NodeID, 0, len(sorted))
	for _, n := range sorted {
		if id, ok := view.ID(n.ID()); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// Descendants returns every node reachable from id in the logical graph,
// breadth-first.
func (g *SplitGraph[N, E, K]) Descendants(id NodeID) ([]NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	view := g.LogicalView()
	start, ok := view.Key(id)
	if !ok {
		return nil, notFound(id)
	}
	var out []NodeID
	bf := traverse.BreadthFirst{
		Visit: func(n gonum.Node) {
			if n.ID() == start {
				return
			}
			if nid, ok := view.ID(n.ID()); ok {
				out = append(out, nid)
			}
		},
	}
	bf.Walk(view, simple.Node(start), nil)
	return out, nil
}
