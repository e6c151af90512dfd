package graph

import (
	"fmt"
)

// Direction selects outgoing or incoming edges.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// EdgeRef is an edge as seen by callers: endpoints by id plus the weight.
type EdgeRef[E CustomEdge[E, K], K EdgeKind] struct {
	Source NodeID
	Target NodeID
	Weight EdgeWeight[E, K]
}

// NodeWeight returns the domain node with id.
func (g *SplitGraph[N, E, K]) NodeWeight(id NodeID) (N, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var zero N
	_, _, w, err := g.resolve(id)
	if err != nil {
		return zero, err
	}
	n, ok := w.AsCustom()
	if !ok {
		return zero, fmt.Errorf("%s is a %s node: %w", id, w.Variant, ErrNodeNotFound)
	}
	return n, nil
}

// RawNodeWeight returns a copy of the stored weight of any node.
func (g *SplitGraph[N, E, K]) RawNodeWeight(id NodeID) (NodeWeight[N], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, _, w, err := g.resolve(id)
	if err != nil {
		return NodeWeight[N]{}, err
	}
	return w.clone(), nil
}

// CustomNodes returns every domain node, partition by partition.
func (g *SplitGraph[N, E, K]) CustomNodes() []N {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []N
	for _, p := range g.partitions {
		for _, idx := range p.NodeIndices() {
			if n, ok := p.nodes[idx].AsCustom(); ok {
				out = append(out, n)
			}
		}
	}
	return out
}

// EdgesDirected lists the custom edges of id in direction d. Cross-partition
// edges are reported between the real endpoints with the custom weight.
func (g *SplitGraph[N, E, K]) EdgesDirected(id NodeID, d Direction) ([]EdgeRef[E, K], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgesDirected(id, d)
}

func (g *SplitGraph[N, E, K]) edgesDirected(id NodeID, d Direction) ([]EdgeRef[E, K], error) {
	gi, p, _, err := g.resolve(id)
	if err != nil {
		return nil, err
	}
	var out []EdgeRef[E, K]
	if d == Outgoing {
		for _, pe := range p.Outgoing(gi.Index) {
			if pe.Weight.Variant == EdgeCustom {
				out = append(out, EdgeRef[E, K]{Source: id, Target: p.resolvedID(pe.Target), Weight: pe.Weight})
			}
		}
		return out, nil
	}
	for _, pe := range p.Incoming(gi.Index) {
		switch pe.Weight.Variant {
		case EdgeCustom:
			out = append(out, EdgeRef[E, K]{Source: p.nodes[pe.Source].ID(), Target: id, Weight: pe.Weight})
		case EdgeExternalSource:
			w := pe.Weight
			if cw, ok := g.crossEdgeWeight(pe.Weight.SourceID, pe.Weight.EdgeKind, id); ok {
				w = cw
			}
			out = append(out, EdgeRef[E, K]{Source: pe.Weight.SourceID, Target: id, Weight: w})
		}
	}
	return out, nil
}

// crossEdgeWeight finds the custom weight of the cross-partition edge from
// source to target.
func (g *SplitGraph[N, E, K]) crossEdgeWeight(source NodeID, kind K, target NodeID) (EdgeWeight[E, K], bool) {
	sl, ok := g.locate(source)
	if !ok {
		return EdgeWeight[E, K]{}, false
	}
	sp := g.partitions[sl.Partition]
	ph, ok := g.placeholderFor(sp, sl.Index, kind, target)
	if !ok {
		return EdgeWeight[E, K]{}, false
	}
	for _, ei := range sp.outgoing[sl.Index] {
		pe := sp.edges[ei]
		if pe.Target == ph && pe.Weight.Variant == EdgeCustom && pe.Weight.Custom.Kind() == kind {
			return pe.Weight, true
		}
	}
	return EdgeWeight[E, K]{}, false
}

// EdgesDirectedByKind is EdgesDirected filtered to one kind.
func (g *SplitGraph[N, E, K]) EdgesDirectedByKind(id NodeID, kind K, d Direction) ([]EdgeRef[E, K], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgesByKind(id, kind, d)
}

func (g *SplitGraph[N, E, K]) edgesByKind(id NodeID, kind K, d Direction) ([]EdgeRef[E, K], error) {
	all, err := g.edgesDirected(id, d)
	if err != nil {
		return nil, err
	}
	var out []EdgeRef[E, K]
	for _, ref := range all {
		if ref.Weight.Kind().Custom == kind {
			out = append(out, ref)
		}
	}
	return out, nil
}

// RawEdgesDirected lists every physical edge of id, plumbing included,
// between physical node ids.
func (g *SplitGraph[N, E, K]) RawEdgesDirected(id NodeID, d Direction) ([]EdgeRef[E, K], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	gi, p, _, err := g.resolve(id)
	if err != nil {
		return nil, err
	}
	edges := p.Outgoing(gi.Index)
	if d == Incoming {
		edges = p.Incoming(gi.Index)
	}
	out := make([]EdgeRef[E, K], 0, len(edges))
	for _, pe := range edges {
		out = append(out, EdgeRef[E, K]{
			Source: p.nodes[pe.Source].ID(),
			Target: p.nodes[pe.Target].ID(),
			Weight: pe.Weight,
		})
	}
	return out, nil
}

// NeighborByKind returns the one node across an edge of kind in direction d.
func (g *SplitGraph[N, E, K]) NeighborByKind(id NodeID, kind K, d Direction) (NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges, err := g.edgesByKind(id, kind, d)
	if err != nil {
		return NilID, err
	}
	switch len(edges) {
	case 0:
		return NilID, fmt.Errorf("%w %s %s from %s", ErrEdgeNotFound, kind, d, id)
	case 1:
		if d == Outgoing {
			return edges[0].Target, nil
		}
		return edges[0].Source, nil
	default:
		return NilID, fmt.Errorf("%w %s %s from %s", ErrTooManyEdgesOfKind, kind, d, id)
	}
}

// OrderedChildren returns id's children in order, cross-partition children
// by their real id. ok is false when id is not an ordered container.
func (g *SplitGraph[N, E, K]) OrderedChildren(id NodeID) ([]NodeID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	gi, ok := g.locate(id)
	if !ok {
		return nil, false
	}
	p := g.partitions[gi.Partition]
	children, ok := p.orderedChildren(gi.Index)
	if !ok {
		return nil, false
	}
	out := make([]NodeID, 0, len(children))
	for _, c := range children {
		out = append(out, p.resolvedID(c))
	}
	return out, true
}

// AllParentsOf returns every transitive parent of id, nearest first.
func (g *SplitGraph[N, E, K]) AllParentsOf(id NodeID) ([]NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.locate(id); !ok {
		return nil, notFound(id)
	}
	return g.parentsOf(id), nil
}

// parentsOf walks logical incoming edges breadth-first.
func (g *SplitGraph[N, E, K]) parentsOf(id NodeID) []NodeID {
	seen := map[NodeID]struct{}{id: {}}
	queue := []NodeID{id}
	var out []NodeID
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		gi, ok := g.locate(cur)
		if !ok {
			continue
		}
		p := g.partitions[gi.Partition]
		for _, pe := range p.Incoming(gi.Index) {
			var parent NodeID
			switch pe.Weight.Variant {
			case EdgeCustom:
				parent = p.nodes[pe.Source].ID()
			case EdgeExternalSource:
				parent = pe.Weight.SourceID
			default:
				continue
			}
			if _, dup := seen[parent]; dup {
				continue
			}
			seen[parent] = struct{}{}
			out = append(out, parent)
			queue = append(queue, parent)
		}
	}
	return out
}

// NodeCount counts physical nodes in every partition.
func (g *SplitGraph[N, E, K]) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, p := range g.partitions {
		n += p.NodeCount()
	}
	return n
}

// EdgeCount counts physical edges in every partition.
func (g *SplitGraph[N, E, K]) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, p := range g.partitions {
		n += p.EdgeCount()
	}
	return n
}

func (g *SplitGraph[N, E, K]) PartitionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.partitions)
}

// PartitionOf returns the index of the partition holding id.
func (g *SplitGraph[N, E, K]) PartitionOf(id NodeID) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	gi, ok := g.locate(id)
	return gi.Partition, ok
}

// Partition returns partition i for inspection. Callers must not use it
// while the graph is being mutated.
func (g *SplitGraph[N, E, K]) Partition(i int) (*Partition[N, E, K], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.partitionAt(i)
}

// PartitionRootID returns the root id of partition i.
func (g *SplitGraph[N, E, K]) PartitionRootID(i int) (NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, err := g.partitionAt(i)
	if err != nil {
		return NilID, err
	}
	return p.RootID(), nil
}

// RootID returns the graph root's id.
func (g *SplitGraph[N, E, K]) RootID() (NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ri := g.dir.rootIndex
	p, err := g.partitionAt(ri.Partition)
	if err != nil {
		return NilID, err
	}
	w, ok := p.nodes[ri.Index]
	if !ok || w.Variant != NodeGraphRoot {
		return NilID, ErrRootNotFound
	}
	return w.ID(), nil
}

func (g *SplitGraph[N, E, K]) Threshold() int {
	return g.dir.threshold
}

// Directory returns a snapshot of the shard directory.
func (g *SplitGraph[N, E, K]) Directory() *Directory[K] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dir.clone()
}
