package graph

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"splitgraph/metrics"
)

const (
	// DefaultThreshold is the partition size used when none is configured.
	DefaultThreshold = 4096
	// MaxThreshold keeps a partition's node indices well inside 16 bits.
	MaxThreshold = 32766
)

// SplitGraph is a logical graph sharded into partitions. Mutations take the
// write lock and queries the read lock, so one writer and many readers may
// share a graph.
type SplitGraph[N CustomNode[N], E CustomEdge[E, K], K EdgeKind] struct {
	mu         sync.RWMutex
	dir        *Directory[K]
	partitions []*Partition[N, E, K]
	// cache maps NodeID to GlobalIndex. Entries are checked on read and
	// dropped under the write lock when a node moves or disappears.
	cache   sync.Map
	log     *zap.Logger
	metrics *metrics.Metrics
	// seq orders lock acquisition across graphs.
	seq uint64
}

var graphSeq atomic.Uint64

// New creates an empty graph whose partitions hold at most threshold
// non-root nodes.
func New[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](threshold int, opts ...Option) (*SplitGraph[N, E, K], error) {
	if threshold < 1 || threshold > MaxThreshold {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, threshold)
	}
	o := buildOptions(opts)
	g := &SplitGraph[N, E, K]{
		dir:     newDirectory[K](threshold),
		log:     o.logger,
		metrics: o.metrics,
		seq:     graphSeq.Add(1),
	}
	pi := g.appendPartition(graphRootWeight[N](NewNodeID()))
	g.dir.rootIndex = GlobalIndex{Partition: pi, Index: g.partitions[pi].root}
	return g, nil
}

func (g *SplitGraph[N, E, K]) appendPartition(root NodeWeight[N]) int {
	p := newPartition[N, E, K](root)
	g.partitions = append(g.partitions, p)
	pi := len(g.partitions) - 1
	g.dir.setAddress(pi, Address{})
	g.cache.Store(root.ID(), GlobalIndex{Partition: pi, Index: p.root})
	g.metrics.PartitionCreated()
	g.log.Debug("partition created",
		zap.Int("partition", pi),
		zap.String("root", root.ID().String()),
	)
	return pi
}

// locate resolves id through the cache, falling back to a scan of every
// partition.
func (g *SplitGraph[N, E, K]) locate(id NodeID) (GlobalIndex, bool) {
	if v, ok := g.cache.Load(id); ok {
		gi := v.(GlobalIndex)
		if gi.Partition < len(g.partitions) {
			if idx, ok := g.partitions[gi.Partition].byID[id]; ok && idx == gi.Index {
				g.metrics.CacheLookup(true)
				return gi, true
			}
		}
		g.cache.Delete(id)
	}
	g.metrics.CacheLookup(false)
	for pi, p := range g.partitions {
		if idx, ok := p.byID[id]; ok {
			gi := GlobalIndex{Partition: pi, Index: idx}
			g.cache.Store(id, gi)
			return gi, true
		}
	}
	return GlobalIndex{}, false
}

func (g *SplitGraph[N, E, K]) resolve(id NodeID) (GlobalIndex, *Partition[N, E, K], *NodeWeight[N], error) {
	gi, ok := g.locate(id)
	if !ok {
		return GlobalIndex{}, nil, nil, notFound(id)
	}
	p := g.partitions[gi.Partition]
	return gi, p, p.nodes[gi.Index], nil
}

func (g *SplitGraph[N, E, K]) partitionAt(i int) (*Partition[N, E, K], error) {
	if i < 0 || i >= len(g.partitions) {
		return nil, &ShardMissingError{Index: i}
	}
	return g.partitions[i], nil
}

func (g *SplitGraph[N, E, K]) resetCache() {
	g.cache.Clear()
}

// AddNode places n in the first partition with spare capacity. A node
// already present under n's id is replaced in place.
func (g *SplitGraph[N, E, K]) AddNode(n N) (NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.place(n, false)
	return n.ID(), err
}

// AddOrderedNode places n and gives it an ordering node so it can hold
// ordered children.
func (g *SplitGraph[N, E, K]) AddOrderedNode(n N) (NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.place(n, true)
	return n.ID(), err
}

func (g *SplitGraph[N, E, K]) place(n N, ordered bool) (GlobalIndex, error) {
	if gi, exists := g.locate(n.ID()); exists {
		p := g.partitions[gi.Partition]
		if p.nodes[gi.Index].Variant != NodeCustom {
			return gi, fmt.Errorf("placing %s: %w", n.ID(), ErrNodeIDExists)
		}
		return gi, p.replaceNode(gi.Index, CustomWeight(n))
	}
	pi := -1
	for i, p := range g.partitions {
		if p.NodeCount()-1 < g.dir.threshold {
			pi = i
			break
		}
	}
	if pi < 0 {
		pi = g.appendPartition(subGraphRootWeight[N](NewNodeID()))
	}
	p := g.partitions[pi]
	gi := GlobalIndex{Partition: pi, Index: p.addNode(CustomWeight(n))}
	g.cache.Store(n.ID(), gi)
	if ordered {
		if _, _, err := p.ensureOrderingNode(gi.Index); err != nil {
			return gi, err
		}
	}
	return gi, nil
}

// UpdateNode replaces the content of the node with n's id.
func (g *SplitGraph[N, E, K]) UpdateNode(n N) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	gi, p, w, err := g.resolve(n.ID())
	if err != nil {
		return err
	}
	if w.Variant != NodeCustom {
		return fmt.Errorf("updating %s: %w", n.ID(), ErrNodeNotFound)
	}
	return p.replaceNode(gi.Index, CustomWeight(n))
}

// TouchNode marks a node dirty so the next hash recalculation visits it.
func (g *SplitGraph[N, E, K]) TouchNode(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	gi, p, _, err := g.resolve(id)
	if err != nil {
		return err
	}
	p.touch(gi.Index)
	return nil
}

// AddEdge inserts a logical edge. Re-adding an edge of the same kind between
// the same endpoints replaces its weight. A default edge demotes the other
// default edges of its kind leaving from.
func (g *SplitGraph[N, E, K]) AddEdge(from NodeID, e E, to NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addAndDemote(from, e, to, false)
}

// AddOrderedEdge inserts a logical edge and appends to to from's order.
func (g *SplitGraph[N, E, K]) AddOrderedEdge(from NodeID, e E, to NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addAndDemote(from, e, to, true)
}

// AddEdgeWithCycleCheck inserts the edge unless it would close a cycle in the
// logical graph, in which case the graph is left as it was.
func (g *SplitGraph[N, E, K]) AddEdgeWithCycleCheck(from NodeID, e E, to NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addChecked(from, e, to, false)
}

// AddOrderedEdgeWithCycleCheck is AddOrderedEdge with the cycle check.
func (g *SplitGraph[N, E, K]) AddOrderedEdgeWithCycleCheck(from NodeID, e E, to NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addChecked(from, e, to, true)
}

func (g *SplitGraph[N, E, K]) addAndDemote(from NodeID, e E, to NodeID, ordered bool) error {
	if _, err := g.addEdge(from, e, to, ordered); err != nil {
		return err
	}
	if e.IsDefault() {
		g.demoteDefaults(from, e.Kind(), to)
	}
	return nil
}

func (g *SplitGraph[N, E, K]) addChecked(from NodeID, e E, to NodeID, ordered bool) error {
	if from == to {
		return ErrWouldCreateGraphCycle
	}
	add, err := g.addEdge(from, e, to, ordered)
	if err != nil {
		return err
	}
	if add.created && !g.isAcyclic() {
		g.rollback(from, e.Kind(), to, add)
		return ErrWouldCreateGraphCycle
	}
	if e.IsDefault() {
		g.demoteDefaults(from, e.Kind(), to)
	}
	return nil
}

type edgeAddition struct {
	created         bool
	orderingCreated bool
	owner           GlobalIndex
}

func (g *SplitGraph[N, E, K]) insertEdge(p *Partition[N, E, K], source NodeIndex, w EdgeWeight[E, K], target NodeIndex, ordered bool) (bool, bool, error) {
	if ordered {
		_, added, created, err := p.addOrderedEdge(source, w, target)
		return added, created, err
	}
	_, added, err := p.addEdge(source, w, target)
	return added, false, err
}

func (g *SplitGraph[N, E, K]) addEdge(from NodeID, e E, to NodeID, ordered bool) (edgeAddition, error) {
	fl, fp, fw, err := g.resolve(from)
	if err != nil {
		return edgeAddition{}, err
	}
	tl, tp, tw, err := g.resolve(to)
	if err != nil {
		return edgeAddition{}, err
	}
	w := CustomEdgeWeight[E, K](e)
	add := edgeAddition{owner: fl}

	if fl.Partition == tl.Partition {
		add.created, add.orderingCreated, err = g.insertEdge(fp, fl.Index, w, tl.Index, ordered)
		return add, err
	}

	sourceKind := ""
	if c, ok := fw.AsCustom(); ok {
		sourceKind = c.Kind()
	}
	external := externalSourceWeight[E, K](from, sourceKind, e)

	if ph, ok := g.placeholderFor(fp, fl.Index, e.Kind(), to); ok {
		_, add.orderingCreated, err = g.insertEdge(fp, fl.Index, w, ph, ordered)
		if err != nil {
			return add, err
		}
		_, _, err = tp.addEdge(tp.root, external, tl.Index)
		return add, err
	}

	targetKind := ""
	if c, ok := tw.AsCustom(); ok {
		targetKind = c.Kind()
	}
	placeholder := externalTargetWeight[N](to, tw.EntityKind(), targetKind)
	ph := fp.addNode(placeholder)
	g.cache.Store(placeholder.ID(), GlobalIndex{Partition: fl.Partition, Index: ph})
	if _, add.orderingCreated, err = g.insertEdge(fp, fl.Index, w, ph, ordered); err != nil {
		return add, err
	}
	if _, _, err = tp.addEdge(tp.root, external, tl.Index); err != nil {
		return add, err
	}
	g.dir.register(CrossEdge[K]{SourceID: from, TargetID: to, Kind: e.Kind()})
	add.created = true
	return add, nil
}

// placeholderFor finds the ExternalTarget reached from source by an edge of
// kind that stands for target.
func (g *SplitGraph[N, E, K]) placeholderFor(p *Partition[N, E, K], source NodeIndex, kind K, target NodeID) (NodeIndex, bool) {
	for _, ei := range p.outgoing[source] {
		pe := p.edges[ei]
		if pe.Weight.Variant != EdgeCustom || pe.Weight.Custom.Kind() != kind {
			continue
		}
		if tw := p.nodes[pe.Target]; tw.Variant == NodeExternalTarget && tw.Target == target {
			return pe.Target, true
		}
	}
	return 0, false
}

// demoteDefaults clears the default flag of every default edge of kind
// leaving from, except the one reaching keep.
func (g *SplitGraph[N, E, K]) demoteDefaults(from NodeID, kind K, keep NodeID) {
	fl, ok := g.locate(from)
	if !ok {
		return
	}
	fp := g.partitions[fl.Partition]
	for _, ei := range slices.Clone(fp.outgoing[fl.Index]) {
		pe := fp.edges[ei]
		w := pe.Weight
		if w.Variant != EdgeCustom || !w.IsDefault() || w.Custom.Kind() != kind {
			continue
		}
		if fp.resolvedID(pe.Target) == keep {
			continue
		}
		fp.setEdgeWeight(ei, w.CloneAsNonDefault())
		if tw := fp.nodes[pe.Target]; tw.Variant == NodeExternalTarget {
			g.demoteExternalSource(from, kind, tw.Target)
		}
	}
}

func (g *SplitGraph[N, E, K]) externalSourceEdge(from NodeID, kind K, to NodeID) (*Partition[N, E, K], EdgeIndex, bool) {
	tl, ok := g.locate(to)
	if !ok {
		return nil, 0, false
	}
	tp := g.partitions[tl.Partition]
	key := edgeKey[K]{kind: EdgeWeightKind[K]{Variant: EdgeExternalSource, Custom: kind}, source: from}
	ei, ok := tp.findEdge(tp.root, key, tl.Index)
	return tp, ei, ok
}

func (g *SplitGraph[N, E, K]) demoteExternalSource(from NodeID, kind K, to NodeID) {
	if tp, ei, ok := g.externalSourceEdge(from, kind, to); ok {
		tp.setEdgeWeight(ei, tp.edges[ei].Weight.CloneAsNonDefault())
	}
}

func (g *SplitGraph[N, E, K]) rollback(from NodeID, kind K, to NodeID, add edgeAddition) {
	if err := g.removeEdge(from, kind, to); err != nil {
		g.log.Warn("rolling back edge", zap.Error(err))
	}
	if !add.orderingCreated {
		return
	}
	p := g.partitions[add.owner.Partition]
	if ord, ok := p.orderingNodeOf(add.owner.Index); ok {
		id := p.nodes[ord].ID()
		p.removeNode(ord)
		g.cache.Delete(id)
	}
}

// RemoveEdge removes the logical edge of kind from from to to, including
// its placeholder and ExternalSource halves. A missing edge is not an error.
func (g *SplitGraph[N, E, K]) RemoveEdge(from NodeID, kind K, to NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeEdge(from, kind, to)
}

func (g *SplitGraph[N, E, K]) removeEdge(from NodeID, kind K, to NodeID) error {
	fl, fp, _, err := g.resolve(from)
	if err != nil {
		return err
	}
	tl, toFound := g.locate(to)
	for _, ei := range slices.Clone(fp.outgoing[fl.Index]) {
		pe, ok := fp.edges[ei]
		if !ok || pe.Weight.Variant != EdgeCustom || pe.Weight.Custom.Kind() != kind {
			continue
		}
		if toFound && tl.Partition == fl.Partition && pe.Target == tl.Index {
			fp.removeEdgeByIndex(ei)
			continue
		}
		tw := fp.nodes[pe.Target]
		if tw.Variant != NodeExternalTarget || tw.Target != to {
			continue
		}
		fp.removeEdgeByIndex(ei)
		if len(fp.incoming[pe.Target]) == 0 {
			id := tw.ID()
			fp.removeNode(pe.Target)
			g.cache.Delete(id)
		}
		if tp, ei, ok := g.externalSourceEdge(from, kind, to); ok {
			tp.removeEdgeByIndex(ei)
		}
		g.dir.unregister(CrossEdge[K]{SourceID: from, TargetID: to, Kind: kind})
	}
	return nil
}

type edgeRef[K EdgeKind] struct {
	other NodeID
	kind  K
}

// RemoveNode removes a node after removing every logical edge into or out
// of it, so placeholders and reverse-index entries go with it.
func (g *SplitGraph[N, E, K]) RemoveNode(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeNode(id)
}

func (g *SplitGraph[N, E, K]) removeNode(id NodeID) error {
	gi, p, w, err := g.resolve(id)
	if err != nil {
		return err
	}
	if gi.Index == p.root {
		return fmt.Errorf("removing %s: %w", id, ErrCannotRemoveRoot)
	}
	// A placeholder stands for its target.
	self := id
	if w.Variant == NodeExternalTarget {
		self = w.Target
	}

	var outs, ins []edgeRef[K]
	for _, pe := range p.Outgoing(gi.Index) {
		if pe.Weight.Variant == EdgeCustom {
			outs = append(outs, edgeRef[K]{other: p.resolvedID(pe.Target), kind: pe.Weight.Custom.Kind()})
		}
	}
	for _, pe := range p.Incoming(gi.Index) {
		switch pe.Weight.Variant {
		case EdgeCustom:
			ins = append(ins, edgeRef[K]{other: p.nodes[pe.Source].ID(), kind: pe.Weight.Custom.Kind()})
		case EdgeExternalSource:
			ins = append(ins, edgeRef[K]{other: pe.Weight.SourceID, kind: pe.Weight.EdgeKind})
		}
	}

	for _, r := range outs {
		if err := g.removeEdge(id, r.kind, r.other); err != nil && !errors.Is(err, ErrNodeNotFound) {
			return err
		}
	}
	for _, r := range ins {
		if err := g.removeEdge(r.other, r.kind, self); err != nil && !errors.Is(err, ErrNodeNotFound) {
			return err
		}
	}

	// The placeholder may already be gone with its last incoming edge.
	if idx, ok := p.byID[id]; ok && idx == gi.Index {
		if ord, ok := p.orderingNodeOf(gi.Index); ok {
			ordID := p.nodes[ord].ID()
			p.removeNode(ord)
			g.cache.Delete(ordID)
		}
		p.removeNode(gi.Index)
	}
	g.cache.Delete(id)
	g.dir.dropSource(id)
	return nil
}

// Reorder permutes the ordered children of id. fn receives the current
// child ids, cross-partition children by their real id.
func (g *SplitGraph[N, E, K]) Reorder(id NodeID, fn func([]NodeID) []NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	gi, p, _, err := g.resolve(id)
	if err != nil {
		return err
	}
	return p.reorder(gi.Index, fn)
}

// Clone deep-copies the graph. The copy shares the logger and metrics.
func (g *SplitGraph[N, E, K]) Clone() *SplitGraph[N, E, K] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := &SplitGraph[N, E, K]{
		dir:        g.dir.clone(),
		partitions: make([]*Partition[N, E, K], len(g.partitions)),
		log:        g.log,
		metrics:    g.metrics,
		seq:        graphSeq.Add(1),
	}
	for i, p := range g.partitions {
		c.partitions[i] = p.clone()
	}
	return c
}

// rlockPair read-locks g and other in creation order and returns the
// matching unlock.
func (g *SplitGraph[N, E, K]) rlockPair(other *SplitGraph[N, E, K]) func() {
	first, second := g, other
	if other.seq < g.seq {
		first, second = other, g
	}
	first.mu.RLock()
	second.mu.RLock()
	return func() {
		second.mu.RUnlock()
		first.mu.RUnlock()
	}
}

// rebuildReverseIndex derives the reverse index from the placeholders.
func (g *SplitGraph[N, E, K]) rebuildReverseIndex() {
	g.dir.reset()
	for _, p := range g.partitions {
		for _, pe := range p.Edges() {
			if pe.Weight.Variant != EdgeCustom {
				continue
			}
			tw := p.nodes[pe.Target]
			if tw.Variant != NodeExternalTarget {
				continue
			}
			g.dir.register(CrossEdge[K]{
				SourceID: p.nodes[pe.Source].ID(),
				TargetID: tw.Target,
				Kind:     pe.Weight.Custom.Kind(),
			})
		}
	}
}
