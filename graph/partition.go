package graph

import (
	"bytes"
	"fmt"
	"slices"
	"sort"

	"splitgraph/cas"
)

// NodeIndex is a node's identity inside its partition. Indices are never
// reused within a partition.
type NodeIndex uint32

// EdgeIndex is an edge's identity inside its partition.
type EdgeIndex uint32

// PhysicalEdge is one stored edge of a partition.
type PhysicalEdge[E CustomEdge[E, K], K EdgeKind] struct {
	Index  EdgeIndex        `msgpack:"i"`
	Source NodeIndex        `msgpack:"s"`
	Target NodeIndex        `msgpack:"t"`
	Weight EdgeWeight[E, K] `msgpack:"w"`
}

// Partition is one bounded directed graph: the storage behind a shard.
type Partition[N CustomNode[N], E CustomEdge[E, K], K EdgeKind] struct {
	nodes     map[NodeIndex]*NodeWeight[N]
	edges     map[EdgeIndex]*PhysicalEdge[E, K]
	outgoing  map[NodeIndex][]EdgeIndex
	incoming  map[NodeIndex][]EdgeIndex
	byID      map[NodeID]NodeIndex
	byLineage map[NodeID]map[NodeIndex]struct{}
	dirty     map[NodeIndex]struct{}
	root      NodeIndex
	nextNode  NodeIndex
	nextEdge  EdgeIndex
}

func emptyPartition[N CustomNode[N], E CustomEdge[E, K], K EdgeKind]() *Partition[N, E, K] {
	return &Partition[N, E, K]{
		nodes:     make(map[NodeIndex]*NodeWeight[N]),
		edges:     make(map[EdgeIndex]*PhysicalEdge[E, K]),
		outgoing:  make(map[NodeIndex][]EdgeIndex),
		incoming:  make(map[NodeIndex][]EdgeIndex),
		byID:      make(map[NodeID]NodeIndex),
		byLineage: make(map[NodeID]map[NodeIndex]struct{}),
		dirty:     make(map[NodeIndex]struct{}),
	}
}

func newPartition[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](root NodeWeight[N]) *Partition[N, E, K] {
	p := emptyPartition[N, E, K]()
	p.root = p.addNode(root)
	return p
}

// NodeCount counts every physical node, root included.
func (p *Partition[N, E, K]) NodeCount() int {
	return len(p.nodes)
}

// EdgeCount counts every physical edge.
func (p *Partition[N, E, K]) EdgeCount() int {
	return len(p.edges)
}

// Root returns the root's index.
func (p *Partition[N, E, K]) Root() NodeIndex {
	return p.root
}

// RootID returns the root's id.
func (p *Partition[N, E, K]) RootID() NodeID {
	return p.nodes[p.root].ID()
}

// Node returns the weight stored at idx.
func (p *Partition[N, E, K]) Node(idx NodeIndex) (NodeWeight[N], bool) {
	w, ok := p.nodes[idx]
	if !ok {
		return NodeWeight[N]{}, false
	}
	return *w, true
}

// IndexOf resolves an id to its local index.
func (p *Partition[N, E, K]) IndexOf(id NodeID) (NodeIndex, bool) {
	idx, ok := p.byID[id]
	return idx, ok
}

// NodeIndices returns every node index in ascending order.
func (p *Partition[N, E, K]) NodeIndices() []NodeIndex {
	out := make([]NodeIndex, 0, len(p.nodes))
	for idx := range p.nodes {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

// Edges returns every edge in ascending index order.
func (p *Partition[N, E, K]) Edges() []PhysicalEdge[E, K] {
	out := make([]PhysicalEdge[E, K], 0, len(p.edges))
	for _, e := range p.edges {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Outgoing returns the edges leaving idx in insertion order.
func (p *Partition[N, E, K]) Outgoing(idx NodeIndex) []PhysicalEdge[E, K] {
	return p.collect(p.outgoing[idx])
}

// Incoming returns the edges entering idx in insertion order.
func (p *Partition[N, E, K]) Incoming(idx NodeIndex) []PhysicalEdge[E, K] {
	return p.collect(p.incoming[idx])
}

func (p *Partition[N, E, K]) collect(indices []EdgeIndex) []PhysicalEdge[E, K] {
	out := make([]PhysicalEdge[E, K], 0, len(indices))
	for _, ei := range indices {
		out = append(out, *p.edges[ei])
	}
	return out
}

func (p *Partition[N, E, K]) node(idx NodeIndex) (*NodeWeight[N], error) {
	w, ok := p.nodes[idx]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFoundAtIndex, idx)
	}
	return w, nil
}

func (p *Partition[N, E, K]) nodeByID(id NodeID) (NodeIndex, *NodeWeight[N], bool) {
	idx, ok := p.byID[id]
	if !ok {
		return 0, nil, false
	}
	return idx, p.nodes[idx], true
}

func (p *Partition[N, E, K]) nodesByLineage(lineage NodeID) []NodeIndex {
	set := p.byLineage[lineage]
	out := make([]NodeIndex, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

func (p *Partition[N, E, K]) indexLineage(lineage NodeID, idx NodeIndex) {
	set, ok := p.byLineage[lineage]
	if !ok {
		set = make(map[NodeIndex]struct{})
		p.byLineage[lineage] = set
	}
	set[idx] = struct{}{}
}

func (p *Partition[N, E, K]) unindexLineage(lineage NodeID, idx NodeIndex) {
	set := p.byLineage[lineage]
	delete(set, idx)
	if len(set) == 0 {
		delete(p.byLineage, lineage)
	}
}

func (p *Partition[N, E, K]) addNode(w NodeWeight[N]) NodeIndex {
	idx := p.nextNode
	p.nextNode++
	stored := w
	p.nodes[idx] = &stored
	p.byID[w.ID()] = idx
	p.indexLineage(w.LineageID(), idx)
	p.dirty[idx] = struct{}{}
	return idx
}

// replaceNode swaps the weight at idx, re-keying the id and lineage indexes
// when they change.
func (p *Partition[N, E, K]) replaceNode(idx NodeIndex, w NodeWeight[N]) error {
	old, err := p.node(idx)
	if err != nil {
		return err
	}
	if old.ID() != w.ID() {
		delete(p.byID, old.ID())
		p.byID[w.ID()] = idx
	}
	if old.LineageID() != w.LineageID() {
		p.unindexLineage(old.LineageID(), idx)
		p.indexLineage(w.LineageID(), idx)
	}
	stored := w
	p.nodes[idx] = &stored
	p.touch(idx)
	return nil
}

// removeNode deletes idx and every edge touching it. Parents become dirty.
func (p *Partition[N, E, K]) removeNode(idx NodeIndex) {
	w, ok := p.nodes[idx]
	if !ok {
		return
	}
	for len(p.incoming[idx]) > 0 {
		p.removeEdgeByIndex(p.incoming[idx][0])
	}
	for len(p.outgoing[idx]) > 0 {
		p.removeEdgeByIndex(p.outgoing[idx][0])
	}
	if p.byID[w.ID()] == idx {
		delete(p.byID, w.ID())
	}
	p.unindexLineage(w.LineageID(), idx)
	delete(p.nodes, idx)
	delete(p.outgoing, idx)
	delete(p.incoming, idx)
	delete(p.dirty, idx)
}

func (p *Partition[N, E, K]) findEdge(source NodeIndex, key edgeKey[K], target NodeIndex) (EdgeIndex, bool) {
	for _, ei := range p.outgoing[source] {
		e := p.edges[ei]
		if e.Target == target && e.Weight.key() == key {
			return ei, true
		}
	}
	return 0, false
}

func (p *Partition[N, E, K]) hasCustomEdge(source, target NodeIndex) bool {
	for _, ei := range p.outgoing[source] {
		e := p.edges[ei]
		if e.Target == target && e.Weight.Variant == EdgeCustom {
			return true
		}
	}
	return false
}

// addEdge inserts or replaces the edge with w's key between source and
// target. It reports whether a new physical edge was created.
func (p *Partition[N, E, K]) addEdge(source NodeIndex, w EdgeWeight[E, K], target NodeIndex) (EdgeIndex, bool, error) {
	if _, err := p.node(source); err != nil {
		return 0, false, err
	}
	if _, err := p.node(target); err != nil {
		return 0, false, err
	}
	if ei, ok := p.findEdge(source, w.key(), target); ok {
		p.setEdgeWeight(ei, w)
		return ei, false, nil
	}
	ei := p.nextEdge
	p.nextEdge++
	p.edges[ei] = &PhysicalEdge[E, K]{Index: ei, Source: source, Target: target, Weight: w}
	p.outgoing[source] = append(p.outgoing[source], ei)
	p.incoming[target] = append(p.incoming[target], ei)
	p.touch(source)
	return ei, true, nil
}

func (p *Partition[N, E, K]) setEdgeWeight(ei EdgeIndex, w EdgeWeight[E, K]) {
	e, ok := p.edges[ei]
	if !ok {
		return
	}
	e.Weight = w
	p.touch(e.Source)
}

// removeEdgeByIndex removes one edge. Removing the last custom edge from an
// ordered container to a child also drops the child's Ordinal edge and its
// place in the order.
func (p *Partition[N, E, K]) removeEdgeByIndex(ei EdgeIndex) {
	e, ok := p.detachEdge(ei)
	if !ok {
		return
	}
	switch e.Weight.Variant {
	case EdgeCustom:
		ord, ok := p.orderingNodeOf(e.Source)
		if ok && !p.hasCustomEdge(e.Source, e.Target) {
			if oi, found := p.findEdge(ord, edgeKey[K]{kind: EdgeWeightKind[K]{Variant: EdgeOrdinal}}, e.Target); found {
				p.removeEdgeByIndex(oi)
			}
		}
	case EdgeOrdinal:
		ow, ok := p.nodes[e.Source]
		target, tok := p.nodes[e.Target]
		if ok && tok && ow.Variant == NodeOrdering {
			ow.Order = slices.DeleteFunc(ow.Order, func(id NodeID) bool { return id == target.ID() })
		}
	}
}

// detachEdge removes one edge and nothing else.
func (p *Partition[N, E, K]) detachEdge(ei EdgeIndex) (*PhysicalEdge[E, K], bool) {
	e, ok := p.edges[ei]
	if !ok {
		return nil, false
	}
	delete(p.edges, ei)
	p.outgoing[e.Source] = removeIndex(p.outgoing[e.Source], ei)
	p.incoming[e.Target] = removeIndex(p.incoming[e.Target], ei)
	if _, ok := p.nodes[e.Source]; ok {
		p.touch(e.Source)
	}
	return e, true
}

func removeIndex(list []EdgeIndex, ei EdgeIndex) []EdgeIndex {
	for i, v := range list {
		if v == ei {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (p *Partition[N, E, K]) orderingNodeOf(idx NodeIndex) (NodeIndex, bool) {
	for _, ei := range p.outgoing[idx] {
		e := p.edges[ei]
		if e.Weight.Variant == EdgeOrdering {
			return e.Target, true
		}
	}
	return 0, false
}

func (p *Partition[N, E, K]) ensureOrderingNode(idx NodeIndex) (NodeIndex, bool, error) {
	if ord, ok := p.orderingNodeOf(idx); ok {
		return ord, false, nil
	}
	if _, err := p.node(idx); err != nil {
		return 0, false, err
	}
	ord := p.addNode(orderingWeight[N]())
	if _, _, err := p.addEdge(idx, EdgeWeight[E, K]{Variant: EdgeOrdering}, ord); err != nil {
		return 0, false, err
	}
	return ord, true, nil
}

// addOrderedEdge inserts the edge and appends target to source's order,
// creating the ordering node on first use.
func (p *Partition[N, E, K]) addOrderedEdge(source NodeIndex, w EdgeWeight[E, K], target NodeIndex) (EdgeIndex, bool, bool, error) {
	ord, created, err := p.ensureOrderingNode(source)
	if err != nil {
		return 0, false, false, err
	}
	ei, added, err := p.addEdge(source, w, target)
	if err != nil {
		return 0, false, created, err
	}
	ordinal := EdgeWeight[E, K]{Variant: EdgeOrdinal}
	if _, ok := p.findEdge(ord, ordinal.key(), target); !ok {
		if _, _, err := p.addEdge(ord, ordinal, target); err != nil {
			return ei, added, created, err
		}
		ow := p.nodes[ord]
		ow.Order = append(ow.Order, p.nodes[target].ID())
	}
	return ei, added, created, nil
}

// orderedChildren resolves the order of idx's ordering node to indices.
func (p *Partition[N, E, K]) orderedChildren(idx NodeIndex) ([]NodeIndex, bool) {
	ord, ok := p.orderingNodeOf(idx)
	if !ok {
		return nil, false
	}
	order := p.nodes[ord].Order
	out := make([]NodeIndex, 0, len(order))
	for _, id := range order {
		if child, ok := p.byID[id]; ok {
			out = append(out, child)
		}
	}
	return out, true
}

// resolvedID is the id a caller sees for idx: placeholders stand for their target.
func (p *Partition[N, E, K]) resolvedID(idx NodeIndex) NodeID {
	w := p.nodes[idx]
	if w.Variant == NodeExternalTarget {
		return w.Target
	}
	return w.ID()
}

// reorder permutes idx's children. fn receives the resolved child ids and
// must return a permutation of them. A node without an ordering node is left
// untouched.
func (p *Partition[N, E, K]) reorder(idx NodeIndex, fn func([]NodeID) []NodeID) error {
	ord, ok := p.orderingNodeOf(idx)
	if !ok {
		return nil
	}
	ow := p.nodes[ord]
	resolved := make([]NodeID, 0, len(ow.Order))
	physical := make(map[NodeID]NodeID, len(ow.Order))
	for _, id := range ow.Order {
		child, ok := p.byID[id]
		if !ok {
			return notFound(id)
		}
		r := p.resolvedID(child)
		resolved = append(resolved, r)
		physical[r] = id
	}

	next := fn(slices.Clone(resolved))
	if len(next) != len(resolved) {
		return ErrOrderLengthMismatch
	}
	seen := make(map[NodeID]struct{}, len(next))
	order := make([]NodeID, 0, len(next))
	for _, id := range next {
		phys, ok := physical[id]
		if _, dup := seen[id]; !ok || dup {
			return ErrOrderContentMismatch
		}
		seen[id] = struct{}{}
		order = append(order, phys)
	}
	ow.Order = order
	p.touch(ord)
	return nil
}

func (p *Partition[N, E, K]) touch(idx NodeIndex) {
	p.dirty[idx] = struct{}{}
}

func (p *Partition[N, E, K]) isDirty(idx NodeIndex) bool {
	_, ok := p.dirty[idx]
	return ok
}

func (p *Partition[N, E, K]) dirtyIndices() []NodeIndex {
	out := make([]NodeIndex, 0, len(p.dirty))
	for idx := range p.dirty {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

// successors returns the distinct targets of idx's outgoing edges.
func (p *Partition[N, E, K]) successors(idx NodeIndex) []NodeIndex {
	out := make([]NodeIndex, 0, len(p.outgoing[idx]))
	for _, ei := range p.outgoing[idx] {
		t := p.edges[ei].Target
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// stablyOrderedChildren lists ordered children first, in order, then the
// remaining children sorted by id.
func (p *Partition[N, E, K]) stablyOrderedChildren(idx NodeIndex) []NodeIndex {
	seen := make(map[NodeIndex]struct{})
	var out []NodeIndex
	if ordered, ok := p.orderedChildren(idx); ok {
		for _, c := range ordered {
			if _, dup := seen[c]; !dup {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	var rest []NodeIndex
	for _, c := range p.successors(idx) {
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		return p.nodes[rest[i]].ID().Compare(p.nodes[rest[j]].ID()) < 0
	})
	return append(out, rest...)
}

func (p *Partition[N, E, K]) merkleTreeHash(idx NodeIndex) cas.Hash {
	h := cas.NewHasher()
	h.WriteHash(p.nodes[idx].NodeHash())
	for _, child := range p.stablyOrderedChildren(idx) {
		h.WriteHash(p.nodes[child].MerkleTreeHash())
		var edgeHashes []cas.Hash
		for _, ei := range p.outgoing[idx] {
			e := p.edges[ei]
			if e.Target != child {
				continue
			}
			if eh, ok := e.Weight.EdgeHash(); ok {
				edgeHashes = append(edgeHashes, eh)
			}
		}
		sort.Slice(edgeHashes, func(i, j int) bool {
			return bytes.Compare(edgeHashes[i][:], edgeHashes[j][:]) < 0
		})
		for _, eh := range edgeHashes {
			h.WriteHash(eh)
		}
	}
	return h.Sum()
}

// postOrder lists every node with children before parents, starting from the
// root and then from any node the root cannot reach.
func (p *Partition[N, E, K]) postOrder() []NodeIndex {
	visited := make(map[NodeIndex]struct{}, len(p.nodes))
	out := make([]NodeIndex, 0, len(p.nodes))
	starts := append([]NodeIndex{p.root}, p.NodeIndices()...)
	for _, start := range starts {
		if _, ok := visited[start]; ok {
			continue
		}
		p.depthFirst(start, visited,
			func(NodeIndex) dfsControl { return dfsContinue },
			func(idx NodeIndex) dfsControl {
				out = append(out, idx)
				return dfsContinue
			})
	}
	return out
}

// recalculateHashes recomputes merkle tree hashes in post-order. With all
// unset only dirty nodes and their ancestors are recomputed. It returns the
// number of nodes rehashed and clears the dirty set.
func (p *Partition[N, E, K]) recalculateHashes(all bool) int {
	recomputed := make(map[NodeIndex]struct{})
	for _, idx := range p.postOrder() {
		need := all || p.isDirty(idx)
		if !need {
			for _, child := range p.successors(idx) {
				if _, ok := recomputed[child]; ok {
					need = true
					break
				}
			}
		}
		if !need {
			continue
		}
		p.nodes[idx].setMerkleTreeHash(p.merkleTreeHash(idx))
		recomputed[idx] = struct{}{}
	}
	clear(p.dirty)
	return len(recomputed)
}

type dfsControl int

const (
	dfsContinue dfsControl = iota
	dfsPrune
	dfsBreak
)

// depthFirst walks from start. A pruned node is finished without visiting
// its children. visited is shared so callers can walk several roots.
func (p *Partition[N, E, K]) depthFirst(start NodeIndex, visited map[NodeIndex]struct{}, discover, finish func(NodeIndex) dfsControl) bool {
	type frame struct {
		idx      NodeIndex
		children []NodeIndex
		pos      int
	}
	enter := func(idx NodeIndex) (frame, bool) {
		visited[idx] = struct{}{}
		f := frame{idx: idx}
		switch discover(idx) {
		case dfsBreak:
			return f, false
		case dfsContinue:
			f.children = p.successors(idx)
		}
		return f, true
	}

	f, ok := enter(start)
	if !ok {
		return false
	}
	stack := []frame{f}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.pos < len(top.children) {
			next := top.children[top.pos]
			top.pos++
			if _, seen := visited[next]; seen {
				continue
			}
			f, ok := enter(next)
			if !ok {
				return false
			}
			stack = append(stack, f)
			continue
		}
		idx := top.idx
		stack = stack[:len(stack)-1]
		if finish(idx) == dfsBreak {
			return false
		}
	}
	return true
}

// dropExternalSources removes root ExternalSource edges whose source is in
// removed. It returns the number of edges dropped.
func (p *Partition[N, E, K]) dropExternalSources(removed map[NodeID]struct{}) int {
	var drop []EdgeIndex
	for _, ei := range p.outgoing[p.root] {
		w := p.edges[ei].Weight
		if w.Variant != EdgeExternalSource {
			continue
		}
		if _, ok := removed[w.SourceID]; ok {
			drop = append(drop, ei)
		}
	}
	for _, ei := range drop {
		p.removeEdgeByIndex(ei)
	}
	return len(drop)
}

// sweepOrphans repeatedly removes every non-root node without incoming edges
// and returns the removed ids.
func (p *Partition[N, E, K]) sweepOrphans() []NodeID {
	var removed []NodeID
	for {
		var batch []NodeIndex
		for _, idx := range p.NodeIndices() {
			if idx != p.root && len(p.incoming[idx]) == 0 {
				batch = append(batch, idx)
			}
		}
		if len(batch) == 0 {
			return removed
		}
		for _, idx := range batch {
			removed = append(removed, p.nodes[idx].ID())
			p.removeNode(idx)
		}
	}
}

func (p *Partition[N, E, K]) clone() *Partition[N, E, K] {
	c := emptyPartition[N, E, K]()
	for idx, w := range p.nodes {
		cw := w.clone()
		c.nodes[idx] = &cw
	}
	for ei, e := range p.edges {
		ce := *e
		c.edges[ei] = &ce
	}
	for idx, list := range p.outgoing {
		c.outgoing[idx] = slices.Clone(list)
	}
	for idx, list := range p.incoming {
		c.incoming[idx] = slices.Clone(list)
	}
	for id, idx := range p.byID {
		c.byID[id] = idx
	}
	for lineage, set := range p.byLineage {
		cs := make(map[NodeIndex]struct{}, len(set))
		for idx := range set {
			cs[idx] = struct{}{}
		}
		c.byLineage[lineage] = cs
	}
	for idx := range p.dirty {
		c.dirty[idx] = struct{}{}
	}
	c.root, c.nextNode, c.nextEdge = p.root, p.nextNode, p.nextEdge
	return c
}

// NodeRecord is a node as stored in a PartitionRecord.
type NodeRecord[N CustomNode[N]] struct {
	Index  NodeIndex     `msgpack:"i"`
	Weight NodeWeight[N] `msgpack:"w"`
}

// PartitionRecord is the serializable form of a partition. Indices are
// preserved so directory references stay valid.
type PartitionRecord[N CustomNode[N], E CustomEdge[E, K], K EdgeKind] struct {
	Root     NodeIndex            `msgpack:"root"`
	NextNode NodeIndex            `msgpack:"next_node"`
	NextEdge EdgeIndex            `msgpack:"next_edge"`
	Nodes    []NodeRecord[N]      `msgpack:"nodes"`
	Edges    []PhysicalEdge[E, K] `msgpack:"edges"`
}

// Record snapshots the partition for persistence.
func (p *Partition[N, E, K]) Record() *PartitionRecord[N, E, K] {
	rec := &PartitionRecord[N, E, K]{
		Root:     p.root,
		NextNode: p.nextNode,
		NextEdge: p.nextEdge,
		Edges:    p.Edges(),
	}
	for _, idx := range p.NodeIndices() {
		rec.Nodes = append(rec.Nodes, NodeRecord[N]{Index: idx, Weight: p.nodes[idx].clone()})
	}
	return rec
}

// PartitionFromRecord rebuilds a partition, checking that the root and
// every edge endpoint exist.
func PartitionFromRecord[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](rec *PartitionRecord[N, E, K]) (*Partition[N, E, K], error) {
	p := emptyPartition[N, E, K]()
	for _, nr := range rec.Nodes {
		w := nr.Weight.clone()
		p.nodes[nr.Index] = &w
		p.byID[w.ID()] = nr.Index
		p.indexLineage(w.LineageID(), nr.Index)
	}
	if _, ok := p.nodes[rec.Root]; !ok {
		return nil, ErrRootNotFound
	}
	for _, e := range rec.Edges {
		if _, ok := p.nodes[e.Source]; !ok {
			return nil, fmt.Errorf("edge %d: %w: %d", e.Index, ErrNodeNotFoundAtIndex, e.Source)
		}
		if _, ok := p.nodes[e.Target]; !ok {
			return nil, fmt.Errorf("edge %d: %w: %d", e.Index, ErrNodeNotFoundAtIndex, e.Target)
		}
		ce := e
		p.edges[e.Index] = &ce
		p.outgoing[e.Source] = append(p.outgoing[e.Source], e.Index)
		p.incoming[e.Target] = append(p.incoming[e.Target], e.Index)
	}
	p.root, p.nextNode, p.nextEdge = rec.Root, rec.NextNode, rec.NextEdge
	return p, nil
}
