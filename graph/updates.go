package graph

import (
	"fmt"
	"slices"
)

// UpdateKind tags the arms of Update.
type UpdateKind uint8

const (
	UpdateNewNode UpdateKind = iota
	UpdateReplaceNode
	UpdateRemoveNode
	UpdateNewEdge
	UpdateRemoveEdge
	UpdateNewSubGraph
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateNewNode:
		return "NewNode"
	case UpdateReplaceNode:
		return "ReplaceNode"
	case UpdateRemoveNode:
		return "RemoveNode"
	case UpdateNewEdge:
		return "NewEdge"
	case UpdateRemoveEdge:
		return "RemoveEdge"
	case UpdateNewSubGraph:
		return "NewSubGraph"
	default:
		return fmt.Sprintf("UpdateKind(%d)", uint8(k))
	}
}

// Update is one structural difference between two versions of a graph.
// SubGraphRootID names the partition it applies to; Partition is the
// partition's position in the graph it was computed from.
type Update[N CustomNode[N], E CustomEdge[E, K], K EdgeKind] struct {
	Kind           UpdateKind `msgpack:"kind"`
	Partition      int        `msgpack:"partition"`
	SubGraphRootID NodeID     `msgpack:"root"`

	// NewNode, ReplaceNode
	Node NodeWeight[N] `msgpack:"node"`
	// ReplaceNode of a node whose id was rewritten: its id in the base.
	BaseNodeID NodeID `msgpack:"base_id,omitempty"`

	// RemoveNode
	ID NodeID `msgpack:"id,omitempty"`

	// NewEdge, RemoveEdge
	Source         NodeID                 `msgpack:"source,omitempty"`
	Destination    NodeID                 `msgpack:"destination,omitempty"`
	EdgeWeight     EdgeWeight[E, K]       `msgpack:"edge"`
	EdgeKind       EdgeWeightKind[K]      `msgpack:"edge_kind"`
	ExternalSource *ExternalSourceData[K] `msgpack:"external_source,omitempty"`
}

func (u Update[N, E, K]) String() string {
	switch u.Kind {
	case UpdateNewNode, UpdateReplaceNode:
		return fmt.Sprintf("%s %s", u.Kind, u.Node.Describe())
	case UpdateRemoveNode:
		return fmt.Sprintf("%s %s", u.Kind, u.ID)
	case UpdateNewEdge:
		return fmt.Sprintf("%s %s -%s-> %s", u.Kind, u.Source.Short(), u.EdgeWeight.Kind(), u.Destination.Short())
	case UpdateRemoveEdge:
		return fmt.Sprintf("%s %s -%s-> %s", u.Kind, u.Source.Short(), u.EdgeKind, u.Destination.Short())
	default:
		return fmt.Sprintf("%s %s", u.Kind, u.SubGraphRootID)
	}
}

type nodeDifference int

const (
	diffNone nodeDifference = iota
	diffNew
	diffHash
)

// detector compares one partition of the base graph with the partition at
// the same position in the updated graph.
type detector[N CustomNode[N], E CustomEdge[E, K], K EdgeKind] struct {
	base    *Partition[N, E, K]
	updated *Partition[N, E, K]
	index   int
	rootID  NodeID
}

func newDetector[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](base, updated *Partition[N, E, K], index int) *detector[N, E, K] {
	return &detector[N, E, K]{base: base, updated: updated, index: index, rootID: updated.RootID()}
}

func (d *detector[N, E, K]) update(kind UpdateKind) Update[N, E, K] {
	return Update[N, E, K]{Kind: kind, Partition: d.index, SubGraphRootID: d.rootID}
}

// diff matches an updated node to base nodes of the same lineage, or the
// base root for the root, and returns the ones whose hash differs.
func (d *detector[N, E, K]) diff(idx NodeIndex) (nodeDifference, []NodeIndex) {
	w := d.updated.nodes[idx]
	var candidates []NodeIndex
	if idx == d.updated.root {
		candidates = []NodeIndex{d.base.root}
	} else {
		candidates = d.base.nodesByLineage(w.LineageID())
	}
	if len(candidates) == 0 {
		return diffNew, nil
	}
	var differing []NodeIndex
	for _, bi := range candidates {
		if d.base.nodes[bi].MerkleTreeHash() != w.MerkleTreeHash() {
			differing = append(differing, bi)
		}
	}
	if len(differing) == 0 {
		return diffNone, nil
	}
	return diffHash, differing
}

// detectUpdates walks the updated partition depth-first, skipping subtrees
// whose merkle tree hash matches the base. New nodes are emitted when
// discovered so they precede the edges that reference them.
func (d *detector[N, E, K]) detectUpdates() []Update[N, E, K] {
	var updates []Update[N, E, K]
	type entry struct {
		kind  nodeDifference
		bases []NodeIndex
	}
	seen := make(map[NodeIndex]entry)

	d.updated.depthFirst(d.updated.root, make(map[NodeIndex]struct{}),
		func(idx NodeIndex) dfsControl {
			kind, bases := d.diff(idx)
			seen[idx] = entry{kind: kind, bases: bases}
			switch kind {
			case diffNew:
				u := d.update(UpdateNewNode)
				u.Node = d.updated.nodes[idx].clone()
				updates = append(updates, u)
				return dfsContinue
			case diffHash:
				return dfsContinue
			default:
				return dfsPrune
			}
		},
		func(idx NodeIndex) dfsControl {
			e := seen[idx]
			switch e.kind {
			case diffNew:
				updates = append(updates, d.outgoingAsNewEdges(idx)...)
			case diffHash:
				updates = append(updates, d.detectNodeUpdates(idx, e.bases)...)
			}
			return dfsContinue
		})

	// A base node matched by lineage to a node with a new id is re-keyed by
	// its ReplaceNode, so it is not removed.
	rekeyed := make(map[NodeID]struct{})
	for idx, e := range seen {
		id := d.updated.nodes[idx].ID()
		for _, bi := range e.bases {
			if bid := d.base.nodes[bi].ID(); bid != id {
				rekeyed[bid] = struct{}{}
			}
		}
	}

	var removed []NodeID
	for id := range d.base.byID {
		if _, ok := d.updated.byID[id]; ok {
			continue
		}
		if _, ok := rekeyed[id]; ok {
			continue
		}
		removed = append(removed, id)
	}
	slices.SortFunc(removed, NodeID.Compare)
	for _, id := range removed {
		u := d.update(UpdateRemoveNode)
		u.ID = id
		updates = append(updates, u)
	}
	return updates
}

func (d *detector[N, E, K]) outgoingAsNewEdges(idx NodeIndex) []Update[N, E, K] {
	var out []Update[N, E, K]
	source := d.updated.nodes[idx].ID()
	for _, pe := range d.updated.Outgoing(idx) {
		u := d.update(UpdateNewEdge)
		u.Source = source
		u.Destination = d.updated.nodes[pe.Target].ID()
		u.EdgeWeight = pe.Weight
		out = append(out, u)
	}
	return out
}

// uniqueEdge identifies an outgoing edge across versions.
type uniqueEdge[K EdgeKind] struct {
	kind          EdgeWeightKind[K]
	entropy       string
	hasExternal   bool
	external      ExternalSourceData[K]
	targetLineage NodeID
}

type edgeInfo[E CustomEdge[E, K], K EdgeKind] struct {
	key    uniqueEdge[K]
	source NodeID
	target NodeID
	weight EdgeWeight[E, K]
}

func outgoingInfo[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](p *Partition[N, E, K], idx NodeIndex) ([]edgeInfo[E, K], map[uniqueEdge[K]]struct{}) {
	source := p.nodes[idx].ID()
	var infos []edgeInfo[E, K]
	keys := make(map[uniqueEdge[K]]struct{})
	for _, pe := range p.Outgoing(idx) {
		target := p.nodes[pe.Target]
		key := uniqueEdge[K]{
			kind:          pe.Weight.Kind(),
			entropy:       string(pe.Weight.Entropy()),
			targetLineage: target.LineageID(),
		}
		if ext, ok := pe.Weight.ExternalSource(); ok {
			key.hasExternal = true
			key.external = ext
		}
		infos = append(infos, edgeInfo[E, K]{key: key, source: source, target: target.ID(), weight: pe.Weight})
		keys[key] = struct{}{}
	}
	return infos, keys
}

// detectNodeUpdates produces ReplaceNode, RemoveEdge and NewEdge updates for
// a node that differs from its base counterparts.
func (d *detector[N, E, K]) detectNodeUpdates(idx NodeIndex, bases []NodeIndex) []Update[N, E, K] {
	var updates []Update[N, E, K]
	uw := d.updated.nodes[idx]
	updatedInfos, updatedKeys := outgoingInfo(d.updated, idx)

	for _, bi := range bases {
		bw := d.base.nodes[bi]
		if uw.NodeHash() != bw.NodeHash() || uw.ID() != bw.ID() {
			u := d.update(UpdateReplaceNode)
			u.Node = uw.clone()
			if uw.ID() != bw.ID() {
				u.BaseNodeID = bw.ID()
			}
			updates = append(updates, u)
		}

		baseInfos, baseKeys := outgoingInfo(d.base, bi)
		for _, info := range baseInfos {
			if _, ok := updatedKeys[info.key]; ok {
				continue
			}
			u := d.update(UpdateRemoveEdge)
			u.Source = info.source
			u.Destination = info.target
			u.EdgeKind = info.weight.Kind()
			if ext, ok := info.weight.ExternalSource(); ok {
				u.ExternalSource = &ext
			}
			updates = append(updates, u)
		}
		for _, info := range updatedInfos {
			if _, ok := baseKeys[info.key]; ok {
				continue
			}
			u := d.update(UpdateNewEdge)
			u.Source = info.source
			u.Destination = info.target
			u.EdgeWeight = info.weight
			updates = append(updates, u)
		}
	}
	return updates
}

// partitionAsUpdates dumps a partition as NewNode and NewEdge updates in
// depth-first order from its root.
func partitionAsUpdates[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](p *Partition[N, E, K], index int) []Update[N, E, K] {
	var updates []Update[N, E, K]
	rootID := p.RootID()
	mk := func(kind UpdateKind) Update[N, E, K] {
		return Update[N, E, K]{Kind: kind, Partition: index, SubGraphRootID: rootID}
	}
	p.depthFirst(p.root, make(map[NodeIndex]struct{}),
		func(idx NodeIndex) dfsControl {
			u := mk(UpdateNewNode)
			u.Node = p.nodes[idx].clone()
			updates = append(updates, u)
			return dfsContinue
		},
		func(idx NodeIndex) dfsControl {
			for _, pe := range p.Outgoing(idx) {
				u := mk(UpdateNewEdge)
				u.Source = p.nodes[idx].ID()
				u.Destination = p.nodes[pe.Target].ID()
				u.EdgeWeight = pe.Weight
				updates = append(updates, u)
			}
			return dfsContinue
		})
	return updates
}

// DetectUpdates computes the updates that turn g into updated. Partitions
// are paired by position; a partition that only updated has is emitted as a
// NewSubGraph followed by its full contents.
func (g *SplitGraph[N, E, K]) DetectUpdates(updated *SplitGraph[N, E, K]) []Update[N, E, K] {
	if g == updated {
		return nil
	}
	defer g.rlockPair(updated)()

	var updates []Update[N, E, K]
	for i, up := range updated.partitions {
		if i < len(g.partitions) {
			updates = append(updates, newDetector(g.partitions[i], up, i).detectUpdates()...)
			continue
		}
		updates = append(updates, Update[N, E, K]{Kind: UpdateNewSubGraph, Partition: i, SubGraphRootID: up.RootID()})
		updates = append(updates, partitionAsUpdates(up, i)...)
	}
	return updates
}
