package graph

import (
	"slices"

	"splitgraph/cas"
)

// Change records that an entity's merkle tree hash changed.
type Change struct {
	EntityID       NodeID     `msgpack:"id"`
	EntityKind     EntityKind `msgpack:"kind"`
	MerkleTreeHash cas.Hash   `msgpack:"hash"`
}

// detectChanges walks the updated partition and records every custom or
// root node whose merkle tree hash differs from the base. Placeholders and
// ordering nodes are skipped; their changes surface through their owners.
func (d *detector[N, E, K]) detectChanges() []Change {
	var changes []Change
	d.updated.depthFirst(d.updated.root, make(map[NodeIndex]struct{}),
		func(idx NodeIndex) dfsControl {
			w := d.updated.nodes[idx]
			if w.Variant == NodeExternalTarget || w.Variant == NodeOrdering {
				return dfsPrune
			}
			if _, bw, ok := d.base.nodeByID(w.ID()); ok && bw.MerkleTreeHash() == w.MerkleTreeHash() {
				return dfsPrune
			}
			if w.Variant != NodeSubGraphRoot {
				changes = append(changes, Change{
					EntityID:       w.ID(),
					EntityKind:     w.EntityKind(),
					MerkleTreeHash: w.MerkleTreeHash(),
				})
			}
			return dfsContinue
		},
		func(NodeIndex) dfsControl { return dfsContinue })
	return changes
}

// DetectChanges computes the change log between g and updated: the custom
// and root nodes that were added, modified or removed, preceded by every
// transitive parent of a changed node that did not change itself. A parent's
// synthetic hash combines the child's hash with the parent's own.
func (g *SplitGraph[N, E, K]) DetectChanges(updated *SplitGraph[N, E, K]) []Change {
	if g == updated {
		return nil
	}
	defer g.rlockPair(updated)()

	var changes []Change
	detected := make(map[NodeID]struct{})
	for i, up := range updated.partitions {
		if i >= len(g.partitions) {
			for _, idx := range up.NodeIndices() {
				w := up.nodes[idx]
				if w.Variant != NodeCustom && w.Variant != NodeGraphRoot {
					continue
				}
				detected[w.ID()] = struct{}{}
				changes = append(changes, Change{EntityID: w.ID(), EntityKind: w.EntityKind(), MerkleTreeHash: w.MerkleTreeHash()})
			}
			continue
		}

		base := g.partitions[i]
		found := newDetector(base, up, i).detectChanges()
		for _, c := range found {
			detected[c.EntityID] = struct{}{}
		}
		var removed []NodeID
		for id, bi := range base.byID {
			if _, ok := up.byID[id]; ok {
				continue
			}
			if base.nodes[bi].Variant == NodeCustom {
				removed = append(removed, id)
			}
		}
		slices.SortFunc(removed, NodeID.Compare)
		for _, id := range removed {
			w := base.nodes[base.byID[id]]
			found = append(found, Change{EntityID: id, EntityKind: w.EntityKind(), MerkleTreeHash: w.MerkleTreeHash()})
		}
		changes = append(changes, found...)
	}

	var parents []Change
	for _, c := range changes {
		for _, pid := range ancestorsIn(c.EntityID, updated, g) {
			if _, ok := detected[pid]; ok {
				continue
			}
			detected[pid] = struct{}{}
			w, ok := rawWeightIn(pid, updated, g)
			if !ok || (w.Variant != NodeCustom && w.Variant != NodeGraphRoot) {
				continue
			}
			parents = append(parents, Change{
				EntityID:       pid,
				EntityKind:     w.EntityKind(),
				MerkleTreeHash: cas.Combine(c.MerkleTreeHash, w.MerkleTreeHash()),
			})
		}
	}
	return append(parents, changes...)
}

// ancestorsIn collects id's transitive parents from each graph that still
// holds id, farthest first.
func ancestorsIn[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](id NodeID, graphs ...*SplitGraph[N, E, K]) []NodeID {
	var out []NodeID
	seen := make(map[NodeID]struct{})
	for _, g := range graphs {
		if _, ok := g.locate(id); !ok {
			continue
		}
		parents := g.parentsOf(id)
		slices.Reverse(parents)
		for _, p := range parents {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}
	return out
}

func rawWeightIn[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](id NodeID, graphs ...*SplitGraph[N, E, K]) (*NodeWeight[N], bool) {
	for _, g := range graphs {
		if gi, ok := g.locate(id); ok {
			return g.partitions[gi.Partition].nodes[gi.Index], true
		}
	}
	return nil, false
}
