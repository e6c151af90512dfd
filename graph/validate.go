package graph

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
)

// Validate checks the structural invariants the mutation helpers maintain
// and returns every violation found, or nil.
//
// Checked: roots have the right variant and no incoming edges, ids are unique
// across partitions, every ordering node's order is a permutation of its
// Ordinal targets, every placeholder pairs with an ExternalSource edge and a
// reverse-index entry, and the reverse index names only existing cross edges.
func (g *SplitGraph[N, E, K]) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]any{ErrInvalidGraph}, args...)...))
	}

	home := make(map[NodeID]int)
	for pi, p := range g.partitions {
		root := p.nodes[p.root]
		want := NodeSubGraphRoot
		if pi == g.dir.rootIndex.Partition {
			want = NodeGraphRoot
		}
		if root.Variant != want {
			fail("partition %d root is %s, want %s", pi, root.Variant, want)
		}
		if n := len(p.incoming[p.root]); n > 0 {
			fail("partition %d root has %d incoming edges", pi, n)
		}
		for _, idx := range p.NodeIndices() {
			id := p.nodes[idx].ID()
			if other, dup := home[id]; dup {
				fail("node %s is in partitions %d and %d", id, other, pi)
				continue
			}
			home[id] = pi
		}
	}

	expected := make(map[CrossEdge[K]]struct{})
	for pi, p := range g.partitions {
		for _, idx := range p.NodeIndices() {
			w := p.nodes[idx]
			switch w.Variant {
			case NodeOrdering:
				g.validateOrdering(p, pi, idx, fail)
			case NodeExternalTarget:
				for _, ce := range g.validatePlaceholder(p, pi, idx, home, fail) {
					expected[ce] = struct{}{}
				}
			}
		}
		for _, pe := range p.Outgoing(p.root) {
			ext, ok := pe.Weight.ExternalSource()
			if !ok {
				continue
			}
			target := p.nodes[pe.Target].ID()
			sp, ok := home[ext.SourceID]
			if !ok {
				fail("partition %d ExternalSource edge to %s names missing source %s", pi, target, ext.SourceID)
				continue
			}
			source := g.partitions[sp]
			if _, ok := g.placeholderFor(source, source.byID[ext.SourceID], ext.Kind, target); !ok {
				fail("ExternalSource edge %s -%s-> %s has no placeholder", ext.SourceID, ext.Kind, target)
			}
		}
	}

	for _, list := range g.dir.bySource {
		for _, ce := range list {
			if _, ok := expected[ce]; !ok {
				fail("reverse index entry %s -%s-> %s has no cross edge", ce.SourceID, ce.Kind, ce.TargetID)
			}
		}
	}
	return result.ErrorOrNil()
}

func (g *SplitGraph[N, E, K]) validateOrdering(p *Partition[N, E, K], pi int, idx NodeIndex, fail func(string, ...any)) {
	w := p.nodes[idx]
	var targets []NodeID
	for _, pe := range p.Outgoing(idx) {
		if pe.Weight.Variant == EdgeOrdinal {
			targets = append(targets, p.nodes[pe.Target].ID())
		}
	}
	order := slices.Clone(w.Order)
	slices.SortFunc(order, NodeID.Compare)
	slices.SortFunc(targets, NodeID.Compare)
	if !slices.Equal(order, targets) {
		fail("partition %d ordering node %s order %d ids, ordinal edges %d", pi, w.ID(), len(order), len(targets))
	}
}

func (g *SplitGraph[N, E, K]) validatePlaceholder(p *Partition[N, E, K], pi int, idx NodeIndex, home map[NodeID]int, fail func(string, ...any)) []CrossEdge[K] {
	w := p.nodes[idx]
	tp, ok := home[w.Target]
	if !ok {
		fail("placeholder %s targets missing node %s", w.ID(), w.Target)
		return nil
	}
	if tp == pi {
		fail("placeholder %s targets %s in its own partition", w.ID(), w.Target)
	}
	var found []CrossEdge[K]
	for _, pe := range p.Incoming(idx) {
		if pe.Weight.Variant != EdgeCustom {
			continue
		}
		ce := CrossEdge[K]{SourceID: p.nodes[pe.Source].ID(), TargetID: w.Target, Kind: pe.Weight.Custom.Kind()}
		found = append(found, ce)
		if _, _, ok := g.externalSourceEdge(ce.SourceID, ce.Kind, ce.TargetID); !ok {
			fail("cross edge %s -%s-> %s has no ExternalSource edge", ce.SourceID, ce.Kind, ce.TargetID)
		}
		if !slices.Contains(g.dir.bySource[ce.SourceID], ce) {
			fail("cross edge %s -%s-> %s missing from reverse index", ce.SourceID, ce.Kind, ce.TargetID)
		}
	}
	if len(found) == 0 {
		fail("placeholder %s has no incoming custom edge", w.ID())
	}
	return found
}
