package graph

import "fmt"

// RewriteNodeID gives the node old the id next and the lineage nextLineage.
// Every placeholder targeting old, every ExternalSource edge recorded from
// old and the reverse index follow. Lookups are done before anything is
// changed, so a failed rewrite leaves the graph untouched.
func (g *SplitGraph[N, E, K]) RewriteNodeID(old, next, nextLineage NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	gi, p, w, err := g.resolve(old)
	if err != nil {
		return err
	}
	if old != next {
		if _, exists := g.locate(next); exists {
			return fmt.Errorf("rewriting %s to %s: %w", old, next, ErrNodeIDExists)
		}
	}

	type placeholderFix struct {
		p      *Partition[N, E, K]
		idx    NodeIndex
		source NodeID
	}
	type sourceFix struct {
		p  *Partition[N, E, K]
		ei EdgeIndex
	}
	var placeholders []placeholderFix
	var sources []sourceFix

	if old != next {
		for _, pe := range p.Incoming(gi.Index) {
			ext, ok := pe.Weight.ExternalSource()
			if !ok {
				continue
			}
			sl, ok := g.locate(ext.SourceID)
			if !ok {
				return fmt.Errorf("rewriting %s: %w", old, notFound(ext.SourceID))
			}
			sp := g.partitions[sl.Partition]
			if ph, ok := g.placeholderFor(sp, sl.Index, ext.Kind, old); ok {
				placeholders = append(placeholders, placeholderFix{p: sp, idx: ph, source: ext.SourceID})
			}
		}
		for _, ce := range g.dir.CrossEdgesFrom(old) {
			if tp, ei, ok := g.externalSourceEdge(old, ce.Kind, ce.TargetID); ok {
				sources = append(sources, sourceFix{p: tp, ei: ei})
			}
		}
	}

	for _, fix := range placeholders {
		pw := fix.p.nodes[fix.idx].clone()
		pw.Target = next
		if err := fix.p.replaceNode(fix.idx, pw); err != nil {
			return err
		}
		g.dir.retarget(fix.source, old, next)
	}
	for _, fix := range sources {
		ew := fix.p.edges[fix.ei].Weight
		ew.SourceID = next
		fix.p.setEdgeWeight(fix.ei, ew)
	}
	g.dir.rekeySource(old, next)

	nw := w.clone()
	nw.setID(next)
	nw.setLineageID(nextLineage)
	if err := p.replaceNode(gi.Index, nw); err != nil {
		return err
	}
	for _, pe := range p.Incoming(gi.Index) {
		if pe.Weight.Variant != EdgeOrdinal {
			continue
		}
		ow := p.nodes[pe.Source]
		for i, id := range ow.Order {
			if id == old {
				ow.Order[i] = next
			}
		}
		p.touch(pe.Source)
	}

	g.cache.Delete(old)
	g.cache.Store(next, gi)
	return nil
}
