package graph

import (
	"go.uber.org/zap"
)

// SkippedUpdate is an update PerformUpdates could not resolve.
type SkippedUpdate struct {
	Index  int
	Kind   UpdateKind
	Reason string
}

// ReplayReport summarizes a PerformUpdates call.
type ReplayReport struct {
	Applied int
	Skipped []SkippedUpdate
}

const (
	reasonPartition = "partition not found"
	reasonNode      = "node not found"
	reasonEndpoints = "edge endpoint not found"
)

// PerformUpdates applies updates in order. An update whose partition or
// nodes cannot be resolved is skipped and reported rather than failing the
// batch, so a failure partway leaves g partially updated; clone first when
// that matters. NewSubGraph must precede the updates into its partition.
func (g *SplitGraph[N, E, K]) PerformUpdates(updates []Update[N, E, K]) ReplayReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	byRoot := make(map[NodeID]int, len(g.partitions))
	for i, p := range g.partitions {
		byRoot[p.RootID()] = i
	}

	var report ReplayReport
	skip := func(i int, u Update[N, E, K], reason string) {
		report.Skipped = append(report.Skipped, SkippedUpdate{Index: i, Kind: u.Kind, Reason: reason})
		g.metrics.UpdateSkipped(u.Kind.String())
		g.log.Warn("skipping update",
			zap.Int("index", i),
			zap.Stringer("kind", u.Kind),
			zap.String("root", u.SubGraphRootID.String()),
			zap.String("reason", reason),
		)
	}

	for i, u := range updates {
		if u.Kind == UpdateNewSubGraph {
			if _, ok := byRoot[u.SubGraphRootID]; !ok {
				byRoot[u.SubGraphRootID] = g.appendPartition(subGraphRootWeight[N](u.SubGraphRootID))
			}
			report.Applied++
			g.metrics.UpdateApplied()
			continue
		}

		pi, ok := byRoot[u.SubGraphRootID]
		if !ok {
			skip(i, u, reasonPartition)
			continue
		}
		p := g.partitions[pi]

		switch u.Kind {
		case UpdateNewNode:
			w := u.Node.clone()
			if idx, ok := p.IndexOf(w.ID()); ok {
				_ = p.replaceNode(idx, w)
			} else {
				p.addNode(w)
			}

		case UpdateReplaceNode:
			lookup := u.Node.ID()
			if !u.BaseNodeID.IsNil() {
				lookup = u.BaseNodeID
			}
			idx, ok := p.IndexOf(lookup)
			if !ok {
				skip(i, u, reasonNode)
				continue
			}
			_ = p.replaceNode(idx, u.Node.clone())

		case UpdateRemoveNode:
			idx, ok := p.IndexOf(u.ID)
			if !ok {
				skip(i, u, reasonNode)
				continue
			}
			if idx == p.root {
				skip(i, u, reasonNode)
				continue
			}
			p.removeNode(idx)

		case UpdateNewEdge:
			from, fok := p.IndexOf(u.Source)
			to, tok := p.IndexOf(u.Destination)
			if !fok || !tok {
				skip(i, u, reasonEndpoints)
				continue
			}
			if u.EdgeWeight.IsDefault() {
				demoteRawDefaults(p, from, u.EdgeWeight, to)
			}
			_, _, _ = p.addEdge(from, u.EdgeWeight, to)

		case UpdateRemoveEdge:
			from, fok := p.IndexOf(u.Source)
			to, tok := p.IndexOf(u.Destination)
			if !fok || !tok {
				skip(i, u, reasonEndpoints)
				continue
			}
			key := edgeKey[K]{kind: u.EdgeKind}
			if u.ExternalSource != nil {
				key.source = u.ExternalSource.SourceID
			}
			if ei, ok := p.findEdge(from, key, to); ok {
				p.detachEdge(ei)
			}
		}
		report.Applied++
		g.metrics.UpdateApplied()
	}

	g.rebuildReverseIndex()
	g.resetCache()
	g.log.Debug("updates performed",
		zap.Int("applied", report.Applied),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report
}

// demoteRawDefaults clears the default flag of source's other edges with
// w's key.
func demoteRawDefaults[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](p *Partition[N, E, K], source NodeIndex, w EdgeWeight[E, K], keep NodeIndex) {
	key := w.key()
	for _, ei := range p.outgoing[source] {
		pe := p.edges[ei]
		if pe.Target == keep || !pe.Weight.IsDefault() || pe.Weight.key() != key {
			continue
		}
		p.setEdgeWeight(ei, pe.Weight.CloneAsNonDefault())
	}
}
