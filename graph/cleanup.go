package graph

import "go.uber.org/zap"

// CleanupStats summarizes a garbage collection run.
type CleanupStats struct {
	Passes       int
	NodesRemoved int
	EdgesDropped int
}

// Cleanup removes every non-root node left without incoming edges, repeating
// until a pass removes nothing. Each pass first drops the ExternalSource
// edges recorded from ids removed by the previous pass, which strands their
// targets for this pass's sweep.
func (g *SplitGraph[N, E, K]) Cleanup() CleanupStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	var stats CleanupStats
	removed := make(map[NodeID]struct{})
	for {
		stats.Passes++
		swept := make(map[NodeID]struct{})
		dropped := 0
		for _, p := range g.partitions {
			if len(removed) > 0 {
				dropped += p.dropExternalSources(removed)
			}
			for _, id := range p.sweepOrphans() {
				swept[id] = struct{}{}
			}
		}
		for id := range swept {
			g.cache.Delete(id)
			g.dir.dropSource(id)
		}
		stats.NodesRemoved += len(swept)
		stats.EdgesDropped += dropped
		g.metrics.GCPass(len(swept))
		g.log.Debug("gc pass",
			zap.Int("pass", stats.Passes),
			zap.Int("removed", len(swept)),
			zap.Int("dropped", dropped),
		)
		if len(swept) == 0 {
			break
		}
		removed = swept
	}
	g.rebuildReverseIndex()
	return stats
}
