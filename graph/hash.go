package graph

// RecalculateHashes recomputes the merkle tree hash of every dirty node and
// its ancestors, children before parents, and clears dirtiness. It returns
// the number of nodes rehashed.
func (g *SplitGraph[N, E, K]) RecalculateHashes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, p := range g.partitions {
		n += p.recalculateHashes(false)
	}
	return n
}

// RecalculateAllHashes recomputes every node's merkle tree hash.
func (g *SplitGraph[N, E, K]) RecalculateAllHashes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, p := range g.partitions {
		n += p.recalculateHashes(true)
	}
	return n
}

// IsDirty reports whether id has changed since the last recalculation.
func (g *SplitGraph[N, E, K]) IsDirty(id NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	gi, ok := g.locate(id)
	if !ok {
		return false
	}
	return g.partitions[gi.Partition].isDirty(gi.Index)
}

// DirtyNodes lists the dirty nodes, partition by partition.
func (g *SplitGraph[N, E, K]) DirtyNodes() []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []NodeID
	for _, p := range g.partitions {
		for _, idx := range p.dirtyIndices() {
			out = append(out, p.nodes[idx].ID())
		}
	}
	return out
}
