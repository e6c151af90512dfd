package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitgraph/graph"
	"splitgraph/model"
)

type modelStore = Store[*model.Node, model.Edge, model.EdgeType]

var (
	_ graph.ShardReader[*model.Node, model.Edge, model.EdgeType] = (*modelStore)(nil)
	_ graph.ShardWriter[*model.Node, model.Edge, model.EdgeType] = (*modelStore)(nil)
)

func newModelStore(t *testing.T, b Backend) *modelStore {
	t.Helper()
	c, err := NewCodec("default")
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return New[*model.Node, model.Edge, model.EdgeType](b, c, nil)
}

func seeded(t *testing.T, threshold int) *model.Graph {
	t.Helper()
	g, err := model.NewGraph(threshold)
	require.NoError(t, err)
	_, err = model.Seed(g, model.SeedOptions{Components: 4, PropsPerComponent: 3})
	require.NoError(t, err)
	g.RecalculateAllHashes()
	return g
}

func summary(t *testing.T, g *model.Graph) map[graph.NodeID]string {
	t.Helper()
	out := make(map[graph.NodeID]string)
	for _, n := range g.CustomNodes() {
		out[n.ID()] = n.NodeHash().String() + "/" + n.MerkleTreeHash().String()
	}
	return out
}

func TestStore_SaveOpen(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	defer db.Close()
	s := newModelStore(t, db)

	g := seeded(t, 4)
	require.Greater(t, g.PartitionCount(), 1)
	addr, err := s.Save(ctx, g, "head")
	require.NoError(t, err)

	parts, err := db.List(ctx, KindPartition)
	require.NoError(t, err)
	assert.Len(t, parts, g.PartitionCount())

	loaded, got, err := s.Open(ctx, "head")
	require.NoError(t, err)
	assert.Equal(t, addr, got)
	require.NoError(t, loaded.Validate())
	assert.Equal(t, summary(t, g), summary(t, loaded))
	assert.Equal(t, g.NodeCount(), loaded.NodeCount())
	assert.Equal(t, g.EdgeCount(), loaded.EdgeCount())
	assert.Empty(t, g.DetectUpdates(loaded), "a loaded graph has no structural differences")

	// Unchanged content lands on the same address.
	again, err := s.Save(ctx, loaded, "")
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestStore_OpenMissing(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := newModelStore(t, mem)

	g := seeded(t, 4)
	addr, err := s.Save(ctx, g, "")
	require.NoError(t, err)

	dir, err := s.ReadDirectory(ctx, addr)
	require.NoError(t, err)
	delete(mem.blobs, dir.Addresses[1])

	_, _, err = s.Open(ctx, addr.String())
	require.ErrorIs(t, err, graph.ErrShardRead)
	assert.ErrorIs(t, err, ErrNotFound)
}
