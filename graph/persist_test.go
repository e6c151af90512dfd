package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitgraph/cas"
)

// memShards keeps records in memory under sequential addresses.
type memShards struct {
	partitions map[Address]*PartitionRecord[*testNode, testEdge, testKind]
	dirs       map[Address]*DirectoryRecord
	n          int
	failWrites bool
}

func newMemShards() *memShards {
	return &memShards{
		partitions: make(map[Address]*PartitionRecord[*testNode, testEdge, testKind]),
		dirs:       make(map[Address]*DirectoryRecord),
	}
}

func (m *memShards) next() Address {
	m.n++
	return cas.Sum([]byte(fmt.Sprintf("shard-%d", m.n)))
}

func (m *memShards) WritePartition(_ context.Context, rec *PartitionRecord[*testNode, testEdge, testKind]) (Address, error) {
	if m.failWrites {
		return Address{}, errors.New("disk full")
	}
	addr := m.next()
	m.partitions[addr] = rec
	return addr, nil
}

func (m *memShards) WriteDirectory(_ context.Context, rec *DirectoryRecord) (Address, error) {
	addr := m.next()
	m.dirs[addr] = rec
	return addr, nil
}

func (m *memShards) ReadPartition(_ context.Context, addr Address) (*PartitionRecord[*testNode, testEdge, testKind], error) {
	rec, ok := m.partitions[addr]
	if !ok {
		return nil, errors.New("no such partition")
	}
	return rec, nil
}

func (m *memShards) ReadDirectory(_ context.Context, addr Address) (*DirectoryRecord, error) {
	rec, ok := m.dirs[addr]
	if !ok {
		return nil, errors.New("no such directory")
	}
	return rec, nil
}

func buildPersistable(t *testing.T) *testGraph {
	t.Helper()
	g := newTestGraph(t, 2)
	root := mustRoot(t, g)
	a, err := g.AddOrderedNode(newTestNode("A"))
	require.NoError(t, err)
	b := addTestNode(t, g, "B")
	c := addTestNode(t, g, "C")
	require.NoError(t, g.AddEdge(root, uses(""), a))
	require.NoError(t, g.AddOrderedEdge(a, uses(""), b))
	require.NoError(t, g.AddOrderedEdge(a, defaultUses("c"), c))
	g.RecalculateAllHashes()
	return g
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	g := buildPersistable(t)
	shards := newMemShards()

	addr, err := g.Persist(ctx, shards)
	require.NoError(t, err)
	assert.False(t, addr.IsNil())
	for i, pa := range g.Directory().Addresses() {
		assert.False(t, pa.IsNil(), "partition %d has an address", i)
	}

	loaded, err := Load[*testNode, testEdge, testKind](ctx, shards, addr)
	require.NoError(t, err)
	require.NoError(t, loaded.Validate())

	assert.Equal(t, g.PartitionCount(), loaded.PartitionCount())
	assert.Equal(t, g.Threshold(), loaded.Threshold())
	assert.Equal(t, mustRoot(t, g), mustRoot(t, loaded))
	assert.Equal(t, nodeSet(t, g), nodeSet(t, loaded))
	assert.Equal(t, edgeSet(t, g), edgeSet(t, loaded))
	assert.Equal(t, g.Directory().CrossEdgeCount(), loaded.Directory().CrossEdgeCount())
	assert.Empty(t, loaded.DirtyNodes(), "hashes are loaded with the nodes")

	// The loaded graph owns its nodes.
	a := g.CustomNodes()[0]
	ln, err := loaded.NodeWeight(a.ID())
	require.NoError(t, err)
	ln.value = "mutated"
	orig, err := g.NodeWeight(a.ID())
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", orig.value)
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	g := buildPersistable(t)
	shards := newMemShards()
	addr, err := g.Persist(ctx, shards)
	require.NoError(t, err)

	t.Run("unknown directory", func(t *testing.T) {
		_, err := Load[*testNode, testEdge, testKind](ctx, shards, cas.Sum([]byte("nope")))
		require.ErrorIs(t, err, ErrShardRead)
		var re *ShardReadError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, cas.Sum([]byte("nope")), re.Address)
	})

	t.Run("unpersisted partition", func(t *testing.T) {
		dir := *shards.dirs[addr]
		dir.Addresses = append([]Address{cas.Nil}, dir.Addresses[1:]...)
		shards.dirs[cas.Sum([]byte("partial"))] = &dir
		_, err := Load[*testNode, testEdge, testKind](ctx, shards, cas.Sum([]byte("partial")))
		assert.ErrorIs(t, err, ErrShardMissing)
	})

	t.Run("missing partition", func(t *testing.T) {
		dir := *shards.dirs[addr]
		dir.Addresses = append([]Address{cas.Sum([]byte("gone"))}, dir.Addresses[1:]...)
		shards.dirs[cas.Sum([]byte("broken"))] = &dir
		_, err := Load[*testNode, testEdge, testKind](ctx, shards, cas.Sum([]byte("broken")))
		assert.ErrorIs(t, err, ErrShardRead)
	})

	t.Run("write failure", func(t *testing.T) {
		failing := newMemShards()
		failing.failWrites = true
		_, err := g.Persist(ctx, failing)
		require.ErrorIs(t, err, ErrShardWrite)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Load[*testNode, testEdge, testKind](cctx, shards, addr)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFromParts_Validation(t *testing.T) {
	g := buildPersistable(t)
	dir := g.Directory().Record()
	var parts []*PartitionRecord[*testNode, testEdge, testKind]
	for i := 0; i < g.PartitionCount(); i++ {
		p, err := g.Partition(i)
		require.NoError(t, err)
		parts = append(parts, p.Record())
	}

	_, err := FromParts(dir, parts)
	require.NoError(t, err)

	bad := *dir
	bad.Threshold = 0
	_, err = FromParts(&bad, parts)
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	bad = *dir
	bad.RootPartition = 1
	_, err = FromParts(&bad, parts)
	assert.ErrorIs(t, err, ErrRootNotFound)

	_, err = FromParts[*testNode, testEdge, testKind](dir, nil)
	assert.ErrorIs(t, err, ErrRootNotFound)

	broken := *parts[0]
	broken.Edges = append(broken.Edges, PhysicalEdge[testEdge, testKind]{Index: 999, Source: 0, Target: 12345})
	_, err = FromParts(dir, []*PartitionRecord[*testNode, testEdge, testKind]{&broken, parts[1]})
	assert.ErrorIs(t, err, ErrNodeNotFoundAtIndex)
}

func TestWriteDot(t *testing.T) {
	g := buildPersistable(t)
	var buf bytes.Buffer
	require.NoError(t, g.WriteDot(&buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "digraph splitgraph {"))
	for i := 0; i < g.PartitionCount(); i++ {
		assert.Contains(t, out, fmt.Sprintf("subgraph cluster_%d {", i))
	}
	assert.Contains(t, out, "style=dashed")
	assert.Contains(t, out, "style=dotted")
	assert.Contains(t, out, `"Custom(uses) (default)"`)
	assert.Contains(t, out, "test(A)")
}
