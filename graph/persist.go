package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ShardReader loads persisted shards by address.
type ShardReader[N CustomNode[N], E CustomEdge[E, K], K EdgeKind] interface {
	ReadPartition(ctx context.Context, addr Address) (*PartitionRecord[N, E, K], error)
	ReadDirectory(ctx context.Context, addr Address) (*DirectoryRecord, error)
}

// ShardWriter stores shards and returns their content addresses.
type ShardWriter[N CustomNode[N], E CustomEdge[E, K], K EdgeKind] interface {
	WritePartition(ctx context.Context, rec *PartitionRecord[N, E, K]) (Address, error)
	WriteDirectory(ctx context.Context, rec *DirectoryRecord) (Address, error)
}

// Persist writes every partition and then the directory, and returns the
// directory's address. The directory's partition addresses are updated in
// place.
func (g *SplitGraph[N, E, K]) Persist(ctx context.Context, w ShardWriter[N, E, K]) (Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, p := range g.partitions {
		if err := ctx.Err(); err != nil {
			return Address{}, err
		}
		addr, err := w.WritePartition(ctx, p.Record())
		if err != nil {
			return Address{}, &ShardWriteError{Err: fmt.Errorf("partition %d: %w", i, err)}
		}
		g.dir.setAddress(i, addr)
	}
	addr, err := w.WriteDirectory(ctx, g.dir.Record())
	if err != nil {
		return Address{}, &ShardWriteError{Err: fmt.Errorf("directory: %w", err)}
	}
	g.log.Debug("graph persisted",
		zap.Int("partitions", len(g.partitions)),
		zap.String("address", addr.String()),
	)
	return addr, nil
}

// Load reads the directory at addr and every partition it names.
func Load[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](ctx context.Context, r ShardReader[N, E, K], addr Address, opts ...Option) (*SplitGraph[N, E, K], error) {
	dir, err := r.ReadDirectory(ctx, addr)
	if err != nil {
		return nil, &ShardReadError{Address: addr, Err: err}
	}
	parts := make([]*PartitionRecord[N, E, K], len(dir.Addresses))
	for i, pa := range dir.Addresses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pa.IsNil() {
			return nil, &ShardMissingError{Index: i}
		}
		rec, err := r.ReadPartition(ctx, pa)
		if err != nil {
			return nil, &ShardReadError{Address: pa, Err: err}
		}
		parts[i] = rec
	}
	return FromParts(dir, parts, opts...)
}

// FromParts assembles a graph from a directory record and its partitions,
// given in directory order. The reverse index is rebuilt from the
// placeholders.
func FromParts[N CustomNode[N], E CustomEdge[E, K], K EdgeKind](dir *DirectoryRecord, parts []*PartitionRecord[N, E, K], opts ...Option) (*SplitGraph[N, E, K], error) {
	if dir.Threshold < 1 || dir.Threshold > MaxThreshold {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, dir.Threshold)
	}
	if len(parts) == 0 {
		return nil, ErrRootNotFound
	}
	o := buildOptions(opts)
	g := &SplitGraph[N, E, K]{
		dir:     newDirectory[K](dir.Threshold),
		log:     o.logger,
		metrics: o.metrics,
		seq:     graphSeq.Add(1),
	}
	for i, rec := range parts {
		if rec == nil {
			return nil, &ShardMissingError{Index: i}
		}
		p, err := PartitionFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("partition %d: %w", i, err)
		}
		g.partitions = append(g.partitions, p)
	}
	g.dir.addresses = make([]Address, len(parts))
	copy(g.dir.addresses, dir.Addresses)

	rp, err := g.partitionAt(dir.RootPartition)
	if err != nil {
		return nil, err
	}
	if w, ok := rp.nodes[dir.RootIndex]; !ok || w.Variant != NodeGraphRoot {
		return nil, ErrRootNotFound
	}
	g.dir.rootIndex = GlobalIndex{Partition: dir.RootPartition, Index: dir.RootIndex}
	g.rebuildReverseIndex()
	g.log.Debug("graph assembled", zap.Int("partitions", len(g.partitions)))
	return g, nil
}
