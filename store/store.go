package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"splitgraph/cas"
	"splitgraph/graph"
)

// Store reads and writes the shards of one graph type through a Backend.
// It satisfies graph.ShardReader and graph.ShardWriter.
type Store[N graph.CustomNode[N], E graph.CustomEdge[E, K], K graph.EdgeKind] struct {
	backend Backend
	codec   *Codec
	log     *zap.Logger
}

// New wraps backend. A nil logger disables logging.
func New[N graph.CustomNode[N], E graph.CustomEdge[E, K], K graph.EdgeKind](backend Backend, codec *Codec, logger *zap.Logger) *Store[N, E, K] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store[N, E, K]{backend: backend, codec: codec, log: logger}
}

// Backend returns the underlying blob storage.
func (s *Store[N, E, K]) Backend() Backend { return s.backend }

func (s *Store[N, E, K]) put(ctx context.Context, kind ShardKind, v any) (graph.Address, error) {
	addr, blob, err := s.codec.Encode(v)
	if err != nil {
		return cas.Nil, err
	}
	if err := s.backend.Put(ctx, kind, addr, blob); err != nil {
		return cas.Nil, err
	}
	s.log.Debug("shard stored",
		zap.String("kind", string(kind)),
		zap.String("address", addr.Short()),
		zap.Int("size", len(blob)),
	)
	return addr, nil
}

func (s *Store[N, E, K]) get(ctx context.Context, addr graph.Address, v any) error {
	blob, err := s.backend.Get(ctx, addr)
	if err != nil {
		return err
	}
	return s.codec.Decode(addr, blob, v)
}

func (s *Store[N, E, K]) WritePartition(ctx context.Context, rec *graph.PartitionRecord[N, E, K]) (graph.Address, error) {
	return s.put(ctx, KindPartition, rec)
}

func (s *Store[N, E, K]) WriteDirectory(ctx context.Context, rec *graph.DirectoryRecord) (graph.Address, error) {
	return s.put(ctx, KindDirectory, rec)
}

func (s *Store[N, E, K]) ReadPartition(ctx context.Context, addr graph.Address) (*graph.PartitionRecord[N, E, K], error) {
	var rec graph.PartitionRecord[N, E, K]
	if err := s.get(ctx, addr, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store[N, E, K]) ReadDirectory(ctx context.Context, addr graph.Address) (*graph.DirectoryRecord, error) {
	var rec graph.DirectoryRecord
	if err := s.get(ctx, addr, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save persists g and points ref at the new directory address when ref is
// not empty.
func (s *Store[N, E, K]) Save(ctx context.Context, g *graph.SplitGraph[N, E, K], ref string) (graph.Address, error) {
	addr, err := g.Persist(ctx, s)
	if err != nil {
		return cas.Nil, err
	}
	if ref != "" {
		if err := s.backend.SetRef(ctx, ref, addr); err != nil {
			return cas.Nil, err
		}
	}
	return addr, nil
}

// Open loads the graph named by rev, a ref name or a hex directory address.
func (s *Store[N, E, K]) Open(ctx context.Context, rev string, opts ...graph.Option) (*graph.SplitGraph[N, E, K], graph.Address, error) {
	addr, err := Resolve(ctx, s.backend, rev)
	if err != nil {
		return nil, cas.Nil, err
	}
	g, err := graph.Load[N, E, K](ctx, s, addr, opts...)
	if err != nil {
		return nil, cas.Nil, err
	}
	return g, addr, nil
}

// Resolve turns rev into a directory address: refs are looked up first, then
// rev is parsed as a hex address.
func Resolve(ctx context.Context, b Backend, rev string) (cas.Hash, error) {
	addr, err := b.GetRef(ctx, rev)
	if err == nil {
		return addr, nil
	}
	if !errors.Is(err, ErrRefNotFound) {
		return cas.Nil, err
	}
	addr, perr := cas.ParseHash(rev)
	if perr != nil {
		return cas.Nil, fmt.Errorf("%q is neither a ref nor an address: %w", rev, ErrRefNotFound)
	}
	return addr, nil
}
