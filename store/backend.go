package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"splitgraph/cas"
)

// ShardKind tells partition blobs from directory blobs.
type ShardKind string

const (
	KindPartition ShardKind = "partition"
	KindDirectory ShardKind = "directory"
)

// ShardInfo describes a stored blob.
type ShardInfo struct {
	Address   cas.Hash
	Kind      ShardKind
	Size      int
	CreatedAt int64
}

// Backend is raw addressed blob storage. Put is idempotent: storing an
// address that already exists is a no-op.
type Backend interface {
	Put(ctx context.Context, kind ShardKind, addr cas.Hash, blob []byte) error
	Get(ctx context.Context, addr cas.Hash) ([]byte, error)
	Has(ctx context.Context, addr cas.Hash) (bool, error)
	List(ctx context.Context, kind ShardKind) ([]ShardInfo, error)
	SetRef(ctx context.Context, name string, addr cas.Hash) error
	GetRef(ctx context.Context, name string) (cas.Hash, error)
	Close() error
}

type memBlob struct {
	info ShardInfo
	blob []byte
}

// MemoryStore is a Backend kept in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[cas.Hash]memBlob
	refs  map[string]cas.Hash
}

// NewMemoryStore returns an empty in-memory backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[cas.Hash]memBlob),
		refs:  make(map[string]cas.Hash),
	}
}

func (m *MemoryStore) Put(ctx context.Context, kind ShardKind, addr cas.Hash, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[addr]; ok {
		return nil
	}
	m.blobs[addr] = memBlob{
		info: ShardInfo{Address: addr, Kind: kind, Size: len(blob), CreatedAt: cas.NowMs()},
		blob: slices.Clone(blob),
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, addr cas.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(b.blob), nil
}

func (m *MemoryStore) Has(ctx context.Context, addr cas.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[addr]
	return ok, nil
}

// List returns blobs of kind, or every blob when kind is empty, oldest first.
func (m *MemoryStore) List(ctx context.Context, kind ShardKind) ([]ShardInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ShardInfo
	for _, b := range m.blobs {
		if kind == "" || b.info.Kind == kind {
			out = append(out, b.info)
		}
	}
	slices.SortFunc(out, func(a, b ShardInfo) int {
		if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.Address[:], b.Address[:])
	})
	return out, nil
}

func (m *MemoryStore) SetRef(ctx context.Context, name string, addr cas.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[name] = addr
	return nil
}

func (m *MemoryStore) GetRef(ctx context.Context, name string) (cas.Hash, error) {
	if err := ctx.Err(); err != nil {
		return cas.Nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	addr, ok := m.refs[name]
	if !ok {
		return cas.Nil, ErrRefNotFound
	}
	return addr, nil
}

func (m *MemoryStore) Close() error { return nil }
