package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitgraph/cas"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "shards.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]Backend{
		"memory": NewMemoryStore(),
		"sqlite": db,
	}
}

func TestBackend_Contract(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a1 := cas.Sum([]byte("one"))
			a2 := cas.Sum([]byte("two"))

			_, err := b.Get(ctx, a1)
			assert.ErrorIs(t, err, ErrNotFound)
			ok, err := b.Has(ctx, a1)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Put(ctx, KindPartition, a1, []byte("blob-1")))
			require.NoError(t, b.Put(ctx, KindPartition, a1, []byte("ignored")), "puts are idempotent")
			require.NoError(t, b.Put(ctx, KindDirectory, a2, []byte("blob-2")))

			got, err := b.Get(ctx, a1)
			require.NoError(t, err)
			assert.Equal(t, []byte("blob-1"), got)
			ok, err = b.Has(ctx, a2)
			require.NoError(t, err)
			assert.True(t, ok)

			all, err := b.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 2)
			dirs, err := b.List(ctx, KindDirectory)
			require.NoError(t, err)
			require.Len(t, dirs, 1)
			assert.Equal(t, a2, dirs[0].Address)
			assert.Equal(t, len("blob-2"), dirs[0].Size)
			assert.Equal(t, KindDirectory, dirs[0].Kind)
		})
	}
}

func TestBackend_Refs(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.GetRef(ctx, "head")
			assert.ErrorIs(t, err, ErrRefNotFound)

			first := cas.Sum([]byte("v1"))
			second := cas.Sum([]byte("v2"))
			require.NoError(t, b.SetRef(ctx, "head", first))
			require.NoError(t, b.SetRef(ctx, "head", second))
			got, err := b.GetRef(ctx, "head")
			require.NoError(t, err)
			assert.Equal(t, second, got)

			addr, err := Resolve(ctx, b, "head")
			require.NoError(t, err)
			assert.Equal(t, second, addr)
			addr, err = Resolve(ctx, b, first.String())
			require.NoError(t, err)
			assert.Equal(t, first, addr)
			_, err = Resolve(ctx, b, "nope")
			assert.ErrorIs(t, err, ErrRefNotFound)
		})
	}
}

func TestMemoryStore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemoryStore()
	assert.ErrorIs(t, m.Put(ctx, KindPartition, cas.Sum(nil), nil), context.Canceled)
	_, err := m.Get(ctx, cas.Sum(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_CopiesBlobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	blob := []byte("abc")
	addr := cas.Sum(blob)
	require.NoError(t, m.Put(ctx, KindPartition, addr, blob))
	blob[0] = 'x'
	got, err := m.Get(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}
