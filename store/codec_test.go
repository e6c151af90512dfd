package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitgraph/cas"
)

type sample struct {
	Name   string            `msgpack:"name"`
	Labels map[string]string `msgpack:"labels"`
}

func newSample() sample {
	return sample{
		Name:   "shard",
		Labels: map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, level := range []string{"none", "fastest", "default", "better", "best", ""} {
		t.Run(level, func(t *testing.T) {
			c, err := NewCodec(level)
			require.NoError(t, err)
			defer c.Close()

			addr, blob, err := c.Encode(newSample())
			require.NoError(t, err)
			assert.False(t, addr.IsNil())
			if level == CompressionNone {
				assert.False(t, bytes.HasPrefix(blob, zstdMagic))
			} else {
				assert.True(t, bytes.HasPrefix(blob, zstdMagic))
			}

			var out sample
			require.NoError(t, c.Decode(addr, blob, &out))
			assert.Equal(t, newSample(), out)
		})
	}
}

func TestCodec_AddressIgnoresCompression(t *testing.T) {
	plain, err := NewCodec("none")
	require.NoError(t, err)
	defer plain.Close()
	packed, err := NewCodec("best")
	require.NoError(t, err)
	defer packed.Close()

	a1, raw, err := plain.Encode(newSample())
	require.NoError(t, err)
	a2, blob, err := packed.Encode(newSample())
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, cas.Sum(raw), a1)

	// Either codec reads either blob.
	var out sample
	require.NoError(t, plain.Decode(a2, blob, &out))
	require.NoError(t, packed.Decode(a1, raw, &out))
}

func TestCodec_Deterministic(t *testing.T) {
	c, err := NewCodec("default")
	require.NoError(t, err)
	defer c.Close()
	first, _, err := c.Encode(newSample())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		addr, _, err := c.Encode(newSample())
		require.NoError(t, err)
		require.Equal(t, first, addr, "map iteration order must not leak into the address")
	}
}

func TestCodec_Corrupt(t *testing.T) {
	c, err := NewCodec("none")
	require.NoError(t, err)
	defer c.Close()
	addr, blob, err := c.Encode(newSample())
	require.NoError(t, err)

	tampered := bytes.Clone(blob)
	tampered[len(tampered)-1] ^= 0xff
	var out sample
	assert.ErrorIs(t, c.Decode(addr, tampered, &out), ErrCorrupt)
	assert.ErrorIs(t, c.Decode(cas.Sum([]byte("other")), blob, &out), ErrCorrupt)
}

func TestNewCodec_UnknownLevel(t *testing.T) {
	_, err := NewCodec("turbo")
	assert.ErrorIs(t, err, ErrUnknownCompress)
	assert.False(t, ValidCompression("turbo"))
	assert.True(t, ValidCompression("Best"))
	assert.True(t, ValidCompression("none"))
}
