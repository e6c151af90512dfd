// Package store persists graph shards in content-addressed storage.
//
// Shards are encoded with msgpack, addressed by the BLAKE3 hash of that
// encoding and compressed with zstd before they reach a Backend.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"splitgraph/cas"
)

var (
	ErrNotFound        = errors.New("shard not found")
	ErrRefNotFound     = errors.New("ref not found")
	ErrCorrupt         = errors.New("shard content does not match its address")
	ErrUnknownCompress = errors.New("unknown compression level")
)

// zstd frame magic number.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionNone stores encoded shards uncompressed.
const CompressionNone = "none"

// Codec turns records into addressed blobs and back. It is safe for
// concurrent use.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec creates a codec for a compression level: none, fastest,
// default, better or best.
func NewCodec(level string) (*Codec, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	c := &Codec{dec: dec}
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "default"
	}
	if level == CompressionNone {
		return c, nil
	}
	ok, lvl := zstd.EncoderLevelFromString(level)
	if !ok {
		dec.Close()
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompress, level)
	}
	c.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(lvl))
	if err != nil {
		dec.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return c, nil
}

// ValidCompression reports whether level is accepted by NewCodec.
func ValidCompression(level string) bool {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" || level == CompressionNone {
		return true
	}
	ok, _ := zstd.EncoderLevelFromString(level)
	return ok
}

// Close releases the codec's decoder.
func (c *Codec) Close() {
	if c.enc != nil {
		c.enc.Close()
	}
	c.dec.Close()
}

// Encode marshals v and returns its address and the stored blob. Map keys are
// sorted so equal records always get the same address.
func (c *Codec) Encode(v any) (cas.Hash, []byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return cas.Nil, nil, fmt.Errorf("encoding shard: %w", err)
	}
	raw := buf.Bytes()
	addr := cas.Sum(raw)
	if c.enc == nil {
		return addr, raw, nil
	}
	return addr, c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode verifies blob against addr and unmarshals it into v.
func (c *Codec) Decode(addr cas.Hash, blob []byte, v any) error {
	raw := blob
	if bytes.HasPrefix(blob, zstdMagic) {
		var err error
		if raw, err = c.dec.DecodeAll(blob, nil); err != nil {
			return fmt.Errorf("decompressing shard %s: %w", addr.Short(), err)
		}
	}
	if cas.Sum(raw) != addr {
		return fmt.Errorf("%w: %s", ErrCorrupt, addr.Short())
	}
	if err := msgpack.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding shard %s: %w", addr.Short(), err)
	}
	return nil
}
