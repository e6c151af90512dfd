// Package cas provides content-addressing utilities built on BLAKE3.
package cas

import (
	"encoding/hex"
	"fmt"
	"time"

	"lukechampine.com/blake3"
)

// Size is the length in bytes of a Hash.
const Size = 32

// Hash is a BLAKE3-256 digest. The zero value is the nil hash.
type Hash [Size]byte

// Nil is the hash assigned to nodes that have not been hashed yet.
var Nil Hash

// NowMs returns the current time in milliseconds since epoch.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// Sum computes the BLAKE3 hash of data.
func Sum(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// Combine hashes the concatenation of the given hashes in order.
func Combine(hashes ...Hash) Hash {
	h := NewHasher()
	for _, hash := range hashes {
		h.WriteHash(hash)
	}
	return h.Sum()
}

// IsNil reports whether h is the nil hash.
func (h Hash) IsNil() bool {
	return h == Nil
}

// Bytes returns a copy of the digest bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, h[:])
	return b
}

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters, for display.
func (h Hash) Short() string {
	return h.String()[:12]
}

// ParseHash decodes a hex string produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decoding hash: %w", err)
	}
	if len(b) != Size {
		return h, fmt.Errorf("decoding hash: expected %d bytes, got %d", Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Hasher is a streaming BLAKE3 hasher producing a Hash.
type Hasher struct {
	inner *blake3.Hasher
}

// NewHasher returns a new streaming hasher.
func NewHasher() *Hasher {
	return &Hasher{inner: blake3.New(Size, nil)}
}

// Write adds bytes to the running hash. It never returns an error.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.inner.Write(p)
}

// WriteHash adds the bytes of another hash.
func (h *Hasher) WriteHash(hash Hash) {
	h.inner.Write(hash[:])
}

// WriteString adds the bytes of s.
func (h *Hasher) WriteString(s string) {
	h.inner.Write([]byte(s))
}

// Sum returns the digest of everything written so far.
func (h *Hasher) Sum() Hash {
	var out Hash
	copy(out[:], h.inner.Sum(nil))
	return out
}
