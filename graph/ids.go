// Package graph provides a sharded, versioned, ordered property graph.
//
// A SplitGraph partitions a logical graph of typed nodes and edges into
// bounded-size partitions. Edges that cross partitions are materialized as an
// ExternalTarget placeholder in the source partition plus an ExternalSource
// edge in the destination partition. The graph maintains merkle tree hashes
// per node, computes structural diffs between two versions and replays them
// onto a third.
package graph

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// NodeID is a stable, time-sortable 128-bit node identity (UUIDv7).
type NodeID uuid.UUID

// NilID is the zero NodeID.
var NilID NodeID

// NewNodeID returns a fresh time-sortable id.
func NewNodeID() NodeID {
	return NodeID(uuid.Must(uuid.NewV7()))
}

// ParseNodeID parses the canonical string form of a NodeID.
func ParseNodeID(s string) (NodeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilID, fmt.Errorf("parsing node id %q: %w", s, err)
	}
	return NodeID(u), nil
}

// String returns the canonical UUID string.
func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

// Bytes returns the 16 raw bytes of the id.
func (id NodeID) Bytes() []byte {
	b := make([]byte, len(id))
	copy(b, id[:])
	return b
}

// IsNil reports whether id is the zero id.
func (id NodeID) IsNil() bool {
	return id == NilID
}

// Compare orders ids bytewise, which for UUIDv7 is creation order.
func (id NodeID) Compare(other NodeID) int {
	return bytes.Compare(id[:], other[:])
}

// Short returns the last 8 hex characters, the random part of a UUIDv7.
func (id NodeID) Short() string {
	s := id.String()
	return s[len(s)-8:]
}

// EntityKind classifies a node for the change log.
type EntityKind string

const (
	EntityKindExternalTarget EntityKind = "ExternalTarget"
	EntityKindOrdering       EntityKind = "Ordering"
	EntityKindRoot           EntityKind = "Root"
	EntityKindSubGraphRoot   EntityKind = "SubGraphRoot"
)

// GlobalIndex locates a node: the partition it lives in and its index there.
// It is only valid while the node exists.
type GlobalIndex struct {
	Partition int
	Index     NodeIndex
}
