package graph

import (
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound          = errors.New("node not found")
	ErrNodeNotFoundAtIndex   = errors.New("node at index not found")
	ErrRootNotFound          = errors.New("graph root is missing")
	ErrOrderContentMismatch  = errors.New("reorder must contain all the same ids as the original")
	ErrOrderLengthMismatch   = errors.New("reorder must be of the same length as original")
	ErrTooManyEdgesOfKind    = errors.New("more than one edge of kind")
	ErrEdgeNotFound          = errors.New("no edge of kind")
	ErrShardMissing          = errors.New("shard missing")
	ErrShardRead             = errors.New("shard read failed")
	ErrShardWrite            = errors.New("shard write failed")
	ErrWouldCreateGraphCycle = errors.New("edge would create a graph cycle")
	ErrNodeIDExists          = errors.New("node id already exists")
	ErrCannotRemoveRoot      = errors.New("partition roots cannot be removed")
	ErrInvalidThreshold      = errors.New("shard threshold out of range")
	ErrInvalidGraph          = errors.New("graph invariant violated")
)

// NodeNotFoundError names the missing node. It matches ErrNodeNotFound.
type NodeNotFoundError struct {
	ID NodeID
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node id %s not found", e.ID)
}

func (e *NodeNotFoundError) Is(target error) bool {
	return target == ErrNodeNotFound
}

func notFound(id NodeID) error {
	return &NodeNotFoundError{ID: id}
}

// ShardMissingError reports a partition index with no partition behind it.
type ShardMissingError struct {
	Index int
}

func (e *ShardMissingError) Error() string {
	return fmt.Sprintf("no partition at index %d", e.Index)
}

func (e *ShardMissingError) Is(target error) bool {
	return target == ErrShardMissing
}

// ShardReadError wraps a failure to read the shard stored at Address.
type ShardReadError struct {
	Address Address
	Err     error
}

func (e *ShardReadError) Error() string {
	return fmt.Sprintf("reading shard %s: %v", e.Address.Short(), e.Err)
}

func (e *ShardReadError) Is(target error) bool {
	return target == ErrShardRead
}

func (e *ShardReadError) Unwrap() error {
	return e.Err
}

// ShardWriteError wraps a failure to persist a shard.
type ShardWriteError struct {
	Err error
}

func (e *ShardWriteError) Error() string {
	return fmt.Sprintf("writing shard: %v", e.Err)
}

func (e *ShardWriteError) Is(target error) bool {
	return target == ErrShardWrite
}

func (e *ShardWriteError) Unwrap() error {
	return e.Err
}
