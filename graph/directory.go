package graph

import (
	"slices"

	"splitgraph/cas"
)

// Address is the content address of a persisted shard.
type Address = cas.Hash

// CrossEdge is one reverse-index entry: a logical edge from SourceID whose
// target lives in another partition.
type CrossEdge[K EdgeKind] struct {
	SourceID NodeID
	TargetID NodeID
	Kind     K
}

// Directory is the per-graph shard bookkeeping.
type Directory[K EdgeKind] struct {
	threshold int
	addresses []Address
	rootIndex GlobalIndex
	bySource  map[NodeID][]CrossEdge[K]
}

func newDirectory[K EdgeKind](threshold int) *Directory[K] {
	return &Directory[K]{
		threshold: threshold,
		bySource:  make(map[NodeID][]CrossEdge[K]),
	}
}

// Threshold is the maximum number of non-root nodes placed in a partition.
func (d *Directory[K]) Threshold() int {
	return d.threshold
}

// RootIndex locates the graph root.
func (d *Directory[K]) RootIndex() GlobalIndex {
	return d.rootIndex
}

// Addresses returns the last persisted address of every partition. A nil
// address means the partition has not been persisted.
func (d *Directory[K]) Addresses() []Address {
	return slices.Clone(d.addresses)
}

func (d *Directory[K]) setAddress(partition int, addr Address) {
	for len(d.addresses) <= partition {
		d.addresses = append(d.addresses, cas.Nil)
	}
	d.addresses[partition] = addr
}

// CrossEdgesFrom lists the cross-partition edges whose source is id.
func (d *Directory[K]) CrossEdgesFrom(id NodeID) []CrossEdge[K] {
	return slices.Clone(d.bySource[id])
}

// CrossEdgeCount counts every reverse-index entry.
func (d *Directory[K]) CrossEdgeCount() int {
	n := 0
	for _, list := range d.bySource {
		n += len(list)
	}
	return n
}

func (d *Directory[K]) register(ce CrossEdge[K]) {
	list := d.bySource[ce.SourceID]
	if slices.Contains(list, ce) {
		return
	}
	d.bySource[ce.SourceID] = append(list, ce)
}

func (d *Directory[K]) unregister(ce CrossEdge[K]) {
	list := slices.DeleteFunc(d.bySource[ce.SourceID], func(e CrossEdge[K]) bool { return e == ce })
	if len(list) == 0 {
		delete(d.bySource, ce.SourceID)
		return
	}
	d.bySource[ce.SourceID] = list
}

// rekeySource moves every entry of old to next.
func (d *Directory[K]) rekeySource(old, next NodeID) {
	list, ok := d.bySource[old]
	if !ok {
		return
	}
	delete(d.bySource, old)
	for i := range list {
		list[i].SourceID = next
	}
	d.bySource[next] = append(d.bySource[next], list...)
}

// retarget rewrites the target of source's entries naming old.
func (d *Directory[K]) retarget(source, old, next NodeID) {
	list := d.bySource[source]
	for i := range list {
		if list[i].TargetID == old {
			list[i].TargetID = next
		}
	}
}

func (d *Directory[K]) dropSource(id NodeID) {
	delete(d.bySource, id)
}

func (d *Directory[K]) reset() {
	d.bySource = make(map[NodeID][]CrossEdge[K])
}

func (d *Directory[K]) clone() *Directory[K] {
	c := &Directory[K]{
		threshold: d.threshold,
		addresses: slices.Clone(d.addresses),
		rootIndex: d.rootIndex,
		bySource:  make(map[NodeID][]CrossEdge[K], len(d.bySource)),
	}
	for id, list := range d.bySource {
		c.bySource[id] = slices.Clone(list)
	}
	return c
}

// DirectoryRecord is the serializable form of a Directory. The reverse index
// is derived from the partitions on load.
type DirectoryRecord struct {
	Threshold     int       `msgpack:"threshold"`
	Addresses     []Address `msgpack:"addresses"`
	RootPartition int       `msgpack:"root_partition"`
	RootIndex     NodeIndex `msgpack:"root_index"`
}

// Record snapshots the directory.
func (d *Directory[K]) Record() *DirectoryRecord {
	return &DirectoryRecord{
		Threshold:     d.threshold,
		Addresses:     d.Addresses(),
		RootPartition: d.rootIndex.Partition,
		RootIndex:     d.rootIndex.Index,
	}
}
