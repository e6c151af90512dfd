package graph

import (
	"fmt"

	"splitgraph/cas"
)

// EdgeKind is the domain's edge kind tag. It must be a small comparable value.
type EdgeKind interface {
	comparable
	fmt.Stringer
}

// CustomNode is the contract a domain node type satisfies to live in a
// SplitGraph. N is the implementing type itself, normally a pointer.
type CustomNode[N any] interface {
	ID() NodeID
	SetID(NodeID)
	LineageID() NodeID
	SetLineageID(NodeID)
	// Kind is the domain-kind tag, recorded on placeholders that point at the node.
	Kind() string
	EntityKind() EntityKind
	MerkleTreeHash() cas.Hash
	SetMerkleTreeHash(cas.Hash)
	// NodeHash hashes the domain content only; the engine mixes in the id.
	NodeHash() cas.Hash
	Describe() string
	Clone() N
}

// CustomEdge is the contract a domain edge type satisfies.
type CustomEdge[E any, K EdgeKind] interface {
	Kind() K
	// Entropy returns extra bytes mixed into the edge hash, or nil.
	Entropy() []byte
	IsDefault() bool
	CloneAsNonDefault() E
}

// NodeVariant tags the arms of NodeWeight.
type NodeVariant uint8

const (
	NodeCustom NodeVariant = iota
	NodeExternalTarget
	NodeOrdering
	NodeGraphRoot
	NodeSubGraphRoot
)

func (v NodeVariant) String() string {
	switch v {
	case NodeCustom:
		return "Custom"
	case NodeExternalTarget:
		return "ExternalTarget"
	case NodeOrdering:
		return "Ordering"
	case NodeGraphRoot:
		return "GraphRoot"
	case NodeSubGraphRoot:
		return "SubGraphRoot"
	default:
		return fmt.Sprintf("NodeVariant(%d)", uint8(v))
	}
}

// NodeWeight is the tagged union stored at every physical node. Only the
// fields of the active Variant are meaningful.
type NodeWeight[N CustomNode[N]] struct {
	Variant NodeVariant `msgpack:"v"`
	Custom  N           `msgpack:"c,omitempty"`

	// Non-custom variants keep their own identity and hash.
	NodeID NodeID   `msgpack:"id"`
	Hash   cas.Hash `msgpack:"h"`

	// ExternalTarget
	Target           NodeID     `msgpack:"t,omitempty"`
	TargetKind       EntityKind `msgpack:"tk,omitempty"`
	TargetCustomKind string     `msgpack:"tck,omitempty"`

	// Ordering
	Order []NodeID `msgpack:"o,omitempty"`
}

// CustomWeight wraps a domain node.
func CustomWeight[N CustomNode[N]](n N) NodeWeight[N] {
	return NodeWeight[N]{Variant: NodeCustom, Custom: n}
}

func externalTargetWeight[N CustomNode[N]](target NodeID, kind EntityKind, customKind string) NodeWeight[N] {
	return NodeWeight[N]{
		Variant:          NodeExternalTarget,
		NodeID:           NewNodeID(),
		Target:           target,
		TargetKind:       kind,
		TargetCustomKind: customKind,
	}
}

func orderingWeight[N CustomNode[N]]() NodeWeight[N] {
	return NodeWeight[N]{Variant: NodeOrdering, NodeID: NewNodeID()}
}

func graphRootWeight[N CustomNode[N]](id NodeID) NodeWeight[N] {
	return NodeWeight[N]{Variant: NodeGraphRoot, NodeID: id}
}

func subGraphRootWeight[N CustomNode[N]](id NodeID) NodeWeight[N] {
	return NodeWeight[N]{Variant: NodeSubGraphRoot, NodeID: id}
}

// ID returns the node's id.
func (w NodeWeight[N]) ID() NodeID {
	if w.Variant == NodeCustom {
		return w.Custom.ID()
	}
	return w.NodeID
}

// LineageID returns the lineage id. Engine-owned nodes are their own lineage.
func (w NodeWeight[N]) LineageID() NodeID {
	if w.Variant == NodeCustom {
		return w.Custom.LineageID()
	}
	return w.NodeID
}

// EntityKind returns the kind used in change records.
func (w NodeWeight[N]) EntityKind() EntityKind {
	switch w.Variant {
	case NodeCustom:
		return w.Custom.EntityKind()
	case NodeExternalTarget:
		return EntityKindExternalTarget
	case NodeOrdering:
		return EntityKindOrdering
	case NodeGraphRoot:
		return EntityKindRoot
	default:
		return EntityKindSubGraphRoot
	}
}

// MerkleTreeHash returns the last computed merkle tree hash.
func (w NodeWeight[N]) MerkleTreeHash() cas.Hash {
	if w.Variant == NodeCustom {
		return w.Custom.MerkleTreeHash()
	}
	return w.Hash
}

func (w *NodeWeight[N]) setMerkleTreeHash(h cas.Hash) {
	if w.Variant == NodeCustom {
		w.Custom.SetMerkleTreeHash(h)
		return
	}
	w.Hash = h
}

func (w *NodeWeight[N]) setID(id NodeID) {
	if w.Variant == NodeCustom {
		w.Custom.SetID(id)
		return
	}
	w.NodeID = id
}

func (w *NodeWeight[N]) setLineageID(id NodeID) {
	if w.Variant == NodeCustom {
		w.Custom.SetLineageID(id)
	}
}

// NodeHash is the content hash of this node alone: the id followed by the
// variant's payload.
func (w NodeWeight[N]) NodeHash() cas.Hash {
	h := cas.NewHasher()
	id := w.ID()
	_, _ = h.Write(id[:])
	switch w.Variant {
	case NodeCustom:
		h.WriteHash(w.Custom.NodeHash())
	case NodeExternalTarget:
		_, _ = h.Write(w.Target[:])
	case NodeOrdering:
		for _, child := range w.Order {
			_, _ = h.Write(child[:])
		}
	}
	return h.Sum()
}

// AsCustom returns the domain node if this is a Custom weight.
func (w NodeWeight[N]) AsCustom() (N, bool) {
	if w.Variant != NodeCustom {
		var zero N
		return zero, false
	}
	return w.Custom, true
}

// IsLogical reports whether the node is visible in the logical graph.
func (w NodeWeight[N]) IsLogical() bool {
	return w.Variant == NodeCustom || w.Variant == NodeGraphRoot
}

// Describe is a short human-readable label.
func (w NodeWeight[N]) Describe() string {
	switch w.Variant {
	case NodeCustom:
		return w.Custom.Describe()
	case NodeExternalTarget:
		return fmt.Sprintf("ExternalTarget(%s -> %s)", w.NodeID.Short(), w.Target.Short())
	case NodeOrdering:
		return fmt.Sprintf("Ordering(%s, %d)", w.NodeID.Short(), len(w.Order))
	default:
		return fmt.Sprintf("%s(%s)", w.Variant, w.NodeID.Short())
	}
}

// clone deep-copies the weight. Custom nodes are cloned through the contract.
func (w NodeWeight[N]) clone() NodeWeight[N] {
	out := w
	if w.Variant == NodeCustom {
		out.Custom = w.Custom.Clone()
	}
	if w.Order != nil {
		out.Order = append([]NodeID(nil), w.Order...)
	}
	return out
}

// EdgeVariant tags the arms of EdgeWeight.
type EdgeVariant uint8

const (
	EdgeCustom EdgeVariant = iota
	EdgeExternalSource
	EdgeOrdering
	EdgeOrdinal
)

func (v EdgeVariant) String() string {
	switch v {
	case EdgeCustom:
		return "Custom"
	case EdgeExternalSource:
		return "ExternalSource"
	case EdgeOrdering:
		return "Ordering"
	case EdgeOrdinal:
		return "Ordinal"
	default:
		return fmt.Sprintf("EdgeVariant(%d)", uint8(v))
	}
}

// EdgeWeightKind identifies an edge weight's kind: the variant, plus the
// domain kind for Custom and ExternalSource edges.
type EdgeWeightKind[K EdgeKind] struct {
	Variant EdgeVariant
	Custom  K
}

func (k EdgeWeightKind[K]) String() string {
	if k.Variant == EdgeCustom || k.Variant == EdgeExternalSource {
		return fmt.Sprintf("%s(%s)", k.Variant, k.Custom)
	}
	return k.Variant.String()
}

// ExternalSourceData is the identity of an ExternalSource edge.
type ExternalSourceData[K EdgeKind] struct {
	SourceID NodeID `msgpack:"s"`
	Kind     K      `msgpack:"k"`
}

// EdgeWeight is the tagged union stored at every physical edge.
type EdgeWeight[E CustomEdge[E, K], K EdgeKind] struct {
	Variant EdgeVariant `msgpack:"v"`
	Custom  E           `msgpack:"c,omitempty"`

	// ExternalSource
	SourceID       NodeID `msgpack:"s,omitempty"`
	Default        bool   `msgpack:"d,omitempty"`
	EdgeKind       K      `msgpack:"k,omitempty"`
	SourceNodeKind string `msgpack:"sk,omitempty"`
}

// CustomEdgeWeight wraps a domain edge.
func CustomEdgeWeight[E CustomEdge[E, K], K EdgeKind](e E) EdgeWeight[E, K] {
	return EdgeWeight[E, K]{Variant: EdgeCustom, Custom: e}
}

func externalSourceWeight[E CustomEdge[E, K], K EdgeKind](source NodeID, sourceKind string, e E) EdgeWeight[E, K] {
	return EdgeWeight[E, K]{
		Variant:        EdgeExternalSource,
		SourceID:       source,
		Default:        e.IsDefault(),
		EdgeKind:       e.Kind(),
		SourceNodeKind: sourceKind,
	}
}

// Kind returns the weight kind.
func (w EdgeWeight[E, K]) Kind() EdgeWeightKind[K] {
	switch w.Variant {
	case EdgeCustom:
		return EdgeWeightKind[K]{Variant: EdgeCustom, Custom: w.Custom.Kind()}
	case EdgeExternalSource:
		return EdgeWeightKind[K]{Variant: EdgeExternalSource, Custom: w.EdgeKind}
	default:
		return EdgeWeightKind[K]{Variant: w.Variant}
	}
}

// IsDefault reports the default-edge flag of Custom and ExternalSource edges.
func (w EdgeWeight[E, K]) IsDefault() bool {
	switch w.Variant {
	case EdgeCustom:
		return w.Custom.IsDefault()
	case EdgeExternalSource:
		return w.Default
	default:
		return false
	}
}

// CloneAsNonDefault returns a copy with the default flag cleared.
func (w EdgeWeight[E, K]) CloneAsNonDefault() EdgeWeight[E, K] {
	out := w
	switch w.Variant {
	case EdgeCustom:
		out.Custom = w.Custom.CloneAsNonDefault()
	case EdgeExternalSource:
		out.Default = false
	}
	return out
}

// AsCustom returns the domain edge if this is a Custom weight.
func (w EdgeWeight[E, K]) AsCustom() (E, bool) {
	if w.Variant != EdgeCustom {
		var zero E
		return zero, false
	}
	return w.Custom, true
}

// ExternalSource returns the identity of an ExternalSource edge.
func (w EdgeWeight[E, K]) ExternalSource() (ExternalSourceData[K], bool) {
	if w.Variant != EdgeExternalSource {
		return ExternalSourceData[K]{}, false
	}
	return ExternalSourceData[K]{SourceID: w.SourceID, Kind: w.EdgeKind}, true
}

// Entropy distinguishes edges of the same kind between the same endpoints
// for diffing.
func (w EdgeWeight[E, K]) Entropy() []byte {
	switch w.Variant {
	case EdgeCustom:
		return w.Custom.Entropy()
	case EdgeExternalSource:
		if w.Default {
			return []byte{1}
		}
		return []byte{0}
	default:
		return nil
	}
}

// EdgeHash returns the hash contributed to the source's merkle tree hash.
// Ordering and Ordinal edges contribute nothing.
func (w EdgeWeight[E, K]) EdgeHash() (cas.Hash, bool) {
	switch w.Variant {
	case EdgeCustom:
		h := cas.NewHasher()
		h.WriteString(w.Custom.Kind().String())
		_, _ = h.Write(w.Custom.Entropy())
		return h.Sum(), true
	case EdgeExternalSource:
		h := cas.NewHasher()
		_, _ = h.Write(w.SourceID[:])
		h.WriteString(w.EdgeKind.String())
		_, _ = h.Write(w.Entropy())
		return h.Sum(), true
	default:
		return cas.Nil, false
	}
}

// edgeKey is the upsert key of a physical edge below its source: at most one
// edge per key and target.
type edgeKey[K EdgeKind] struct {
	kind   EdgeWeightKind[K]
	source NodeID
}

func (w EdgeWeight[E, K]) key() edgeKey[K] {
	k := edgeKey[K]{kind: w.Kind()}
	if w.Variant == EdgeExternalSource {
		k.source = w.SourceID
	}
	return k
}
