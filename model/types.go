// Package model provides the configuration graph types stored in a
// splitgraph: components, schemas, props, sockets and functions joined by
// typed edges.
package model

import (
	"fmt"
	"maps"
	"slices"

	"splitgraph/cas"
	"splitgraph/graph"
)

// NodeKind represents the type of a node.
type NodeKind string

const (
	KindComponent NodeKind = "Component"
	KindSchema    NodeKind = "Schema"
	KindProp      NodeKind = "Prop"
	KindSocket    NodeKind = "Socket"
	KindFunc      NodeKind = "Func"
	KindView      NodeKind = "View"
)

// EdgeType represents the type of relationship between nodes.
type EdgeType string

const (
	EdgeContains  EdgeType = "CONTAINS"
	EdgeUse       EdgeType = "USE"       // Component -> Schema, default marks the current variant
	EdgeProp      EdgeType = "PROP"      // Component/Prop -> Prop (ordered)
	EdgeSocket    EdgeType = "SOCKET"    // Component -> Socket
	EdgeConnects  EdgeType = "CONNECTS"  // output Socket -> input Socket
	EdgePrototype EdgeType = "PROTOTYPE" // Prop -> Func
)

func (t EdgeType) String() string { return string(t) }

// Node represents a node in the graph.
type Node struct {
	UID       graph.NodeID      `msgpack:"id"`
	Lineage   graph.NodeID      `msgpack:"lineage"`
	Type      NodeKind          `msgpack:"kind"`
	Name      string            `msgpack:"name"`
	Payload   map[string]string `msgpack:"payload,omitempty"`
	CreatedAt int64             `msgpack:"created_at"`
	Merkle    cas.Hash          `msgpack:"merkle"`
}

// NewNode creates a node with a fresh id that is its own lineage.
func NewNode(kind NodeKind, name string) *Node {
	id := graph.NewNodeID()
	return &Node{
		UID:       id,
		Lineage:   id,
		Type:      kind,
		Name:      name,
		CreatedAt: cas.NowMs(),
	}
}

// Set stores a payload value and returns n.
func (n *Node) Set(key, value string) *Node {
	if n.Payload == nil {
		n.Payload = make(map[string]string)
	}
	n.Payload[key] = value
	return n
}

func (n *Node) ID() graph.NodeID { return n.UID }
func (n *Node) SetID(id graph.NodeID) { n.UID = id }
func (n *Node) LineageID() graph.NodeID { return n.Lineage }
func (n *Node) SetLineageID(id graph.NodeID) { n.Lineage = id }
func (n *Node) Kind() string { return string(n.Type) }
func (n *Node) EntityKind() graph.EntityKind { return graph.EntityKind(n.Type) }
func (n *Node) MerkleTreeHash() cas.Hash { return n.Merkle }
func (n *Node) SetMerkleTreeHash(h cas.Hash) { n.Merkle = h }

// NodeHash covers kind, name and payload. Timestamps and ids are excluded.
func (n *Node) NodeHash() cas.Hash {
	h := cas.NewHasher()
	h.WriteString(string(n.Type))
	h.Write([]byte{0})
	h.WriteString(n.Name)
	for _, k := range slices.Sorted(maps.Keys(n.Payload)) {
		h.Write([]byte{0})
		h.WriteString(k)
		h.Write([]byte{'='})
		h.WriteString(n.Payload[k])
	}
	return h.Sum()
}

func (n *Node) Describe() string {
	return fmt.Sprintf("%s %s (%s)", n.Type, n.Name, n.UID.Short())
}

func (n *Node) Clone() *Node {
	c := *n
	c.Payload = maps.Clone(n.Payload)
	return &c
}

// Edge represents an edge in the graph.
type Edge struct {
	Type    EdgeType `msgpack:"type"`
	Default bool     `msgpack:"default,omitempty"`
	// At is mixed into the edge hash, e.g. a socket slot. Edges are upserted
	// per endpoints and type, so two edges differing only in At cannot coexist.
	At string `msgpack:"at,omitempty"`
}

// NewEdge returns a non-default edge of type t.
func NewEdge(t EdgeType) Edge {
	return Edge{Type: t}
}

// DefaultEdge returns a default edge of type t.
func DefaultEdge(t EdgeType) Edge {
	return Edge{Type: t, Default: true}
}

func (e Edge) Kind() EdgeType { return e.Type }
func (e Edge) IsDefault() bool { return e.Default }

// Entropy is the default flag followed by At.
func (e Edge) Entropy() []byte {
	flag := byte(0)
	if e.Default {
		flag = 1
	}
	return append([]byte{flag}, e.At...)
}

func (e Edge) CloneAsNonDefault() Edge {
	e.Default = false
	return e
}

// Graph is a splitgraph of configuration nodes.
type Graph = graph.SplitGraph[*Node, Edge, EdgeType]

// Update is one structural difference between two configuration graphs.
type Update = graph.Update[*Node, Edge, EdgeType]

// PartitionRecord is the persisted form of one configuration graph partition.
type PartitionRecord = graph.PartitionRecord[*Node, Edge, EdgeType]

// NewGraph creates an empty configuration graph.
func NewGraph(threshold int, opts ...graph.Option) (*Graph, error) {
	return graph.New[*Node, Edge, EdgeType](threshold, opts...)
}
