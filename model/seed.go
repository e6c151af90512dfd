package model

import (
	"fmt"

	"splitgraph/graph"
)

// SeedOptions shapes a generated configuration graph.
type SeedOptions struct {
	Components int
	// PropsPerComponent children are placed under each component's domain prop.
	PropsPerComponent int
}

// Seeded names the nodes Seed created.
type Seeded struct {
	Schema     graph.NodeID
	Func       graph.NodeID
	Components []graph.NodeID
	Sockets    []graph.NodeID
}

// Seed fills g with a chain of components that share one schema. Each
// component holds an ordered domain prop tree and an output socket connected
// to the next component's socket.
func Seed(g *Graph, opts SeedOptions) (*Seeded, error) {
	root, err := g.RootID()
	if err != nil {
		return nil, err
	}
	out := &Seeded{}

	schema := NewNode(KindSchema, "generic-frame").Set("version", "1")
	if out.Schema, err = g.AddNode(schema); err != nil {
		return nil, err
	}
	if err := g.AddEdge(root, NewEdge(EdgeContains), out.Schema); err != nil {
		return nil, err
	}
	fn := NewNode(KindFunc, "si:setString").Set("backend", "string")
	if out.Func, err = g.AddNode(fn); err != nil {
		return nil, err
	}
	if err := g.AddEdge(root, NewEdge(EdgeContains), out.Func); err != nil {
		return nil, err
	}

	for i := 0; i < opts.Components; i++ {
		comp := NewNode(KindComponent, fmt.Sprintf("component-%d", i))
		cid, err := g.AddOrderedNode(comp)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out.Components = append(out.Components, cid)
		if err := g.AddEdge(root, NewEdge(EdgeContains), cid); err != nil {
			return nil, err
		}
		if err := g.AddEdge(cid, DefaultEdge(EdgeUse), out.Schema); err != nil {
			return nil, err
		}

		domain, err := g.AddOrderedNode(NewNode(KindProp, "domain"))
		if err != nil {
			return nil, err
		}
		if err := g.AddOrderedEdge(cid, NewEdge(EdgeProp), domain); err != nil {
			return nil, err
		}
		for j := 0; j < opts.PropsPerComponent; j++ {
			prop := NewNode(KindProp, fmt.Sprintf("prop-%d", j)).Set("value", fmt.Sprintf("%d-%d", i, j))
			pid, err := g.AddNode(prop)
			if err != nil {
				return nil, err
			}
			if err := g.AddOrderedEdge(domain, NewEdge(EdgeProp), pid); err != nil {
				return nil, err
			}
			if err := g.AddEdge(pid, NewEdge(EdgePrototype), out.Func); err != nil {
				return nil, err
			}
		}

		sock, err := g.AddNode(NewNode(KindSocket, "output"))
		if err != nil {
			return nil, err
		}
		if err := g.AddEdge(cid, NewEdge(EdgeSocket), sock); err != nil {
			return nil, err
		}
		if n := len(out.Sockets); n > 0 {
			if err := g.AddEdgeWithCycleCheck(out.Sockets[n-1], NewEdge(EdgeConnects), sock); err != nil {
				return nil, err
			}
		}
		out.Sockets = append(out.Sockets, sock)
	}
	return out, nil
}
