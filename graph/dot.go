package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// WriteDot renders every partition as a Graphviz cluster. Placeholders are
// drawn dashed with a dotted line to the node they stand for.
func (g *SplitGraph[N, E, K]) WriteDot(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	bw := bufio.NewWriter(w)
	name := func(pi int, idx NodeIndex) string {
		return fmt.Sprintf("p%d_n%d", pi, idx)
	}
	fmt.Fprintln(bw, "digraph splitgraph {")
	fmt.Fprintln(bw, "  node [shape=box, fontname=monospace];")

	var links []string
	for pi, p := range g.partitions {
		fmt.Fprintf(bw, "  subgraph cluster_%d {\n", pi)
		fmt.Fprintf(bw, "    label=%s;\n", strconv.Quote(fmt.Sprintf("partition %d", pi)))
		for _, idx := range p.NodeIndices() {
			nw := p.nodes[idx]
			style := ""
			switch nw.Variant {
			case NodeExternalTarget:
				style = ", style=dashed"
				if tl, ok := g.locate(nw.Target); ok {
					links = append(links, fmt.Sprintf("  %s -> %s [style=dotted, arrowhead=none];",
						name(pi, idx), name(tl.Partition, tl.Index)))
				}
			case NodeOrdering:
				style = ", shape=ellipse"
			case NodeGraphRoot, NodeSubGraphRoot:
				style = ", shape=doubleoctagon"
			}
			fmt.Fprintf(bw, "    %s [label=%s%s];\n", name(pi, idx), strconv.Quote(nw.Describe()), style)
		}
		for _, pe := range p.Edges() {
			label := pe.Weight.Kind().String()
			if pe.Weight.IsDefault() {
				label += " (default)"
			}
			fmt.Fprintf(bw, "    %s -> %s [label=%s];\n",
				name(pi, pe.Source), name(pi, pe.Target), strconv.Quote(label))
		}
		fmt.Fprintln(bw, "  }")
	}
	for _, l := range links {
		fmt.Fprintln(bw, l)
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
