package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"splitgraph/graph"
	"splitgraph/model"
)

func runSeed(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close(cmd.ErrOrStderr())

	threshold := seedThreshold
	if threshold == 0 {
		threshold = e.cfg.ShardThreshold
	}
	g, err := model.NewGraph(threshold, e.graphOptions()...)
	if err != nil {
		return err
	}
	seeded, err := model.Seed(g, model.SeedOptions{Components: seedComponents, PropsPerComponent: seedProps})
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}
	g.RecalculateAllHashes()

	addr, err := e.shards.Save(cmd.Context(), g, seedRef)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, addr)
	fmt.Fprintf(out, "%d components, %d nodes, %d partitions\n", len(seeded.Components), g.NodeCount(), g.PartitionCount())
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	if inspectKind != "" && !doublestar.ValidatePattern(inspectKind) {
		return fmt.Errorf("invalid --kind pattern %q", inspectKind)
	}
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close(cmd.ErrOrStderr())

	g, err := e.load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if inspectDot {
		return g.WriteDot(out)
	}

	addrs := g.Directory().Addresses()
	fmt.Fprintf(out, "threshold %d, %d partitions, %d nodes, %d edges, %d cross-partition edges\n",
		g.Threshold(), g.PartitionCount(), g.NodeCount(), g.EdgeCount(), g.Directory().CrossEdgeCount())
	for i := 0; i < g.PartitionCount(); i++ {
		p, err := g.Partition(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "partition %d  %s  root %s  nodes %d  edges %d\n",
			i, addrs[i].Short(), p.RootID().Short(), p.NodeCount(), p.EdgeCount())
		if !inspectNodes && inspectKind == "" {
			continue
		}
		for _, idx := range p.NodeIndices() {
			w, _ := p.Node(idx)
			n, ok := w.AsCustom()
			if !ok {
				continue
			}
			if inspectKind != "" {
				if match, _ := doublestar.Match(inspectKind, n.Kind()); !match {
					continue
				}
			}
			fmt.Fprintf(out, "  %s  %s  %s\n", n.ID(), n.MerkleTreeHash().Short(), n.Describe())
		}
	}
	return nil
}

// findNode resolves ref as a node id, or else as the name of exactly one node.
func findNode(g *model.Graph, ref string) (*model.Node, error) {
	if id, err := graph.ParseNodeID(ref); err == nil {
		return g.NodeWeight(id)
	}
	var found []*model.Node
	for _, n := range g.CustomNodes() {
		if n.Name == ref {
			found = append(found, n)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no node named %q", ref)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%d nodes are named %q; use an id", len(found), ref)
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close(cmd.ErrOrStderr())

	g, err := e.load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	n, err := findNode(g, args[1])
	if err != nil {
		return err
	}
	changed := n.Clone()
	for _, kv := range args[2:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return fmt.Errorf("expected key=value, got %q", kv)
		}
		changed.Set(key, value)
	}
	if err := g.UpdateNode(changed); err != nil {
		return err
	}
	g.RecalculateHashes()

	addr, err := e.shards.Save(cmd.Context(), g, setRef)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), addr)
	return nil
}

func runGC(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close(cmd.ErrOrStderr())

	g, err := e.load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	stats := g.Cleanup()
	g.RecalculateHashes()

	addr, err := e.shards.Save(cmd.Context(), g, gcRef)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, addr)
	fmt.Fprintf(out, "removed %d nodes and %d cross-partition edges in %d passes\n",
		stats.NodesRemoved, stats.EdgesDropped, stats.Passes)
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close(cmd.ErrOrStderr())

	base, err := e.load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	updated, err := e.load(cmd.Context(), args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if diffChanges {
		changes := base.DetectChanges(updated)
		for _, c := range changes {
			fmt.Fprintf(out, "%s  %s  %s\n", c.EntityID, c.EntityKind, c.MerkleTreeHash.Short())
		}
		fmt.Fprintf(out, "%d changes\n", len(changes))
		return nil
	}
	updates := base.DetectUpdates(updated)
	for _, u := range updates {
		fmt.Fprintln(out, u)
	}
	fmt.Fprintf(out, "%d updates\n", len(updates))
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close(cmd.ErrOrStderr())

	ctx := cmd.Context()
	base, err := e.load(ctx, args[0])
	if err != nil {
		return err
	}
	updated, err := e.load(ctx, args[1])
	if err != nil {
		return err
	}
	onto, err := e.load(ctx, args[2])
	if err != nil {
		return err
	}

	report := onto.PerformUpdates(base.DetectUpdates(updated))
	onto.Cleanup()
	onto.RecalculateHashes()

	addr, err := e.shards.Save(ctx, onto, applyRef)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, addr)
	fmt.Fprintf(out, "applied %d updates, skipped %d\n", report.Applied, len(report.Skipped))
	for _, s := range report.Skipped {
		fmt.Fprintf(out, "  skipped #%d %s: %s\n", s.Index, s.Kind, s.Reason)
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close(cmd.ErrOrStderr())

	g, err := e.load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := g.Validate(); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, v := range merr.Errors {
				fmt.Fprintln(out, v)
			}
			e.log.Warn("graph failed validation", zap.Int("violations", len(merr.Errors)))
			return fmt.Errorf("%d invariant violations", len(merr.Errors))
		}
		return err
	}
	if !g.IsAcyclic() {
		return errors.New("graph has a cycle")
	}
	fmt.Fprintf(out, "ok: %d partitions, %d nodes\n", g.PartitionCount(), g.NodeCount())
	return nil
}
