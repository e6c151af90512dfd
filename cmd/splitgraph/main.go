// Package main provides the splitgraph CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the current splitgraph CLI version
var Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:           "splitgraph",
	Short:         "splitgraph - sharded, versioned configuration graphs",
	Long:          `splitgraph builds, inspects, diffs and replays sharded configuration graphs kept in a content-addressed SQLite store.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Build a sample configuration graph and store it",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <rev>",
	Short: "Print the partitions and nodes of a stored graph",
	Long: `Print the partitions and nodes of a stored graph.

A rev is a ref name such as "head" or a hex directory address.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var setCmd = &cobra.Command{
	Use:   "set <rev> <node> <key=value>...",
	Short: "Change payload values of a node and store the new version",
	Long: `Change payload values of a node and store the new version.

The node is given by id or by exact name; a name must match one node.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runSet,
}

var gcCmd = &cobra.Command{
	Use:   "gc <rev>",
	Short: "Remove unreachable nodes and store the cleaned graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runGC,
}

var diffCmd = &cobra.Command{
	Use:   "diff <base> <updated>",
	Short: "Show the structural updates between two graph versions",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

var applyCmd = &cobra.Command{
	Use:   "apply <base> <updated> <onto>",
	Short: "Replay the updates from base to updated onto a third version",
	Args:  cobra.ExactArgs(3),
	RunE:  runApply,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <rev>",
	Short: "Check the structural invariants of a stored graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var (
	configPath  string
	storePath   string
	showMetrics bool

	seedComponents int
	seedProps      int
	seedThreshold  int
	seedRef        string

	inspectKind  string
	inspectDot   bool
	inspectNodes bool

	setRef   string
	gcRef    string
	applyRef string

	diffChanges bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Path to the shard database (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "Print engine counters to stderr when done")

	seedCmd.Flags().IntVar(&seedComponents, "components", 8, "Number of components to create")
	seedCmd.Flags().IntVar(&seedProps, "props", 4, "Props under each component's domain")
	seedCmd.Flags().IntVar(&seedThreshold, "threshold", 0, "Partition node capacity (default from config)")
	seedCmd.Flags().StringVar(&seedRef, "ref", "head", "Ref to point at the stored graph")

	inspectCmd.Flags().StringVar(&inspectKind, "kind", "", "Only list nodes whose kind matches this glob")
	inspectCmd.Flags().BoolVar(&inspectDot, "dot", false, "Write a Graphviz rendering instead")
	inspectCmd.Flags().BoolVar(&inspectNodes, "nodes", false, "List nodes, not just partition totals")

	setCmd.Flags().StringVar(&setRef, "ref", "head", "Ref to point at the new version (empty to skip)")
	gcCmd.Flags().StringVar(&gcRef, "ref", "", "Ref to point at the cleaned graph")
	applyCmd.Flags().StringVar(&applyRef, "ref", "", "Ref to point at the result")
	diffCmd.Flags().BoolVar(&diffChanges, "changes", false, "List changed entities instead of updates")

	rootCmd.AddCommand(seedCmd, inspectCmd, setCmd, gcCmd, diffCmd, applyCmd, verifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
