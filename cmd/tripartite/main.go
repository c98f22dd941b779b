// Package main is the entrypoint for the tripartite consensus core's thin
// exercising CLI: enough surface to redact text, index and search the
// knowledge vault, and run a query through the council. One file per
// subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "tripartite",
		Short: "Tripartite consensus core: redaction proxy, knowledge vault, three-agent deliberation",
		Long: `tripartite drives the privacy-first consensus core end to end from the
command line: redact sensitive text before it ever leaves the machine,
index and search a local knowledge vault, and run a query through the
Pathos/Logos/Ethos deliberation loop.

This CLI is a thin driver over the core library, not a product surface —
the interactive REPL, hardware detection, and cloud tunnel all live
outside this module.`,
		SilenceUsage: true,
	}

	root.AddCommand(versionCmd())
	root.AddCommand(redactCmd())
	root.AddCommand(reinflateCmd())
	root.AddCommand(vaultCmd())
	root.AddCommand(askCmd())
	root.AddCommand(mcpCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(Version)
			return nil
		},
	}
}
