package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tripartite-ai/consensus-core/internal/mcpserver"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP tool server",
	}
	cmd.AddCommand(mcpServeCmd())
	return cmd
}

func mcpServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Serve exposes council_ask, vault_search, and redact_text as MCP tools over
stdio, for a host like an editor or agent harness to call into the core
without shelling out to the CLI per call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			mcpserver.Version = Version
			srv := &mcpserver.Server{
				Council:  a.council,
				Redactor: a.redactor,
				Vault:    a.vault,
				Embedder: a.embedder,
			}
			return srv.Serve(context.Background())
		},
	}
}
