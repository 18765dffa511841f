package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stilehq/stile/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server",
		Long: `Expose the gateway's resources as read-only MCP tools so that AI
assistants can list and fetch platform data. The stdio transport is meant for
local clients; the http transport serves streamable HTTP on the given address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			logger := newLogger(false)
			srv := mcp.NewMCPServer(st, logger)

			switch transport {
			case "stdio":
				return srv.ServeStdio()
			case "http":
				logger.Info("starting MCP HTTP server", "addr", addr)
				return srv.ServeHTTP(addr)
			default:
				return fmt.Errorf("unknown transport %q (want stdio or http)", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport to use: stdio or http")
	cmd.Flags().StringVar(&addr, "addr", ":8765", "Listen address for the http transport")

	return cmd
}
