// Package mcpserver implements `weave mcpserver`, wrapping
// internal/mcpserver's stdio MCP tool exposure.
package mcpserver

import (
	"github.com/spf13/cobra"

	intlog "github.com/dgxrun/weave/internal/log"
	"github.com/dgxrun/weave/internal/mcpserver"
)

// NewCommand builds the `weave mcpserver` subcommand.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcpserver",
		Short: "Serve weave's validate/resolve tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := intlog.New(intlog.FromEnv())
			srv, err := mcpserver.New(mcpserver.Config{Logger: logger})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}
