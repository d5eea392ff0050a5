// Package cli assembles the weave command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/dgxrun/weave/internal/commands/initcmd"
	"github.com/dgxrun/weave/internal/commands/login"
	"github.com/dgxrun/weave/internal/commands/mcpserver"
	"github.com/dgxrun/weave/internal/commands/run"
	"github.com/dgxrun/weave/internal/commands/serve"
	"github.com/dgxrun/weave/internal/commands/shared"
	"github.com/dgxrun/weave/internal/commands/validate"
)

// SetVersion records build-time version metadata, called from main.
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand builds the root weave Cobra command and wires every
// subcommand onto it.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weave",
		Short: "Weave - browser workflow automation engine",
		Long: `Weave resolves resilient selectors and runs multi-step browser
workflows against an injected DOM driver. It is a library first: the
CLI loads a selector map and a workflow definition, then drives the
engine's resolver, scheduler, wait, and scroll subsystems.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	verbose, quiet, jsonOut, config := shared.RegisterFlagPointers()
	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(jsonOut, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/weave/config.yaml)")

	cmd.AddCommand(run.NewCommand())
	cmd.AddCommand(validate.NewCommand())
	cmd.AddCommand(initcmd.NewCommand())
	cmd.AddCommand(mcpserver.NewCommand())
	cmd.AddCommand(login.NewCommand())
	cmd.AddCommand(serve.NewCommand())

	return cmd
}

// GetVersion returns build-time version metadata.
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError prints err and exits with its carried code.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
