package main

import (
	"github.com/dgxrun/weave/internal/cli"
)

// Version information (injected via ldflags at build time).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
