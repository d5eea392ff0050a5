// Package initcmd implements `weave init`: an interactive wizard that
// scaffolds a starter selector map and workflow definition.
package initcmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dgxrun/weave/internal/commands/shared"
	"github.com/dgxrun/weave/pkg/selector"
	"github.com/dgxrun/weave/pkg/workflow"
)

// NewCommand builds the `weave init` subcommand.
func NewCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a starter selector map and workflow definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, outDir)
		},
	}
	cmd.Flags().StringVar(&outDir, "dir", ".", "Directory to write selectors.yaml and workflow.yaml into")
	return cmd
}

func runInit(cmd *cobra.Command, outDir string) error {
	var (
		workflowName string
		logicalKey   string
		cssSelector  string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Workflow name").
				Description("Identifies the generated workflow definition").
				Placeholder("my-workflow").
				Value(&workflowName),
			huh.NewInput().
				Title("First logical key").
				Description("Name for the one selector entry this scaffold seeds").
				Placeholder("submitButton").
				Value(&logicalKey),
			huh.NewInput().
				Title("CSS selector").
				Description("The try this logical key resolves with").
				Placeholder("#submit").
				Value(&cssSelector),
		),
	)
	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			os.Exit(130)
		}
		return shared.NewConfigError("init wizard cancelled", err)
	}

	if workflowName == "" {
		workflowName = "my-workflow"
	}
	if logicalKey == "" {
		logicalKey = "submitButton"
	}
	if cssSelector == "" {
		cssSelector = "#submit"
	}

	smap := selector.SelectorMap{
		selector.LogicalKey(logicalKey): selector.SelectorEntry{
			Tries: []selector.SelectorTry{{Kind: selector.TryCSS, Selector: cssSelector}},
		},
	}
	def := workflow.Definition{
		ID:   workflowName,
		Name: workflowName,
		Steps: []workflow.Step{
			{Kind: workflow.StepClick, ID: "step1", LogicalKey: selector.LogicalKey(logicalKey)},
		},
	}

	if err := writeYAML(outDir+"/selectors.yaml", smap); err != nil {
		return shared.NewConfigError("writing selectors.yaml", err)
	}
	if err := writeYAML(outDir+"/workflow.yaml", def); err != nil {
		return shared.NewConfigError("writing workflow.yaml", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("wrote "+outDir+"/selectors.yaml and "+outDir+"/workflow.yaml"))
	return nil
}

func writeYAML(path string, v any) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
