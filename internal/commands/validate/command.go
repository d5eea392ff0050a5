// Package validate implements `weave validate`: load a workflow
// definition and run it through workflow.NoopValidator, which reports
// no issues; no DSL-contract checks are made beyond loading the file.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgxrun/weave/internal/commands/shared"
	"github.com/dgxrun/weave/internal/loader"
	"github.com/dgxrun/weave/pkg/workflow"
)

// NewCommand builds the `weave validate` subcommand.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow-file>",
		Short: "Statically check a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	def, err := loader.LoadDefinition(path)
	if err != nil {
		return shared.NewInvalidWorkflowError("loading workflow file", err)
	}

	var v workflow.Validator = workflow.NoopValidator{}
	issues := v.Validate(&def)

	if shared.GetJSON() {
		type jsonIssue struct {
			Severity string `json:"severity"`
			StepID   string `json:"stepId,omitempty"`
			Message  string `json:"message"`
		}
		type jsonResult struct {
			shared.JSONResponse
			Issues []jsonIssue `json:"issues"`
		}
		out := jsonResult{JSONResponse: shared.JSONResponse{Version: "1.0", Command: "validate", Success: true}}
		for _, iss := range issues {
			out.Issues = append(out.Issues, jsonIssue{Severity: string(iss.Severity), StepID: iss.StepID, Message: iss.Message})
		}
		return shared.EmitJSON(out)
	}

	out := cmd.OutOrStdout()
	if len(issues) == 0 {
		fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s: %d steps, no issues found", def.ID, len(def.Steps))))
		return nil
	}
	for _, iss := range issues {
		if iss.Severity == workflow.SeverityError {
			fmt.Fprintln(out, shared.RenderError(iss.Message))
		} else {
			fmt.Fprintln(out, shared.RenderWarn(iss.Message))
		}
	}
	return nil
}
