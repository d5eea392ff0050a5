// Package run implements `weave run`: load a workflow definition and
// selector map, execute them against the engine, and print the
// outcome.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dgxrun/weave/internal/commands/shared"
	intlog "github.com/dgxrun/weave/internal/log"
	"github.com/dgxrun/weave/internal/loader"
	"github.com/dgxrun/weave/pkg/clock"
	"github.com/dgxrun/weave/pkg/dom"
	"github.com/dgxrun/weave/pkg/observability"
	"github.com/dgxrun/weave/pkg/scroll"
	"github.com/dgxrun/weave/pkg/selector"
	"github.com/dgxrun/weave/pkg/wait"
	"github.com/dgxrun/weave/pkg/workflow"
)

// NewCommand builds the `weave run` subcommand.
func NewCommand() *cobra.Command {
	var (
		selectorsPath string
		watch         bool
		trace         bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow-file>",
		Short: "Execute a workflow definition",
		Long: `Run loads a workflow definition (JSON or YAML) and a selector map,
then drives the engine's resolver, scheduler, wait, and scroll
subsystems against them.

weave never bundles a browser driver: without an embedded dom.Document
implementation this runs against an inert document, so every
logical-key resolution reports a miss. Use it to exercise timing,
retry, and telemetry behavior, or embed weave as a library with a real
driver for actual browser automation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, args[0], selectorsPath, watch, trace)
		},
	}

	cmd.Flags().StringVar(&selectorsPath, "selectors", "", "Path to a selector map file (JSON or YAML)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-run whenever the workflow or selector file changes")
	cmd.Flags().BoolVar(&trace, "trace", false, "Open an OTel span per resolve attempt and step execution")

	return cmd
}

func runOnce(cmd *cobra.Command, workflowPath, selectorsPath string, watch, trace bool) error {
	logger := intlog.New(intlog.FromEnv())
	if shared.GetVerbose() {
		logger = intlog.New(&intlog.Config{Level: "debug", Format: intlog.FormatText, Output: cmd.ErrOrStderr()})
	}

	runAndPrint := func() error {
		outcome, err := execute(cmd.Context(), logger, workflowPath, selectorsPath, trace)
		printOutcome(cmd, workflowPath, outcome, err)
		if err != nil {
			return shared.NewExecutionError("workflow run failed", err)
		}
		return nil
	}

	if !watch {
		return runAndPrint()
	}

	fmt.Fprintln(cmd.OutOrStdout(), shared.RenderLabel("watching for changes, ctrl-c to stop"))
	watchPaths := []string{workflowPath}
	if selectorsPath != "" {
		watchPaths = append(watchPaths, selectorsPath)
	}
	errCh := make(chan error, 1)
	w, err := loader.NewWatcher(watchPaths, 200*time.Millisecond, func(path string) {
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderLabel("change detected in "+path+", re-running"))
		if err := runAndPrint(); err != nil {
			errCh <- err
		}
	})
	if err != nil {
		return shared.NewConfigError("starting file watcher", err)
	}
	defer w.Close()

	if err := runAndPrint(); err != nil {
		return err
	}
	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
		return nil
	}
}

// execute loads def/selector map and runs them once, returning the
// scheduler's outcome.
func execute(ctx context.Context, logger *slog.Logger, workflowPath, selectorsPath string, trace bool) (workflow.RunOutcome, error) {
	def, err := loader.LoadDefinition(workflowPath)
	if err != nil {
		return workflow.RunOutcome{}, err
	}

	smap := selector.SelectorMap{}
	if selectorsPath != "" {
		smap, err = loader.LoadSelectorMap(selectorsPath)
		if err != nil {
			return workflow.RunOutcome{}, err
		}
	}

	var doc dom.Document = nullDocument{}
	resolver := selector.NewResolver(smap, doc)
	frames := clock.NewTicker(clock.DefaultFramePeriod)
	detector := scroll.NewDetector(doc, nil)
	scroller := scroll.NewScroller(frames, detector)
	waitSched := wait.NewScheduler(resolver, clock.Real{}, nil)
	telemetry := workflow.NewTelemetry(frames, nil)
	telemetry.ObserveSteps(func(batch []workflow.StepEvent) {
		for _, ev := range batch {
			logger.Debug("step event", intlog.String("kind", string(ev.Kind)), intlog.String(intlog.StepIDKey, ev.StepID))
		}
	})

	var tracer observability.Tracer
	if trace {
		v, _, _ := shared.GetVersion()
		provider, err := observability.NewOTelProvider("weave", v)
		if err != nil {
			return workflow.RunOutcome{}, err
		}
		defer provider.Shutdown(ctx)
		tracer = provider.Tracer("weave/run")
		resolver.Tracer = tracer
	}

	sched := workflow.NewScheduler(workflow.RunOptions{
		Resolver:  resolver,
		Doc:       doc,
		Scroller:  scroller,
		Detector:  detector,
		Wait:      waitSched,
		Telemetry: telemetry,
		Logger:    logger,
		Tracer:    tracer,
	})

	runID := uuid.NewString()
	return sched.RunWorkflow(ctx, def, runID)
}

func printOutcome(cmd *cobra.Command, path string, outcome workflow.RunOutcome, err error) {
	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		type jsonOutcome struct {
			shared.JSONResponse
			Status         string `json:"status"`
			CompletedSteps int    `json:"completedSteps"`
			DurationMs     int64  `json:"durationMs"`
			Error          string `json:"error,omitempty"`
		}
		resp := jsonOutcome{
			JSONResponse:   shared.JSONResponse{Version: "1.0", Command: "run", Success: err == nil},
			Status:         string(outcome.Status),
			CompletedSteps: outcome.CompletedSteps,
			DurationMs:     outcome.FinishedAt.Sub(outcome.StartedAt).Milliseconds(),
		}
		if err != nil {
			resp.Error = err.Error()
		}
		_ = shared.EmitJSON(resp)
		return
	}

	if err != nil {
		fmt.Fprintln(out, shared.RenderError(fmt.Sprintf("%s: %s (%d steps completed)", path, outcome.Status, outcome.CompletedSteps)))
		fmt.Fprintln(out, shared.RenderLabel(err.Error()))
		return
	}
	fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s: %s (%d steps completed)", path, outcome.Status, outcome.CompletedSteps)))
}
