package workflow

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/dgxrun/weave/pkg/clock"
	"github.com/dgxrun/weave/pkg/dom"
	"github.com/dgxrun/weave/pkg/envlookup"
	werrors "github.com/dgxrun/weave/pkg/errors"
	intlog "github.com/dgxrun/weave/internal/log"
	"github.com/dgxrun/weave/pkg/observability"
	"github.com/dgxrun/weave/pkg/scroll"
	"github.com/dgxrun/weave/pkg/selector"
	"github.com/dgxrun/weave/pkg/wait"
)

// Global timing defaults, the lowest-precedence tier in the scheduler's
// effective-timing lookup: step-declared > definition-defaults >
// runtime overrides > these.
const (
	GlobalTimeoutMs    = 8000
	GlobalIntervalMs   = 150
	GlobalRetries      = 0
	GlobalBackoffMs    = 250
	GlobalMaxBackoffMs = 2000
)

// RunStatus is the terminal state of a workflow run (or a nested step
// block run through the same machinery).
type RunStatus string

const (
	RunSuccess   RunStatus = "success"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunOutcome is the result of walking a step sequence to completion,
// whether that sequence is a whole Definition or a nested if/foreach/
// retry body.
type RunOutcome struct {
	Status          RunStatus
	StartedAt       time.Time
	FinishedAt      time.Time
	CompletedSteps  int
	Error           error
	ContextSnapshot Snapshot
}

// RunOptions wires every subsystem the scheduler dispatches into: the
// handler registry, the resolver, the scroll/wait subsystems, the
// environment and clock, telemetry, and the structured logger.
type RunOptions struct {
	Handlers  map[StepKind]Handler
	Env       *envlookup.Resolver
	Clock     clock.Clock
	Resolver  *selector.Resolver
	Scroller  *scroll.Scroller
	Detector  *scroll.Detector
	Doc       dom.Document
	Wait      *wait.Scheduler
	Telemetry *Telemetry
	Logger    *slog.Logger
	// Tracer opens a parent span per run and a child span per step
	// execution, nested through the context the scheduler already
	// threads end to end. Nil disables tracing.
	Tracer observability.Tracer
	// Timing holds runtime overrides: the third-precedence timing tier,
	// below step and definition defaults but above the global ones.
	Timing Timing
	Now    func() time.Time
}

func (o RunOptions) normalized() RunOptions {
	if o.Handlers == nil {
		o.Handlers = DefaultHandlers()
	}
	if o.Env == nil {
		o.Env = envlookup.New()
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.Telemetry == nil {
		o.Telemetry = NewTelemetry(nil, nil)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Scheduler implements C11: the run-level orchestration loop that
// computes effective timing, walks steps in order, retries with
// backoff and jitter, and emits run/step telemetry.
type Scheduler struct {
	opts RunOptions
	mw   *intlog.StepMiddleware
}

// NewScheduler returns a Scheduler ready to run workflow definitions.
func NewScheduler(opts RunOptions) *Scheduler {
	opts = opts.normalized()
	return &Scheduler{opts: opts, mw: intlog.NewStepMiddleware(opts.Logger)}
}

// RunWorkflow executes every step of def in order under runID,
// returning the terminal outcome. Cancellation is edge-triggered: a
// context already cancelled before the first step never starts one.
func (s *Scheduler) RunWorkflow(ctx context.Context, def Definition, runID string) (RunOutcome, error) {
	var span observability.SpanHandle
	if s.opts.Tracer != nil {
		ctx, span = s.opts.Tracer.Start(ctx, "workflow.run", observability.WithAttributes(map[string]any{
			"run_id": runID, "workflow_id": def.ID,
		}))
		defer span.End()
	}

	start := s.opts.Now()
	s.opts.Telemetry.EmitRun(RunEvent{
		Kind: RunStarted, RunID: runID, WorkflowID: def.ID, Timestamp: toMillis(start),
	})

	rc := &run{scheduler: s, def: def, runID: runID}
	scope := NewContext(nil)
	outcome, err := rc.runSteps(ctx, def.Steps, scope)

	if span != nil {
		if err != nil {
			span.RecordError(err)
		} else {
			span.SetStatus(observability.StatusCodeOK, "")
		}
	}

	finished := s.opts.Now()
	outcome.StartedAt = start
	outcome.FinishedAt = finished
	outcome.ContextSnapshot = scope.Snapshot()

	ev := RunEvent{
		RunID: runID, WorkflowID: def.ID, Timestamp: toMillis(finished),
		CompletedSteps: outcome.CompletedSteps, DurationMs: finished.Sub(start).Milliseconds(),
	}
	switch outcome.Status {
	case RunCancelled:
		ev.Kind = RunCancelled
	case RunFailed:
		ev.Kind, ev.Error = RunFailed, err
	default:
		ev.Kind = RunCompleted
	}
	s.opts.Telemetry.EmitRun(ev)
	s.opts.Telemetry.Flush()

	return outcome, err
}

// run holds the per-invocation state threaded through recursive
// runSteps calls (if/foreach/retry bodies all share one run's id,
// handlers, and telemetry sink).
type run struct {
	scheduler *Scheduler
	def       Definition
	runID     string
}

// runSteps walks steps in order against scope, honoring
// ContinueOnError and stopping at the first uncontained failure or
// cancellation. It is the Input.Runner callback handlers use for
// nested if/foreach/retry bodies.
func (r *run) runSteps(ctx context.Context, steps []Step, scope *Context) (RunOutcome, error) {
	completed := 0
	for _, step := range steps {
		select {
		case <-ctx.Done():
			return RunOutcome{Status: RunCancelled, CompletedSteps: completed}, ctx.Err()
		default:
		}

		result, err := r.runStep(ctx, step, scope)
		if err != nil {
			if stepErr, ok := err.(*werrors.StepError); ok && stepErr.Reason == werrors.ReasonCancelled {
				return RunOutcome{Status: RunCancelled, CompletedSteps: completed}, err
			}
			if step.ContinueOnError {
				completed++
				continue
			}
			return RunOutcome{Status: RunFailed, CompletedSteps: completed}, err
		}
		for k, v := range result.ContextUpdates {
			scope.Set(k, v, SetOptions{})
		}
		completed++
	}
	return RunOutcome{Status: RunSuccess, CompletedSteps: completed}, nil
}

// runStep computes effective timing for one step and drives its
// attempt/backoff/retry loop to a terminal StepResult or StepError.
func (r *run) runStep(ctx context.Context, step Step, scope *Context) (StepResult, error) {
	if r.scheduler.opts.Tracer != nil {
		var span observability.SpanHandle
		ctx, span = r.scheduler.opts.Tracer.Start(ctx, "workflow.step", observability.WithAttributes(map[string]any{
			"step_id": step.ID, "step_kind": string(step.Kind),
		}))
		defer span.End()
		result, err := r.runStepTraced(ctx, step, scope)
		if err != nil {
			span.RecordError(err)
		} else {
			span.SetStatus(observability.StatusCodeOK, "")
		}
		return result, err
	}
	return r.runStepTraced(ctx, step, scope)
}

func (r *run) runStepTraced(ctx context.Context, step Step, scope *Context) (StepResult, error) {
	timing := effectiveTiming(step.Timing, r.def.Timing, r.scheduler.opts.Timing)
	handler, ok := r.scheduler.opts.Handlers[step.Kind]
	if !ok {
		return StepResult{}, &werrors.StepError{
			Reason: werrors.ReasonUnknown, Message: "no handler registered for step kind",
			StepKind: string(step.Kind), StepID: step.ID,
		}
	}

	var lastErr error
	for attempt := 1; attempt <= timing.retries+1; attempt++ {
		select {
		case <-ctx.Done():
			return StepResult{}, &werrors.StepError{
				Reason: werrors.ReasonCancelled, Message: "run cancelled",
				StepKind: string(step.Kind), StepID: step.ID, Attempts: attempt - 1,
			}
		default:
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if timing.timeoutMs > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(timing.timeoutMs)*time.Millisecond)
		}

		r.scheduler.opts.Telemetry.EmitStep(StepEvent{
			Kind: StepEventAttempt, RunID: r.runID, StepID: step.ID, StepKind: step.Kind,
			Attempt: attempt, Timestamp: toMillis(r.scheduler.opts.Now()),
		})

		var resolveResult selector.ResolveResult
		if step.LogicalKey != "" && r.scheduler.opts.Resolver != nil {
			resolveResult = r.scheduler.opts.Resolver.Resolve(attemptCtx, step.LogicalKey, selector.ResolveOptions{})
			if resolveResult.Resolved() {
				scope.BindElement(string(step.LogicalKey), resolveResult.Element)
			}
		}

		in := Input{
			Step: step, Attempt: attempt, RetriesRemaining: timing.retries - attempt + 1,
			Context: scope, ResolveResult: resolveResult, RunID: r.runID, WorkflowID: r.def.ID,
			ResolveLogicalKey: r.resolveLogicalKey, Env: r.scheduler.opts.Env, Clock: r.scheduler.opts.Clock,
			Scroller: r.scheduler.opts.Scroller, Detector: r.scheduler.opts.Detector, Doc: r.scheduler.opts.Doc,
			Wait: r.scheduler.opts.Wait, Runner: r.runSteps,
		}

		req := &intlog.StepRequest{StepKind: string(step.Kind), RunID: r.runID, StepID: step.ID, Attempt: attempt}
		var result StepResult
		err := r.scheduler.mw.Handler(req, func() error {
			var handlerErr error
			result, handlerErr = handler(attemptCtx, in)
			return handlerErr
		})

		if cancel != nil {
			cancel()
		}

		if err == nil {
			r.scheduler.opts.Telemetry.EmitStep(StepEvent{
				Kind: eventKindFor(result.Status), RunID: r.runID, StepID: step.ID, StepKind: step.Kind,
				Attempt: attempt, Timestamp: toMillis(r.scheduler.opts.Now()), Notes: result.Notes, Data: result.Data,
			})
			return result, nil
		}

		lastErr = err
		stepErr, _ := err.(*werrors.StepError)
		r.scheduler.opts.Telemetry.EmitStep(StepEvent{
			Kind: StepEventFailure, RunID: r.runID, StepID: step.ID, StepKind: step.Kind,
			Attempt: attempt, Timestamp: toMillis(r.scheduler.opts.Now()), Error: err,
		})
		if stepErr != nil && !stepErr.IsRetryable() {
			return StepResult{}, err
		}
		if attempt <= timing.retries {
			sleepBackoff(ctx, r.scheduler.opts.Clock, RetryPolicy{
				Retries: timing.retries, BackoffMs: timing.backoffMs,
				MaxBackoffMs: timing.maxBackoffMs, JitterMs: timing.jitterMs,
			}, attempt)
		}
	}
	return StepResult{}, lastErr
}

func (r *run) resolveLogicalKey(ctx context.Context, key selector.LogicalKey) selector.ResolveResult {
	if r.scheduler.opts.Resolver == nil {
		return selector.ResolveResult{Key: key}
	}
	return r.scheduler.opts.Resolver.Resolve(ctx, key, selector.ResolveOptions{})
}

func eventKindFor(status Status) StepEventKind {
	if status == StatusSkipped {
		return StepEventSkipped
	}
	return StepEventSuccess
}

// effectiveTiming is the resolved numeric tier: timing fields set on
// the step itself win, then the definition's own defaults, then the
// scheduler's runtime overrides, then the package-wide globals.
type resolvedTiming struct {
	timeoutMs, intervalMs, retries, backoffMs, maxBackoffMs, jitterMs int
}

func effectiveTiming(step, def, runtime Timing) resolvedTiming {
	return resolvedTiming{
		timeoutMs:    pickTiming(step.TimeoutMs, def.TimeoutMs, runtime.TimeoutMs, GlobalTimeoutMs),
		intervalMs:   pickTiming(step.IntervalMs, def.IntervalMs, runtime.IntervalMs, GlobalIntervalMs),
		retries:      pickTiming(step.Retries, def.Retries, runtime.Retries, GlobalRetries),
		backoffMs:    pickTiming(step.BackoffMs, def.BackoffMs, runtime.BackoffMs, GlobalBackoffMs),
		maxBackoffMs: pickTiming(step.MaxBackoffMs, def.MaxBackoffMs, runtime.MaxBackoffMs, GlobalMaxBackoffMs),
		jitterMs:     pickJitter(step.JitterMs, def.JitterMs, runtime.JitterMs, pickTiming(step.BackoffMs, def.BackoffMs, runtime.BackoffMs, GlobalBackoffMs)),
	}
}

func pickTiming(step, def, runtime *int, global int) int {
	if step != nil {
		return *step
	}
	if def != nil {
		return *def
	}
	if runtime != nil {
		return *runtime
	}
	return global
}

// pickJitter defaults to backoff/5 per the global default (jitterMs <=
// backoff/5) when no tier declares an explicit value.
func pickJitter(step, def, runtime *int, backoffMs int) int {
	if step != nil {
		return *step
	}
	if def != nil {
		return *def
	}
	if runtime != nil {
		return *runtime
	}
	return backoffMs / 5
}

// backoffDuration computes min(maxBackoff, backoff*2^(attempt-1)) with
// up to +/- jitterMs of symmetric jitter.
func backoffDuration(backoffMs, maxBackoffMs, jitterMs, attempt int) time.Duration {
	base := backoffMs
	for i := 1; i < attempt; i++ {
		base *= 2
		if base >= maxBackoffMs {
			base = maxBackoffMs
			break
		}
	}
	if base > maxBackoffMs {
		base = maxBackoffMs
	}
	if jitterMs > 0 {
		delta := rand.Intn(2*jitterMs+1) - jitterMs
		base += delta
		if base < 0 {
			base = 0
		}
	}
	return time.Duration(base) * time.Millisecond
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}
