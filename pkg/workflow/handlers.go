package workflow

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	intjq "github.com/dgxrun/weave/internal/jq"
	"github.com/dgxrun/weave/pkg/clock"
	"github.com/dgxrun/weave/pkg/dom"
	"github.com/dgxrun/weave/pkg/envlookup"
	werrors "github.com/dgxrun/weave/pkg/errors"
	"github.com/dgxrun/weave/pkg/expression"
	"github.com/dgxrun/weave/pkg/scroll"
	"github.com/dgxrun/weave/pkg/selector"
	"github.com/dgxrun/weave/pkg/wait"
)

// Status is a handler's terminal, non-error outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
)

// StepResult is a handler's successful return value.
type StepResult struct {
	Status         Status
	Notes          string
	ContextUpdates map[string]any
	Logs           []string
	Data           map[string]any
}

// ResolveLogicalKeyFunc resolves a logical key against the run's
// current scope, the callback handlers use to resolve mid-execution
// (e.g. `if` element-existence conditions, `collectList` item keys).
type ResolveLogicalKeyFunc func(ctx context.Context, key selector.LogicalKey) selector.ResolveResult

// Input is the uniform handler contract input.
type Input struct {
	Step             Step
	Attempt          int
	RetriesRemaining int
	Context          *Context
	ResolveResult    selector.ResolveResult
	RunID            string
	WorkflowID       string
	ResolveLogicalKey ResolveLogicalKeyFunc
	Env              *envlookup.Resolver
	Clock            clock.Clock
	Scroller         *scroll.Scroller
	Detector         *scroll.Detector
	Doc              dom.Document
	Wait             *wait.Scheduler
	Runner           func(ctx context.Context, steps []Step, scope *Context) (RunOutcome, error)
}

// Handler executes one step attempt. It returns a StepResult on
// success/skip, or a *werrors.StepError on failure.
type Handler func(ctx context.Context, in Input) (StepResult, error)

func summarizeElement(ctx context.Context, el dom.Element) elementSummary {
	if el == nil {
		return elementSummary{}
	}
	tag, _ := el.TagName(ctx)
	id, _, _ := el.Attribute(ctx, "id")
	classAttr, _, _ := el.Attribute(ctx, "class")
	return elementSummary{Tag: tag, ID: id, Classes: summarizeClasses(classAttr)}
}

func stepErr(in Input, reason werrors.Reason, message string) *werrors.StepError {
	return &werrors.StepError{
		Reason: reason, Message: message, StepKind: string(in.Step.Kind),
		StepID: in.Step.ID, LogicalKey: in.Step.LogicalKey, Attempts: in.Attempt,
	}
}

func requireElement(in Input) (dom.Element, *werrors.StepError) {
	if !in.ResolveResult.Resolved() {
		return nil, stepErr(in, werrors.ReasonResolverMiss, "logical key did not resolve")
	}
	return in.ResolveResult.Element, nil
}

// handleClick focuses the element, then calls its Click method. The
// handler dispatches no pointerdown/mousedown/mouseup events of its
// own; which events a click fires is left to the driver's Click.
func handleClick(ctx context.Context, in Input) (StepResult, error) {
	el, serr := requireElement(in)
	if serr != nil {
		return StepResult{}, serr
	}
	if err := el.Focus(ctx); err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "focus before click failed: "+err.Error())
	}
	if err := el.Click(ctx); err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "click failed: "+err.Error())
	}
	return StepResult{Status: StatusSuccess, Data: map[string]any{"element": summarizeElement(ctx, el)}}, nil
}

// handleHoverFocusBlur covers hover/focus/blur, each requiring a
// resolved element. Focus calls the element's Focus; blur and hover
// make no driver call and succeed once the element resolves.
func handleHoverFocusBlur(ctx context.Context, in Input) (StepResult, error) {
	el, serr := requireElement(in)
	if serr != nil {
		return StepResult{}, serr
	}
	var err error
	switch in.Step.Kind {
	case StepFocus:
		err = el.Focus(ctx)
	case StepBlur, StepHover:
		// Blur/hover have no dedicated accepted-interface method beyond
		// focus semantics at this layer; a real driver implements the
		// DOM-level event dispatch behind Focus/Click. Hover with no
		// click-equivalent is a focus-free no-op acknowledgement.
		err = nil
	}
	if err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, string(in.Step.Kind)+" failed: "+err.Error())
	}
	return StepResult{Status: StatusSuccess}, nil
}

func handleType(ctx context.Context, in Input) (StepResult, error) {
	el, serr := requireElement(in)
	if serr != nil {
		return StepResult{}, serr
	}
	interp := NewInterpolator(in.Context, in.Env)
	value, err := interp.ResolveValue(in.Step.Value)
	if err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonContextMiss, "type value resolution failed: "+err.Error())
	}

	if in.Step.ClearFirst {
		if err := el.SetValue(ctx, ""); err != nil {
			return StepResult{}, stepErr(in, werrors.ReasonUnknown, "clear failed: "+err.Error())
		}
		sleep(ctx, in.Clock, in.Step.DelayMs)
	}
	if err := el.Focus(ctx); err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "focus failed: "+err.Error())
	}
	if err := el.SetValue(ctx, value); err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "set value failed: "+err.Error())
	}

	notes := value
	if in.Step.MaskOutput {
		notes = "[masked]"
	}
	return StepResult{Status: StatusSuccess, Notes: notes}, nil
}

func handleSelect(ctx context.Context, in Input) (StepResult, error) {
	el, serr := requireElement(in)
	if serr != nil {
		return StepResult{}, serr
	}
	var value string
	switch {
	case len(in.Step.SelectMultiple) > 0:
		value = strings.Join(in.Step.SelectMultiple, ",")
	case in.Step.SelectValue != "":
		value = in.Step.SelectValue
	case in.Step.SelectLabel != "":
		value = in.Step.SelectLabel
	case in.Step.SelectIndex != nil:
		value = strconv.Itoa(*in.Step.SelectIndex)
	}
	if err := el.SetValue(ctx, value); err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "select failed: "+err.Error())
	}
	return StepResult{Status: StatusSuccess}, nil
}

func handleWaitFamily(ctx context.Context, in Input) (StepResult, error) {
	if in.Wait == nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "no wait scheduler configured")
	}
	var predicate wait.Predicate
	switch in.Step.Kind {
	case StepWaitText:
		var pattern *regexp.Regexp
		if in.Step.WaitTextPattern != "" {
			compiled, err := regexp.Compile(in.Step.WaitTextPattern)
			if err != nil {
				return StepResult{}, stepErr(in, werrors.ReasonUnknown, "invalid waitText pattern: "+err.Error())
			}
			pattern = compiled
		}
		predicate = wait.TextPredicate{Text: in.Step.WaitText, TextPattern: pattern, Exact: in.Step.WaitTextExact}
	case StepWaitVisible:
		predicate = wait.VisibilityPredicate{Target: wait.TargetVisible}
	case StepWaitHidden:
		predicate = wait.VisibilityPredicate{Target: wait.TargetHidden}
	case StepWaitForIdle:
		// Idle requires a MutationObserver the driver supplies; without
		// one configured this step always succeeds trivially on first
		// resolve since no predicate gates it.
		predicate = nil
	default: // waitFor: presence only
		predicate = nil
	}

	opts := wait.Options{
		Key: in.Step.LogicalKey, Predicate: predicate,
		PresenceThreshold: in.Step.PresenceThreshold,
		StaleRetryCap:     in.Step.StaleRetryCap,
		Scroller:          in.Scroller,
	}
	if in.Step.Timing.TimeoutMs != nil {
		opts.TimeoutMs = *in.Step.Timing.TimeoutMs
	}
	if in.Step.Timing.IntervalMs != nil {
		opts.IntervalMs = *in.Step.Timing.IntervalMs
	}

	out, err := in.Wait.Run(ctx, opts)
	if err != nil {
		if waitErr, ok := err.(*werrors.WaitError); ok {
			return StepResult{}, &werrors.StepError{
				Reason: werrors.StepFromWait(waitErr.Reason), Message: waitErr.Message,
				StepKind: string(in.Step.Kind), StepID: in.Step.ID, LogicalKey: in.Step.LogicalKey,
				Attempts: waitErr.Attempts, ElapsedMs: waitErr.Elapsed.Milliseconds(),
			}
		}
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, err.Error())
	}
	return StepResult{Status: StatusSuccess, Data: map[string]any{"attempts": out.Attempts}}, nil
}

func handleDelay(ctx context.Context, in Input) (StepResult, error) {
	ms := in.Step.DelayOnlyMs
	select {
	case <-ctx.Done():
		return StepResult{}, stepErr(in, werrors.ReasonCancelled, "delay cancelled")
	case <-clockOrReal(in.Clock).After(time.Duration(ms) * time.Millisecond):
	}
	return StepResult{Status: StatusSuccess}, nil
}

func handleLog(ctx context.Context, in Input) (StepResult, error) {
	return StepResult{Status: StatusSuccess, Logs: []string{in.Step.LogMessage}}, nil
}

func handleSetContext(ctx context.Context, in Input) (StepResult, error) {
	interp := NewInterpolator(in.Context, in.Env)
	var value string
	var err error
	if in.Step.LogicalKey != "" {
		el, serr := requireElement(in)
		if serr != nil {
			return StepResult{}, serr
		}
		value, err = el.TextContent(ctx)
	} else {
		value, err = interp.ResolveValue(in.Step.Value)
	}
	if err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonContextMiss, "setContext resolution failed: "+err.Error())
	}
	in.Context.Set(in.Step.To, value, in.Step.SetOptions)
	return StepResult{Status: StatusSuccess, ContextUpdates: map[string]any{in.Step.To: value}}, nil
}

func handleCapture(ctx context.Context, in Input) (StepResult, error) {
	el, serr := requireElement(in)
	if serr != nil {
		return StepResult{}, serr
	}
	if in.Step.From.Kind == CaptureJQ {
		return handleCaptureJQ(ctx, in, el)
	}
	var raw string
	var err error
	switch in.Step.From.Kind {
	case CaptureAttr:
		v, _, aerr := el.Attribute(ctx, in.Step.From.Attribute)
		raw, err = v, aerr
	case CaptureValue:
		raw, err = el.TextContent(ctx)
	case CaptureHTML:
		raw, err = el.TextContent(ctx)
	case CaptureRegex:
		text, terr := el.TextContent(ctx)
		if terr != nil {
			err = terr
			break
		}
		re, cerr := regexp.Compile(in.Step.From.Pattern)
		if cerr != nil {
			return StepResult{}, stepErr(in, werrors.ReasonUnknown, "invalid capture pattern: "+cerr.Error())
		}
		m := re.FindStringSubmatch(text)
		group := in.Step.From.Group
		if group < len(m) {
			raw = m[group]
		}
	default: // text
		raw, err = el.TextContent(ctx)
	}
	if err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "capture extraction failed: "+err.Error())
	}
	in.Context.Set(in.Step.To, raw, in.Step.SetOptions)
	return StepResult{Status: StatusSuccess, ContextUpdates: map[string]any{in.Step.To: raw}}, nil
}

// handleCaptureJQ extracts a field out of JSON text content via a jq
// expression, for pages that embed structured data in a
// <script type="application/json"> payload.
func handleCaptureJQ(ctx context.Context, in Input, el dom.Element) (StepResult, error) {
	text, err := el.TextContent(ctx)
	if err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "capture extraction failed: "+err.Error())
	}
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "captured text is not valid JSON: "+err.Error())
	}
	result, err := intjq.NewExecutor(0, 0).Execute(ctx, in.Step.From.JQExpr, data)
	if err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "jq extraction failed: "+err.Error())
	}
	in.Context.Set(in.Step.To, result, in.Step.SetOptions)
	return StepResult{Status: StatusSuccess, ContextUpdates: map[string]any{in.Step.To: result}}, nil
}

func handleAssert(ctx context.Context, in Input) (StepResult, error) {
	a := in.Step.Assert
	switch a.Kind {
	case AssertTextEquals, AssertTextContains:
		el, serr := requireElement(in)
		if serr != nil {
			return StepResult{}, serr
		}
		text, err := el.TextContent(ctx)
		if err != nil {
			return StepResult{}, stepErr(in, werrors.ReasonUnknown, "assert text read failed: "+err.Error())
		}
		ok := text == a.Text
		if a.Kind == AssertTextContains {
			ok = strings.Contains(text, a.Text)
		}
		if !ok {
			return StepResult{}, stepErr(in, werrors.ReasonAssertionFailed, fmt.Sprintf("expected text %q, got %q", a.Text, text))
		}
	case AssertVisible, AssertHidden:
		target := wait.TargetVisible
		if a.Kind == AssertHidden {
			target = wait.TargetHidden
		}
		pred := wait.VisibilityPredicate{Target: target}
		snap, err := pred.Evaluate(ctx, wait.Context{Element: in.ResolveResult.Element})
		if err != nil {
			return StepResult{}, stepErr(in, werrors.ReasonUnknown, "assert visibility failed: "+err.Error())
		}
		if !snap.Matches {
			return StepResult{}, stepErr(in, werrors.ReasonAssertionFailed, "visibility assertion unmet")
		}
	case AssertContextEquals:
		v, _ := in.Context.Get(a.ContextKey)
		if fmt.Sprintf("%v", v) != fmt.Sprintf("%v", a.Value) {
			return StepResult{}, stepErr(in, werrors.ReasonAssertionFailed, fmt.Sprintf("context %q mismatch", a.ContextKey))
		}
	case AssertExpression:
		ok, err := evalExpression(ctx, a.Expression, in.Context)
		if err != nil {
			return StepResult{}, stepErr(in, werrors.ReasonPredicateError, err.Error())
		}
		if !ok {
			return StepResult{}, stepErr(in, werrors.ReasonAssertionFailed, "expression assertion false: "+a.Expression)
		}
	}
	return StepResult{Status: StatusSuccess}, nil
}

func handleCollectList(ctx context.Context, in Input) (StepResult, error) {
	var items []dom.Element
	switch {
	case in.Step.ListItemsKey != "":
		res := in.ResolveLogicalKey(ctx, selector.LogicalKey(in.Step.ListItemsKey))
		if res.Resolved() {
			items = []dom.Element{res.Element}
		}
	case in.Step.ListCSS != "" && in.Doc != nil:
		els, err := in.Doc.QueryAll(ctx, in.Step.ListCSS, nil)
		if err != nil {
			return StepResult{}, stepErr(in, werrors.ReasonUnknown, "collectList query failed: "+err.Error())
		}
		items = els
	}

	if in.Step.Limit > 0 && len(items) > in.Step.Limit {
		items = items[:in.Step.Limit]
	}

	out := make([]any, 0, len(items))
	seen := make(map[string]bool)
	for _, el := range items {
		var v any
		var dedupeKey string
		switch in.Step.CollectTo {
		case CollectAttrs:
			attrs, _ := el.Attributes(ctx)
			v = attrs
			dedupeKey = fmt.Sprintf("%v", attrs)
		case CollectObject:
			v = summarizeElement(ctx, el)
			dedupeKey = fmt.Sprintf("%v", v)
		case CollectHTML:
			text, _ := el.TextContent(ctx)
			v = text
			dedupeKey = text
		default: // text
			text, _ := el.TextContent(ctx)
			v = text
			dedupeKey = text
		}
		if in.Step.DedupeBy != "" {
			if seen[dedupeKey] {
				continue
			}
			seen[dedupeKey] = true
		}
		out = append(out, v)
	}

	in.Context.Set(in.Step.To, out, SetOptions{})
	return StepResult{Status: StatusSuccess, ContextUpdates: map[string]any{in.Step.To: out}, Data: map[string]any{"count": len(out)}}, nil
}

func handleScrollIntoView(ctx context.Context, in Input) (StepResult, error) {
	el, serr := requireElement(in)
	if serr != nil {
		return StepResult{}, serr
	}
	if in.Scroller == nil {
		return StepResult{}, stepErr(in, werrors.ReasonContainerUnavailable, "no scroller configured")
	}
	opts := scroll.IntoViewOptions{
		Block:  scroll.Align(in.Step.ScrollBlock),
		Inline: scroll.Align(in.Step.ScrollInline),
		Margin: scroll.Margin{
			Top:    in.Step.ScrollMargin.Top,
			Bottom: in.Step.ScrollMargin.Bottom,
			Left:   in.Step.ScrollMargin.Left,
			Right:  in.Step.ScrollMargin.Right,
		},
	}
	if err := in.Scroller.ScrollIntoView(ctx, el, scroll.ContainerHint{}, nil, opts); err != nil {
		return StepResult{}, stepErr(in, scrollStepReason(err), err.Error())
	}
	return StepResult{Status: StatusSuccess}, nil
}

// scrollStepReason translates a scroll subsystem error to the
// StepError reason it should surface; container detection failures
// stay container_unavailable, everything else propagates the scroll
// runner's own reason rather than being flattened to one bucket.
func scrollStepReason(err error) werrors.Reason {
	var scrollErr *werrors.ScrollError
	if stderrors.As(err, &scrollErr) {
		return scrollErr.Reason
	}
	return werrors.ReasonUnknown
}

func handleScrollUntil(ctx context.Context, in Input) (StepResult, error) {
	if in.Detector == nil || in.Doc == nil {
		return StepResult{}, stepErr(in, werrors.ReasonContainerUnavailable, "no scroll detector configured")
	}
	var root dom.Element
	if in.ResolveResult.Resolved() {
		root = in.ResolveResult.Element
	}
	container, _, err := in.Detector.Detect(ctx, root, scroll.ContainerHint{}, nil)
	if err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonContainerUnavailable, err.Error())
	}

	so := in.Step.ScrollOptions
	stop := scroll.StopCondition{Kind: scroll.StopKind(so.StopKind)}
	switch stop.Kind {
	case scroll.StopElement:
		res := in.ResolveLogicalKey(ctx, so.StopTarget)
		stop.Target = res.Element
	case scroll.StopListGrowth:
		stop.ListSelector = so.ListSelector
		stop.MinGrowth = so.MinGrowth
	case scroll.StopPredicate:
		if so.Predicate != "" {
			stop.Predicate = func(evalCtx context.Context) (bool, error) {
				return evalExpression(evalCtx, so.Predicate, in.Context)
			}
		}
	case scroll.StopEnd:
		stop.ThresholdPx = so.ThresholdPx
	}

	runner := scroll.NewUntilRunner(clockOrReal(in.Clock), in.Doc)
	err = runner.Run(ctx, container, scroll.UntilOptions{
		Direction: scroll.Direction(so.Direction), StepPx: so.StepPx, DelayMs: so.DelayMs,
		TimeoutMs: so.TimeoutMs, MaxAttempts: so.MaxAttempts, MinDeltaPx: so.MinDeltaPx,
		Stop: stop,
	})
	if err != nil {
		return StepResult{}, stepErr(in, scrollStepReason(err), err.Error())
	}
	return StepResult{Status: StatusSuccess}, nil
}

func handleIf(ctx context.Context, in Input) (StepResult, error) {
	ok, err := evalCondition(ctx, in.Step.Condition, in)
	if err != nil {
		return StepResult{}, stepErr(in, werrors.ReasonPredicateError, err.Error())
	}
	branch := in.Step.Else
	if ok {
		branch = in.Step.Then
	}
	if len(branch) == 0 {
		return StepResult{Status: StatusSkipped}, nil
	}
	if in.Runner == nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "no nested runner configured")
	}
	out, err := in.Runner(ctx, branch, in.Context)
	if err != nil {
		return StepResult{}, err
	}
	if out.Status != "success" {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "nested branch did not complete")
	}
	return StepResult{Status: StatusSuccess}, nil
}

func evalCondition(ctx context.Context, c Condition, in Input) (bool, error) {
	switch c.Kind {
	case CondContext:
		v, ok := in.Context.Get(c.ContextKey)
		if !ok {
			return false, nil
		}
		return fmt.Sprintf("%v", v) == fmt.Sprintf("%v", c.ContextValue), nil
	case CondElement:
		res := in.ResolveLogicalKey(ctx, c.LogicalKey)
		return res.Resolved(), nil
	case CondElementText:
		res := in.ResolveLogicalKey(ctx, c.LogicalKey)
		if !res.Resolved() {
			return false, nil
		}
		text, err := res.Element.TextContent(ctx)
		if err != nil {
			return false, err
		}
		return strings.Contains(text, c.Text), nil
	case CondURL:
		return false, fmt.Errorf("url condition requires a driver-supplied current URL, not wired")
	case CondExpression:
		return evalExpression(ctx, c.Expression, in.Context)
	case CondAllOf:
		for _, child := range c.Children {
			ok, err := evalCondition(ctx, child, in)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case CondAnyOf:
		for _, child := range c.Children {
			ok, err := evalCondition(ctx, child, in)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case CondNot:
		if c.Child == nil {
			return true, nil
		}
		ok, err := evalCondition(ctx, *c.Child, in)
		return !ok, err
	default:
		return false, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

func evalExpression(ctx context.Context, source string, c *Context) (bool, error) {
	env := map[string]any{}
	if c != nil {
		snap := c.Snapshot()
		for k, v := range snap.Values {
			env[k] = v
		}
	}
	prog, err := expression.Compile(source, env)
	if err != nil {
		return false, err
	}
	return prog.Eval(ctx, env)
}

func handleForeach(ctx context.Context, in Input) (StepResult, error) {
	listVal, ok := in.Context.Get(in.Step.ForeachListKey)
	if !ok {
		return StepResult{}, stepErr(in, werrors.ReasonContextMiss, "foreach list path not set")
	}
	items, ok := listVal.([]any)
	if !ok {
		return StepResult{}, stepErr(in, werrors.ReasonContextMiss, "foreach list path is not a list")
	}
	if in.Runner == nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "no nested runner configured")
	}

	// foreach.concurrency is currently enforced to 1 regardless of the
	// declared value: items are walked strictly in order.
	for i, item := range items {
		child := in.Context.NewChildScope()
		child.Set(in.Step.ForeachAs, item, SetOptions{})
		if in.Step.ForeachIndexVar != "" {
			child.Set(in.Step.ForeachIndexVar, i, SetOptions{})
		}
		out, err := in.Runner(ctx, in.Step.ForeachBody, child)
		child.Close()
		if err != nil {
			return StepResult{}, err
		}
		if out.Status != "success" {
			return StepResult{}, stepErr(in, werrors.ReasonUnknown, fmt.Sprintf("foreach item %d failed", i))
		}
	}
	return StepResult{Status: StatusSuccess}, nil
}

func handleRetry(ctx context.Context, in Input) (StepResult, error) {
	if in.Runner == nil {
		return StepResult{}, stepErr(in, werrors.ReasonUnknown, "no nested runner configured")
	}
	policy := in.Step.RetryPolicy
	var lastErr error
	for a := 0; a <= policy.Retries; a++ {
		out, err := in.Runner(ctx, in.Step.RetryBody, in.Context)
		if err == nil && out.Status == "success" {
			return StepResult{Status: StatusSuccess}, nil
		}
		lastErr = err
		if a < policy.Retries {
			sleepBackoff(ctx, in.Clock, policy, a+1)
		}
	}
	if lastErr != nil {
		return StepResult{}, lastErr
	}
	return StepResult{}, stepErr(in, werrors.ReasonUnknown, "retry block exhausted")
}

func handleRun(ctx context.Context, in Input) (StepResult, error) {
	return StepResult{}, stepErr(in, werrors.ReasonUnknown, "run step not yet implemented")
}

func sleep(ctx context.Context, c clock.Clock, ms int) {
	if ms <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-clockOrReal(c).After(time.Duration(ms) * time.Millisecond):
	}
}

func sleepBackoff(ctx context.Context, c clock.Clock, policy RetryPolicy, attempt int) {
	d := backoffDuration(policy.BackoffMs, policy.MaxBackoffMs, policy.JitterMs, attempt)
	select {
	case <-ctx.Done():
	case <-clockOrReal(c).After(d):
	}
}

func clockOrReal(c clock.Clock) clock.Clock {
	if c == nil {
		return clock.Real{}
	}
	return c
}

// DefaultHandlers returns the built-in handler registry covering every
// step kind.
func DefaultHandlers() map[StepKind]Handler {
	return map[StepKind]Handler{
		StepClick:          handleClick,
		StepHover:          handleHoverFocusBlur,
		StepFocus:          handleHoverFocusBlur,
		StepBlur:           handleHoverFocusBlur,
		StepType:           handleType,
		StepSelect:         handleSelect,
		StepWaitFor:        handleWaitFamily,
		StepWaitText:       handleWaitFamily,
		StepWaitVisible:    handleWaitFamily,
		StepWaitHidden:     handleWaitFamily,
		StepWaitForIdle:    handleWaitFamily,
		StepDelay:          handleDelay,
		StepLog:            handleLog,
		StepSetContext:     handleSetContext,
		StepCapture:        handleCapture,
		StepAssert:         handleAssert,
		StepCollectList:    handleCollectList,
		StepScrollIntoView: handleScrollIntoView,
		StepScrollUntil:    handleScrollUntil,
		StepIf:             handleIf,
		StepForeach:        handleForeach,
		StepRetry:          handleRetry,
		StepRun:            handleRun,
	}
}
