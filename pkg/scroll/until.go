package scroll

import (
	"context"
	"math"
	"time"

	"github.com/dgxrun/weave/pkg/clock"
	"github.com/dgxrun/weave/pkg/dom"
	"github.com/dgxrun/weave/pkg/errors"
)

// Clamped defaults and bounds for ScrollUntil.
const (
	DefaultStepPx      = 320
	MinStepPx          = 1
	MaxStepPx          = 500
	DefaultDelayMs     = 200
	MinDelayMs         = 0
	MaxDelayMs         = 1000
	DefaultTimeoutMs   = 8000
	MinTimeoutMs       = 1
	DefaultMaxAttempts = 40
	MinMaxAttempts     = 1
	DefaultMinDeltaPx  = 2
	MinMinDeltaPx      = 0
	// NoChangeLimit is the number of consecutive attempts producing a
	// scroll delta below MinDeltaPx before the runner gives up.
	NoChangeLimit = 2
	// DefaultThresholdPx is the "end" stop condition's default
	// tolerance: satisfied when maxScrollTop - scrollTop <= threshold.
	DefaultThresholdPx = 2
)

// StopCondition is a tagged variant over the four ScrollUntil stop
// conditions: reaching the scroll end, an element appearing, a list
// growing, or a caller predicate returning true.
type StopCondition struct {
	Kind StopKind

	// element
	Target dom.Element

	// list-growth: satisfied when the count of ListSelector matches
	// under the scrolled container grows by at least MinGrowth
	// relative to the count observed when the run started.
	ListSelector string
	MinGrowth    int

	// end: satisfied when maxScrollTop - scrollTop <= ThresholdPx.
	// Zero takes DefaultThresholdPx.
	ThresholdPx int

	// predicate
	Predicate func(ctx context.Context) (bool, error)
}

func (s StopCondition) thresholdPx() int {
	if s.ThresholdPx <= 0 {
		return DefaultThresholdPx
	}
	return s.ThresholdPx
}

type StopKind string

const (
	StopEnd         StopKind = "end"
	StopElement     StopKind = "element"
	StopListGrowth  StopKind = "list-growth"
	StopPredicate   StopKind = "predicate"
)

// Direction is the scroll axis/sign for ScrollUntil.
type Direction string

const (
	DirectionDown Direction = "down"
	DirectionUp   Direction = "up"
	DirectionLeft Direction = "left"
	DirectionRight Direction = "right"
)

// UntilOptions configures a ScrollUntil run; zero values take the
// documented defaults, and all numeric fields are clamped to their
// documented ranges.
type UntilOptions struct {
	Direction   Direction
	StepPx      int
	DelayMs     int
	TimeoutMs   int
	MaxAttempts int
	MinDeltaPx  int
	Stop        StopCondition
}

func (o UntilOptions) normalized() UntilOptions {
	if o.StepPx == 0 {
		o.StepPx = DefaultStepPx
	}
	o.StepPx = clampInt(o.StepPx, MinStepPx, MaxStepPx)

	if o.DelayMs == 0 {
		o.DelayMs = DefaultDelayMs
	}
	o.DelayMs = clampInt(o.DelayMs, MinDelayMs, MaxDelayMs)

	if o.TimeoutMs == 0 {
		o.TimeoutMs = DefaultTimeoutMs
	}
	if o.TimeoutMs < MinTimeoutMs {
		o.TimeoutMs = MinTimeoutMs
	}

	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MaxAttempts < MinMaxAttempts {
		o.MaxAttempts = MinMaxAttempts
	}

	if o.MinDeltaPx == 0 {
		o.MinDeltaPx = DefaultMinDeltaPx
	}
	if o.MinDeltaPx < MinMinDeltaPx {
		o.MinDeltaPx = MinMinDeltaPx
	}

	if o.Direction == "" {
		o.Direction = DirectionDown
	}
	return o
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// UntilRunner implements the ScrollUntil Runner: a bounded loop that
// scrolls a container in fixed steps until a stop condition fires, the
// scroll position stops changing, or attempts/timeout are exhausted.
type UntilRunner struct {
	Clock clock.Clock
	Doc   dom.Document
}

// NewUntilRunner returns an UntilRunner driven by the given clock and document.
func NewUntilRunner(c clock.Clock, doc dom.Document) *UntilRunner {
	return &UntilRunner{Clock: c, Doc: doc}
}

// Run scrolls container per opts until the stop condition is satisfied.
func (r *UntilRunner) Run(ctx context.Context, container dom.Element, opts UntilOptions) error {
	opts = opts.normalized()
	deadline := r.Clock.Now().Add(msToDuration(opts.TimeoutMs))

	initialListCount := -1
	if opts.Stop.Kind == StopListGrowth && opts.Stop.ListSelector != "" {
		els, err := r.Doc.QueryAll(ctx, opts.Stop.ListSelector, container)
		if err != nil {
			return &errors.ScrollError{Reason: errors.ReasonPredicateError, Message: "list-growth initial count failed", Cause: err}
		}
		initialListCount = len(els)
	}

	noChangeStreak := 0
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return &errors.ScrollError{Reason: errors.ReasonCancelled, Message: "context cancelled", Attempts: attempt - 1}
		default:
		}

		if r.Clock.Now().After(deadline) {
			return &errors.ScrollError{Reason: errors.ReasonTimeout, Message: "scrollUntil timed out", Attempts: attempt - 1}
		}

		satisfied, err := r.checkStop(ctx, container, opts.Stop, initialListCount)
		if err != nil {
			return &errors.ScrollError{Reason: errors.ReasonPredicateError, Message: "stop predicate failed", Attempts: attempt - 1, Cause: err}
		}
		if satisfied {
			return nil
		}

		before, err := scrollPosition(ctx, container, opts.Direction)
		if err != nil {
			return &errors.ScrollError{Reason: errors.ReasonUnknown, Message: "failed to read scroll position", Attempts: attempt - 1, Cause: err}
		}

		if err := advance(ctx, container, opts); err != nil {
			return &errors.ScrollError{Reason: errors.ReasonUnknown, Message: "failed to scroll", Attempts: attempt - 1, Cause: err}
		}

		after, err := scrollPosition(ctx, container, opts.Direction)
		if err != nil {
			return &errors.ScrollError{Reason: errors.ReasonUnknown, Message: "failed to read scroll position", Attempts: attempt, Cause: err}
		}

		delta := math.Abs(after - before)
		if delta < float64(opts.MinDeltaPx) {
			noChangeStreak++
			if noChangeStreak >= NoChangeLimit {
				return &errors.ScrollError{Reason: errors.ReasonNoChange, Message: "scroll position stopped changing", Attempts: attempt}
			}
		} else {
			noChangeStreak = 0
		}

		select {
		case <-ctx.Done():
			return &errors.ScrollError{Reason: errors.ReasonCancelled, Message: "context cancelled", Attempts: attempt}
		case <-r.Clock.After(msToDuration(opts.DelayMs)):
		}
	}

	satisfied, err := r.checkStop(ctx, container, opts.Stop, initialListCount)
	if err != nil {
		return &errors.ScrollError{Reason: errors.ReasonPredicateError, Message: "stop predicate failed", Attempts: opts.MaxAttempts, Cause: err}
	}
	if satisfied {
		return nil
	}
	return &errors.ScrollError{Reason: errors.ReasonTimeout, Message: "scrollUntil exhausted max attempts", Attempts: opts.MaxAttempts}
}

func (r *UntilRunner) checkStop(ctx context.Context, container dom.Element, stop StopCondition, initialListCount int) (bool, error) {
	switch stop.Kind {
	case StopElement:
		if stop.Target == nil {
			return false, nil
		}
		return stop.Target.IsConnected(ctx)
	case StopListGrowth:
		if stop.ListSelector == "" || initialListCount < 0 {
			return false, nil
		}
		els, err := r.Doc.QueryAll(ctx, stop.ListSelector, container)
		if err != nil {
			return false, err
		}
		return len(els)-initialListCount >= stop.MinGrowth, nil
	case StopPredicate:
		if stop.Predicate == nil {
			return false, nil
		}
		return stop.Predicate(ctx)
	case StopEnd:
		scrollHeight, err := container.ScrollHeight(ctx)
		if err != nil {
			return false, err
		}
		clientHeight, err := container.ClientHeight(ctx)
		if err != nil {
			return false, err
		}
		scrollTop, err := container.ScrollTop(ctx)
		if err != nil {
			return false, err
		}
		maxScrollTop := scrollHeight - clientHeight
		return maxScrollTop-scrollTop <= float64(stop.thresholdPx()), nil
	default:
		return false, nil
	}
}

func scrollPosition(ctx context.Context, container dom.Element, dir Direction) (float64, error) {
	switch dir {
	case DirectionLeft, DirectionRight:
		return container.ScrollLeft(ctx)
	default:
		return container.ScrollTop(ctx)
	}
}

func advance(ctx context.Context, container dom.Element, opts UntilOptions) error {
	top, err := container.ScrollTop(ctx)
	if err != nil {
		return err
	}
	left, err := container.ScrollLeft(ctx)
	if err != nil {
		return err
	}
	step := float64(opts.StepPx)
	switch opts.Direction {
	case DirectionUp:
		return container.ScrollTo(ctx, top-step, left)
	case DirectionLeft:
		return container.ScrollTo(ctx, top, left-step)
	case DirectionRight:
		return container.ScrollTo(ctx, top, left+step)
	default:
		return container.ScrollTo(ctx, top+step, left)
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
