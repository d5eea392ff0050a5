package wait

import (
	"context"
	"time"

	"github.com/dgxrun/weave/pkg/clock"
	"github.com/dgxrun/weave/pkg/dom"
	werrors "github.com/dgxrun/weave/pkg/errors"
	"github.com/dgxrun/weave/pkg/scroll"
	"github.com/dgxrun/weave/pkg/selector"
)

// Defaults for the poll loop, overridable per call.
const (
	DefaultTimeoutMs          = 8000
	DefaultIntervalMs         = 150
	DefaultPresenceThreshold  = 1
	DefaultStaleRetryCap      = 3
)

// Options configures a single waitFor-family invocation.
type Options struct {
	Key               selector.LogicalKey
	ScopeRoot         dom.Element
	Predicate         Predicate
	TimeoutMs         int
	IntervalMs        int
	PresenceThreshold int
	// Scroller, with ScrollerHint naming the scroll container, is
	// nudged when the resolver misses; nil Scroller disables this entirely.
	Scroller       *scroll.Scroller
	ScrollerHint   scroll.ContainerHint
	StaleRetryCap  int
}

func (o Options) normalized() Options {
	if o.TimeoutMs <= 0 {
		o.TimeoutMs = DefaultTimeoutMs
	}
	if o.IntervalMs <= 0 {
		o.IntervalMs = DefaultIntervalMs
	}
	if o.PresenceThreshold <= 0 {
		o.PresenceThreshold = DefaultPresenceThreshold
	}
	if o.StaleRetryCap <= 0 {
		o.StaleRetryCap = DefaultStaleRetryCap
	}
	return o
}

// Outcome is the terminal result of a successful poll loop.
type Outcome struct {
	Attempts         int
	ElapsedMs        int64
	StaleRecoveries  int
	StrategyHistory  []selector.TryKind
	FinalSnapshot    Snapshot
}

// EventKind distinguishes the wait telemetry lifecycle.
type EventKind string

const (
	EventStart     EventKind = "start"
	EventAttempt   EventKind = "attempt"
	EventHeartbeat EventKind = "heartbeat"
	EventSuccess   EventKind = "success"
	EventFailure   EventKind = "failure"
)

// Event is a single wait telemetry record.
type Event struct {
	Kind     EventKind
	Key      selector.LogicalKey
	Attempt  int
	Snapshot Snapshot
	Error    *werrors.WaitError
}

// Observer receives wait telemetry; nil fields are simply not called.
type Observer func(Event)

// Scheduler implements C8: the poll loop combining the resolver (C2),
// a predicate (C7), and optional scroller (C5) integration.
type Scheduler struct {
	Resolver *selector.Resolver
	Clock    clock.Clock
	Observer Observer
}

// NewScheduler returns a Scheduler bound to a resolver and clock.
func NewScheduler(resolver *selector.Resolver, c clock.Clock, observer Observer) *Scheduler {
	if c == nil {
		c = clock.Real{}
	}
	return &Scheduler{Resolver: resolver, Clock: c, Observer: observer}
}

// Run drives the poll loop to completion, success, or a terminal WaitError.
func (s *Scheduler) Run(ctx context.Context, opts Options) (Outcome, error) {
	opts = opts.normalized()
	startedAt := s.Clock.Now()
	deadline := startedAt.Add(time.Duration(opts.TimeoutMs) * time.Millisecond)

	s.emit(Event{Kind: EventStart, Key: opts.Key})

	attempts := 0
	staleRecoveries := 0
	consecutiveSatisfied := 0
	var strategyHistory []selector.TryKind
	var lastResolved dom.Element
	var lastSnapshot Snapshot
	var everResolved bool

	for {
		select {
		case <-ctx.Done():
			return s.fail(opts, attempts, startedAt, werrors.ReasonCancelled, "context cancelled", nil)
		default:
		}

		res := s.Resolver.Resolve(ctx, opts.Key, selector.ResolveOptions{ScopeRoot: opts.ScopeRoot})
		resolved := res.Resolved()

		if !resolved && opts.Scroller != nil && staleRecoveries < opts.StaleRetryCap {
			_ = opts.Scroller.ScrollIntoView(ctx, lastResolved, opts.ScrollerHint, opts.ScopeRoot, scroll.IntoViewOptions{})
			res = s.Resolver.Resolve(ctx, opts.Key, selector.ResolveOptions{ScopeRoot: opts.ScopeRoot})
			resolved = res.Resolved()
		}

		if resolved {
			everResolved = true
			if res.ResolvedBy != nil {
				strategyHistory = append(strategyHistory, res.ResolvedBy.Kind)
			} else {
				strategyHistory = append(strategyHistory, "")
			}
			if lastResolved != nil {
				connected, err := lastResolved.IsConnected(ctx)
				if err == nil && !connected {
					staleRecoveries++
				}
			}
			lastResolved = res.Element
		}

		attempts++

		if resolved && opts.Predicate == nil {
			consecutiveSatisfied++
		}
		if resolved && opts.Predicate != nil {
			snap, err := opts.Predicate.Evaluate(ctx, Context{Element: res.Element, Scope: opts.ScopeRoot})
			if err == nil {
				lastSnapshot = snap
				if snap.Matches {
					consecutiveSatisfied++
				} else {
					consecutiveSatisfied = 0
				}
			} else {
				consecutiveSatisfied = 0
			}
		}

		s.emit(Event{Kind: EventAttempt, Key: opts.Key, Attempt: attempts, Snapshot: lastSnapshot})

		if consecutiveSatisfied >= opts.PresenceThreshold {
			elapsed := s.Clock.Now().Sub(startedAt)
			out := Outcome{
				Attempts: attempts, ElapsedMs: elapsed.Milliseconds(),
				StaleRecoveries: staleRecoveries, StrategyHistory: strategyHistory,
				FinalSnapshot: lastSnapshot,
			}
			s.emit(Event{Kind: EventSuccess, Key: opts.Key, Attempt: attempts, Snapshot: lastSnapshot})
			return out, nil
		}

		if s.Clock.Now().After(deadline) {
			reason := werrors.ReasonTimeout
			if !everResolved {
				reason = werrors.ReasonResolverMiss
			} else if opts.Predicate != nil {
				reason = werrors.ReasonVisibilityMismatch
			}
			return s.fail(opts, attempts, startedAt, reason, "wait deadline exceeded", nil)
		}

		select {
		case <-ctx.Done():
			return s.fail(opts, attempts, startedAt, werrors.ReasonCancelled, "context cancelled", nil)
		case <-s.Clock.After(time.Duration(opts.IntervalMs) * time.Millisecond):
		}
	}
}

func (s *Scheduler) fail(opts Options, attempts int, startedAt time.Time, reason werrors.Reason, msg string, cause error) (Outcome, error) {
	elapsed := s.Clock.Now().Sub(startedAt)
	werr := &werrors.WaitError{Reason: reason, Message: msg, Elapsed: elapsed, Attempts: attempts, Cause: cause}
	s.emit(Event{Kind: EventFailure, Key: opts.Key, Attempt: attempts, Error: werr})
	return Outcome{Attempts: attempts, ElapsedMs: elapsed.Milliseconds()}, werr
}

func (s *Scheduler) emit(ev Event) {
	if s.Observer == nil {
		return
	}
	defer func() { recover() }()
	s.Observer(ev)
}
