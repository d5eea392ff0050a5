// Package wait implements the Wait Predicates (C7) and Wait Scheduler
// (C8): text, visibility, and idle predicates evaluated against a
// resolved element, and the poll loop that drives them to completion.
package wait

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/dgxrun/weave/pkg/dom"
)

var foldCase = cases.Fold()

// Context is the predicate evaluation context: a resolved element (if
// any), plus caller metadata. Predicates never resolve on their own.
type Context struct {
	Element  dom.Element
	Scope    dom.Element
	Metadata map[string]any
}

// Snapshot captures predicate-specific diagnostic fields, surfaced on
// every poll for telemetry and on the terminal WaitError.
type Snapshot struct {
	Matches          bool
	Actual           string
	Expected         string
	Computed         string
	Opacity          float64
	BoundingBoxArea  float64
	IntersectionRatio float64
	MutationCount    int
}

// Predicate is a pure function over a predicate context. Implementations
// must not mutate the DOM or block; blocking lives in the scheduler.
type Predicate interface {
	Evaluate(ctx context.Context, pc Context) (Snapshot, error)
}

// TextPredicate matches element text content.
type TextPredicate struct {
	Text                string
	TextPattern         *regexp.Regexp
	Exact               bool
	CaseSensitive       bool
	NormalizeWhitespace *bool
}

func (p TextPredicate) normalizesWhitespace() bool {
	if p.NormalizeWhitespace == nil {
		return true
	}
	return *p.NormalizeWhitespace
}

func (p TextPredicate) Evaluate(ctx context.Context, pc Context) (Snapshot, error) {
	if pc.Element == nil {
		return Snapshot{}, nil
	}
	actual, err := pc.Element.TextContent(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	normalized := actual
	if p.normalizesWhitespace() {
		normalized = strings.Join(strings.Fields(normalized), " ")
	} else {
		normalized = strings.TrimSpace(normalized)
	}
	compareAgainst := normalized
	if !p.CaseSensitive {
		compareAgainst = foldCase.String(compareAgainst)
	}

	var matches bool
	switch {
	case p.TextPattern != nil:
		matches = p.TextPattern.MatchString(normalized)
	case p.Exact:
		expected := p.Text
		if !p.CaseSensitive {
			expected = foldCase.String(expected)
		}
		matches = compareAgainst == expected
	default:
		expected := p.Text
		if !p.CaseSensitive {
			expected = foldCase.String(expected)
		}
		matches = strings.Contains(compareAgainst, expected)
	}

	return Snapshot{Matches: matches, Actual: actual, Expected: p.Text}, nil
}

// VisibilityTarget is the desired visibility state.
type VisibilityTarget string

const (
	TargetVisible VisibilityTarget = "visible"
	TargetHidden  VisibilityTarget = "hidden"
)

// VisibilityPredicate checks computed style and geometry lower bounds.
type VisibilityPredicate struct {
	Target               VisibilityTarget
	RequireDisplayed      bool
	RequireInViewport     bool
	MinOpacity            *float64
	MinIntersectionRatio  *float64
	MinBoundingBoxArea    *float64
}

func (p VisibilityPredicate) Evaluate(ctx context.Context, pc Context) (Snapshot, error) {
	if pc.Element == nil {
		snap := Snapshot{Matches: p.Target == TargetHidden}
		return snap, nil
	}

	display, err := pc.Element.ComputedStyle(ctx, "display")
	if err != nil {
		return Snapshot{}, err
	}
	visibility, err := pc.Element.ComputedStyle(ctx, "visibility")
	if err != nil {
		return Snapshot{}, err
	}
	opacityStr, err := pc.Element.ComputedStyle(ctx, "opacity")
	if err != nil {
		return Snapshot{}, err
	}
	opacity := parseOpacity(opacityStr)

	rect, err := pc.Element.BoundingRect(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	area := rect.Width * rect.Height

	displayed := display != "none" && visibility != "hidden"
	visible := displayed
	if p.RequireDisplayed && !displayed {
		visible = false
	}
	if p.MinOpacity != nil && opacity < *p.MinOpacity {
		visible = false
	}
	if p.MinBoundingBoxArea != nil && area < *p.MinBoundingBoxArea {
		visible = false
	}
	intersectionRatio := 1.0
	if area == 0 {
		intersectionRatio = 0
		visible = false
	}
	if p.MinIntersectionRatio != nil && intersectionRatio < *p.MinIntersectionRatio {
		visible = false
	}

	matches := visible
	if p.Target == TargetHidden {
		matches = !visible
	}

	return Snapshot{
		Matches: matches, Computed: display, Opacity: opacity,
		BoundingBoxArea: area, IntersectionRatio: intersectionRatio,
	}, nil
}

func parseOpacity(s string) float64 {
	if s == "" {
		return 1
	}
	var v float64
	var sign float64 = 1
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		if s[i] == '-' {
			sign = -1
		}
		i++
	}
	frac := 0.0
	divisor := 1.0
	seenDot := false
	for ; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			seenDot = true
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		d := float64(c - '0')
		if seenDot {
			divisor *= 10
			frac += d / divisor
		} else {
			v = v*10 + d
		}
	}
	return sign * (v + frac)
}

// IdlePredicate reports a mutation-silence window. Driver-level
// mutation tracking is supplied via Observer; the predicate itself is
// pure bookkeeping over the counts it is handed.
type IdlePredicate struct {
	IdleMs           int
	MaxWindowMs      int
	HeartbeatMs      int
	CaptureStatistics bool
}

// MutationObserver reports mutation counts and the elapsed time since
// the last observed mutation, scoped to pc.Scope (or the document).
type MutationObserver interface {
	MillisecondsSinceLastMutation(ctx context.Context, scope dom.Element) (int, error)
	MutationCount(ctx context.Context, scope dom.Element) (int, error)
}

// IdleEvaluator evaluates IdlePredicate against a MutationObserver; it
// is not itself a Predicate because idle settling needs an observer
// dependency the scheduler injects.
type IdleEvaluator struct {
	Predicate IdlePredicate
	Observer  MutationObserver
}

func (e IdleEvaluator) Evaluate(ctx context.Context, pc Context) (Snapshot, error) {
	quietMs, err := e.Observer.MillisecondsSinceLastMutation(ctx, pc.Scope)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Matches: quietMs >= e.Predicate.IdleMs}
	if e.Predicate.CaptureStatistics {
		count, err := e.Observer.MutationCount(ctx, pc.Scope)
		if err != nil {
			return Snapshot{}, err
		}
		snap.MutationCount = count
	}
	return snap, nil
}
