package selector

import (
	"context"

	"github.com/dgxrun/weave/pkg/dom"
	"github.com/dgxrun/weave/pkg/observability"
)

// ResolveOptions configures a single resolve call.
type ResolveOptions struct {
	// ScopeRoot is the caller-supplied root used when the entry has no
	// scopeKey of its own.
	ScopeRoot dom.Element
	Telemetry *Telemetry
	// visited carries the cycle-breaker set across recursive scope
	// resolutions; callers never set this directly (see Resolve).
	visited map[LogicalKey]bool
}

// Resolver resolves logical keys against a SelectorMap and a document.
type Resolver struct {
	Map SelectorMap
	Doc dom.Document
	// Tracer opens one span per top-level Resolve call, with resolved
	// state and attempt count attached at span end. Nil disables
	// tracing entirely; callers that never set it pay nothing.
	Tracer observability.Tracer
}

// NewResolver returns a Resolver bound to a map and document.
func NewResolver(m SelectorMap, doc dom.Document) *Resolver {
	return &Resolver{Map: m, Doc: doc}
}

// Resolve implements C2: an ordered attempt loop over a key's
// strategies with scope chaining and cycle detection.
func (r *Resolver) Resolve(ctx context.Context, key LogicalKey, opts ResolveOptions) ResolveResult {
	if opts.visited == nil {
		opts.visited = make(map[LogicalKey]bool)
	}
	if r.Tracer == nil {
		return r.resolve(ctx, key, opts)
	}

	ctx, span := r.Tracer.Start(ctx, "selector.resolve", observability.WithAttributes(map[string]any{
		"logical_key": string(key),
	}))
	defer span.End()

	result := r.resolve(ctx, key, opts)
	span.SetAttributes(map[string]any{
		"resolved": result.Resolved(),
		"attempts": len(result.Attempts),
	})
	if result.Resolved() {
		span.SetStatus(observability.StatusCodeOK, "")
	} else {
		span.SetStatus(observability.StatusCodeError, "logical key did not resolve")
	}
	return result
}

func (r *Resolver) resolve(ctx context.Context, key LogicalKey, opts ResolveOptions) ResolveResult {
	result := ResolveResult{Key: key}

	// 1. Cycle breaker.
	if opts.visited[key] {
		r.emitRecursionWarning(opts.Telemetry, key)
		return result
	}
	opts.visited[key] = true

	// 2. Entry lookup.
	entry, ok := r.Map[key]
	if !ok {
		r.emitMissingKeyWarning(opts.Telemetry, key)
		return result
	}
	result.Entry = &entry

	// 3. Effective scope.
	root, scopeInfo := r.effectiveScope(ctx, entry, opts)
	result.Scope = &scopeInfo

	// 4-6. Attempt loop.
	attempts := make([]ResolveAttempt, 0, len(entry.Tries))
	queryRoot := Root{Doc: r.Doc, Element: root}

	for i, try := range entry.Tries {
		select {
		case <-ctx.Done():
			result.Attempts = attempts
			return result
		default:
		}

		matches := r.executeTry(ctx, queryRoot, try)
		success := len(matches) > 0
		attempts = append(attempts, ResolveAttempt{Try: try, Success: success, MatchedN: len(matches)})

		r.emitAttempt(opts.Telemetry, Event{
			Kind: EventAttempt, Key: key, ScopeKey: entry.ScopeKey,
			AttemptIndex: i + 1, AttemptCount: len(entry.Tries),
			Strategy: try.Kind, Success: success, MatchedN: len(matches),
			StabilityScore: entry.StabilityScore, Tags: mergeTags(entry.Tags, try.Tags),
		})

		if success {
			resolvedTry := try
			result.Element = matches[0]
			result.ResolvedBy = &resolvedTry
			result.Attempts = attempts
			r.emitSuccess(opts.Telemetry, key, entry, resolvedTry, len(attempts))
			return result
		}
	}

	result.Attempts = attempts
	r.emitMiss(opts.Telemetry, key, entry, attempts)
	return result
}

// executeTry runs a single strategy attempt, opening a child span when
// tracing is enabled so resolve timing is visible per-strategy rather
// than only per logical key.
func (r *Resolver) executeTry(ctx context.Context, root Root, try SelectorTry) []dom.Element {
	if r.Tracer == nil {
		return Execute(ctx, root, try)
	}

	ctx, span := r.Tracer.Start(ctx, "selector.attempt", observability.WithAttributes(map[string]any{
		"strategy": string(try.Kind),
	}))
	defer span.End()

	matches := Execute(ctx, root, try)
	span.SetAttributes(map[string]any{"matched": len(matches)})
	if len(matches) > 0 {
		span.SetStatus(observability.StatusCodeOK, "")
	}
	return matches
}

func (r *Resolver) effectiveScope(ctx context.Context, entry SelectorEntry, opts ResolveOptions) (dom.Element, ScopeInfo) {
	if entry.ScopeKey == "" {
		if opts.ScopeRoot != nil {
			return opts.ScopeRoot, ScopeInfo{Root: "ambient"}
		}
		return nil, ScopeInfo{Root: "ambient"}
	}

	// Recurse with a copy of visited so sibling branches can share
	// scopes, while cycles through the same branch are still caught.
	childVisited := make(map[LogicalKey]bool, len(opts.visited))
	for k := range opts.visited {
		childVisited[k] = true
	}
	scopeResult := r.resolve(ctx, entry.ScopeKey, ResolveOptions{
		ScopeRoot: opts.ScopeRoot,
		Telemetry: opts.Telemetry,
		visited:   childVisited,
	})
	if scopeResult.Resolved() {
		return scopeResult.Element, ScopeInfo{Key: entry.ScopeKey, Root: "scoped"}
	}
	r.emitScopeFallbackWarning(opts.Telemetry, entry.ScopeKey)
	return opts.ScopeRoot, ScopeInfo{Root: "fallback"}
}

func (r *Resolver) emitAttempt(t *Telemetry, ev Event) {
	if t == nil {
		return
	}
	t.emit(ev)
}

func (r *Resolver) emitSuccess(t *Telemetry, key LogicalKey, entry SelectorEntry, by SelectorTry, attemptCount int) {
	if t == nil {
		return
	}
	t.emit(Event{
		Kind: EventSuccess, Key: key, ScopeKey: entry.ScopeKey,
		AttemptCount: attemptCount, Strategy: by.Kind, Success: true,
		StabilityScore: entry.StabilityScore, Tags: mergeTags(entry.Tags, by.Tags),
	})
}

func (r *Resolver) emitMiss(t *Telemetry, key LogicalKey, entry SelectorEntry, attempts []ResolveAttempt) {
	if t == nil {
		return
	}
	t.emit(Event{
		Kind: EventMiss, Key: key, ScopeKey: entry.ScopeKey,
		AttemptCount: len(attempts), Attempts: attempts,
		StabilityScore: entry.StabilityScore, Tags: entry.Tags,
	})
}

func (r *Resolver) emitRecursionWarning(t *Telemetry, key LogicalKey) {
	if t == nil {
		return
	}
	t.Logger.Warn("resolver cycle detected", "key", key, "reason", "recursion")
}

func (r *Resolver) emitMissingKeyWarning(t *Telemetry, key LogicalKey) {
	if t == nil {
		return
	}
	t.Logger.Warn("resolver missing key", "key", key)
}

func (r *Resolver) emitScopeFallbackWarning(t *Telemetry, scopeKey LogicalKey) {
	if t == nil {
		return
	}
	t.Logger.Warn("resolver scope unresolved, falling back to ambient", "scopeKey", scopeKey)
}
