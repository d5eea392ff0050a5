package workflow

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dgxrun/weave/pkg/dom"
	"github.com/dgxrun/weave/pkg/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func newDocWithElements(byCSS map[string][]*testElement) *testDocument {
	results := make(map[string][]dom.Element, len(byCSS))
	for css, els := range byCSS {
		conv := make([]dom.Element, len(els))
		for i, e := range els {
			conv[i] = e
		}
		results[css] = conv
	}
	return &testDocument{queryResults: results}
}

func TestScheduler_ClickThenAssertSucceeds(t *testing.T) {
	submit := &testElement{id: "submit", tag: "button", text: "Submit"}
	docD := newDocWithElements(map[string][]*testElement{"#submit": {submit}})

	smap := selector.SelectorMap{
		"submit": {Tries: []selector.SelectorTry{{Kind: selector.TryCSS, Selector: "#submit"}}},
	}
	resolver := selector.NewResolver(smap, docD)

	def := Definition{
		ID:   "wf1",
		Name: "click-and-assert",
		Steps: []Step{
			{Kind: StepClick, ID: "s1", LogicalKey: "submit"},
			{Kind: StepSetContext, ID: "s2", To: "status", Value: ValueSource{Literal: strPtr("clicked")}},
			{Kind: StepAssert, ID: "s3", Assert: Assertion{Kind: AssertContextEquals, ContextKey: "status", Value: "clicked"}},
		},
	}

	sched := NewScheduler(RunOptions{Resolver: resolver, Doc: docD, Logger: discardLogger()})
	outcome, err := sched.RunWorkflow(context.Background(), def, "run-1")

	require.NoError(t, err)
	assert.Equal(t, RunSuccess, outcome.Status)
	assert.Equal(t, 3, outcome.CompletedSteps)
	assert.Equal(t, 1, submit.clicked)
	assert.Equal(t, "clicked", outcome.ContextSnapshot.Values["status"])
}

func TestScheduler_ResolverMissRetriesThenFails(t *testing.T) {
	docD := newDocWithElements(nil)
	resolver := selector.NewResolver(selector.SelectorMap{}, docD)

	retries, backoff, jitter := 1, 1, 0
	def := Definition{
		ID: "wf2",
		Steps: []Step{
			{Kind: StepClick, ID: "s1", LogicalKey: "missing", Timing: Timing{
				Retries: &retries, BackoffMs: &backoff, MaxBackoffMs: &backoff, JitterMs: &jitter,
			}},
		},
	}

	sched := NewScheduler(RunOptions{Resolver: resolver, Doc: docD, Logger: discardLogger()})
	outcome, err := sched.RunWorkflow(context.Background(), def, "run-2")

	require.Error(t, err)
	assert.Equal(t, RunFailed, outcome.Status)
	assert.Equal(t, 0, outcome.CompletedSteps)
}

func TestScheduler_ContinueOnErrorSkipsPastFailure(t *testing.T) {
	docD := newDocWithElements(nil)
	resolver := selector.NewResolver(selector.SelectorMap{}, docD)

	def := Definition{
		ID: "wf3",
		Steps: []Step{
			{Kind: StepClick, ID: "s1", LogicalKey: "missing", ContinueOnError: true},
			{Kind: StepSetContext, ID: "s2", To: "done", Value: ValueSource{Literal: strPtr("yes")}},
		},
	}

	sched := NewScheduler(RunOptions{Resolver: resolver, Doc: docD, Logger: discardLogger()})
	outcome, err := sched.RunWorkflow(context.Background(), def, "run-3")

	require.NoError(t, err)
	assert.Equal(t, RunSuccess, outcome.Status)
	assert.Equal(t, 2, outcome.CompletedSteps)
}

func TestScheduler_ForeachFailsWhenListKeyIsNotAList(t *testing.T) {
	docD := newDocWithElements(nil)
	resolver := selector.NewResolver(selector.SelectorMap{}, docD)

	def := Definition{
		ID: "wf4",
		Steps: []Step{
			{Kind: StepSetContext, ID: "seed", To: "rows", Value: ValueSource{Literal: strPtr("unused")}},
			{
				Kind: StepForeach, ID: "loop", ForeachListKey: "rows", ForeachAs: "row",
				ForeachBody: []Step{
					{Kind: StepSetContext, ID: "inner", To: "lastRow", Value: ValueSource{ContextKey: "row"}},
				},
			},
		},
	}

	sched := NewScheduler(RunOptions{Resolver: resolver, Doc: docD, Logger: discardLogger()})
	outcome, err := sched.RunWorkflow(context.Background(), def, "run-4")

	// "rows" was seeded as a plain string, not a []any, so foreach must
	// fail with a context-miss style error rather than silently no-op.
	require.Error(t, err)
	assert.Equal(t, RunFailed, outcome.Status)
}

func TestScheduler_ForeachSucceedsOverSeededList(t *testing.T) {
	docD := newDocWithElements(nil)
	resolver := selector.NewResolver(selector.SelectorMap{}, docD)

	// StepLog is repurposed here to seed a real []any via
	// ContextUpdates, the same mechanism collectList uses in
	// production; this isolates the foreach iteration behavior from
	// the list-producing step's own kind.
	handlers := DefaultHandlers()
	handlers[StepLog] = func(ctx context.Context, in Input) (StepResult, error) {
		return StepResult{Status: StatusSuccess, ContextUpdates: map[string]any{"rows": []any{"a", "b", "c"}}}, nil
	}

	var lastRows []string
	handlers[StepSetContext] = func(ctx context.Context, in Input) (StepResult, error) {
		if in.Step.ID == "inner" {
			v, _ := in.Context.Get("row")
			lastRows = append(lastRows, v.(string))
		}
		return handleSetContext(ctx, in)
	}

	sched := NewScheduler(RunOptions{Resolver: resolver, Doc: docD, Logger: discardLogger(), Handlers: handlers})

	def := Definition{
		ID: "wf5",
		Steps: []Step{
			{Kind: StepLog, ID: "seed", LogMessage: "seed"},
			{
				Kind: StepForeach, ID: "loop", ForeachListKey: "rows", ForeachAs: "row",
				ForeachBody: []Step{
					{Kind: StepSetContext, ID: "inner", To: "lastRow", Value: ValueSource{ContextKey: "row"}},
				},
			},
		},
	}
	outcome, err := sched.RunWorkflow(context.Background(), def, "run-5")
	require.NoError(t, err)
	assert.Equal(t, RunSuccess, outcome.Status)
	assert.Equal(t, []string{"a", "b", "c"}, lastRows)

	_, ok := outcome.ContextSnapshot.Values["lastRow"]
	assert.False(t, ok, "foreach child-scope bindings must not leak into the parent snapshot")
}
