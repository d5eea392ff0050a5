package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgxrun/weave/pkg/dom"
)

type fakeElement struct {
	id    string
	attrs map[string]string
	text  string
}

func (e *fakeElement) NodeID() string                               { return e.id }
func (e *fakeElement) IsConnected(ctx context.Context) (bool, error) { return true, nil }
func (e *fakeElement) TagName(ctx context.Context) (string, error)   { return "div", nil }
func (e *fakeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}
func (e *fakeElement) Attributes(ctx context.Context) (map[string]string, error) {
	return e.attrs, nil
}
func (e *fakeElement) TextContent(ctx context.Context) (string, error)    { return e.text, nil }
func (e *fakeElement) AccessibleName(ctx context.Context) (string, error) { return e.text, nil }
func (e *fakeElement) Role(ctx context.Context) (string, error)           { return e.attrs["role"], nil }
func (e *fakeElement) BoundingRect(ctx context.Context) (dom.Rect, error) { return dom.Rect{}, nil }
func (e *fakeElement) ComputedStyle(ctx context.Context, prop string) (string, error) {
	return "", nil
}
func (e *fakeElement) ScrollTop(ctx context.Context) (float64, error)     { return 0, nil }
func (e *fakeElement) ScrollLeft(ctx context.Context) (float64, error)    { return 0, nil }
func (e *fakeElement) ScrollHeight(ctx context.Context) (float64, error)  { return 0, nil }
func (e *fakeElement) ScrollWidth(ctx context.Context) (float64, error)   { return 0, nil }
func (e *fakeElement) ClientHeight(ctx context.Context) (float64, error)  { return 0, nil }
func (e *fakeElement) ClientWidth(ctx context.Context) (float64, error)   { return 0, nil }
func (e *fakeElement) ScrollTo(ctx context.Context, top, left float64) error { return nil }
func (e *fakeElement) ParentElement(ctx context.Context) (dom.Element, error) {
	return nil, nil
}
func (e *fakeElement) Matches(ctx context.Context, css string) (bool, error) { return false, nil }
func (e *fakeElement) Click(ctx context.Context) error                      { return nil }
func (e *fakeElement) Focus(ctx context.Context) error                      { return nil }
func (e *fakeElement) SetValue(ctx context.Context, v string) error         { return nil }

type fakeDocument struct {
	byAttr map[string][]dom.Element // keyed by "attr=value"
}

func (d *fakeDocument) QueryAll(ctx context.Context, cssSelector string, root dom.Element) ([]dom.Element, error) {
	return d.byAttr[cssSelector], nil
}
func (d *fakeDocument) QueryXPath(ctx context.Context, expr string, root dom.Element) ([]dom.Element, error) {
	return nil, nil
}
func (d *fakeDocument) ScrollingElement(ctx context.Context) (dom.Element, error) { return nil, nil }
func (d *fakeDocument) ActiveElement(ctx context.Context) (dom.Element, bool, error) {
	return nil, false, nil
}

func TestResolve_CSSHitOnFirstTry(t *testing.T) {
	target := &fakeElement{id: "e1", attrs: map[string]string{"data-testid": "submit"}}
	doc := &fakeDocument{byAttr: map[string][]dom.Element{
		"[data-testid]": {target},
	}}
	m := SelectorMap{
		"submitButton": {Tries: []SelectorTry{{Kind: TryTestID, TestID: "submit"}}},
	}
	r := NewResolver(m, doc)

	res := r.Resolve(context.Background(), "submitButton", ResolveOptions{})

	require.True(t, res.Resolved())
	assert.Equal(t, target, res.Element)
	assert.Equal(t, TryTestID, res.ResolvedBy.Kind)
	assert.Len(t, res.Attempts, 1)
	assert.True(t, res.Attempts[0].Success)
}

func TestResolve_FallsThroughToLaterStrategy(t *testing.T) {
	target := &fakeElement{id: "e2", attrs: map[string]string{}, text: "Submit"}
	doc := &fakeDocument{byAttr: map[string][]dom.Element{
		"[data-testid]": nil,
		"*":             {target},
	}}
	m := SelectorMap{
		"submitButton": {Tries: []SelectorTry{
			{Kind: TryTestID, TestID: "submit"},
			{Kind: TryText, Text: "Submit", Exact: true},
		}},
	}
	r := NewResolver(m, doc)

	res := r.Resolve(context.Background(), "submitButton", ResolveOptions{})

	require.True(t, res.Resolved())
	assert.Equal(t, TryText, res.ResolvedBy.Kind)
	require.Len(t, res.Attempts, 2)
	assert.False(t, res.Attempts[0].Success)
	assert.True(t, res.Attempts[1].Success)
}

func TestResolve_MissingKeyReturnsUnresolvedWithNoAttempts(t *testing.T) {
	doc := &fakeDocument{byAttr: map[string][]dom.Element{}}
	r := NewResolver(SelectorMap{}, doc)

	res := r.Resolve(context.Background(), "doesNotExist", ResolveOptions{})

	assert.False(t, res.Resolved())
	assert.Nil(t, res.Attempts)
}

func TestResolve_SelfReferentialScopeIsACycle(t *testing.T) {
	doc := &fakeDocument{byAttr: map[string][]dom.Element{}}
	m := SelectorMap{
		"panel": {ScopeKey: "panel", Tries: []SelectorTry{{Kind: TryCSS, Selector: ".panel"}}},
	}
	r := NewResolver(m, doc)

	res := r.Resolve(context.Background(), "panel", ResolveOptions{})

	assert.False(t, res.Resolved())
}

func TestResolve_MutualScopeCycleFallsBackToAmbient(t *testing.T) {
	target := &fakeElement{id: "e3"}
	doc := &fakeDocument{byAttr: map[string][]dom.Element{
		".inner": {target},
	}}
	m := SelectorMap{
		"a": {ScopeKey: "b", Tries: []SelectorTry{{Kind: TryCSS, Selector: ".inner"}}},
		"b": {ScopeKey: "a", Tries: []SelectorTry{{Kind: TryCSS, Selector: ".inner"}}},
	}
	r := NewResolver(m, doc)

	res := r.Resolve(context.Background(), "a", ResolveOptions{})

	require.True(t, res.Resolved())
	assert.Equal(t, "fallback", res.Scope.Root)
}

func TestResolve_ScopeChainsToParentElement(t *testing.T) {
	scopeEl := &fakeElement{id: "scope"}
	target := &fakeElement{id: "child"}
	doc := &fakeDocument{byAttr: map[string][]dom.Element{
		".modal":     {scopeEl},
		".confirmBtn": {target},
	}}
	m := SelectorMap{
		"modal": {Tries: []SelectorTry{{Kind: TryCSS, Selector: ".modal"}}},
		"confirmButton": {
			ScopeKey: "modal",
			Tries:    []SelectorTry{{Kind: TryCSS, Selector: ".confirmBtn"}},
		},
	}
	r := NewResolver(m, doc)

	res := r.Resolve(context.Background(), "confirmButton", ResolveOptions{})

	require.True(t, res.Resolved())
	assert.Equal(t, "scoped", res.Scope.Root)
	assert.Equal(t, "modal", res.Scope.Key)
}

func TestResolve_MissRecordsAllAttempts(t *testing.T) {
	doc := &fakeDocument{byAttr: map[string][]dom.Element{}}
	m := SelectorMap{
		"ghost": {Tries: []SelectorTry{
			{Kind: TryTestID, TestID: "x"},
			{Kind: TryCSS, Selector: ".x"},
		}},
	}
	r := NewResolver(m, doc)

	res := r.Resolve(context.Background(), "ghost", ResolveOptions{})

	assert.False(t, res.Resolved())
	require.Len(t, res.Attempts, 2)
	assert.False(t, res.Attempts[0].Success)
	assert.False(t, res.Attempts[1].Success)
}

func TestResolve_TelemetryObservesAttemptsAndOutcome(t *testing.T) {
	target := &fakeElement{id: "e4"}
	doc := &fakeDocument{byAttr: map[string][]dom.Element{".x": {target}}}
	m := SelectorMap{"k": {Tries: []SelectorTry{{Kind: TryCSS, Selector: ".x"}}}}
	r := NewResolver(m, doc)

	var attempts, successes int
	tel := NewTelemetry(nil, nil, Callbacks{
		OnAttempt: func(Event) { attempts++ },
		OnSuccess: func(Event) { successes++ },
	})

	res := r.Resolve(context.Background(), "k", ResolveOptions{Telemetry: tel})

	require.True(t, res.Resolved())
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, successes)
}

func TestResolve_RespectsContextCancellation(t *testing.T) {
	doc := &fakeDocument{byAttr: map[string][]dom.Element{}}
	m := SelectorMap{"k": {Tries: []SelectorTry{
		{Kind: TryCSS, Selector: ".a"},
		{Kind: TryCSS, Selector: ".b"},
	}}}
	r := NewResolver(m, doc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Resolve(ctx, "k", ResolveOptions{})

	assert.False(t, res.Resolved())
	assert.Len(t, res.Attempts, 0)
}
