package wait

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgxrun/weave/pkg/clock"
	"github.com/dgxrun/weave/pkg/dom"
	werrors "github.com/dgxrun/weave/pkg/errors"
	"github.com/dgxrun/weave/pkg/selector"
)

type waitElement struct {
	id        string
	text      string
	connected bool
	display   string
}

func (e *waitElement) NodeID() string                               { return e.id }
func (e *waitElement) IsConnected(ctx context.Context) (bool, error) { return e.connected, nil }
func (e *waitElement) TagName(ctx context.Context) (string, error)   { return "div", nil }
func (e *waitElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	return "", false, nil
}
func (e *waitElement) Attributes(ctx context.Context) (map[string]string, error) { return nil, nil }
func (e *waitElement) TextContent(ctx context.Context) (string, error)           { return e.text, nil }
func (e *waitElement) AccessibleName(ctx context.Context) (string, error)        { return "", nil }
func (e *waitElement) Role(ctx context.Context) (string, error)                  { return "", nil }
func (e *waitElement) BoundingRect(ctx context.Context) (dom.Rect, error) {
	return dom.Rect{Width: 10, Height: 10}, nil
}
func (e *waitElement) ComputedStyle(ctx context.Context, prop string) (string, error) {
	if prop == "display" {
		return e.display, nil
	}
	return "", nil
}
func (e *waitElement) ScrollTop(ctx context.Context) (float64, error)        { return 0, nil }
func (e *waitElement) ScrollLeft(ctx context.Context) (float64, error)       { return 0, nil }
func (e *waitElement) ScrollHeight(ctx context.Context) (float64, error)     { return 0, nil }
func (e *waitElement) ScrollWidth(ctx context.Context) (float64, error)      { return 0, nil }
func (e *waitElement) ClientHeight(ctx context.Context) (float64, error)     { return 0, nil }
func (e *waitElement) ClientWidth(ctx context.Context) (float64, error)      { return 0, nil }
func (e *waitElement) ScrollTo(ctx context.Context, top, left float64) error { return nil }
func (e *waitElement) ParentElement(ctx context.Context) (dom.Element, error) {
	return nil, nil
}
func (e *waitElement) Matches(ctx context.Context, css string) (bool, error) { return false, nil }
func (e *waitElement) Click(ctx context.Context) error                      { return nil }
func (e *waitElement) Focus(ctx context.Context) error                      { return nil }
func (e *waitElement) SetValue(ctx context.Context, v string) error         { return nil }

type waitDocument struct {
	result []dom.Element
}

func (d *waitDocument) QueryAll(ctx context.Context, css string, root dom.Element) ([]dom.Element, error) {
	return d.result, nil
}
func (d *waitDocument) QueryXPath(ctx context.Context, expr string, root dom.Element) ([]dom.Element, error) {
	return nil, nil
}
func (d *waitDocument) ScrollingElement(ctx context.Context) (dom.Element, error) { return nil, nil }
func (d *waitDocument) ActiveElement(ctx context.Context) (dom.Element, bool, error) {
	return nil, false, nil
}

func TestScheduler_SucceedsWhenPredicateImmediatelySatisfied(t *testing.T) {
	el := &waitElement{id: "e1", text: "Ready", connected: true, display: "block"}
	doc := &waitDocument{result: []dom.Element{el}}
	m := selector.SelectorMap{"status": {Tries: []selector.SelectorTry{{Kind: selector.TryCSS, Selector: ".status"}}}}
	r := selector.NewResolver(m, doc)
	c := clock.NewManualClock(time.Unix(0, 0))
	s := NewScheduler(r, c, nil)

	out, err := s.Run(context.Background(), Options{
		Key:       "status",
		Predicate: TextPredicate{Text: "Ready", Exact: true},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, out.Attempts)
}

func TestScheduler_TimesOutOnResolverMiss(t *testing.T) {
	doc := &waitDocument{result: nil}
	m := selector.SelectorMap{"missing": {Tries: []selector.SelectorTry{{Kind: selector.TryCSS, Selector: ".x"}}}}
	r := selector.NewResolver(m, doc)
	c := clock.NewManualClock(time.Unix(0, 0))
	s := NewScheduler(r, c, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 80; i++ {
			c.Advance(150 * time.Millisecond)
		}
		close(done)
	}()

	_, err := s.Run(context.Background(), Options{Key: "missing", Predicate: TextPredicate{Text: "x"}})
	<-done

	require.Error(t, err)
	var waitErr *werrors.WaitError
	require.ErrorAs(t, err, &waitErr)
	assert.Equal(t, werrors.ReasonResolverMiss, waitErr.Reason)
}

func TestScheduler_RequiresPresenceThresholdConsecutivePolls(t *testing.T) {
	el := &waitElement{id: "e1", text: "Ready", connected: true}
	doc := &waitDocument{result: []dom.Element{el}}
	m := selector.SelectorMap{"status": {Tries: []selector.SelectorTry{{Kind: selector.TryCSS, Selector: ".status"}}}}
	r := selector.NewResolver(m, doc)
	c := clock.NewManualClock(time.Unix(0, 0))
	s := NewScheduler(r, c, nil)

	go func() {
		c.Advance(150 * time.Millisecond)
		c.Advance(150 * time.Millisecond)
	}()

	out, err := s.Run(context.Background(), Options{
		Key:               "status",
		Predicate:         TextPredicate{Text: "Ready", Exact: true},
		PresenceThreshold: 3,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, out.Attempts)
}

func TestScheduler_RespectsCancellation(t *testing.T) {
	doc := &waitDocument{result: nil}
	m := selector.SelectorMap{"k": {Tries: []selector.SelectorTry{{Kind: selector.TryCSS, Selector: ".x"}}}}
	r := selector.NewResolver(m, doc)
	c := clock.NewManualClock(time.Unix(0, 0))
	s := NewScheduler(r, c, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, Options{Key: "k", Predicate: TextPredicate{Text: "x"}})

	require.Error(t, err)
	var waitErr *werrors.WaitError
	require.ErrorAs(t, err, &waitErr)
	assert.Equal(t, werrors.ReasonCancelled, waitErr.Reason)
}

func TestTextPredicate_MatchesSubstringByDefault(t *testing.T) {
	p := TextPredicate{Text: "world"}
	el := &waitElement{text: "hello world"}

	snap, err := p.Evaluate(context.Background(), Context{Element: el})

	require.NoError(t, err)
	assert.True(t, snap.Matches)
}

func TestVisibilityPredicate_HiddenWhenDisplayNone(t *testing.T) {
	p := VisibilityPredicate{Target: TargetVisible}
	el := &waitElement{display: "none"}

	snap, err := p.Evaluate(context.Background(), Context{Element: el})

	require.NoError(t, err)
	assert.False(t, snap.Matches)
}
