package scroll

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgxrun/weave/pkg/clock"
	"github.com/dgxrun/weave/pkg/dom"
	werrors "github.com/dgxrun/weave/pkg/errors"
)

// TestUntilRunner_TimeoutScenarioS4 covers Scenario S4: a container
// whose predicate is never satisfied within timeoutMs/maxAttempts.
func TestUntilRunner_TimeoutScenarioS4(t *testing.T) {
	container := &testElement{id: "c", scrollH: 2000, clientH: 250}
	doc := &testDocument{}
	c := clock.NewManualClock(time.Unix(0, 0))
	r := NewUntilRunner(c, doc)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			c.Advance(20 * time.Millisecond)
		}
		close(done)
	}()

	err := r.Run(context.Background(), container, UntilOptions{
		TimeoutMs:   50,
		MaxAttempts: 10,
		Stop:        StopCondition{Kind: StopPredicate, Predicate: func(context.Context) (bool, error) { return false, nil }},
	})
	<-done

	require.Error(t, err)
	var scrollErr *werrors.ScrollError
	require.ErrorAs(t, err, &scrollErr)
	assert.Equal(t, werrors.ReasonTimeout, scrollErr.Reason)
	assert.GreaterOrEqual(t, scrollErr.Attempts, 1)
}

// TestUntilRunner_EndStopsWhenWithinThresholdOfBottom covers the `end`
// stop condition: satisfied once maxScrollTop - scrollTop <= threshold,
// not silently handled by the no-change path.
func TestUntilRunner_EndStopsWhenWithinThresholdOfBottom(t *testing.T) {
	container := &testElement{id: "c", scrollH: 1000, clientH: 200, scrollTop: 799}
	doc := &testDocument{}
	c := clock.NewManualClock(time.Unix(0, 0))
	r := NewUntilRunner(c, doc)

	err := r.Run(context.Background(), container, UntilOptions{
		Stop: StopCondition{Kind: StopEnd},
	})

	assert.NoError(t, err)
}

// TestUntilRunner_EndNotYetSatisfiedFarFromBottom ensures reaching the
// end condition is not a disguised no-op: far from the bottom, it must
// not report satisfied immediately.
func TestUntilRunner_EndNotYetSatisfiedFarFromBottom(t *testing.T) {
	container := &testElement{id: "c", scrollH: 1000, clientH: 200}
	doc := &testDocument{}
	r := NewUntilRunner(clock.NewManualClock(time.Unix(0, 0)), doc)

	satisfied, err := r.checkStop(context.Background(), container, StopCondition{Kind: StopEnd}, -1)

	require.NoError(t, err)
	assert.False(t, satisfied)
}

// countingDocument is a dom.Document stub whose QueryAll result count
// advances through a fixed sequence and records the root it was
// scoped to, for asserting list-growth snapshots against the
// container rather than the whole document.
type countingDocument struct {
	counts   []int
	calls    int
	lastRoot dom.Element
}

func (d *countingDocument) QueryAll(ctx context.Context, css string, root dom.Element) ([]dom.Element, error) {
	d.lastRoot = root
	n := d.counts[d.calls]
	if d.calls < len(d.counts)-1 {
		d.calls++
	}
	els := make([]dom.Element, n)
	for i := range els {
		els[i] = &testElement{id: "item"}
	}
	return els, nil
}
func (d *countingDocument) QueryXPath(ctx context.Context, expr string, root dom.Element) ([]dom.Element, error) {
	return nil, nil
}
func (d *countingDocument) ScrollingElement(ctx context.Context) (dom.Element, error) {
	return nil, nil
}
func (d *countingDocument) ActiveElement(ctx context.Context) (dom.Element, bool, error) {
	return nil, false, nil
}

// TestUntilRunner_ListGrowthScopesToContainerAndCountsDelta covers the
// list-growth fix: the initial count is snapshotted on entry and the
// query is scoped to the container, so a list that already has
// minGrowth items does not succeed with zero growth.
func TestUntilRunner_ListGrowthScopesToContainerAndCountsDelta(t *testing.T) {
	container := &testElement{id: "c", scrollH: 1000, clientH: 200}
	countingDoc := &countingDocument{counts: []int{3, 3, 4}}
	c := clock.NewManualClock(time.Unix(0, 0))
	r := NewUntilRunner(c, countingDoc)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			c.Advance(250 * time.Millisecond)
		}
		close(done)
	}()

	err := r.Run(context.Background(), container, UntilOptions{
		MaxAttempts: 3,
		Stop:        StopCondition{Kind: StopListGrowth, ListSelector: ".item", MinGrowth: 1},
	})
	<-done

	require.NoError(t, err)
	assert.Equal(t, dom.Element(container), countingDoc.lastRoot)
}
