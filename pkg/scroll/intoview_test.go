package scroll

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgxrun/weave/pkg/clock"
	"github.com/dgxrun/weave/pkg/dom"
	werrors "github.com/dgxrun/weave/pkg/errors"
)

func newManualFrames(n int) *clock.Manual {
	f := clock.NewManual()
	go func() {
		for i := 0; i < n; i++ {
			f.Advance()
		}
	}()
	return f
}

// TestScroller_AlignStartWithPerEdgeMargin covers Scenario S3: a
// 220x200 container with scrollHeight 1000, target at top=520 height=40,
// alignment block:start, margin {top:12, bottom:16}.
func TestScroller_AlignStartWithPerEdgeMargin(t *testing.T) {
	container := &testElement{id: "c", overflowY: "auto", scrollH: 1000, clientH: 200, clientW: 220, rect: dom.Rect{Y: 0, Width: 220, Height: 200}}
	target := &testElement{id: "t", parent: container, rect: dom.Rect{Y: 520, Height: 40}}
	container.trackedChild = target
	doc := &testDocument{}
	frames := newManualFrames(MaxRetries)
	s := NewScroller(frames, NewDetector(doc, nil))

	err := s.ScrollIntoView(context.Background(), target, ContainerHint{}, nil, IntoViewOptions{
		Block:  AlignStart,
		Margin: Margin{Top: 12, Bottom: 16},
	})

	require.NoError(t, err)
	assert.Equal(t, float64(508), container.scrollTop)
	assert.InDelta(t, 12, target.rect.Y, Tolerance)
}

// TestScroller_MaxRetriesFailsRatherThanSucceeding covers invariant 3:
// a target that never settles must not be reported as success.
func TestScroller_MaxRetriesFailsRatherThanSucceeding(t *testing.T) {
	container := &testElement{id: "c", overflowY: "auto", scrollH: 1000, clientH: 200, rect: dom.Rect{Y: 0, Height: 200}}
	// No trackedChild: the container scrolls but the target rect never
	// moves, so containment is never reached.
	target := &testElement{id: "t", parent: container, rect: dom.Rect{Y: 900, Height: 20}}
	doc := &testDocument{}
	frames := newManualFrames(MaxRetries)
	s := NewScroller(frames, NewDetector(doc, nil))

	err := s.ScrollIntoView(context.Background(), target, ContainerHint{}, nil, IntoViewOptions{Block: AlignStart})

	require.Error(t, err)
	var scrollErr *werrors.ScrollError
	require.ErrorAs(t, err, &scrollErr)
	assert.Contains(t, []werrors.Reason{werrors.ReasonMaxRetries, werrors.ReasonNoAdjustment}, scrollErr.Reason)
}

func TestScroller_CenterAlignmentRespectsMargin(t *testing.T) {
	container := &testElement{id: "c", overflowY: "auto", scrollH: 1000, clientH: 200, rect: dom.Rect{Y: 0, Height: 200}}
	target := &testElement{id: "t", parent: container, rect: dom.Rect{Y: 600, Height: 40}}
	container.trackedChild = target
	doc := &testDocument{}
	frames := newManualFrames(MaxRetries)
	s := NewScroller(frames, NewDetector(doc, nil))

	err := s.ScrollIntoView(context.Background(), target, ContainerHint{}, nil, IntoViewOptions{
		Block:  AlignCenter,
		Margin: Margin{Top: 20, Bottom: 20},
	})

	require.NoError(t, err)
	wantCenterStart := 20 + (200.0-20-20-40)/2
	assert.InDelta(t, wantCenterStart, target.rect.Y, Tolerance)
}
