package scroll

import (
	"context"
	"math"

	"github.com/dgxrun/weave/pkg/clock"
	"github.com/dgxrun/weave/pkg/dom"
	"github.com/dgxrun/weave/pkg/errors"
)

// Align is a scroll-alignment value for one axis.
type Align string

const (
	AlignStart   Align = "start"
	AlignCenter  Align = "center"
	AlignEnd     Align = "end"
	AlignNearest Align = "nearest"
)

// Tolerance below which a target is considered already in view; the
// retry loop treats sub-pixel residue as settled rather than looping
// to convergence.
const Tolerance = 0.5

// MaxRetries bounds the animation-frame retry loop for a single
// scrollIntoView invocation.
const MaxRetries = 3

// Margin is additional per-edge clearance in pixels, each clamped to
// >= 0. Block alignment (start/end/nearest/center) consults Top/Bottom;
// inline alignment consults Left/Right.
type Margin struct {
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

func (m Margin) normalized() Margin {
	if m.Top < 0 {
		m.Top = 0
	}
	if m.Bottom < 0 {
		m.Bottom = 0
	}
	if m.Left < 0 {
		m.Left = 0
	}
	if m.Right < 0 {
		m.Right = 0
	}
	return m
}

// IntoViewOptions configures a single scrollIntoView call.
type IntoViewOptions struct {
	Block  Align // vertical axis, default "nearest"
	Inline Align // horizontal axis, default "nearest"
	Margin Margin
}

func (o IntoViewOptions) normalized() IntoViewOptions {
	if o.Block == "" {
		o.Block = AlignNearest
	}
	if o.Inline == "" {
		o.Inline = AlignNearest
	}
	o.Margin = o.Margin.normalized()
	return o
}

// Scroller implements the Into-View Scroller: an animation-frame retry
// loop that repeatedly measures target against its container and
// issues corrective ScrollTo calls until the target settles within
// Tolerance or MaxRetries is exhausted.
type Scroller struct {
	Frames   clock.FrameScheduler
	Detector *Detector
}

// NewScroller returns a Scroller driven by the given frame scheduler
// and container detector.
func NewScroller(frames clock.FrameScheduler, detector *Detector) *Scroller {
	return &Scroller{Frames: frames, Detector: detector}
}

// ScrollIntoView brings target into view within its detected scroll
// container, retrying across animation frames until settled.
func (s *Scroller) ScrollIntoView(ctx context.Context, target dom.Element, hint ContainerHint, contextElement dom.Element, opts IntoViewOptions) error {
	opts = opts.normalized()

	container, _, err := s.Detector.Detect(ctx, target, hint, contextElement)
	if err != nil {
		return &errors.ScrollError{Reason: errors.ReasonContainerUnavailable, Message: "container detection failed", Cause: err}
	}
	if container == nil {
		return &errors.ScrollError{Reason: errors.ReasonContainerUnavailable, Message: "no scroll container available"}
	}

	attempts := 0
	for attempts < MaxRetries {
		select {
		case <-ctx.Done():
			return &errors.ScrollError{Reason: errors.ReasonCancelled, Message: "context cancelled", Attempts: attempts}
		default:
		}

		settled, stuck, err := s.step(ctx, target, container, opts)
		if err != nil {
			return &errors.ScrollError{Reason: errors.ReasonUnknown, Message: "scroll step failed", Attempts: attempts, Cause: err}
		}
		attempts++
		if settled {
			return nil
		}
		if stuck {
			return &errors.ScrollError{Reason: errors.ReasonNoAdjustment, Message: "target not contained and scroll position cannot be adjusted further", Attempts: attempts}
		}
		if err := s.Frames.NextFrame(ctx); err != nil {
			return &errors.ScrollError{Reason: errors.ReasonCancelled, Message: "frame wait interrupted", Attempts: attempts, Cause: err}
		}
	}
	return &errors.ScrollError{Reason: errors.ReasonMaxRetries, Message: "target did not settle within containment after max retries", Attempts: attempts}
}

// step measures target relative to container and issues at most one
// corrective ScrollTo. settled is true when no correction was needed;
// stuck is true when the desired correction was clamped to the
// container's existing scroll position on both axes, meaning no
// further scroll can move the target any closer to containment.
func (s *Scroller) step(ctx context.Context, target, container dom.Element, opts IntoViewOptions) (settled, stuck bool, err error) {
	targetRect, err := target.BoundingRect(ctx)
	if err != nil {
		return false, false, err
	}
	containerRect, err := container.BoundingRect(ctx)
	if err != nil {
		return false, false, err
	}
	scrollTop, err := container.ScrollTop(ctx)
	if err != nil {
		return false, false, err
	}
	scrollLeft, err := container.ScrollLeft(ctx)
	if err != nil {
		return false, false, err
	}
	clientH, err := container.ClientHeight(ctx)
	if err != nil {
		return false, false, err
	}
	clientW, err := container.ClientWidth(ctx)
	if err != nil {
		return false, false, err
	}
	scrollH, err := container.ScrollHeight(ctx)
	if err != nil {
		return false, false, err
	}
	scrollW, err := container.ScrollWidth(ctx)
	if err != nil {
		return false, false, err
	}

	deltaY := axisDelta(targetRect.Y, targetRect.Height, containerRect.Y, clientH, opts.Block, opts.Margin.Top, opts.Margin.Bottom)
	deltaX := axisDelta(targetRect.X, targetRect.Width, containerRect.X, clientW, opts.Inline, opts.Margin.Left, opts.Margin.Right)

	if math.Abs(deltaY) <= Tolerance && math.Abs(deltaX) <= Tolerance {
		return true, false, nil
	}

	scrollMaxY := math.Max(0, scrollH-clientH)
	scrollMaxX := math.Max(0, scrollW-clientW)

	newTop := clampOffset(scrollTop+deltaY, 0, scrollMaxY)
	newLeft := clampOffset(scrollLeft+deltaX, 0, scrollMaxX)

	if newTop == scrollTop && newLeft == scrollLeft {
		return false, true, nil
	}

	if err := container.ScrollTo(ctx, newTop, newLeft); err != nil {
		return false, false, err
	}
	return false, false, nil
}

func clampOffset(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// axisDelta computes the scroll offset correction for one axis given
// the target's position/extent, the container's viewport position/
// extent, the requested alignment, and the margin clearance at the
// start and end edges of the axis.
func axisDelta(targetPos, targetExtent, containerPos, containerExtent float64, align Align, marginStart, marginEnd float64) float64 {
	targetStart := targetPos - containerPos
	targetEnd := targetStart + targetExtent

	switch align {
	case AlignStart:
		return targetStart - marginStart
	case AlignEnd:
		return targetEnd + marginEnd - containerExtent
	case AlignCenter:
		centerStart := marginStart + (containerExtent-marginStart-marginEnd-targetExtent)/2
		return targetStart - centerStart
	default: // nearest
		if targetStart < marginStart {
			return targetStart - marginStart
		}
		if targetEnd > containerExtent-marginEnd {
			return targetEnd + marginEnd - containerExtent
		}
		return 0
	}
}
