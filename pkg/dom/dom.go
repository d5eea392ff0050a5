// Package dom declares the document-object-model surface weave drives.
// weave never talks to a browser directly; a driver (typically a
// Chrome DevTools Protocol client) implements these interfaces and is
// injected into the selector, scroll, and wait packages.
package dom

import "context"

// Rect is an axis-aligned bounding box in viewport coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// Node is the minimal handle every DOM participant exposes.
type Node interface {
	// NodeID is a driver-assigned identifier stable for the node's lifetime
	// in the live tree. It is opaque to weave.
	NodeID() string
	// IsConnected reports whether the node is still attached to a document.
	IsConnected(ctx context.Context) (bool, error)
}

// Element is a Node with the attribute, text, and geometry surface the
// selector strategies and scroll/wait subsystems need.
type Element interface {
	Node

	TagName(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
	Attributes(ctx context.Context) (map[string]string, error)
	TextContent(ctx context.Context) (string, error)
	AccessibleName(ctx context.Context) (string, error)
	Role(ctx context.Context) (string, error)

	BoundingRect(ctx context.Context) (Rect, error)
	ComputedStyle(ctx context.Context, property string) (string, error)

	ScrollTop(ctx context.Context) (float64, error)
	ScrollLeft(ctx context.Context) (float64, error)
	ScrollHeight(ctx context.Context) (float64, error)
	ScrollWidth(ctx context.Context) (float64, error)
	ClientHeight(ctx context.Context) (float64, error)
	ClientWidth(ctx context.Context) (float64, error)

	// ScrollTo sets this element's scrollTop/scrollLeft.
	ScrollTo(ctx context.Context, top, left float64) error

	// ParentElement walks up the flattened tree, crossing shadow
	// boundaries the way Element.assignedSlot/host does in a real DOM.
	ParentElement(ctx context.Context) (Element, error)

	// Matches reports whether this element satisfies a CSS selector,
	// used by the `css` strategy and by ancestor-overflow scans.
	Matches(ctx context.Context, cssSelector string) (bool, error)

	// Click, Focus and SetValue are used by step handlers, not the
	// selector/scroll/wait cores themselves, but live on the same
	// accepted interface so one driver object satisfies everything.
	Click(ctx context.Context) error
	Focus(ctx context.Context) error
	SetValue(ctx context.Context, value string) error
}

// Document is the root query surface a driver exposes.
type Document interface {
	// QueryAll evaluates a CSS selector against the whole document (or,
	// when root is non-nil, against that element's subtree) and returns
	// matches in document order.
	QueryAll(ctx context.Context, cssSelector string, root Element) ([]Element, error)
	// QueryXPath evaluates an XPath expression relative to root (or the
	// document when root is nil).
	QueryXPath(ctx context.Context, expr string, root Element) ([]Element, error)
	// ScrollingElement returns the element that scrolls the document
	// itself (documentElement or body, driver-dependent), the fallback
	// target for the Scroll Container Detector.
	ScrollingElement(ctx context.Context) (Element, error)
	// ActiveElement returns the currently focused element, if any.
	ActiveElement(ctx context.Context) (Element, bool, error)
}
