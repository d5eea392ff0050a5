// Package scroll implements the Scroll Container Detector (C4), the
// Into-View Scroller (C5), and the ScrollUntil Runner (C6).
package scroll

import (
	"context"
	"strings"

	"github.com/dgxrun/weave/pkg/dom"
)

// overflowValues are the computed-style values that make an axis scrollable.
var overflowValues = map[string]bool{"auto": true, "scroll": true, "overlay": true}

// ContainerHint is the explicit per-key configuration consulted at
// stage two of the detector cascade.
type ContainerHint struct {
	// Attribute is a data attribute (e.g. "data-scroll-container") whose
	// nearest ancestor match wins.
	Attribute string
	// ContextKey, when set, names a WorkflowContext path holding a
	// previously-resolved element to use directly (stage four).
	ContextKey string
}

// ContextLookup resolves a context-stored element by key, used at stage
// four of the cascade. Implemented by pkg/workflow's context store.
type ContextLookup interface {
	ElementByKey(key string) (dom.Element, bool)
}

// Detector implements the five-stage container resolution cascade:
// ancestor-overflow, hint-attribute, context-element, context-key,
// document fallback.
type Detector struct {
	Doc     dom.Document
	Context ContextLookup
}

// NewDetector returns a Detector bound to a document and an optional
// context lookup (nil disables stage four).
func NewDetector(doc dom.Document, ctxLookup ContextLookup) *Detector {
	return &Detector{Doc: doc, Context: ctxLookup}
}

// Detect resolves the effective scroll container for target, given an
// optional hint and an optional directly-supplied context element
// (stage three; takes priority over hint.ContextKey at stage four).
func (d *Detector) Detect(ctx context.Context, target dom.Element, hint ContainerHint, contextElement dom.Element) (dom.Element, string, error) {
	// Stage 1: nearest scrollable ancestor.
	if el, err := d.ancestorOverflow(ctx, target); err != nil {
		return nil, "", err
	} else if el != nil {
		return el, "ancestor-overflow", nil
	}

	// Stage 2: hint attribute, nearest ancestor matching it.
	if hint.Attribute != "" {
		if el, err := d.hintAttribute(ctx, target, hint.Attribute); err != nil {
			return nil, "", err
		} else if el != nil {
			return el, "hint-attribute", nil
		}
	}

	// Stage 3: directly supplied context element.
	if contextElement != nil {
		return contextElement, "context-element", nil
	}

	// Stage 4: context-store lookup by key.
	if hint.ContextKey != "" && d.Context != nil {
		if el, ok := d.Context.ElementByKey(hint.ContextKey); ok && el != nil {
			return el, "context-key", nil
		}
	}

	// Stage 5: document fallback.
	el, err := d.Doc.ScrollingElement(ctx)
	if err != nil {
		return nil, "", err
	}
	return el, "document", nil
}

// ancestorOverflow walks up from target (exclusive) looking for the
// first ancestor whose computed overflow makes at least one axis
// scrollable and whose scroll range is non-zero.
func (d *Detector) ancestorOverflow(ctx context.Context, target dom.Element) (dom.Element, error) {
	current := target
	for {
		parent, err := current.ParentElement(ctx)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, nil
		}
		scrollable, err := isScrollable(ctx, parent)
		if err != nil {
			return nil, err
		}
		if scrollable {
			return parent, nil
		}
		current = parent
	}
}

func isScrollable(ctx context.Context, el dom.Element) (bool, error) {
	ox, err := el.ComputedStyle(ctx, "overflow-x")
	if err != nil {
		return false, err
	}
	oy, err := el.ComputedStyle(ctx, "overflow-y")
	if err != nil {
		return false, err
	}
	if !overflowValues[strings.ToLower(ox)] && !overflowValues[strings.ToLower(oy)] {
		return false, nil
	}
	sw, err := el.ScrollWidth(ctx)
	if err != nil {
		return false, err
	}
	cw, err := el.ClientWidth(ctx)
	if err != nil {
		return false, err
	}
	sh, err := el.ScrollHeight(ctx)
	if err != nil {
		return false, err
	}
	ch, err := el.ClientHeight(ctx)
	if err != nil {
		return false, err
	}
	return sw > cw || sh > ch, nil
}

// hintAttribute walks up from target (exclusive) looking for the first
// ancestor carrying the given attribute.
func (d *Detector) hintAttribute(ctx context.Context, target dom.Element, attr string) (dom.Element, error) {
	current := target
	for {
		parent, err := current.ParentElement(ctx)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, nil
		}
		if _, ok, err := parent.Attribute(ctx, attr); err != nil {
			return nil, err
		} else if ok {
			return parent, nil
		}
		current = parent
	}
}
