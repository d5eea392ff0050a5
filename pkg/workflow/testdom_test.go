package workflow

import (
	"context"

	"github.com/dgxrun/weave/pkg/dom"
)

// testElement is a minimal dom.Element double shared across this
// package's tests.
type testElement struct {
	id, tag, text, class string
	attrs                map[string]string
	styles               map[string]string
	rect                 dom.Rect
	clicked, focused     int
	value                string
}

func (e *testElement) NodeID() string { return e.id }
func (e *testElement) IsConnected(ctx context.Context) (bool, error) { return true, nil }
func (e *testElement) TagName(ctx context.Context) (string, error) { return e.tag, nil }
func (e *testElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	if name == "id" {
		return e.id, e.id != "", nil
	}
	if name == "class" {
		return e.class, e.class != "", nil
	}
	v, ok := e.attrs[name]
	return v, ok, nil
}
func (e *testElement) Attributes(ctx context.Context) (map[string]string, error) { return e.attrs, nil }
func (e *testElement) TextContent(ctx context.Context) (string, error)           { return e.text, nil }
func (e *testElement) AccessibleName(ctx context.Context) (string, error)        { return e.text, nil }
func (e *testElement) Role(ctx context.Context) (string, error)                  { return "", nil }
func (e *testElement) BoundingRect(ctx context.Context) (dom.Rect, error)        { return e.rect, nil }
func (e *testElement) ComputedStyle(ctx context.Context, property string) (string, error) {
	return e.styles[property], nil
}
func (e *testElement) ScrollTop(ctx context.Context) (float64, error)    { return 0, nil }
func (e *testElement) ScrollLeft(ctx context.Context) (float64, error)   { return 0, nil }
func (e *testElement) ScrollHeight(ctx context.Context) (float64, error) { return 0, nil }
func (e *testElement) ScrollWidth(ctx context.Context) (float64, error)  { return 0, nil }
func (e *testElement) ClientHeight(ctx context.Context) (float64, error) { return 0, nil }
func (e *testElement) ClientWidth(ctx context.Context) (float64, error)  { return 0, nil }
func (e *testElement) ScrollTo(ctx context.Context, top, left float64) error { return nil }
func (e *testElement) ParentElement(ctx context.Context) (dom.Element, error) { return nil, nil }
func (e *testElement) Matches(ctx context.Context, cssSelector string) (bool, error) { return false, nil }
func (e *testElement) Click(ctx context.Context) error { e.clicked++; return nil }
func (e *testElement) Focus(ctx context.Context) error { e.focused++; return nil }
func (e *testElement) SetValue(ctx context.Context, value string) error { e.value = value; return nil }

// testDocument is a minimal dom.Document double.
type testDocument struct {
	queryResults map[string][]dom.Element
}

func (d *testDocument) QueryAll(ctx context.Context, cssSelector string, root dom.Element) ([]dom.Element, error) {
	return d.queryResults[cssSelector], nil
}
func (d *testDocument) QueryXPath(ctx context.Context, expr string, root dom.Element) ([]dom.Element, error) {
	return nil, nil
}
func (d *testDocument) ScrollingElement(ctx context.Context) (dom.Element, error) { return nil, nil }
func (d *testDocument) ActiveElement(ctx context.Context) (dom.Element, bool, error) {
	return nil, false, nil
}
