package selector

import (
	"context"
	"strings"

	"github.com/dgxrun/weave/pkg/dom"
	"golang.org/x/text/cases"
)

var foldCase = cases.Fold()

// Root is anything a strategy can be evaluated against: the ambient
// document, an element subtree, or a shadow root (accepted as just
// another Element by the dom package).
type Root struct {
	Doc     dom.Document
	Element dom.Element // nil means query the whole document
}

// Execute evaluates a single try against root and returns matches in
// document order. It never returns an error to the caller: per the
// Strategy Executor contract, every failure collapses to "no match".
func Execute(ctx context.Context, root Root, try SelectorTry) []dom.Element {
	if root.Doc == nil {
		return nil
	}
	switch try.Kind {
	case TryRole:
		return executeRole(ctx, root, try)
	case TryName:
		return executeAttrEquals(ctx, root, "name", try.Name)
	case TryLabel:
		return executeLabel(ctx, root, try)
	case TryText:
		return executeText(ctx, root, try)
	case TryDataAttr:
		return executeDataAttr(ctx, root, try)
	case TryTestID:
		return executeAttrEquals(ctx, root, try.TestIDAttribute(), try.TestID)
	case TryCSS:
		return executeCSS(ctx, root, try)
	case TryXPath:
		return executeXPath(ctx, root, try)
	default:
		return nil
	}
}

func queryAll(ctx context.Context, root Root, css string) []dom.Element {
	els, err := root.Doc.QueryAll(ctx, css, root.Element)
	if err != nil {
		return nil
	}
	return els
}

func executeAttrEquals(ctx context.Context, root Root, attr, value string) []dom.Element {
	candidates := queryAll(ctx, root, "["+attr+"]")
	var out []dom.Element
	for _, el := range candidates {
		v, ok, err := el.Attribute(ctx, attr)
		if err != nil || !ok {
			continue
		}
		if value == "" || v == value {
			out = append(out, el)
		}
	}
	return out
}

func executeDataAttr(ctx context.Context, root Root, try SelectorTry) []dom.Element {
	return executeAttrEquals(ctx, root, try.Attribute, try.Value)
}

func executeRole(ctx context.Context, root Root, try SelectorTry) []dom.Element {
	candidates := executeAttrEquals(ctx, root, "role", try.Role)
	var out []dom.Element
	for _, el := range candidates {
		if try.Name != "" || try.Label != "" {
			want := try.Name
			if want == "" {
				want = try.Label
			}
			name, err := el.AccessibleName(ctx)
			if err != nil || !foldEquals(name, want) {
				continue
			}
		}
		if try.Text != "" {
			text, err := el.TextContent(ctx)
			if err != nil || !strings.Contains(collapseWhitespace(text), collapseWhitespace(try.Text)) {
				continue
			}
		}
		out = append(out, el)
	}
	return out
}

func executeLabel(ctx context.Context, root Root, try SelectorTry) []dom.Element {
	candidates := queryAll(ctx, root, "*")
	var out []dom.Element
	for _, el := range candidates {
		name, err := el.AccessibleName(ctx)
		if err != nil {
			continue
		}
		if matchString(name, try.Label, try.CaseSensitive, true, true) {
			out = append(out, el)
		}
	}
	return out
}

func executeText(ctx context.Context, root Root, try SelectorTry) []dom.Element {
	candidates := queryAll(ctx, root, "*")
	var out []dom.Element
	for _, el := range candidates {
		text, err := el.TextContent(ctx)
		if err != nil {
			continue
		}
		if matchString(text, try.Text, try.CaseSensitive, try.Exact, try.NormalizesWhitespace()) {
			out = append(out, el)
		}
	}
	return out
}

func executeCSS(ctx context.Context, root Root, try SelectorTry) []dom.Element {
	if try.Selector == "" {
		return nil
	}
	return queryAll(ctx, root, try.Selector)
}

func executeXPath(ctx context.Context, root Root, try SelectorTry) []dom.Element {
	if try.Expression == "" {
		return nil
	}
	els, err := root.Doc.QueryXPath(ctx, try.Expression, root.Element)
	if err != nil {
		return nil
	}
	return els
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func foldEquals(a, b string) bool {
	return foldCase.String(collapseWhitespace(a)) == foldCase.String(collapseWhitespace(b))
}

func matchString(actual, expected string, caseSensitive, exact, normalizeWhitespace bool) bool {
	a, e := actual, expected
	if normalizeWhitespace {
		a = collapseWhitespace(a)
		e = collapseWhitespace(e)
	} else {
		a = strings.TrimSpace(a)
		e = strings.TrimSpace(e)
	}
	if !caseSensitive {
		a = foldCase.String(a)
		e = foldCase.String(e)
	}
	if exact {
		return a == e
	}
	return strings.Contains(a, e)
}
