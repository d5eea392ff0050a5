package run

import (
	"context"

	"github.com/dgxrun/weave/pkg/dom"
)

// nullDocument is the DOM driver weave falls back to when the caller
// does not embed a real one (CDP client or similar). It never matches
// anything, so every logical-key resolution reports a miss: enough to
// exercise the scheduler's timing, retry, and telemetry machinery end
// to end without pretending to drive a browser.
//
// A real deployment embeds weave as a library and supplies its own
// dom.Document built on a live driver; this type only backs the CLI
// when none is configured.
type nullDocument struct{}

func (nullDocument) QueryAll(ctx context.Context, cssSelector string, root dom.Element) ([]dom.Element, error) {
	return nil, nil
}

func (nullDocument) QueryXPath(ctx context.Context, expr string, root dom.Element) ([]dom.Element, error) {
	return nil, nil
}

func (nullDocument) ScrollingElement(ctx context.Context) (dom.Element, error) {
	return nil, nil
}

func (nullDocument) ActiveElement(ctx context.Context) (dom.Element, bool, error) {
	return nil, false, nil
}
