// Package loader locates and decodes workflow definitions and selector
// maps from disk, in either the spec's JSON wire form or the YAML
// authoring convenience, and watches a set of files for the CLI's
// --watch mode.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	werrors "github.com/dgxrun/weave/pkg/errors"
	"github.com/dgxrun/weave/pkg/selector"
	"github.com/dgxrun/weave/pkg/workflow"
)

// LoadDefinition reads a workflow.Definition from path, dispatching on
// extension: .json decodes as JSON, .yaml/.yml as YAML.
func LoadDefinition(path string) (workflow.Definition, error) {
	var def workflow.Definition
	raw, err := os.ReadFile(path)
	if err != nil {
		return def, &werrors.ConfigError{Key: path, Reason: "reading workflow file", Cause: err}
	}
	if err := decode(path, raw, &def); err != nil {
		return def, &werrors.ConfigError{Key: path, Reason: "parsing workflow definition", Cause: err}
	}
	return def, nil
}

// LoadSelectorMap reads a selector.SelectorMap from path, same
// extension dispatch as LoadDefinition.
func LoadSelectorMap(path string) (selector.SelectorMap, error) {
	var m selector.SelectorMap
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &werrors.ConfigError{Key: path, Reason: "reading selector map file", Cause: err}
	}
	if err := decode(path, raw, &m); err != nil {
		return nil, &werrors.ConfigError{Key: path, Reason: "parsing selector map", Cause: err}
	}
	return m, nil
}

func decode(path string, raw []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(raw, v)
	default:
		return json.Unmarshal(raw, v)
	}
}

// Glob expands a doublestar pattern (supporting `**`) relative to the
// working directory, the same matcher the teacher's permission globs
// use for path allowlists.
func Glob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern)
}

// Watcher debounces fsnotify write/create events across a fixed set of
// files and invokes onChange once per settled burst, mirroring the
// teacher's MCP source-file watcher.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	onChange func(path string)

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewWatcher watches paths and calls onChange (debounced by delay)
// whenever one of them is written or recreated.
func NewWatcher(paths []string, delay time.Duration, onChange func(path string)) (*Watcher, error) {
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolving watch path %s: %w", p, err)
		}
		if err := fsw.Add(abs); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", abs, err)
		}
	}
	w := &Watcher{fs: fsw, debounce: delay, onChange: onChange, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.schedule(ev.Name)
			}
		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.onChange(path) })
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fs.Close()
}
