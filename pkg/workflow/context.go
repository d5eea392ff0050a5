// Package workflow implements the Workflow Context (C9), Step Handlers
// (C10), Workflow Scheduler (C11), and Workflow Telemetry (C12): the
// execution engine that walks a WorkflowDefinition over a resolved DOM.
package workflow

import (
	"sync"
	"time"

	"github.com/dgxrun/weave/pkg/dom"
)

// entry is one stored context binding.
type entry struct {
	value     any
	mask      bool
	expiresAt *time.Time
}

// Context is the in-memory, path-keyed store threaded through a
// workflow run. Paths are opaque dotted strings: no nested structural
// interpretation is performed, matching the accepted contract.
type Context struct {
	mu      sync.Mutex
	entries map[string]entry
	parent  *Context
	// shadowed marks names a foreach child scope has bound, discarded
	// on scope exit (Close) regardless of whether the parent already
	// held a value for that name.
	shadowed map[string]bool
	now      func() time.Time
	elements *elementBindings
}

// SetOptions configures a single Set call.
type SetOptions struct {
	TTLMs int
	Mask  bool
}

// NewContext returns an empty root context. now defaults to time.Now
// when nil, overridable for deterministic TTL tests.
func NewContext(now func() time.Time) *Context {
	if now == nil {
		now = time.Now
	}
	return &Context{entries: make(map[string]entry), now: now}
}

// Get reads path, honoring TTL expiry (lazily deleting expired entries).
func (c *Context) Get(path string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(path)
}

func (c *Context) getLocked(path string) (any, bool) {
	e, ok := c.entries[path]
	if ok {
		if e.expiresAt != nil && c.now().After(*e.expiresAt) {
			delete(c.entries, path)
			ok = false
		}
	}
	if ok {
		return e.value, true
	}
	if c.parent != nil && !c.shadows(path) {
		return c.parent.Get(path)
	}
	return nil, false
}

func (c *Context) shadows(path string) bool {
	return c.shadowed != nil && c.shadowed[path]
}

// Set writes path. A foreach child scope records path as shadowed so
// Close() discards it regardless of ttl/mask.
func (c *Context) Set(path string, value any, opts SetOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{value: value, mask: opts.Mask}
	if opts.TTLMs > 0 {
		t := c.now().Add(time.Duration(opts.TTLMs) * time.Millisecond)
		e.expiresAt = &t
	}
	c.entries[path] = e
	if c.shadowed != nil {
		c.shadowed[path] = true
	}
}

// Delete removes path from this scope only.
func (c *Context) Delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Merge writes every key of obj as a top-level path, non-masked,
// without TTL.
func (c *Context) Merge(obj map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range obj {
		c.entries[k] = entry{value: v}
		if c.shadowed != nil {
			c.shadowed[k] = true
		}
	}
}

// Snapshot returns a flattened, redaction-aware copy of every visible
// binding (own scope over parent), excluding expired entries. Masked
// values are replaced with sanitize.Masked by the caller, not here:
// Snapshot returns raw values plus the set of masked keys so callers
// can apply whatever redaction policy the boundary needs.
type Snapshot struct {
	Values  map[string]any
	Masked  map[string]bool
}

func (c *Context) Snapshot() Snapshot {
	out := Snapshot{Values: make(map[string]any), Masked: make(map[string]bool)}
	c.collect(out)
	return out
}

func (c *Context) collect(out Snapshot) {
	if c.parent != nil {
		c.parent.collect(out)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.expiresAt != nil && c.now().After(*e.expiresAt) {
			continue
		}
		out.Values[k] = e.value
		out.Masked[k] = e.mask
	}
}

// NewChildScope opens a foreach child scope shadowing this context.
// Names set within the child (including `as`/indexVar bindings) are
// discarded entirely when Close is called, whether the run succeeds
// or fails.
func (c *Context) NewChildScope() *Context {
	return &Context{
		entries:  make(map[string]entry),
		parent:   c,
		shadowed: make(map[string]bool),
		now:      c.now,
	}
}

// Close discards every name this child scope has bound. A root context
// (no parent) is a no-op.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.shadowed {
		delete(c.entries, k)
		delete(c.shadowed, k)
	}
}

// elementBindings is a side-table of context-stored DOM elements,
// consulted by the Scroll Container Detector's context-key stage (C4
// stage 4). Elements themselves are never part of Snapshot/Merge.
type elementBindings struct {
	mu     sync.Mutex
	byPath map[string]dom.Element
}

// BindElement stores a resolved element under path for later container
// lookups; it does not participate in Get/Set/Snapshot.
func (c *Context) BindElement(path string, el dom.Element) {
	c.elementsOnce()
	c.elements.mu.Lock()
	defer c.elements.mu.Unlock()
	c.elements.byPath[path] = el
}

// ElementByKey implements scroll.ContextLookup.
func (c *Context) ElementByKey(path string) (dom.Element, bool) {
	c.elementsOnce()
	c.elements.mu.Lock()
	defer c.elements.mu.Unlock()
	el, ok := c.elements.byPath[path]
	if ok {
		return el, true
	}
	if c.parent != nil {
		return c.parent.ElementByKey(path)
	}
	return nil, false
}

func (c *Context) elementsOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.elements == nil {
		c.elements = &elementBindings{byPath: make(map[string]dom.Element)}
	}
}
