// Package selector implements the cascading, scope-aware strategy
// engine that resolves a logical key to a live element: the Strategy
// Executor (C1), the Selector Resolver (C2), and Resolver Telemetry
// (C3).
package selector

import (
	"strings"
	"time"

	"github.com/dgxrun/weave/pkg/dom"
)

// Element is the DOM element type the resolver returns; re-exported so
// callers of this package rarely need to import pkg/dom directly.
type Element = dom.Element

// LogicalKey is an opaque identifier within a SelectorMap. The
// validator (external) warns on keys outside [A-Za-z][A-Za-z0-9_.:-]*;
// the resolver itself accepts any non-empty string.
type LogicalKey = string

// TryKind is the fixed priority order role < name < label < text <
// dataAttr < testId < css < xpath.
type TryKind string

const (
	TryRole     TryKind = "role"
	TryName     TryKind = "name"
	TryLabel    TryKind = "label"
	TryText     TryKind = "text"
	TryDataAttr TryKind = "dataAttr"
	TryTestID   TryKind = "testId"
	TryCSS      TryKind = "css"
	TryXPath    TryKind = "xpath"
)

// PriorityOrder ranks the eight strategy kinds for entries that need a
// stable sort independent of declaration order (e.g. merge dedupe).
var PriorityOrder = map[TryKind]int{
	TryRole: 0, TryName: 1, TryLabel: 2, TryText: 3,
	TryDataAttr: 4, TryTestID: 5, TryCSS: 6, TryXPath: 7,
}

// SelectorTry is a tagged variant over the eight location strategies.
// Exactly one payload field is populated, matching Kind.
type SelectorTry struct {
	Kind TryKind `json:"kind" yaml:"kind"`

	// role
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// shared with role/text strategies:
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`

	// label/text refinement
	Exact               bool `json:"exact,omitempty" yaml:"exact,omitempty"`
	CaseSensitive       bool `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty"`
	NormalizeWhitespace *bool `json:"normalizeWhitespace,omitempty" yaml:"normalizeWhitespace,omitempty"`

	// dataAttr
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Value     string `json:"value,omitempty" yaml:"value,omitempty"`

	// testId
	TestID string `json:"testId,omitempty" yaml:"testId,omitempty"`

	// css
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`

	// xpath
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`

	// Metadata mirrors entry-level metadata, per-try.
	StabilityScore float64  `json:"stabilityScore,omitempty" yaml:"stabilityScore,omitempty"`
	Tags           []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// NormalizesWhitespace reports the effective default: unset means true.
func (t SelectorTry) NormalizesWhitespace() bool {
	if t.NormalizeWhitespace == nil {
		return true
	}
	return *t.NormalizeWhitespace
}

// TestIDAttribute returns the configured attribute, defaulting to
// "data-testid".
func (t SelectorTry) TestIDAttribute() string {
	if t.Attribute != "" {
		return t.Attribute
	}
	return "data-testid"
}

// CanonicalKey returns a structural identity for dedupe purposes,
// covering only the non-metadata fields (Kind + its payload).
func (t SelectorTry) CanonicalKey() string {
	switch t.Kind {
	case TryRole:
		return string(TryRole) + "|" + t.Role + "|" + t.Name + "|" + t.Label + "|" + t.Text
	case TryName:
		return string(TryName) + "|" + t.Name
	case TryLabel:
		return string(TryLabel) + "|" + t.Label + boolStr(t.CaseSensitive)
	case TryText:
		return string(TryText) + "|" + t.Text + boolStr(t.Exact) + boolStr(t.CaseSensitive)
	case TryDataAttr:
		return string(TryDataAttr) + "|" + t.Attribute + "|" + t.Value
	case TryTestID:
		return string(TryTestID) + "|" + t.TestID + "|" + t.TestIDAttribute()
	case TryCSS:
		return string(TryCSS) + "|" + t.Selector
	case TryXPath:
		return string(TryXPath) + "|" + t.Expression
	default:
		return string(t.Kind)
	}
}

func boolStr(b bool) string {
	if b {
		return "|1"
	}
	return "|0"
}

// SelectorEntry is an ordered sequence of tries, plus an optional scope
// and metadata.
type SelectorEntry struct {
	Tries          []SelectorTry `json:"tries" yaml:"tries"`
	ScopeKey       LogicalKey    `json:"scopeKey,omitempty" yaml:"scopeKey,omitempty"`
	StabilityScore float64       `json:"stabilityScore,omitempty" yaml:"stabilityScore,omitempty"`
	Tags           []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Notes          string        `json:"notes,omitempty" yaml:"notes,omitempty"`
	Description    string        `json:"description,omitempty" yaml:"description,omitempty"`
	LastUpdatedAt  *time.Time    `json:"lastUpdatedAt,omitempty" yaml:"lastUpdatedAt,omitempty"`
}

// SelectorMap is the read-only, loaded mapping used by a run.
type SelectorMap map[LogicalKey]SelectorEntry

// MergeEntries merges two entries for the same key: concatenated try
// lists, ordered by strategy priority, deduplicated by CanonicalKey,
// and tag lists unioned per the Open-Question resolution recorded in
// DESIGN.md (union, dedupe, cap 10, drop blank).
func MergeEntries(a, b SelectorEntry) SelectorEntry {
	seen := make(map[string]bool)
	var tries []SelectorTry
	for _, t := range append(append([]SelectorTry{}, a.Tries...), b.Tries...) {
		k := t.CanonicalKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		tries = append(tries, t)
	}
	sortByPriority(tries)

	merged := a
	merged.Tries = tries
	merged.Tags = mergeTags(a.Tags, b.Tags)
	return merged
}

func sortByPriority(tries []SelectorTry) {
	for i := 1; i < len(tries); i++ {
		for j := i; j > 0 && PriorityOrder[tries[j-1].Kind] > PriorityOrder[tries[j].Kind]; j-- {
			tries[j-1], tries[j] = tries[j], tries[j-1]
		}
	}
}

func mergeTags(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, tag := range l {
			if len(strings.TrimSpace(tag)) == 0 {
				continue
			}
			if seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
			if len(out) == 10 {
				return out
			}
		}
	}
	return out
}

// ResolveAttempt records one strategy's outcome during a resolve call.
type ResolveAttempt struct {
	Try       SelectorTry `json:"try"`
	Success   bool        `json:"success"`
	MatchedN  int         `json:"matchedN"`
}

// ScopeInfo records how the effective query root was determined.
type ScopeInfo struct {
	Key  LogicalKey `json:"key,omitempty"`
	Root string     `json:"root"` // "ambient" | "scoped" | "fallback"
}

// ResolveResult is the outcome of a resolve call. Element is nil iff no
// attempt succeeded.
type ResolveResult struct {
	Key        LogicalKey       `json:"key"`
	Element    Element          `json:"-"`
	Attempts   []ResolveAttempt `json:"attempts"`
	ResolvedBy *SelectorTry     `json:"resolvedBy,omitempty"`
	Scope      *ScopeInfo       `json:"scope,omitempty"`
	Entry      *SelectorEntry   `json:"entry,omitempty"`
}

// Resolved reports whether the result produced a live element.
func (r ResolveResult) Resolved() bool { return r.Element != nil }
