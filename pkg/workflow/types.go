package workflow

import (
	"github.com/dgxrun/weave/pkg/selector"
)

// StepKind is the discriminant over the ~20 step kinds.
type StepKind string

const (
	StepClick          StepKind = "click"
	StepHover          StepKind = "hover"
	StepFocus          StepKind = "focus"
	StepBlur           StepKind = "blur"
	StepType           StepKind = "type"
	StepSelect         StepKind = "select"
	StepWaitFor        StepKind = "waitFor"
	StepWaitText       StepKind = "waitText"
	StepWaitVisible    StepKind = "waitVisible"
	StepWaitHidden     StepKind = "waitHidden"
	StepWaitForIdle    StepKind = "waitForIdle"
	StepDelay          StepKind = "delay"
	StepLog            StepKind = "log"
	StepSetContext     StepKind = "setContext"
	StepCapture        StepKind = "capture"
	StepAssert         StepKind = "assert"
	StepCollectList    StepKind = "collectList"
	StepScrollIntoView StepKind = "scrollIntoView"
	StepScrollUntil    StepKind = "scrollUntil"
	StepIf             StepKind = "if"
	StepForeach        StepKind = "foreach"
	StepRetry          StepKind = "retry"
	StepRun            StepKind = "run"
)

// Timing is the shared per-step timing metadata, resolved against
// definition defaults, runtime overrides, then global defaults per the
// scheduler's effective-timing precedence.
type Timing struct {
	TimeoutMs    *int `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	IntervalMs   *int `json:"intervalMs,omitempty" yaml:"intervalMs,omitempty"`
	Retries      *int `json:"retries,omitempty" yaml:"retries,omitempty"`
	BackoffMs    *int `json:"backoffMs,omitempty" yaml:"backoffMs,omitempty"`
	MaxBackoffMs *int `json:"maxBackoffMs,omitempty" yaml:"maxBackoffMs,omitempty"`
	JitterMs     *int `json:"jitterMs,omitempty" yaml:"jitterMs,omitempty"`
}

// ValueSource resolves a runtime value via literal, context path,
// environment variable, template, or logical key, per the `type`,
// `setContext`, and `capture` handlers' shared resolution contract.
type ValueSource struct {
	Literal    *string             `json:"literal,omitempty" yaml:"literal,omitempty"`
	ContextKey string              `json:"contextKey,omitempty" yaml:"contextKey,omitempty"`
	EnvName    string              `json:"envName,omitempty" yaml:"envName,omitempty"`
	Template   string              `json:"template,omitempty" yaml:"template,omitempty"`
	LogicalKey selector.LogicalKey `json:"logicalKey,omitempty" yaml:"logicalKey,omitempty"`
}

// CaptureFrom names the extraction kind for the `capture` step.
type CaptureFromKind string

const (
	CaptureText  CaptureFromKind = "text"
	CaptureAttr  CaptureFromKind = "attr"
	CaptureHTML  CaptureFromKind = "html"
	CaptureValue CaptureFromKind = "value"
	CaptureRegex CaptureFromKind = "regex"
	// CaptureJQ extracts a field from JSON text via a jq expression
	// (supplemented: itchyny/gojq, see internal/jq).
	CaptureJQ CaptureFromKind = "jq"
)

type CaptureFrom struct {
	Kind      CaptureFromKind `json:"kind" yaml:"kind"`
	Attribute string          `json:"attribute,omitempty" yaml:"attribute,omitempty"` // for attr
	Pattern   string          `json:"pattern,omitempty" yaml:"pattern,omitempty"`     // for regex
	Group     int             `json:"group,omitempty" yaml:"group,omitempty"`        // for regex, capture group index
	JQExpr    string          `json:"jqExpr,omitempty" yaml:"jqExpr,omitempty"`      // for jq
}

// AssertKind is the tagged variant over assertion flavors.
type AssertKind string

const (
	AssertTextEquals    AssertKind = "textEquals"
	AssertTextContains  AssertKind = "textContains"
	AssertVisible       AssertKind = "visible"
	AssertHidden        AssertKind = "hidden"
	AssertContextEquals AssertKind = "contextEquals"
	AssertExpression    AssertKind = "expression"
)

type Assertion struct {
	Kind       AssertKind `json:"kind" yaml:"kind"`
	Text       string     `json:"text,omitempty" yaml:"text,omitempty"`
	ContextKey string     `json:"contextKey,omitempty" yaml:"contextKey,omitempty"`
	Value      any        `json:"value,omitempty" yaml:"value,omitempty"`
	Expression string     `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// CollectTo names the serialization format for collectList items.
type CollectTo string

const (
	CollectText   CollectTo = "text"
	CollectHTML   CollectTo = "html"
	CollectAttrs  CollectTo = "attrs"
	CollectObject CollectTo = "object"
)

// ConditionKind is the tagged variant over `if` condition flavors.
type ConditionKind string

const (
	CondContext     ConditionKind = "context"
	CondElement     ConditionKind = "element"
	CondElementText ConditionKind = "elementText"
	CondURL         ConditionKind = "url"
	CondExpression  ConditionKind = "expression"
	CondAllOf       ConditionKind = "allOf"
	CondAnyOf       ConditionKind = "anyOf"
	CondNot         ConditionKind = "not"
)

// Condition is a recursive tagged variant: allOf/anyOf/not nest other
// Conditions; the leaf kinds carry their own payload.
type Condition struct {
	Kind ConditionKind `json:"kind" yaml:"kind"`

	ContextKey   string `json:"contextKey,omitempty" yaml:"contextKey,omitempty"`
	ContextValue any    `json:"contextValue,omitempty" yaml:"contextValue,omitempty"`

	LogicalKey selector.LogicalKey `json:"logicalKey,omitempty" yaml:"logicalKey,omitempty"`
	Text       string              `json:"text,omitempty" yaml:"text,omitempty"`

	URLSubstring string `json:"urlSubstring,omitempty" yaml:"urlSubstring,omitempty"`

	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`

	Children []Condition `json:"children,omitempty" yaml:"children,omitempty"` // allOf/anyOf
	Child    *Condition  `json:"child,omitempty" yaml:"child,omitempty"`       // not
}

// RetryPolicy configures the `retry` step's re-execution of its
// nested block.
type RetryPolicy struct {
	Retries      int `json:"retries" yaml:"retries"`
	BackoffMs    int `json:"backoffMs,omitempty" yaml:"backoffMs,omitempty"`
	MaxBackoffMs int `json:"maxBackoffMs,omitempty" yaml:"maxBackoffMs,omitempty"`
	JitterMs     int `json:"jitterMs,omitempty" yaml:"jitterMs,omitempty"`
}

// Step is a tagged variant over the ~20 step kinds. Shared metadata
// fields are always present; exactly the fields relevant to Kind are
// populated.
type Step struct {
	Kind StepKind `json:"kind" yaml:"kind"`

	ID              string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name            string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags            []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Timing          Timing   `json:"timing,omitempty" yaml:"timing,omitempty"`
	Debug           bool     `json:"debug,omitempty" yaml:"debug,omitempty"`
	ContinueOnError bool     `json:"continueOnError,omitempty" yaml:"continueOnError,omitempty"`

	// click/hover/focus/blur/waitFor-family/scrollIntoView/scrollUntil/
	// setContext(logicalKey variant)/capture/collectList/assert(visible)
	LogicalKey selector.LogicalKey `json:"logicalKey,omitempty" yaml:"logicalKey,omitempty"`

	// type
	Value      ValueSource `json:"value,omitempty" yaml:"value,omitempty"`
	ClearFirst bool        `json:"clearFirst,omitempty" yaml:"clearFirst,omitempty"`
	DelayMs    int         `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
	MaskOutput bool        `json:"maskOutput,omitempty" yaml:"maskOutput,omitempty"`

	// select
	SelectValue    string   `json:"selectValue,omitempty" yaml:"selectValue,omitempty"`
	SelectLabel    string   `json:"selectLabel,omitempty" yaml:"selectLabel,omitempty"`
	SelectIndex    *int     `json:"selectIndex,omitempty" yaml:"selectIndex,omitempty"`
	SelectMultiple []string `json:"selectMultiple,omitempty" yaml:"selectMultiple,omitempty"`

	// waitFor-family
	PresenceThreshold int    `json:"presenceThreshold,omitempty" yaml:"presenceThreshold,omitempty"`
	ScrollerKey       string `json:"scrollerKey,omitempty" yaml:"scrollerKey,omitempty"`
	StaleRetryCap     int    `json:"staleRetryCap,omitempty" yaml:"staleRetryCap,omitempty"`
	WaitText          string `json:"waitText,omitempty" yaml:"waitText,omitempty"`
	WaitTextExact     bool   `json:"waitTextExact,omitempty" yaml:"waitTextExact,omitempty"`
	WaitTextPattern   string `json:"waitTextPattern,omitempty" yaml:"waitTextPattern,omitempty"`
	IdleMs            int    `json:"idleMs,omitempty" yaml:"idleMs,omitempty"`
	IdleMaxWindowMs   int    `json:"idleMaxWindowMs,omitempty" yaml:"idleMaxWindowMs,omitempty"`
	IdleHeartbeatMs   int    `json:"idleHeartbeatMs,omitempty" yaml:"idleHeartbeatMs,omitempty"`

	// delay
	DelayOnlyMs int `json:"delayOnlyMs,omitempty" yaml:"delayOnlyMs,omitempty"`

	// log
	LogMessage string `json:"logMessage,omitempty" yaml:"logMessage,omitempty"`
	LogLevel   string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// setContext / capture
	To         string      `json:"to,omitempty" yaml:"to,omitempty"`
	From       CaptureFrom `json:"from,omitempty" yaml:"from,omitempty"`
	SetOptions SetOptions  `json:"setOptions,omitempty" yaml:"setOptions,omitempty"`

	// assert
	Assert Assertion `json:"assert,omitempty" yaml:"assert,omitempty"`

	// collectList
	ListItemsKey string    `json:"listItemsKey,omitempty" yaml:"listItemsKey,omitempty"`
	ListCSS      string    `json:"listCss,omitempty" yaml:"listCss,omitempty"`
	Limit        int       `json:"limit,omitempty" yaml:"limit,omitempty"`
	DedupeBy     string    `json:"dedupeBy,omitempty" yaml:"dedupeBy,omitempty"`
	CollectTo    CollectTo `json:"collectTo,omitempty" yaml:"collectTo,omitempty"`

	// scrollIntoView / scrollUntil
	ScrollBlock   string                 `json:"scrollBlock,omitempty" yaml:"scrollBlock,omitempty"`
	ScrollInline  string                 `json:"scrollInline,omitempty" yaml:"scrollInline,omitempty"`
	ScrollMargin  ScrollMarginOptions    `json:"scrollMargin,omitempty" yaml:"scrollMargin,omitempty"`
	ScrollOptions ScrollUntilStepOptions `json:"scrollOptions,omitempty" yaml:"scrollOptions,omitempty"`

	// if
	Condition Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Then      []Step    `json:"then,omitempty" yaml:"then,omitempty"`
	Else      []Step    `json:"else,omitempty" yaml:"else,omitempty"`

	// foreach
	ForeachListKey     string `json:"foreachListKey,omitempty" yaml:"foreachListKey,omitempty"`
	ForeachAs          string `json:"foreachAs,omitempty" yaml:"foreachAs,omitempty"`
	ForeachIndexVar    string `json:"foreachIndexVar,omitempty" yaml:"foreachIndexVar,omitempty"`
	ForeachBody        []Step `json:"foreachBody,omitempty" yaml:"foreachBody,omitempty"`
	ForeachConcurrency int    `json:"foreachConcurrency,omitempty" yaml:"foreachConcurrency,omitempty"`

	// retry
	RetryPolicy RetryPolicy `json:"retryPolicy,omitempty" yaml:"retryPolicy,omitempty"`
	RetryBody   []Step      `json:"retryBody,omitempty" yaml:"retryBody,omitempty"`

	// run (reserved, not implemented)
	RunWorkflowRef string `json:"runWorkflowRef,omitempty" yaml:"runWorkflowRef,omitempty"`
}

// ScrollMarginOptions mirrors pkg/scroll's Margin, declared here so
// step authoring does not need to import pkg/scroll directly.
type ScrollMarginOptions struct {
	Top    float64 `json:"top,omitempty" yaml:"top,omitempty"`
	Bottom float64 `json:"bottom,omitempty" yaml:"bottom,omitempty"`
	Left   float64 `json:"left,omitempty" yaml:"left,omitempty"`
	Right  float64 `json:"right,omitempty" yaml:"right,omitempty"`
}

// ScrollUntilStepOptions mirrors pkg/scroll's UntilOptions, declared
// here so step authoring does not need to import pkg/scroll directly.
type ScrollUntilStepOptions struct {
	Direction    string              `json:"direction,omitempty" yaml:"direction,omitempty"`
	StepPx       int                 `json:"stepPx,omitempty" yaml:"stepPx,omitempty"`
	DelayMs      int                 `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
	TimeoutMs    int                 `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	MaxAttempts  int                 `json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty"`
	MinDeltaPx   int                 `json:"minDeltaPx,omitempty" yaml:"minDeltaPx,omitempty"`
	StopKind     string              `json:"stopKind,omitempty" yaml:"stopKind,omitempty"`
	StopTarget   selector.LogicalKey `json:"stopTarget,omitempty" yaml:"stopTarget,omitempty"`
	ListSelector string              `json:"listSelector,omitempty" yaml:"listSelector,omitempty"`
	MinGrowth    int                 `json:"minGrowth,omitempty" yaml:"minGrowth,omitempty"`
	// ThresholdPx is the "end" stop condition's tolerance: satisfied
	// when maxScrollTop - scrollTop <= ThresholdPx. Zero takes the
	// pkg/scroll default (2px).
	ThresholdPx int    `json:"thresholdPx,omitempty" yaml:"thresholdPx,omitempty"`
	Predicate   string `json:"predicate,omitempty" yaml:"predicate,omitempty"` // expression source, evaluated via pkg/expression
}

// Definition is a named, ordered sequence of steps plus shared timing
// defaults.
type Definition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
	Timing      Timing `json:"timing,omitempty" yaml:"timing,omitempty"`
}
