package workflow

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dgxrun/weave/pkg/clock"
	"github.com/dgxrun/weave/pkg/hud"
	"github.com/dgxrun/weave/pkg/sanitize"
)

// StepEventKind is one lifecycle phase of a single step attempt.
type StepEventKind string

const (
	StepEventPending StepEventKind = "pending"
	StepEventAttempt StepEventKind = "attempt"
	StepEventSuccess StepEventKind = "success"
	StepEventSkipped StepEventKind = "skipped"
	StepEventFailure StepEventKind = "failure"
)

// RunEventKind is one run-level lifecycle phase, emitted synchronously
// (never batched, unlike step events).
type RunEventKind string

const (
	RunStarted   RunEventKind = "runStarted"
	RunCompleted RunEventKind = "runCompleted"
	RunFailed    RunEventKind = "runFailed"
	RunCancelled RunEventKind = "runCancelled"
)

// elementSummary is the sanitized stand-in for a DOM element in
// telemetry payloads: tag, id, and up to 5 classes, never the live
// handle itself.
type elementSummary struct {
	Tag     string
	ID      string
	Classes []string
}

func summarizeClasses(classAttr string) []string {
	fields := strings.Fields(classAttr)
	if len(fields) > 5 {
		fields = fields[:5]
	}
	return fields
}

// StepEvent is a single buffered step telemetry record.
type StepEvent struct {
	Kind       StepEventKind
	RunID      string
	StepID     string
	StepKind   StepKind
	Attempt    int
	Timestamp  int64 // ms, caller-supplied (clock injected, never wall time directly)
	Notes      string
	Data       map[string]any
	Error      error
}

// RunEvent is a single synchronous run-level telemetry record.
type RunEvent struct {
	Kind           RunEventKind
	RunID          string
	WorkflowID     string
	Timestamp      int64
	CompletedSteps int
	DurationMs     int64
	Error          error
	LastStepIndex  int
}

// StepObserver receives a batch of step events in timestamp order.
// Observer failures are swallowed; a panicking observer never corrupts
// telemetry for the others.
type StepObserver func(batch []StepEvent)

// RunObserver receives a single run event, synchronously.
type RunObserver func(ev RunEvent)

// sanitizeEvent masks sensitive-keyed data values. Other Data values,
// including the element summaries handlers attach, pass through as
// they are (handlers put summaries, never live elements, in Data).
func sanitizeEvent(ev StepEvent) StepEvent {
	if ev.Data != nil {
		ev.Data = sanitize.MaskMap(ev.Data)
	}
	return ev
}

// Telemetry buffers step events and flushes them on the next
// animation-frame tick (or a fixed timer fallback), fanning the batch
// out to every registered StepObserver in timestamp order. Run events
// bypass buffering entirely.
type Telemetry struct {
	mu            sync.Mutex
	buffer        []StepEvent
	stepObservers []StepObserver
	runObservers  []RunObserver
	frames        clock.FrameScheduler
	hudSink       hud.Sink
}

// NewTelemetry returns a Telemetry that flushes on frames (or a 16ms
// Ticker fallback when frames is nil).
func NewTelemetry(frames clock.FrameScheduler, hudSink hud.Sink) *Telemetry {
	if frames == nil {
		frames = clock.NewTicker(clock.DefaultFramePeriod)
	}
	return &Telemetry{frames: frames, hudSink: hudSink}
}

// ObserveSteps registers a batch observer.
func (t *Telemetry) ObserveSteps(obs StepObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stepObservers = append(t.stepObservers, obs)
}

// ObserveRuns registers a run-level observer.
func (t *Telemetry) ObserveRuns(obs RunObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runObservers = append(t.runObservers, obs)
}

// EmitStep buffers a step event for the next flush.
func (t *Telemetry) EmitStep(ev StepEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buffer = append(t.buffer, sanitizeEvent(ev))
}

// EmitRun emits a run event synchronously and, for lifecycle phases,
// pushes a HUD notification.
func (t *Telemetry) EmitRun(ev RunEvent) {
	t.mu.Lock()
	observers := append([]RunObserver(nil), t.runObservers...)
	t.mu.Unlock()

	for _, obs := range observers {
		t.safeRunObserve(obs, ev)
	}
	if t.hudSink != nil {
		t.pushRunHUD(ev)
	}
}

func (t *Telemetry) safeRunObserve(obs RunObserver, ev RunEvent) {
	defer func() { recover() }()
	obs(ev)
}

func (t *Telemetry) pushRunHUD(ev RunEvent) {
	defer func() { recover() }()
	level := hud.LevelInfo
	if ev.Kind == RunFailed || ev.Kind == RunCancelled {
		level = hud.LevelWarn
	}
	t.hudSink.Push(hud.Notification{
		Title: "[DGX] " + string(ev.Kind) + ": " + ev.RunID,
		Level: level,
	})
}

// Flush drains the buffer and fans it out, in timestamp order, to
// every step observer. Safe to call directly in tests without running
// the frame loop.
func (t *Telemetry) Flush() {
	t.mu.Lock()
	if len(t.buffer) == 0 {
		t.mu.Unlock()
		return
	}
	batch := t.buffer
	t.buffer = nil
	observers := append([]StepObserver(nil), t.stepObservers...)
	t.mu.Unlock()

	sort.SliceStable(batch, func(i, j int) bool { return batch[i].Timestamp < batch[j].Timestamp })

	for _, obs := range observers {
		t.safeStepObserve(obs, batch)
	}
	if t.hudSink != nil {
		t.pushStepHUD(batch)
	}
}

func (t *Telemetry) safeStepObserve(obs StepObserver, batch []StepEvent) {
	defer func() { recover() }()
	obs(batch)
}

func (t *Telemetry) pushStepHUD(batch []StepEvent) {
	defer func() { recover() }()
	for _, ev := range batch {
		if ev.Kind != StepEventSuccess && ev.Kind != StepEventFailure {
			continue
		}
		level := hud.LevelInfo
		if ev.Kind == StepEventFailure {
			level = hud.LevelWarn
		}
		t.hudSink.Push(hud.Notification{
			Title: "[DGX] step " + string(ev.Kind) + ": " + string(ev.StepKind),
			Level: level,
		})
	}
}

// RunFlushLoop drives Flush on every frame tick until ctx-like stop is
// requested via the done channel; callers typically run this in its
// own goroutine for the duration of a workflow run.
func (t *Telemetry) RunFlushLoop(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			t.Flush()
			return
		default:
		}
		ctxDone := make(chan struct{})
		go func() {
			_ = t.frames.NextFrame(context.Background())
			close(ctxDone)
		}()
		select {
		case <-stop:
			t.Flush()
			return
		case <-ctxDone:
			t.Flush()
		}
	}
}

// Observer is the interface form of the StepObserver/RunObserver pair,
// for callers that want a single value to register rather than two
// closures. OnFlush fires whenever a step batch is about to be handed
// to OnSteps, before sanitization concerns beyond what Telemetry
// already applies.
type Observer interface {
	OnRun(ev RunEvent)
	OnSteps(batch []StepEvent)
	OnFlush()
}

// ObserveAll registers obs as both a RunObserver and a StepObserver,
// wrapping OnFlush around the step callback.
func (t *Telemetry) ObserveAll(obs Observer) {
	t.ObserveRuns(obs.OnRun)
	t.ObserveSteps(func(batch []StepEvent) {
		obs.OnFlush()
		obs.OnSteps(batch)
	})
}

// Recorder is an in-memory timeline keyed by run id. Its Observe method
// is a StepObserver; Telemetry does not register a Recorder on its own.
type Recorder struct {
	mu       sync.Mutex
	timelines map[string][]StepEvent
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{timelines: make(map[string][]StepEvent)}
}

// Observe implements StepObserver.
func (r *Recorder) Observe(batch []StepEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range batch {
		r.timelines[ev.RunID] = append(r.timelines[ev.RunID], ev)
	}
}

// Timeline returns a copy of the recorded events for runID.
func (r *Recorder) Timeline(runID string) []StepEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StepEvent(nil), r.timelines[runID]...)
}
