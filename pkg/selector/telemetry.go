package selector

import (
	"log/slog"

	wlog "github.com/dgxrun/weave/internal/log"
	"github.com/dgxrun/weave/pkg/hud"
	"github.com/dgxrun/weave/pkg/sanitize"
)

// EventKind is one of the three resolver telemetry event kinds.
type EventKind string

const (
	EventAttempt EventKind = "attempt"
	EventSuccess EventKind = "success"
	EventMiss    EventKind = "miss"
)

// Event is a single structured resolver telemetry record.
type Event struct {
	Kind           EventKind
	Key            LogicalKey
	ScopeKey       LogicalKey
	AttemptIndex   int // 1-based
	AttemptCount   int
	Strategy       TryKind
	Success        bool
	MatchedN       int
	StabilityScore float64
	ScopeUnique    bool
	Tags           []string
	Attempts       []ResolveAttempt // present on miss
}

// Callbacks lets a caller observe resolver events directly, per the
// external telemetry observer interface.
type Callbacks struct {
	OnAttempt func(Event)
	OnSuccess func(Event)
	OnMiss    func(Event)
}

// Telemetry fans resolver events out to a structured logger, caller
// callbacks, and the HUD sink. Every sink is isolated: a panic or error
// in one must never affect another or the resolver's control flow.
type Telemetry struct {
	Logger    *slog.Logger
	Callbacks Callbacks
	HUD       hud.Sink
	// DisableHUDOnMiss suppresses the one-line HUD notification the
	// spec otherwise enqueues for every miss.
	DisableHUDOnMiss bool
}

// NewTelemetry returns a Telemetry with a no-op logger when logger is nil.
func NewTelemetry(logger *slog.Logger, hudSink hud.Sink, cb Callbacks) *Telemetry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Telemetry{Logger: logger, Callbacks: cb, HUD: hudSink}
}

func (t *Telemetry) emit(ev Event) {
	if t == nil {
		return
	}
	defer func() { recover() }()

	log := wlog.WithLogicalKey(t.Logger, ev.Key)
	switch ev.Kind {
	case EventAttempt:
		log.Debug("resolver attempt", "strategy", ev.Strategy, "index", ev.AttemptIndex, "of", ev.AttemptCount, "success", ev.Success, "matched", ev.MatchedN)
		t.safeCallback(t.Callbacks.OnAttempt, ev)
	case EventSuccess:
		log.Info("resolver success", "strategy", ev.Strategy, "attempts", ev.AttemptCount)
		t.safeCallback(t.Callbacks.OnSuccess, ev)
	case EventMiss:
		log.Warn("resolver miss", "attempts", summarizeAttempts(ev.Attempts))
		t.safeCallback(t.Callbacks.OnMiss, ev)
		if !t.DisableHUDOnMiss && t.HUD != nil {
			t.pushHUDMiss(ev)
		}
	}
}

func (t *Telemetry) safeCallback(fn func(Event), ev Event) {
	if fn == nil {
		return
	}
	defer func() { recover() }()
	fn(ev)
}

func (t *Telemetry) pushHUDMiss(ev Event) {
	defer func() { recover() }()
	desc := "tried: "
	for i, a := range ev.Attempts {
		if i > 0 {
			desc += ", "
		}
		desc += string(a.Try.Kind)
	}
	t.HUD.Push(hud.Notification{
		Title:       "[DGX] selector miss: " + ev.Key,
		Description: desc,
		Level:       hud.LevelWarn,
		Metadata:    sanitize.MaskMap(map[string]any{"key": ev.Key}),
	})
}

func summarizeAttempts(attempts []ResolveAttempt) []string {
	out := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := string(a.Try.Kind)
		if a.Success {
			s += ":hit"
		} else {
			s += ":miss"
		}
		out = append(out, s)
	}
	return out
}
