// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid user input, malformed data, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "workflow", "tool", "connector")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "api_key", "database.host")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "LLM request", "workflow step")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Reason is the closed set of step failure causes. Every StepError,
// WaitError, and ScrollError carries one of these; handlers translate
// subsystem-specific errors to a Reason at the step boundary rather
// than leaking a raw Go error type.
type Reason string

const (
	ReasonResolverMiss          Reason = "resolver-miss"
	ReasonTimeout               Reason = "timeout"
	ReasonAssertionFailed       Reason = "assertion-failed"
	ReasonContextMiss           Reason = "context-miss"
	ReasonCancelled             Reason = "cancelled"
	ReasonUnknown               Reason = "unknown"
	ReasonNoChange              Reason = "no_change"
	ReasonPredicateError        Reason = "predicate_error"
	ReasonContainerUnavailable  Reason = "container_unavailable"
	ReasonDOMStableNoMatch      Reason = "dom_stable_no_match"
	ReasonMaxRetries            Reason = "max-retries"
	ReasonNoAdjustment          Reason = "no-adjustment"

	// ReasonVisibilityMismatch and ReasonIdleWindowExceeded are
	// WaitError-only diagnostic codes, outside the closed StepError
	// set; StepFromWait collapses both to ReasonTimeout at the step
	// boundary.
	ReasonVisibilityMismatch   Reason = "visibility-mismatch"
	ReasonIdleWindowExceeded   Reason = "idle-window-exceeded"
)

// StepFromWait maps a WaitError's reason onto the closed StepError
// reason set: every wait code is already a member except the two
// visibility/idle diagnostics, which collapse to ReasonTimeout.
func StepFromWait(r Reason) Reason {
	switch r {
	case ReasonVisibilityMismatch, ReasonIdleWindowExceeded:
		return ReasonTimeout
	default:
		return r
	}
}

// StepError is the structured failure a workflow step handler returns.
// Reason is security-reviewed: Data must never contain a value keyed by
// a sensitive field name (see pkg/sanitize), only already-masked data.
type StepError struct {
	Reason     Reason
	Message    string
	StepKind   string
	StepID     string
	LogicalKey string
	Attempts   int
	ElapsedMs  int64
	Data       map[string]any
}

func (e *StepError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("step %s (%s): %s: %s", e.StepID, e.StepKind, e.Reason, e.Message)
	}
	return fmt.Sprintf("step %s: %s: %s", e.StepKind, e.Reason, e.Message)
}

// ErrorType implements ErrorClassifier.
func (e *StepError) ErrorType() string { return string(e.Reason) }

// IsRetryable implements ErrorClassifier. Cancellation and assertion
// failures are never retried; everything else may be, subject to the
// step's own retry policy.
func (e *StepError) IsRetryable() bool {
	switch e.Reason {
	case ReasonCancelled, ReasonAssertionFailed:
		return false
	default:
		return true
	}
}

// WaitError is returned by pkg/wait when a predicate never becomes
// satisfied, or is cancelled, before the scheduler's deadline.
type WaitError struct {
	Reason    Reason
	Message   string
	Elapsed   time.Duration
	Attempts  int
	Cause     error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait failed (%s) after %d attempt(s) in %v: %s", e.Reason, e.Attempts, e.Elapsed, e.Message)
}

func (e *WaitError) Unwrap() error { return e.Cause }

// ScrollError is returned by pkg/scroll for into-view and scrollUntil
// failures.
type ScrollError struct {
	Reason   Reason
	Message  string
	Attempts int
	Cause    error
}

func (e *ScrollError) Error() string {
	return fmt.Sprintf("scroll failed (%s) after %d attempt(s): %s", e.Reason, e.Attempts, e.Message)
}

func (e *ScrollError) Unwrap() error { return e.Cause }
