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

package log

import (
	"log/slog"
	"time"
)

// StepRequest describes a workflow step attempt for logging purposes.
type StepRequest struct {
	// StepKind is the step's kind discriminant (e.g. "click", "waitFor").
	StepKind string

	// RunID is the workflow run this step belongs to.
	RunID string

	// StepID is the step's own id, if declared.
	StepID string

	// Attempt is the 1-based attempt number within the step's retry policy.
	Attempt int

	// Metadata contains additional request metadata, pre-sanitized by
	// the caller (see pkg/sanitize).
	Metadata map[string]interface{}
}

// StepResponse describes the outcome of a logged step attempt.
type StepResponse struct {
	Success bool

	Error string

	DurationMs int64

	Metadata map[string]interface{}
}

// LogStepAttempt logs a step attempt as it begins.
func LogStepAttempt(logger *slog.Logger, req *StepRequest) {
	attrs := []any{
		"event", "step_attempt",
		"step_kind", req.StepKind,
		"run_id", req.RunID,
		"attempt", req.Attempt,
	}

	if req.StepID != "" {
		attrs = append(attrs, "step_id", req.StepID)
	}

	for k, v := range req.Metadata {
		attrs = append(attrs, k, v)
	}

	logger.Debug("workflow step attempt", attrs...)
}

// LogStepOutcome logs a step attempt's outcome.
func LogStepOutcome(logger *slog.Logger, req *StepRequest, resp *StepResponse) {
	attrs := []any{
		"event", "step_outcome",
		"step_kind", req.StepKind,
		"run_id", req.RunID,
		"success", resp.Success,
		"duration_ms", resp.DurationMs,
	}

	if req.StepID != "" {
		attrs = append(attrs, "step_id", req.StepID)
	}

	if resp.Error != "" {
		attrs = append(attrs, "error", resp.Error)
	}

	for k, v := range resp.Metadata {
		attrs = append(attrs, k, v)
	}

	level := slog.LevelInfo
	message := "workflow step completed"

	if !resp.Success {
		level = slog.LevelWarn
		message = "workflow step failed"
	}

	logger.Log(nil, level, message, attrs...)
}

// StepMiddleware wraps a step handler invocation with timed, structured
// logging, independent of the batched telemetry the scheduler also
// emits (see pkg/workflow's Telemetry): this is the always-on log
// trail; telemetry is the observer-facing event stream.
type StepMiddleware struct {
	logger *slog.Logger
}

// NewStepMiddleware creates a new step logging middleware.
func NewStepMiddleware(logger *slog.Logger) *StepMiddleware {
	return &StepMiddleware{
		logger: logger,
	}
}

// Handler wraps a function that executes a step attempt, logging its
// start and outcome.
func (m *StepMiddleware) Handler(req *StepRequest, handler func() error) error {
	start := time.Now()

	LogStepAttempt(m.logger, req)

	err := handler()

	duration := time.Since(start).Milliseconds()

	resp := &StepResponse{
		Success:    err == nil,
		DurationMs: duration,
	}

	if err != nil {
		resp.Error = err.Error()
	}

	LogStepOutcome(m.logger, req, resp)

	return err
}

// HandlerWithMetadata wraps a step handler that also returns metadata
// (e.g. contextUpdates) to attach to the outcome log line.
func (m *StepMiddleware) HandlerWithMetadata(req *StepRequest, handler func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	start := time.Now()

	LogStepAttempt(m.logger, req)

	metadata, err := handler()

	duration := time.Since(start).Milliseconds()

	resp := &StepResponse{
		Success:    err == nil,
		DurationMs: duration,
		Metadata:   metadata,
	}

	if err != nil {
		resp.Error = err.Error()
	}

	LogStepOutcome(m.logger, req, resp)

	return metadata, err
}
