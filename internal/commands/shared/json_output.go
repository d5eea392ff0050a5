package shared

import (
	"encoding/json"
	"os"
)

// JSONResponse is the base envelope for --json command output.
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// JSONError is a structured error entry within a JSON response.
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StepID     string `json:"stepId,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// EmitJSON marshals response to stdout as indented JSON.
func EmitJSON(response any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(response)
}

// EmitJSONError emits a failure envelope for command with the given
// structured errors.
func EmitJSONError(command string, errs []JSONError) error {
	type errorResponse struct {
		JSONResponse
		Errors []JSONError `json:"errors"`
	}
	return EmitJSON(errorResponse{
		JSONResponse: JSONResponse{Version: "1.0", Command: command, Success: false},
		Errors:       errs,
	})
}
