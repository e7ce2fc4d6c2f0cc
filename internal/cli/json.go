package cli

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/platformsh/platform-cli/internal/errors"
)

// Machine mode flag - when true, outputs JSON and suppresses human-friendly decorations
var machineMode bool

// envelopeWritten records that this run already wrote a JSON envelope.
var envelopeWritten bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound    = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeToolstackNotFound = "TOOLSTACK_NOT_FOUND"
	ErrCodeBuildFailed       = "BUILD_FAILED"
	ErrCodeInstallFailed     = "INSTALL_FAILED"
	ErrCodeArchiveFailed     = "ARCHIVE_FAILED"
	ErrCodeVCSFailed         = "VCS_FAILED"
	ErrCodeLockHeld          = "LOCK_HELD"
	ErrCodeCommandFailed     = "COMMAND_FAILED"
	ErrCodeUnknown           = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	env := JSONEnvelope{
		Success: true,
		Data:    data,
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONError writes an error response to the writer.
func WriteJSONError(w io.Writer, code, message, suggestion string, details interface{}) error {
	env := JSONEnvelope{
		Success: false,
		Error: &JSONError{
			Code:       code,
			Message:    message,
			Suggestion: suggestion,
			Details:    details,
		},
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONFailure writes an unsuccessful response that still carries data,
// for commands that produce a report even when they fail.
func WriteJSONFailure(w io.Writer, err error, data interface{}) error {
	env := JSONEnvelope{
		Success: false,
		Data:    data,
		Error:   ErrorToJSON(err),
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	env := JSONEnvelope{
		Success: false,
		Error:   ErrorToJSON(err),
	}
	return writeJSONEnvelope(w, env)
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	envelopeWritten = true
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var e *errors.Error
	if errors.As(err, &e) {
		message, suggestion := describeError(e)
		return &JSONError{
			Code:       mapErrorCode(e.Code, e.Message),
			Message:    message,
			Suggestion: suggestion,
		}
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	switch internalCode {
	case errors.ErrConfig:
		// Distinguish between not found and invalid
		msgLower := strings.ToLower(message)
		if strings.Contains(msgLower, "not found") || strings.Contains(msgLower, "couldn't find") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrToolstack:
		return ErrCodeToolstackNotFound
	case errors.ErrBuild:
		return ErrCodeBuildFailed
	case errors.ErrInstall:
		return ErrCodeInstallFailed
	case errors.ErrArchive:
		return ErrCodeArchiveFailed
	case errors.ErrVCS:
		return ErrCodeVCSFailed
	case errors.ErrLock:
		return ErrCodeLockHeld
	case errors.ErrExec:
		return ErrCodeCommandFailed
	}

	return ErrCodeUnknown
}

// describeError flattens a chain of structured errors into one line,
// "outer: inner: cause", and returns the first suggestion along the chain.
// A joined cause ends the chain; its parts are reported separately.
func describeError(err error) (message, suggestion string) {
	var parts []string
	for err != nil {
		if _, joined := err.(interface{ Unwrap() []error }); joined {
			break
		}
		e, ok := err.(*errors.Error)
		if !ok {
			parts = append(parts, strings.TrimSpace(err.Error()))
			break
		}
		parts = append(parts, e.Message)
		if suggestion == "" {
			suggestion = e.Suggestion
		}
		err = e.Cause
	}
	return strings.Join(parts, ": "), suggestion
}
