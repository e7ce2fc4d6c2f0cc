package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineMode_DefaultValue(t *testing.T) {
	// Reset to default
	oldMode := machineMode
	defer func() { machineMode = oldMode }()

	machineMode = false
	assert.False(t, MachineMode())

	machineMode = true
	assert.True(t, MachineMode())
}

func TestWriteJSONEnvelope_MarksWritten(t *testing.T) {
	old := envelopeWritten
	defer func() { envelopeWritten = old }()

	envelopeWritten = false
	require.NoError(t, WriteJSONSuccess(&bytes.Buffer{}, nil))
	assert.True(t, envelopeWritten)
}

func TestWriteJSONSuccess_BasicData(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]string{"key": "value"}
	err := WriteJSONSuccess(&buf, data)
	require.NoError(t, err)

	var env JSONEnvelope
	err = json.Unmarshal(buf.Bytes(), &env)
	require.NoError(t, err)

	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.NotNil(t, env.Data)

	// Verify data content
	dataMap, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "value", dataMap["key"])
}

func TestWriteJSONSuccess_ComplexData(t *testing.T) {
	var buf bytes.Buffer

	data := struct {
		Name  string   `json:"name"`
		Count int      `json:"count"`
		Items []string `json:"items"`
	}{
		Name:  "test",
		Count: 42,
		Items: []string{"a", "b", "c"},
	}

	err := WriteJSONSuccess(&buf, data)
	require.NoError(t, err)

	var env JSONEnvelope
	err = json.Unmarshal(buf.Bytes(), &env)
	require.NoError(t, err)

	assert.True(t, env.Success)
	dataMap, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "test", dataMap["name"])
	assert.Equal(t, float64(42), dataMap["count"]) // JSON numbers are float64
}

func TestWriteJSONSuccess_NilData(t *testing.T) {
	var buf bytes.Buffer

	err := WriteJSONSuccess(&buf, nil)
	require.NoError(t, err)

	var env JSONEnvelope
	err = json.Unmarshal(buf.Bytes(), &env)
	require.NoError(t, err)

	assert.True(t, env.Success)
	assert.Nil(t, env.Data)
	assert.Nil(t, env.Error)
}

func TestWriteJSONError_AllFields(t *testing.T) {
	var buf bytes.Buffer

	details := map[string]string{"app": "web"}
	err := WriteJSONError(&buf, ErrCodeInstallFailed, "composer install failed", "Run composer install manually", details)
	require.NoError(t, err)

	var env JSONEnvelope
	err = json.Unmarshal(buf.Bytes(), &env)
	require.NoError(t, err)

	assert.False(t, env.Success)
	assert.Nil(t, env.Data)
	require.NotNil(t, env.Error)

	assert.Equal(t, ErrCodeInstallFailed, env.Error.Code)
	assert.Equal(t, "composer install failed", env.Error.Message)
	assert.Equal(t, "Run composer install manually", env.Error.Suggestion)

	detailsMap, ok := env.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "web", detailsMap["app"])
}

func TestWriteJSONError_NoSuggestion(t *testing.T) {
	var buf bytes.Buffer

	err := WriteJSONError(&buf, ErrCodeUnknown, "Something went wrong", "", nil)
	require.NoError(t, err)

	var env JSONEnvelope
	err = json.Unmarshal(buf.Bytes(), &env)
	require.NoError(t, err)

	assert.False(t, env.Success)
	assert.Equal(t, ErrCodeUnknown, env.Error.Code)
	assert.Empty(t, env.Error.Suggestion)
	assert.Nil(t, env.Error.Details)
}

func TestWriteJSONFromError_NilError(t *testing.T) {
	var buf bytes.Buffer

	err := WriteJSONFromError(&buf, nil)
	require.NoError(t, err)

	var env JSONEnvelope
	err = json.Unmarshal(buf.Bytes(), &env)
	require.NoError(t, err)

	assert.False(t, env.Success)
	assert.Nil(t, env.Error)
}

func TestWriteJSONFromError_GenericError(t *testing.T) {
	var buf bytes.Buffer

	goErr := fmt.Errorf("something went wrong")
	err := WriteJSONFromError(&buf, goErr)
	require.NoError(t, err)

	var env JSONEnvelope
	err = json.Unmarshal(buf.Bytes(), &env)
	require.NoError(t, err)

	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeUnknown, env.Error.Code)
	assert.Equal(t, "something went wrong", env.Error.Message)
}

func TestWriteJSONFromError_StructuredError(t *testing.T) {
	var buf bytes.Buffer

	structured := errors.New(errors.ErrConfig, "Project config not found", "Run this from inside a project folder")
	err := WriteJSONFromError(&buf, structured)
	require.NoError(t, err)

	var env JSONEnvelope
	err = json.Unmarshal(buf.Bytes(), &env)
	require.NoError(t, err)

	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeConfigNotFound, env.Error.Code)
	assert.Equal(t, "Project config not found", env.Error.Message)
	assert.Equal(t, "Run this from inside a project folder", env.Error.Suggestion)
}

func TestWriteJSONFromError_WrappedStructuredError(t *testing.T) {
	var buf bytes.Buffer

	innerErr := errors.New(errors.ErrVCS, "Not on a branch", "Check out a branch, or pass --environment.")
	wrappedErr := fmt.Errorf("resolving environment: %w", innerErr)
	err := WriteJSONFromError(&buf, wrappedErr)
	require.NoError(t, err)

	var env JSONEnvelope
	err = json.Unmarshal(buf.Bytes(), &env)
	require.NoError(t, err)

	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeVCSFailed, env.Error.Code)
	assert.Equal(t, "Not on a branch", env.Error.Message)
}

func TestErrorToJSON_NilReturnsNil(t *testing.T) {
	result := ErrorToJSON(nil)
	assert.Nil(t, result)
}

func TestErrorToJSON_GenericError(t *testing.T) {
	err := fmt.Errorf("generic error message")
	result := ErrorToJSON(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeUnknown, result.Code)
	assert.Equal(t, "generic error message", result.Message)
	assert.Empty(t, result.Suggestion)
}

func TestErrorToJSON_AllInternalErrorCodes(t *testing.T) {
	tests := []struct {
		name         string
		internalCode string
		message      string
		wantCode     string
	}{
		{
			name:         "config not found",
			internalCode: errors.ErrConfig,
			message:      "Config file not found",
			wantCode:     ErrCodeConfigNotFound,
		},
		{
			name:         "config couldn't find",
			internalCode: errors.ErrConfig,
			message:      "Couldn't find config file",
			wantCode:     ErrCodeConfigNotFound,
		},
		{
			name:         "config invalid",
			internalCode: errors.ErrConfig,
			message:      "Config file has invalid syntax",
			wantCode:     ErrCodeConfigInvalid,
		},
		{
			name:         "toolstack error",
			internalCode: errors.ErrToolstack,
			message:      "Toolstack not found: php:laravel",
			wantCode:     ErrCodeToolstackNotFound,
		},
		{
			name:         "build error",
			internalCode: errors.ErrBuild,
			message:      "1 of 2 applications failed to build",
			wantCode:     ErrCodeBuildFailed,
		},
		{
			name:         "install error",
			internalCode: errors.ErrInstall,
			message:      "composer install failed",
			wantCode:     ErrCodeInstallFailed,
		},
		{
			name:         "archive error",
			internalCode: errors.ErrArchive,
			message:      "Couldn't extract archive",
			wantCode:     ErrCodeArchiveFailed,
		},
		{
			name:         "vcs error",
			internalCode: errors.ErrVCS,
			message:      "Not on a branch",
			wantCode:     ErrCodeVCSFailed,
		},
		{
			name:         "lock error",
			internalCode: errors.ErrLock,
			message:      "Lock is held",
			wantCode:     ErrCodeLockHeld,
		},
		{
			name:         "exec error",
			internalCode: errors.ErrExec,
			message:      "Command failed",
			wantCode:     ErrCodeCommandFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.internalCode, tt.message, "some suggestion")
			result := ErrorToJSON(err)

			require.NotNil(t, result)
			assert.Equal(t, tt.wantCode, result.Code)
			assert.Equal(t, tt.message, result.Message)
		})
	}
}

func TestErrorToJSON_ConfigNotFoundVsInvalid(t *testing.T) {
	tests := []struct {
		message  string
		wantCode string
	}{
		{"Config file not found", ErrCodeConfigNotFound},
		{"couldn't find config", ErrCodeConfigNotFound},
		{"NOT FOUND anywhere", ErrCodeConfigNotFound},
		{"Config has invalid syntax", ErrCodeConfigInvalid},
		{"Failed to parse config", ErrCodeConfigInvalid},
		{"Schema validation error", ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			err := errors.New(errors.ErrConfig, tt.message, "")
			result := ErrorToJSON(err)

			assert.Equal(t, tt.wantCode, result.Code)
		})
	}
}

func TestMapErrorCode_UnknownCode(t *testing.T) {
	result := mapErrorCode("UNKNOWN_INTERNAL_CODE", "Some message")
	assert.Equal(t, ErrCodeUnknown, result)
}

func TestJSONEnvelope_Structure(t *testing.T) {
	// Test that JSON envelope marshals with correct field names
	env := JSONEnvelope{
		Success: true,
		Data:    "test",
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"success":true`)
	assert.Contains(t, string(data), `"data":"test"`)
	assert.NotContains(t, string(data), `"error"`) // omitempty
}

func TestJSONEnvelope_ErrorStructure(t *testing.T) {
	env := JSONEnvelope{
		Success: false,
		Error: &JSONError{
			Code:       "TEST_CODE",
			Message:    "Test message",
			Suggestion: "Test suggestion",
			Details:    map[string]string{"key": "value"},
		},
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"success":false`)
	assert.Contains(t, string(data), `"code":"TEST_CODE"`)
	assert.Contains(t, string(data), `"message":"Test message"`)
	assert.Contains(t, string(data), `"suggestion":"Test suggestion"`)
	assert.NotContains(t, string(data), `"data"`) // omitempty
}

func TestJSONError_OmitsEmptyFields(t *testing.T) {
	jsonErr := JSONError{
		Code:    "TEST",
		Message: "Test",
		// Suggestion and Details empty
	}

	data, err := json.Marshal(jsonErr)
	require.NoError(t, err)

	assert.NotContains(t, string(data), `"suggestion"`)
	assert.NotContains(t, string(data), `"details"`)
}

func TestWriteJSONEnvelope_Formatting(t *testing.T) {
	var buf bytes.Buffer

	err := WriteJSONSuccess(&buf, map[string]string{"test": "value"})
	require.NoError(t, err)

	output := buf.String()

	// Should be indented with 2 spaces
	assert.Contains(t, output, "\n  ")
	// Should end with newline
	assert.True(t, output[len(output)-1] == '\n')
}

func TestErrorCodes_AreUnique(t *testing.T) {
	codes := []string{
		ErrCodeConfigNotFound,
		ErrCodeConfigInvalid,
		ErrCodeToolstackNotFound,
		ErrCodeBuildFailed,
		ErrCodeInstallFailed,
		ErrCodeArchiveFailed,
		ErrCodeVCSFailed,
		ErrCodeLockHeld,
		ErrCodeCommandFailed,
		ErrCodeUnknown,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "duplicate error code: %s", code)
		seen[code] = true
	}
}

func TestErrorCodes_Format(t *testing.T) {
	// All error codes should be UPPER_SNAKE_CASE
	codes := []string{
		ErrCodeConfigNotFound,
		ErrCodeConfigInvalid,
		ErrCodeToolstackNotFound,
		ErrCodeBuildFailed,
		ErrCodeInstallFailed,
		ErrCodeArchiveFailed,
		ErrCodeVCSFailed,
		ErrCodeLockHeld,
		ErrCodeCommandFailed,
		ErrCodeUnknown,
	}

	for _, code := range codes {
		// Should not contain lowercase letters
		for _, r := range code {
			if r >= 'a' && r <= 'z' {
				t.Errorf("error code %q contains lowercase letter", code)
				break
			}
		}
	}
}

func TestWriteJSONFailure_CarriesData(t *testing.T) {
	var buf bytes.Buffer
	err := errors.New(errors.ErrBuild, "1 of 2 application(s) failed to build", "")
	require.NoError(t, WriteJSONFailure(&buf, err, map[string]int{"built": 1}))

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, false, env["success"])
	assert.Equal(t, map[string]interface{}{"built": float64(1)}, env["data"])

	errObj, ok := env["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ErrCodeBuildFailed, errObj["code"])
}

func TestErrorToJSON_FlattensCauses(t *testing.T) {
	inner := errors.New(errors.ErrToolstack, "Toolstack not found: nope", "Use a known toolstack")
	outer := errors.WrapWithCode(inner, errors.ErrToolstack, "Failed to resolve the toolstack", "")

	result := ErrorToJSON(outer)
	assert.Equal(t, ErrCodeToolstackNotFound, result.Code)
	assert.Equal(t, "Failed to resolve the toolstack: Toolstack not found: nope", result.Message)
	assert.Equal(t, "Use a known toolstack", result.Suggestion)
}

func TestErrorToJSON_PlainCause(t *testing.T) {
	err := errors.WrapWithCode(fmt.Errorf("exit status 2\n"), errors.ErrInstall, "composer install failed", "Check composer.json")

	result := ErrorToJSON(err)
	assert.Equal(t, "composer install failed: exit status 2", result.Message)
	assert.Equal(t, "Check composer.json", result.Suggestion)
}

func TestErrorToJSON_StopsAtJoinedCause(t *testing.T) {
	err := errors.WrapWithCode(
		errors.Join(errors.New(errors.ErrBuild, "a failed", ""), errors.New(errors.ErrBuild, "b failed", "")),
		errors.ErrBuild, "2 of 2 application(s) failed to build", "")

	assert.Equal(t, "2 of 2 application(s) failed to build", ErrorToJSON(err).Message)
}
