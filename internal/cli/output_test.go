package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOK(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeOK(buf, map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestWriteFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeFailure(buf, map[string]int{"failed": 2}, "E_TEST_FAILED", "2 scenario(s) failed"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, "2 scenario(s) failed", resp.Error.Message)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "E101",
		Message: "rule name is required",
		Details: map[string]string{"field": "rules[0].name"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "E101", parsed["code"])
	assert.Equal(t, "rule name is required", parsed["message"])
	assert.NotNil(t, parsed["details"])
}

func TestExitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "plain",
			err:      NewExitError(ExitFailure, "validation failed"),
			wantCode: ExitFailure,
			wantMsg:  "validation failed",
		},
		{
			name:     "wrapped",
			err:      WrapExitError(ExitCommandError, "failed to open journal", errors.New("disk full")),
			wantCode: ExitCommandError,
			wantMsg:  "failed to open journal: disk full",
		},
		{
			name:     "wrapped_twice",
			err:      fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "inner")),
			wantCode: ExitCommandError,
			wantMsg:  "outer: inner",
		},
		{
			name:     "not_exit_error",
			err:      errors.New("boom"),
			wantCode: ExitFailure,
			wantMsg:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, GetExitCode(tt.err))
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := WrapExitError(ExitCommandError, "msg", cause)
	assert.ErrorIs(t, err, cause)
}
