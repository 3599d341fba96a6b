// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "with underlying error",
			err:  &UserError{Message: "cannot read recipe", Err: fmt.Errorf("file locked")},
			want: "cannot read recipe: file locked",
		},
		{
			name: "without underlying error",
			err:  &UserError{Message: "invalid input", Err: nil},
			want: "invalid input",
		},
		{
			name: "empty message with underlying error",
			err:  &UserError{Message: "", Err: fmt.Errorf("some error")},
			want: ": some error",
		},
		{
			name: "empty message without underlying error",
			err:  &UserError{Message: "", Err: nil},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUserError_Unwrap(t *testing.T) {
	underlyingErr := fmt.Errorf("underlying error")

	withErr := &UserError{Message: "test", Err: underlyingErr}
	require.Equal(t, underlyingErr, withErr.Unwrap())

	withoutErr := &UserError{Message: "test"}
	require.Nil(t, withoutErr.Unwrap())
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, 0, ExitSuccess)
	assert.Equal(t, 1, ExitConfig)
	assert.Equal(t, 2, ExitIO)
	assert.Equal(t, 3, ExitParse)
	assert.Equal(t, 10, ExitInternal)
}

func TestConstructors(t *testing.T) {
	underlyingErr := fmt.Errorf("underlying error")

	t.Run("NewConfigError", func(t *testing.T) {
		e := NewConfigError("msg", "cause", "fix", underlyingErr)
		require.Equal(t, "msg", e.Message)
		require.Equal(t, "cause", e.Cause)
		require.Equal(t, "fix", e.Fix)
		require.Equal(t, ExitConfig, e.ExitCode)
		require.Equal(t, underlyingErr, e.Err)
	})

	t.Run("NewIOError", func(t *testing.T) {
		e := NewIOError("msg", "cause", "fix", underlyingErr)
		require.Equal(t, ExitIO, e.ExitCode)
	})

	t.Run("NewInternalError", func(t *testing.T) {
		e := NewInternalError("msg", "cause", "fix", underlyingErr)
		require.Equal(t, ExitInternal, e.ExitCode)
	})
}

func TestErrorChain(t *testing.T) {
	t.Run("errors.Is works with UserError", func(t *testing.T) {
		sentinel := fmt.Errorf("sentinel error")
		wrapped := fmt.Errorf("wrapped: %w", sentinel)
		userErr := NewIOError("io error", "cause", "fix", wrapped)

		require.True(t, errors.Is(userErr, sentinel))
	})

	t.Run("errors.As works with UserError", func(t *testing.T) {
		underlyingErr := NewConfigError("config error", "cause", "fix", nil)
		wrappedErr := NewIOError("io error", "cause", "fix", underlyingErr)

		var targetErr *UserError
		require.True(t, errors.As(wrappedErr, &targetErr))
		require.Equal(t, ExitIO, targetErr.ExitCode)
	})

	t.Run("multiple levels of wrapping", func(t *testing.T) {
		baseErr := fmt.Errorf("base error")
		level1 := fmt.Errorf("level 1: %w", baseErr)
		level2 := NewIOError("level 2", "cause", "fix", level1)
		level3 := NewInternalError("level 3", "cause", "fix", level2)

		require.True(t, errors.Is(level3, baseErr))

		var userErr *UserError
		require.True(t, errors.As(level3, &userErr))
		require.Equal(t, ExitInternal, userErr.ExitCode)
	})
}

func TestUserError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want []string
	}{
		{
			name: "full error",
			err: &UserError{
				Message:  "Cannot open recipe",
				Cause:    "the file is a directory",
				Fix:      "point at a .bb file",
				ExitCode: ExitIO,
			},
			want: []string{"Error: Cannot open recipe", "Cause: the file is a directory", "Fix:   point at a .bb file"},
		},
		{
			name: "error without cause",
			err:  &UserError{Message: "Invalid input", Fix: "Use valid format", ExitCode: ExitConfig},
			want: []string{"Error: Invalid input", "Fix:   Use valid format"},
		},
		{
			name: "error without fix",
			err:  &UserError{Message: "Config error", Cause: "missing field", ExitCode: ExitConfig},
			want: []string{"Error: Config error", "Cause: missing field"},
		},
		{
			name: "minimal error",
			err:  &UserError{Message: "Something failed", ExitCode: ExitInternal},
			want: []string{"Error: Something failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Format(true)
			for _, substr := range tt.want {
				assert.Contains(t, got, substr)
			}
		})
	}
}

func TestUserError_Format_NoColor(t *testing.T) {
	oldNoColor := os.Getenv("NO_COLOR")
	defer func() {
		if oldNoColor != "" {
			os.Setenv("NO_COLOR", oldNoColor)
		} else {
			os.Unsetenv("NO_COLOR")
		}
	}()

	err := &UserError{Message: "Test error", Cause: "Test cause", Fix: "Test fix", ExitCode: ExitConfig}

	os.Setenv("NO_COLOR", "1")
	output := err.Format(false)

	assert.NotContains(t, output, "\x1b[")
}

func TestUserError_ToJSON(t *testing.T) {
	err := &UserError{
		Message:  "Invalid configuration",
		Cause:    "Missing required field",
		Fix:      "Run: bbstat init",
		ExitCode: ExitConfig,
	}

	got := err.ToJSON()
	assert.Equal(t, "Invalid configuration", got.Error)
	assert.Equal(t, "Missing required field", got.Cause)
	assert.Equal(t, "Run: bbstat init", got.Fix)
	assert.Equal(t, ExitConfig, got.ExitCode)
}

func TestFatalError_NilDoesNothing(t *testing.T) {
	FatalError(nil, false)
}

func TestFatalError_Formatting(t *testing.T) {
	// FatalError calls os.Exit, so we only exercise the formatting paths it
	// delegates to rather than the function itself.
	err := NewConfigError("bad config", "missing layers", "add --layers", nil)
	require.True(t, strings.HasPrefix(err.Format(true), "Error: bad config"))
}
