package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Error_Type(t *testing.T) {
	t.Run("Should build from error with code and details", func(t *testing.T) {
		e := NewError(errors.New("boom"), "E1", map[string]any{"k": "v"})
		assert.Equal(t, "boom", e.Error())
		m := e.AsMap()
		assert.Equal(t, "boom", m["message"])
		assert.Equal(t, "E1", m["code"])
		assert.Equal(t, map[string]any{"k": "v"}, m["details"])
	})
	t.Run("Should build from nil error and handle empty/nil cases", func(t *testing.T) {
		e := NewError(nil, "", nil)
		assert.Equal(t, "unknown error", e.Error())
		var enil *Error
		assert.Equal(t, "", enil.Error())
		assert.Nil(t, enil.AsMap())
		assert.Nil(t, (&Error{}).AsMap())
	})
}

func Test_ErrorKinds(t *testing.T) {
	t.Run("Should tag missing-argument errors as type mismatch", func(t *testing.T) {
		e := NewMissingArgError("times")
		assert.Equal(t, KindTypeMismatch, e.Kind())
		assert.Contains(t, e.Error(), "times")
	})
	t.Run("Should tag wrong-input errors for harness parse failures", func(t *testing.T) {
		e := NewWrongInputError("missing DaCapo banner", map[string]any{"workload": "dacapo"})
		assert.Equal(t, KindWrongInput, e.Kind())
	})
	t.Run("Should carry exit code and stderr on JVM execution errors", func(t *testing.T) {
		e := NewJVMExecutionError(1, "boom")
		assert.Equal(t, KindJVMExecution, e.Kind())
		assert.Equal(t, 1, e.Details["exit_code"])
	})
	t.Run("Should support errors.As against the base Error type", func(t *testing.T) {
		wrapped := fmt.Errorf("wrap: %w", NewTimeoutError("abc123"))
		var target *Error
		require.True(t, errors.As(wrapped, &target))
		assert.Equal(t, KindTimeout, target.Kind())
	})
}
