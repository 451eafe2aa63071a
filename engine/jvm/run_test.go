package jvm

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penchy/engine/core"
)

type stubRunner struct {
	exitCode int
	err      error
	called   bool
}

func (s *stubRunner) Run(_ context.Context, _ []string, _, _ afero.File) (int, error) {
	s.called = true
	return s.exitCode, s.err
}

func withStubRunner(t *testing.T, r *stubRunner) {
	t.Helper()
	prevRunner, prevFs := DefaultRunner, Fs
	DefaultRunner = r
	Fs = afero.NewMemMapFs()
	t.Cleanup(func() {
		DefaultRunner = prevRunner
		Fs = prevFs
	})
}

func TestJVM_Run(t *testing.T) {
	t.Run("Should fail JVMNotConfiguredError without a classpath", func(t *testing.T) {
		withStubRunner(t, &stubRunner{})
		j, err := New("java", "")
		require.NoError(t, err)
		j.SetWorkload(newFakeArgElement("dacapo"))

		runErr := j.Run(context.Background())
		require.Error(t, runErr)
		var coreErr *core.Error
		require.ErrorAs(t, runErr, &coreErr)
		assert.Equal(t, core.KindJVMNotConfigured, coreErr.Kind())
	})

	t.Run("Should fail JVMNotConfiguredError without a workload", func(t *testing.T) {
		withStubRunner(t, &stubRunner{})
		j, err := New("java", "-cp /libs")
		require.NoError(t, err)

		runErr := j.Run(context.Background())
		require.Error(t, runErr)
		var coreErr *core.Error
		require.ErrorAs(t, runErr, &coreErr)
		assert.Equal(t, core.KindJVMNotConfigured, coreErr.Kind())
	})

	t.Run("Should populate the workload's output accumulators on success", func(t *testing.T) {
		withStubRunner(t, &stubRunner{exitCode: 0})
		j, err := New("java", "-cp /libs")
		require.NoError(t, err)
		workload := newFakeArgElement("dacapo")
		j.SetWorkload(workload)

		require.NoError(t, j.Run(context.Background()))
		assert.Equal(t, []any{0}, workload.Out()["exit_code"])
		require.Len(t, workload.Out()["stdout"], 1)
		require.Len(t, workload.Out()["stderr"], 1)
	})

	t.Run("Should fail JVMExecutionError on a non-zero exit code", func(t *testing.T) {
		withStubRunner(t, &stubRunner{exitCode: 1})
		j, err := New("java", "-cp /libs")
		require.NoError(t, err)
		workload := newFakeArgElement("dacapo")
		j.SetWorkload(workload)

		runErr := j.Run(context.Background())
		require.Error(t, runErr)
		var coreErr *core.Error
		require.ErrorAs(t, runErr, &coreErr)
		assert.Equal(t, core.KindJVMExecution, coreErr.Kind())
		assert.Equal(t, 1, coreErr.Details["exit_code"])
	})

	t.Run("Should skip posthooks when a prehook fails", func(t *testing.T) {
		withStubRunner(t, &stubRunner{exitCode: 0})
		j, err := New("java", "-cp /libs")
		require.NoError(t, err)
		j.SetWorkload(newFakeArgElement("dacapo"))

		var order []string
		j.Prehooks = append(j.Prehooks, func(context.Context) error {
			order = append(order, "pre")
			return assertedErr
		})
		j.Posthooks = append(j.Posthooks, func(context.Context) error {
			order = append(order, "post")
			return nil
		})

		runErr := j.Run(context.Background())
		require.Error(t, runErr)
		assert.Equal(t, []string{"pre"}, order, "posthook must not run when a prehook fails")
	})

	t.Run("Should still run posthooks when the exit code is non-zero", func(t *testing.T) {
		withStubRunner(t, &stubRunner{exitCode: 1})
		j, err := New("java", "-cp /libs")
		require.NoError(t, err)
		j.SetWorkload(newFakeArgElement("dacapo"))

		posthookRan := false
		j.Posthooks = append(j.Posthooks, func(context.Context) error {
			posthookRan = true
			return nil
		})

		_ = j.Run(context.Background())
		assert.True(t, posthookRan, "posthooks run whenever the child process spawned, even on a non-zero exit")
	})
}

var assertedErr = core.NewWrongInputError("boom", nil)
