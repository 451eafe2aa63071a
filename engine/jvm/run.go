package jvm

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/spf13/afero"

	"penchy/engine/core"
	"penchy/engine/pipeline"
	"penchy/pkg/logger"
)

// Fs is the filesystem Run creates its captured stdout/stderr files on.
// Production processes leave this as the OS filesystem; tests substitute
// afero.NewMemMapFs() to avoid touching disk, the same afero.Fs seam the
// teacher's own test suites use.
var Fs afero.Fs = afero.NewOsFs()

// Runner abstracts process execution so Run can be exercised without
// spawning a real JVM in unit tests.
type Runner interface {
	Run(ctx context.Context, cmdline []string, stdout, stderr afero.File) (exitCode int, err error)
}

// execRunner spawns cmdline as a real child process.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, cmdline []string, stdout, stderr afero.File) (int, error) {
	if len(cmdline) == 0 {
		return 0, fmt.Errorf("empty command line")
	}
	cmd := exec.CommandContext(ctx, cmdline[0], cmdline[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	*target = ee
	return true
}

// DefaultRunner is the Runner Run uses unless a test overrides it.
var DefaultRunner Runner = execRunner{}

// Run executes the configured JVM per spec.md §4.3:
//  1. fail JVMNotConfiguredError if no classpath or no workload is set;
//  2. run prehooks (jvm-level, then tool-level, then workload-level);
//  3. spawn the child with stdout/stderr redirected to two freshly created,
//     persisted temp files in the current working directory;
//  4. append exit_code/stdout-path/stderr-path to the workload's
//     accumulators;
//  5. on non-zero exit, log stderr, run the posthooks and fail
//     JVMExecutionError;
//  6. run posthooks in the same (jvm, tool, workload) order — but only if
//     the process successfully spawned, whatever its exit code (hook
//     discipline: posthooks are skipped on a prehook or spawn failure).
func (j *JVM) Run(ctx context.Context) error {
	return j.runCmdline(ctx, j.Cmdline())
}

// runCmdline is Run's body, parameterized over the assembled command line
// so WrappedJVM can reuse the precondition checks, hook discipline and
// output wiring while substituting its own wrapper-prefixed Cmdline.
func (j *JVM) runCmdline(ctx context.Context, cmdline []string) error {
	if len(j.classpath) == 0 {
		return core.NewJVMNotConfiguredError("no classpath configured")
	}
	if j.workload == nil {
		return core.NewJVMNotConfiguredError("no workload configured")
	}

	prehooks, posthooks := j.hooks()

	if err := pipeline.RunHooks(ctx, prehooks); err != nil {
		return err
	}

	stdout, err := afero.TempFile(Fs, ".", "penchy-stdout-")
	if err != nil {
		return fmt.Errorf("create stdout capture file: %w", err)
	}
	defer stdout.Close()
	stderr, err := afero.TempFile(Fs, ".", "penchy-stderr-")
	if err != nil {
		return fmt.Errorf("create stderr capture file: %w", err)
	}
	defer stderr.Close()

	exitCode, runErr := DefaultRunner.Run(ctx, cmdline, stdout, stderr)
	if runErr != nil {
		return fmt.Errorf("spawn jvm: %w", runErr)
	}

	if base, ok := workloadBase(j.workload); ok {
		base.Emit("exit_code", exitCode)
		base.Emit("stdout", stdout.Name())
		base.Emit("stderr", stderr.Name())
	}

	if exitCode != 0 {
		stderrContents, _ := afero.ReadFile(Fs, stderr.Name())
		log := logger.FromContext(ctx)
		log.Error("jvm exited with a non-zero status", "exit_code", exitCode, "stderr", string(stderrContents))
		if hookErr := pipeline.RunHooks(ctx, posthooks); hookErr != nil {
			log.Error("posthook failed after a non-zero jvm exit", "error", hookErr)
		}
		return core.NewJVMExecutionError(exitCode, string(stderrContents))
	}

	return pipeline.RunHooks(ctx, posthooks)
}

// hooks returns the jvm-then-tool-then-workload ordered hook lists
// (original_source/penchy/jobs/jvms.py::_get_hooks).
func (j *JVM) hooks() (pre, post []pipeline.Hook) {
	pre = append(pre, j.Prehooks...)
	post = append(post, j.Posthooks...)
	if j.tool != nil {
		if toolHooks, ok := elementHooks(j.tool); ok {
			pre = append(pre, toolHooks.pre...)
			post = append(post, toolHooks.post...)
		}
	}
	if j.workload != nil {
		if wlHooks, ok := elementHooks(j.workload); ok {
			pre = append(pre, wlHooks.pre...)
			post = append(post, wlHooks.post...)
		}
	}
	return pre, post
}

type hookSource struct {
	pre, post []pipeline.Hook
}

// elementHooks extracts an ArgumentElement's prehooks/posthooks when it
// embeds pipeline.Base (Workload and Tool implementations in
// engine/workload and engine/filters do).
func elementHooks(e ArgumentElement) (hookSource, bool) {
	h, ok := e.(interface {
		ElementHooks() (pre, post []pipeline.Hook)
	})
	if !ok {
		return hookSource{}, false
	}
	pre, post := h.ElementHooks()
	return hookSource{pre: pre, post: post}, true
}

// workloadBase exposes the workload's Base for Emit, when it embeds one.
func workloadBase(e ArgumentElement) (*pipeline.Base, bool) {
	b, ok := e.(interface{ AsBase() *pipeline.Base })
	if !ok {
		return nil, false
	}
	return b.AsBase(), true
}
