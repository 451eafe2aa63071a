package jvm

import (
	"context"
	"path/filepath"

	"github.com/google/shlex"

	"penchy/engine/core"
	"penchy/engine/pipeline"
)

// WrappedJVM is both a JVM and a pipeline.Element (spec.md §4.3): it
// overrides Cmdline to prefix a wrapper command (e.g. a leak-checker), and
// advertises the wrapper-produced artifact(s) as its own outputs, appended
// to Out() by its own posthook. Grounded on
// original_source/penchy/jobs/jvms.py::ValgrindJVM, generalized from a
// single hardcoded wrapper to any wrapper command.
type WrappedJVM struct {
	*JVM
	pipeline.Base

	wrapperPath    string
	wrapperOptions []string
	logArgTemplate string // e.g. "--log-file=%s"
	logPath        string
}

var wrappedJVMOutputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "wrapper_log", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of("")}},
)

// NewWrappedJVM builds a WrappedJVM that runs wrapperPath (with
// wrapperOptions, shell-split) ahead of the ordinary JVM command line,
// writing its own log to logPath. logArgTemplate is a single-verb fmt
// template for the wrapper's log-file flag, e.g. "--log-file=%s".
func NewWrappedJVM(name, path, options, wrapperPath, wrapperOptions, logArgTemplate, logPath string) (*WrappedJVM, error) {
	inner, err := New(path, options)
	if err != nil {
		return nil, err
	}
	tokens, err := shlex.Split(wrapperOptions)
	if err != nil {
		return nil, core.NewWrongInputError("wrapper options are not valid shell syntax", map[string]any{
			"wrapper_path": wrapperPath, "wrapper_options": wrapperOptions,
		})
	}
	w := &WrappedJVM{
		JVM:            inner,
		Base:           pipeline.NewBase(name, nil, wrappedJVMOutputs),
		wrapperPath:    wrapperPath,
		wrapperOptions: tokens,
		logArgTemplate: logArgTemplate,
		logPath:        logPath,
	}
	w.JVM.Posthooks = append(w.JVM.Posthooks, func(context.Context) error {
		abs, absErr := filepath.Abs(w.logPath)
		if absErr != nil {
			abs = w.logPath
		}
		w.Base.Emit("wrapper_log", abs)
		return nil
	})
	return w, nil
}

// Cmdline prefixes the wrapper command ahead of the inner JVM's own
// command line.
func (w *WrappedJVM) Cmdline() []string {
	cmd := append([]string{w.wrapperPath}, w.wrapperOptions...)
	cmd = append(cmd, formatLogArg(w.logArgTemplate, w.logPath))
	return append(cmd, w.JVM.Cmdline()...)
}

func formatLogArg(template, path string) string {
	const verb = "%s"
	idx := -1
	for i := 0; i+len(verb) <= len(template); i++ {
		if template[i:i+len(verb)] == verb {
			idx = i
			break
		}
	}
	if idx < 0 {
		return template
	}
	return template[:idx] + path + template[idx+len(verb):]
}

// Run satisfies pipeline.Element: a WrappedJVM is a start element with no
// typed inputs, so kwargs is always empty. It executes the
// wrapper-prefixed command line rather than JVM.Run's own, reusing the
// inner JVM's precondition checks and hook discipline.
func (w *WrappedJVM) Run(ctx context.Context, _ map[string]any) error {
	return w.JVM.runCmdline(ctx, w.Cmdline())
}
