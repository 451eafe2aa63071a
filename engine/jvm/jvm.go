// Package jvm owns the JVM configuration and child-process execution that
// every SystemComposition schedules (spec.md §3, §4.3), grounded on
// original_source/penchy/jobs/jvms.py.
package jvm

import (
	"os"
	"strings"

	"github.com/google/shlex"

	"penchy/engine/core"
	"penchy/engine/pipeline"
)

// ArgumentElement is the subset of pipeline.Element a JVM's workload and
// tool must additionally satisfy: they contribute command-line arguments.
type ArgumentElement interface {
	pipeline.Element
	Arguments() []string
}

// JVM owns an executable path, shell-split options, an extracted classpath,
// an optional tool and workload, and hook lists (spec.md §3).
type JVM struct {
	path        string
	userOptions string
	options     []string
	basepath    string
	classpath   []string

	workload ArgumentElement
	tool     ArgumentElement

	Prehooks  []pipeline.Hook
	Posthooks []pipeline.Hook
	Timeout   int // seconds; 0 means no timeout
}

// New parses options (a shell-escaped string, exactly as the client job
// descriptor writes it) and extracts any trailing -cp/-classpath from it.
func New(path, options string) (*JVM, error) {
	tokens, err := shlex.Split(options)
	if err != nil {
		return nil, core.NewWrongInputError("jvm options are not valid shell syntax", map[string]any{
			"path": path, "options": options,
		})
	}
	return &JVM{
		path:        path,
		userOptions: options,
		options:     tokens,
		basepath:    "/",
		classpath:   extractClasspath(tokens),
	}, nil
}

// SetBasepath overrides the directory the executable path is resolved
// against — Job.RunComposition sets this to the NodeSetting's basepath
// (spec.md §4.4 step 1).
func (j *JVM) SetBasepath(basepath string) { j.basepath = basepath }

// Basepath returns the directory the executable path resolves against.
func (j *JVM) Basepath() string { return j.basepath }

// AddToClasspath appends an OS-path-separator-joined classpath string
// (typically the dependency resolver's result) to the JVM's classpath.
func (j *JVM) AddToClasspath(path string) {
	if path == "" {
		return
	}
	j.classpath = append(j.classpath, strings.Split(path, string(os.PathListSeparator))...)
}

// Classpath returns the current ordered classpath segments.
func (j *JVM) Classpath() []string { return j.classpath }

// SetWorkload assigns the JVM's workload. A composition's JVM has at most
// one.
func (j *JVM) SetWorkload(w ArgumentElement) { j.workload = w }

// Workload returns the configured workload, or nil.
func (j *JVM) Workload() ArgumentElement { return j.workload }

// SetTool assigns the JVM's tool (e.g. a profiler invoked around the
// workload's own invocation).
func (j *JVM) SetTool(t ArgumentElement) { j.tool = t }

// Tool returns the configured tool, or nil.
func (j *JVM) Tool() ArgumentElement { return j.tool }

// Path returns the configured executable path (relative to Basepath, or
// absolute).
func (j *JVM) Path() string { return j.path }

// Options returns the shell-split option tokens.
func (j *JVM) Options() []string { return j.options }

// Equal reports whether j and other would execute the same program: same
// path, same raw options string, and workload/tool set-or-unset
// consistently (spec.md §3).
func (j *JVM) Equal(other *JVM) bool {
	if other == nil {
		return false
	}
	return j.path == other.path &&
		j.userOptions == other.userOptions &&
		(j.workload == nil) == (other.workload == nil) &&
		(j.tool == nil) == (other.tool == nil)
}

// extractClasspath scans tokens right to left: the first -cp/-classpath
// encountered yields the classpath from the token that follows it in
// left-to-right order (i.e. the token immediately after it), so a later
// -cp/-classpath specification overrides an earlier one (spec.md §4.3,
// original_source/penchy/jobs/jvms.py::_extract_classpath).
func extractClasspath(options []string) []string {
	classpath := ""
	prev := ""
	for i := len(options) - 1; i >= 0; i-- {
		tok := options[i]
		if tok == "-cp" || tok == "-classpath" {
			classpath = prev
			break
		}
		prev = tok
	}
	if classpath == "" {
		return nil
	}
	return strings.Split(classpath, string(os.PathListSeparator))
}

// Cmdline assembles the command line in spec.md §4.3's order:
// [basepath+path] ++ options ++ tool.arguments ++ [-classpath, joined] ++
// workload.arguments.
func (j *JVM) Cmdline() []string {
	cmd := []string{joinPath(j.basepath, j.path)}
	cmd = append(cmd, j.options...)
	if j.tool != nil {
		cmd = append(cmd, j.tool.Arguments()...)
	}
	if len(j.classpath) > 0 {
		cmd = append(cmd, "-classpath", strings.Join(j.classpath, string(os.PathListSeparator)))
	}
	if j.workload != nil {
		cmd = append(cmd, j.workload.Arguments()...)
	}
	return cmd
}

// joinPath mirrors Python's os.path.join(basepath, path): an absolute path
// is returned unchanged regardless of basepath (spec.md's "path to jvm
// executable relative to node's basepath (can also be absolute)").
func joinPath(basepath, path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	if basepath == "" {
		return path
	}
	return strings.TrimRight(basepath, "/") + "/" + path
}
