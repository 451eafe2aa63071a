// Package dependency resolves the external artifacts (spec.md §3, §4.4
// step 1) a pipeline element declares via core.Dependency into classpath
// entries on disk, ahead of a composition's invocations running.
package dependency

import (
	"context"

	"penchy/engine/core"
)

// Entry is one resolved dependency: the local path the artifact (or, for
// Unpack dependencies, its extracted directory) now lives at.
type Entry struct {
	core.Dependency
	Path string
}

// Resolver resolves a set of dependencies into local paths, deduplicating
// by core.Dependency.Key() so the same artifact is never fetched twice
// within a resolver's lifetime.
type Resolver interface {
	Resolve(ctx context.Context, deps []core.Dependency) ([]Entry, error)
}

// Classpath joins every resolved entry's Path with the OS path-list
// separator, in the order the dependencies were requested — the form
// JVM.AddToClasspath accepts directly.
func Classpath(entries []Entry) string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return joinPathList(paths)
}
