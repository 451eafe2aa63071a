// Package job implements Job, the orchestration unit that runs one
// SystemComposition's client-side flow (spec.md §4.4) and the server-side
// results pipeline (spec.md §4.5), validated by Check (spec.md §4.6).
// Grounded on the control flow of original_source/penchy/jobs/job.py's
// Job.run/Job.check, generalized with the SystemFilter/environment
// machinery spec.md adds, and on the teacher's
// engine/domain/workflow/executor + engine/domain/task orchestration
// shape (config/state/transition split — see state.go).
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/segmentio/ksuid"

	"penchy/engine/composition"
	"penchy/engine/core"
	"penchy/engine/dependency"
	"penchy/engine/pipeline"
	"penchy/pkg/logger"
)

// errorKind extracts the core.Error taxonomy kind from err, walking its
// Unwrap chain, or "" if it isn't (or doesn't wrap) one.
func errorKind(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr.Kind()
	}
	return ""
}

// Job is the top-level description of a benchmarking run: the
// compositions to execute on the client side, and the server-side
// aggregation flow run once all compositions have reported back.
type Job struct {
	Source       string
	Compositions []*composition.SystemComposition
	ServerFlow   []pipeline.Edge
	Invocations  int
	Resolver     dependency.Resolver

	tracker *CompositionTracker
}

// New builds a Job. invocations defaults to 1 when given less than 1, per
// workloads.py's own "iterations=1" default convention.
func New(source string, compositions []*composition.SystemComposition, serverFlow []pipeline.Edge, invocations int, resolver dependency.Resolver) *Job {
	if invocations < 1 {
		invocations = 1
	}
	return &Job{
		Source:       source,
		Compositions: compositions,
		ServerFlow:   serverFlow,
		Invocations:  invocations,
		Resolver:     resolver,
		tracker:      NewCompositionTracker(),
	}
}

// Tracker exposes the per-composition state machine for callers that need
// to observe progress.
func (j *Job) Tracker() *CompositionTracker { return j.tracker }

// RunComposition executes one composition's client-side flow end to end
// (spec.md §4.4). send is the raw two-argument transport call; RunComposition
// wraps it with the composition's own hash before handing it to the flow as
// environment.Send.
func (j *Job) RunComposition(ctx context.Context, comp *composition.SystemComposition, send func(hash string, data any) error) error {
	log := logger.FromContext(ctx)
	hash := comp.Hash()
	j.tracker.Set(hash, Transition{State: StateRunningInvocations})

	if err := j.resolveDependencies(ctx, comp); err != nil {
		j.tracker.Set(hash, Transition{State: StateFailed, FailureKind: errorKind(err)})
		return err
	}

	starts := comp.Starts()
	sinkOrder, edgeOrder, err := pipeline.EdgeSort(starts, comp.Flow)
	if err != nil {
		j.tracker.Set(hash, Transition{State: StateFailed, FailureKind: errorKind(err)})
		return err
	}

	for i := 1; i <= j.Invocations; i++ {
		log.Info("running invocation", "composition", hash, "invocation", i)
		if err := runInScopedDir(func() error { return comp.JVM.Run(ctx) }); err != nil {
			j.tracker.Set(hash, Transition{State: StateFailed, FailureKind: errorKind(err)})
			return err
		}
	}

	j.tracker.Set(hash, Transition{State: StateRunningFlow})

	env := &environment{
		sendFn:    func(data any) error { return send(hash, data) },
		jobSource: j.Source,
		basepath:  comp.NodeSetting.Path,
		hasComp:   true,
	}
	if err := runFlow(ctx, sinkOrder, edgeOrder, env); err != nil {
		j.tracker.Set(hash, Transition{State: StateFailed, FailureKind: errorKind(err)})
		return err
	}

	resetAll(append(append([]pipeline.Element(nil), starts...), sinkOrder...))
	j.tracker.Set(hash, Transition{State: StateDone})
	return nil
}

// RunServerPipeline runs the server-side aggregation flow (spec.md §4.5)
// once every composition has reported its result. receive returns the
// aggregated composition-hash→result map; it backs the mandatory Receive
// start's environment.Receive().
func (j *Job) RunServerPipeline(ctx context.Context, receive func() map[string]any) error {
	if len(j.ServerFlow) == 0 {
		return nil
	}

	starts := serverFlowStarts(j.ServerFlow)
	if !hasReceiveStart(starts) {
		return core.NewWrongInputError("server flow has no Receive start", nil)
	}

	sinkOrder, edgeOrder, err := pipeline.EdgeSort(starts, j.ServerFlow)
	if err != nil {
		return err
	}

	env := &environment{receiveFn: receive, jobSource: j.Source}

	for _, s := range starts {
		bundle := map[string]any{}
		if _, ok := s.(pipeline.SystemFilter); ok {
			bundle[pipeline.ReservedEnvironment] = pipeline.Environment(env)
		}
		if err := s.Run(ctx, bundle); err != nil {
			return err
		}
	}
	return runFlow(ctx, sinkOrder, edgeOrder, env)
}

// Check validates the job for plausibility (spec.md §4.6). It replaces
// original_source/penchy/jobs/job.py::Job.check, left as `# FIXME:
// implement me!` there.
func (j *Job) Check(ctx context.Context) error {
	for _, comp := range j.Compositions {
		if comp.JVM.Workload() == nil {
			return core.NewWrongInputError("composition has no workload", map[string]any{"composition": comp.Hash()})
		}
		starts := comp.Starts()
		if len(starts) == 0 {
			return core.NewWrongInputError("composition has no starts", map[string]any{"composition": comp.Hash()})
		}
		if _, _, err := pipeline.EdgeSort(starts, comp.Flow); err != nil {
			return err
		}
		elements := reachableElements(starts, comp.Flow)
		if !anyNamed(elements, "Send") {
			return core.NewWrongInputError("composition has no Send element", map[string]any{"composition": comp.Hash()})
		}
		if anyPlot(elements) {
			return core.NewWrongInputError("composition includes a Plot element", map[string]any{"composition": comp.Hash()})
		}
	}

	if len(j.ServerFlow) > 0 {
		serverStarts := serverFlowStarts(j.ServerFlow)
		if !hasReceiveStart(serverStarts) {
			return core.NewWrongInputError("server flow has no Receive start", nil)
		}
		if _, _, err := pipeline.EdgeSort(serverStarts, j.ServerFlow); err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) resolveDependencies(ctx context.Context, comp *composition.SystemComposition) error {
	comp.JVM.SetBasepath(comp.NodeSetting.Basepath)
	if j.Resolver == nil {
		return nil
	}
	deps := collectDependencies(comp)
	if len(deps) == 0 {
		return nil
	}
	entries, err := j.Resolver.Resolve(ctx, deps)
	if err != nil {
		return err
	}
	comp.JVM.AddToClasspath(dependency.Classpath(entries))
	return nil
}

func collectDependencies(comp *composition.SystemComposition) []core.Dependency {
	elements := reachableElements(comp.Starts(), comp.Flow)
	var deps []core.Dependency
	for _, e := range elements {
		deps = append(deps, e.Dependencies()...)
	}
	return deps
}

// reachableElements returns every distinct element in starts plus every
// edge endpoint in flow.
func reachableElements(starts []pipeline.Element, flow []pipeline.Edge) []pipeline.Element {
	seen := make(map[pipeline.Element]bool)
	var out []pipeline.Element
	add := func(e pipeline.Element) {
		if e == nil || seen[e] {
			return
		}
		seen[e] = true
		out = append(out, e)
	}
	for _, s := range starts {
		add(s)
	}
	for _, e := range flow {
		add(e.Source)
		add(e.Sink)
	}
	return out
}

// anyNamed is the practical "is there a Send" check: Send elements mark
// themselves via pipeline.SystemFilter, but the specific "which
// SystemFilter is a Send" distinction needs a name (or a dedicated
// marker interface engine/filters could add later); Name() is how
// Job.Check recognizes one without engine/job importing engine/filters
// and creating an import cycle through engine/dependency. Names compare
// case-insensitively, so an element named "send" counts as a Send.
func anyNamed(elements []pipeline.Element, want string) bool {
	for _, e := range elements {
		if _, ok := e.(pipeline.SystemFilter); ok && strings.EqualFold(e.Name(), want) {
			return true
		}
	}
	return false
}

func anyPlot(elements []pipeline.Element) bool {
	for _, e := range elements {
		if p, ok := e.(pipeline.PlotElement); ok && p.IsPlot() {
			return true
		}
	}
	return false
}

// serverFlowStarts returns flow's graph roots: elements that never appear
// as a sink. spec.md §4.5 requires at least one of them to be a Receive
// (or merging/extracting receive variant) — hasReceiveStart checks that
// separately, since a root is not required to be a SystemFilter in
// general (spec.md's "or a merging/extracting receive variant" leaves
// room for a plain Filter root that only consumes other roots' outputs).
func serverFlowStarts(flow []pipeline.Edge) []pipeline.Element {
	sinks := make(map[pipeline.Element]bool)
	for _, e := range flow {
		sinks[e.Sink] = true
	}
	seen := make(map[pipeline.Element]bool)
	var starts []pipeline.Element
	for _, e := range flow {
		if sinks[e.Source] || seen[e.Source] {
			continue
		}
		seen[e.Source] = true
		starts = append(starts, e.Source)
	}
	return starts
}

// hasReceiveStart reports whether at least one of starts is a
// pipeline.SystemFilter (spec.md §4.5's Receive-or-variant requirement).
func hasReceiveStart(starts []pipeline.Element) bool {
	for _, s := range starts {
		if _, ok := s.(pipeline.SystemFilter); ok {
			return true
		}
	}
	return false
}

func runFlow(ctx context.Context, sinkOrder []pipeline.Element, edgeOrder []pipeline.Edge, env *environment) error {
	for _, group := range groupBySink(sinkOrder, edgeOrder) {
		bundle, err := pipeline.BuildKeys(group.edges)
		if err != nil {
			return err
		}
		if _, ok := group.sink.(pipeline.SystemFilter); ok {
			bundle[pipeline.ReservedEnvironment] = pipeline.Environment(env)
		}
		if spec := group.sink.Inputs(); spec != nil {
			if _, err := spec.CheckInput(ctx, bundle); err != nil {
				return err
			}
		}
		if err := group.sink.Run(ctx, bundle); err != nil {
			return fmt.Errorf("element %q failed: %w", group.sink.Name(), err)
		}
	}
	return nil
}

type sinkGroup struct {
	sink  pipeline.Element
	edges []pipeline.Edge
}

// groupBySink collects edgeOrder's edges per Sink, keeping their relative
// order, and returns one group per element of sinkOrder, in sinkOrder's
// order. A sink with zero incoming edges gets an empty group (a lone start
// promoted directly to a sink position never happens in this DAG shape,
// but is handled for robustness).
func groupBySink(sinkOrder []pipeline.Element, edgeOrder []pipeline.Edge) []sinkGroup {
	bySink := make(map[pipeline.Element][]pipeline.Edge, len(sinkOrder))
	for _, e := range edgeOrder {
		bySink[e.Sink] = append(bySink[e.Sink], e)
	}
	groups := make([]sinkGroup, 0, len(sinkOrder))
	for _, sink := range sinkOrder {
		groups = append(groups, sinkGroup{sink: sink, edges: bySink[sink]})
	}
	return groups
}

func resetAll(elements []pipeline.Element) {
	for _, e := range elements {
		e.Reset()
	}
}

// runInScopedDir creates a fresh temp directory, makes it the process's
// current working directory for the duration of fn, and removes it
// afterward (spec.md §4.4 step 4's "enter a fresh scoped working
// directory"). Grounded on original_source/penchy/util.py's
// tempdir context manager. The directory this invocation runs from, and
// the one it must return to, are both held as core.CWD values rather than
// bare strings, the way the teacher threads a working directory through
// its own task executors.
func runInScopedDir(fn func() error) error {
	dir, err := os.MkdirTemp("", "penchy-invocation-"+ksuid.New().String())
	if err != nil {
		return fmt.Errorf("create scoped working directory: %w", err)
	}
	defer os.RemoveAll(dir)

	prevWd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("read current working directory: %w", err)
	}
	prev, err := core.CWDFromPath(prevWd)
	if err != nil {
		return fmt.Errorf("resolve current working directory: %w", err)
	}

	scoped, err := core.CWDFromPath(dir)
	if err != nil {
		return fmt.Errorf("resolve scoped working directory: %w", err)
	}
	if err := os.Chdir(scoped.PathStr()); err != nil {
		return fmt.Errorf("enter scoped working directory: %w", err)
	}
	defer func() { _ = os.Chdir(prev.PathStr()) }()

	return fn()
}
