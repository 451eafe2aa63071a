package job

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penchy/engine/composition"
	"penchy/engine/core"
	"penchy/engine/dependency"
	"penchy/engine/jvm"
	"penchy/engine/pipeline"
)

// fakeArgElement is a minimal jvm.ArgumentElement double standing in for a
// workload or tool: it contributes command-line arguments and optionally a
// dependency, but never actually runs a JVM (the JVM itself is exercised
// with jvm.DefaultRunner stubbed out, the same seam engine/jvm's own tests
// use).
type fakeArgElement struct {
	pipeline.Base
	args []string
	runs int
}

var workloadOutputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "exit_code", Types: []pipeline.TypeDesc{pipeline.Of(0)}},
	pipeline.Field{Name: "stdout", Types: []pipeline.TypeDesc{pipeline.Of("")}},
	pipeline.Field{Name: "stderr", Types: []pipeline.TypeDesc{pipeline.Of("")}},
)

func newFakeArgElement(name string, deps ...core.Dependency) *fakeArgElement {
	return &fakeArgElement{Base: pipeline.NewBase(name, nil, workloadOutputs, deps...), args: []string{name}}
}

func (f *fakeArgElement) Arguments() []string { return f.args }

func (f *fakeArgElement) Run(ctx context.Context, kwargs map[string]any) error {
	f.runs++
	return nil
}

// fakeSink is a plain (non-SystemFilter) Filter double for exercising
// runFlow/groupBySink without pulling in the engine/filters package.
type fakeSink struct {
	pipeline.Base
	runErr error
	seen   []map[string]any
}

func newFakeSink(name string, inputs *pipeline.TypeSpec) *fakeSink {
	return &fakeSink{Base: pipeline.NewBase(name, inputs, nil)}
}

func (f *fakeSink) Run(ctx context.Context, kwargs map[string]any) error {
	f.seen = append(f.seen, kwargs)
	return f.runErr
}

// fakeSystemFilter doubles as either a Send (by name) or any other
// SystemFilter, so Job.Check's "has a Send" rule and RunComposition's
// environment-injection path can both be exercised.
type fakeSystemFilter struct {
	pipeline.Base
	runErr error
	seen   []map[string]any
}

func newFakeSystemFilter(name string, inputs *pipeline.TypeSpec) *fakeSystemFilter {
	return &fakeSystemFilter{Base: pipeline.NewBase(name, inputs, nil)}
}

func (f *fakeSystemFilter) IsSystemFilter() bool { return true }

func (f *fakeSystemFilter) Run(ctx context.Context, kwargs map[string]any) error {
	f.seen = append(f.seen, kwargs)
	return f.runErr
}

type fakePlotElement struct {
	pipeline.Base
}

func newFakePlotElement(name string) *fakePlotElement {
	return &fakePlotElement{Base: pipeline.NewBase(name, nil, nil)}
}

func (f *fakePlotElement) IsPlot() bool { return true }
func (f *fakePlotElement) Run(ctx context.Context, kwargs map[string]any) error { return nil }

// stubRunner lets RunComposition exercise a real *jvm.JVM without spawning
// a child process, mirroring engine/jvm/run_test.go's own seam.
type stubRunner struct {
	exitCode int
	err      error
}

func (s *stubRunner) Run(_ context.Context, _ []string, _, _ afero.File) (int, error) {
	return s.exitCode, s.err
}

func withStubRunner(t *testing.T) {
	t.Helper()
	prevRunner, prevFs := jvm.DefaultRunner, jvm.Fs
	jvm.DefaultRunner = &stubRunner{}
	jvm.Fs = afero.NewMemMapFs()
	t.Cleanup(func() {
		jvm.DefaultRunner = prevRunner
		jvm.Fs = prevFs
	})
}

func newTestComposition(t *testing.T, workload *fakeArgElement, flow []pipeline.Edge) *composition.SystemComposition {
	t.Helper()
	j, err := jvm.New("java", "-cp /libs")
	require.NoError(t, err)
	j.SetWorkload(workload)
	n := &composition.NodeSetting{
		Host: "node1", SSHPort: 22, Username: "bench",
		Path: "/usr/bin", Basepath: t.TempDir(), Password: "secret",
	}
	return composition.New(j, n, flow)
}

func payloadTypeSpec() *pipeline.TypeSpec {
	return pipeline.NewTypeSpec(pipeline.Field{Name: "payload", Types: []pipeline.TypeDesc{pipeline.Of(any(nil))}})
}

func TestJob_RunComposition(t *testing.T) {
	t.Run("Should run invocations, execute the flow, and mark the composition done", func(t *testing.T) {
		withStubRunner(t)
		workload := newFakeArgElement("dacapo")
		send := newFakeSystemFilter("send", payloadTypeSpec())
		flow := []pipeline.Edge{{Source: workload, Sink: send, Map: []pipeline.NamePair{{Source: "exit_code", Sink: "payload"}}}}
		comp := newTestComposition(t, workload, flow)

		j := New("job.yaml", []*composition.SystemComposition{comp}, nil, 2, nil)

		var sent []any
		err := j.RunComposition(context.Background(), comp, func(hash string, data any) error {
			sent = append(sent, data)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, send.seen, 1)
		assert.Len(t, send.seen[0]["payload"], 2, "both invocations' exit codes reach the flow before the reset")
		assert.NotNil(t, send.seen[0][pipeline.ReservedEnvironment])
		assert.Equal(t, StateDone, j.Tracker().Get(comp.Hash()).State)
	})

	t.Run("Should resolve dependencies onto the classpath before running invocations", func(t *testing.T) {
		withStubRunner(t)
		dep := core.Dependency{Group: "org.dacapo", Artifact: "dacapo", Version: "9.12"}
		workload := newFakeArgElement("dacapo", dep)
		send := newFakeSystemFilter("send", payloadTypeSpec())
		flow := []pipeline.Edge{{Source: workload, Sink: send, Map: []pipeline.NamePair{{Source: "exit_code", Sink: "payload"}}}}
		comp := newTestComposition(t, workload, flow)

		resolved := dependency.Entry{Dependency: dep, Path: "/resolved/dacapo.jar"}
		resolver := &fakeResolver{entries: []dependency.Entry{resolved}}
		j := New("job.yaml", []*composition.SystemComposition{comp}, nil, 1, resolver)

		err := j.RunComposition(context.Background(), comp, func(string, any) error { return nil })
		require.NoError(t, err)
		assert.Contains(t, comp.JVM.Classpath(), "/resolved/dacapo.jar")
	})

	t.Run("Should fail and record the failure kind when dependency resolution fails", func(t *testing.T) {
		withStubRunner(t)
		dep := core.Dependency{Group: "org.dacapo", Artifact: "dacapo", Version: "9.12"}
		workload := newFakeArgElement("dacapo", dep)
		comp := newTestComposition(t, workload, nil)

		resolver := &fakeResolver{err: core.NewWrongInputError("download failed", nil)}
		j := New("job.yaml", []*composition.SystemComposition{comp}, nil, 1, resolver)

		err := j.RunComposition(context.Background(), comp, func(string, any) error { return nil })
		require.Error(t, err)
		tr := j.Tracker().Get(comp.Hash())
		assert.Equal(t, StateFailed, tr.State)
		assert.Equal(t, core.KindWrongInput, tr.FailureKind)
	})

	t.Run("Should fail when the flow has a cycle", func(t *testing.T) {
		withStubRunner(t)
		workload := newFakeArgElement("dacapo")
		a := newFakeSink("a", nil)
		b := newFakeSink("b", nil)
		flow := []pipeline.Edge{
			{Source: workload, Sink: a},
			{Source: a, Sink: b},
			{Source: b, Sink: a},
		}
		comp := newTestComposition(t, workload, flow)
		j := New("job.yaml", []*composition.SystemComposition{comp}, nil, 1, nil)

		err := j.RunComposition(context.Background(), comp, func(string, any) error { return nil })
		require.Error(t, err)
		assert.Equal(t, StateFailed, j.Tracker().Get(comp.Hash()).State)
	})

	t.Run("Should fail when an invocation's JVM run fails", func(t *testing.T) {
		prevRunner, prevFs := jvm.DefaultRunner, jvm.Fs
		jvm.DefaultRunner = &stubRunner{err: assertAnError()}
		jvm.Fs = afero.NewMemMapFs()
		t.Cleanup(func() { jvm.DefaultRunner = prevRunner; jvm.Fs = prevFs })

		workload := newFakeArgElement("dacapo")
		comp := newTestComposition(t, workload, nil)
		j := New("job.yaml", []*composition.SystemComposition{comp}, nil, 1, nil)

		err := j.RunComposition(context.Background(), comp, func(string, any) error { return nil })
		require.Error(t, err)
		assert.Equal(t, StateFailed, j.Tracker().Get(comp.Hash()).State)
	})

	t.Run("Should propagate a Send failure from the flow", func(t *testing.T) {
		withStubRunner(t)
		workload := newFakeArgElement("dacapo")
		send := newFakeSystemFilter("send", payloadTypeSpec())
		send.runErr = assertAnError()
		flow := []pipeline.Edge{{Source: workload, Sink: send, Map: []pipeline.NamePair{{Source: "exit_code", Sink: "payload"}}}}
		comp := newTestComposition(t, workload, flow)
		j := New("job.yaml", []*composition.SystemComposition{comp}, nil, 1, nil)

		err := j.RunComposition(context.Background(), comp, func(string, any) error { return nil })
		require.Error(t, err)
		assert.Equal(t, StateFailed, j.Tracker().Get(comp.Hash()).State)
	})
}

func TestJob_RunServerPipeline(t *testing.T) {
	t.Run("Should no-op when the server flow is empty", func(t *testing.T) {
		j := New("job.yaml", nil, nil, 1, nil)
		err := j.RunServerPipeline(context.Background(), func() map[string]any { return nil })
		require.NoError(t, err)
	})

	t.Run("Should run the Receive start and downstream sinks with the aggregated results", func(t *testing.T) {
		receiveOutputs := pipeline.NewTypeSpec(pipeline.Field{Name: "results", Types: []pipeline.TypeDesc{pipeline.Map(), pipeline.Of(any(nil))}})
		recv := newFakeSystemFilterReceiver("receive", receiveOutputs)
		sink := newFakeSink("save", pipeline.NewTypeSpec(pipeline.Field{Name: "results", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Map(), pipeline.Of(any(nil))}}))
		flow := []pipeline.Edge{{Source: recv, Sink: sink}}

		j := New("job.yaml", nil, flow, 1, nil)
		called := false
		err := j.RunServerPipeline(context.Background(), func() map[string]any {
			called = true
			return map[string]any{"c1": "done"}
		})
		require.NoError(t, err)
		assert.True(t, called)
		require.Len(t, sink.seen, 1)
	})

	t.Run("Should fail when the server flow has no Receive-like start", func(t *testing.T) {
		a := newFakeSink("a", nil)
		b := newFakeSink("b", nil)
		flow := []pipeline.Edge{{Source: a, Sink: b}}
		j := New("job.yaml", nil, flow, 1, nil)

		err := j.RunServerPipeline(context.Background(), func() map[string]any { return nil })
		require.Error(t, err)
		var coreErr *core.Error
		require.ErrorAs(t, err, &coreErr)
	})
}

func TestJob_Check(t *testing.T) {
	t.Run("Should fail when a composition has no workload", func(t *testing.T) {
		j2, err := jvm.New("java", "-cp /libs")
		require.NoError(t, err)
		comp := composition.New(j2, &composition.NodeSetting{Host: "h", SSHPort: 22, Username: "u", Path: "/p", Basepath: "/b", Password: "x"}, nil)
		j := New("job.yaml", []*composition.SystemComposition{comp}, nil, 1, nil)

		err = j.Check(context.Background())
		require.Error(t, err)
	})

	t.Run("Should fail when a composition's flow has no Send element", func(t *testing.T) {
		workload := newFakeArgElement("dacapo")
		sink := newFakeSink("save", nil)
		flow := []pipeline.Edge{{Source: workload, Sink: sink}}
		comp := newTestComposition(t, workload, flow)
		j := New("job.yaml", []*composition.SystemComposition{comp}, nil, 1, nil)

		err := j.Check(context.Background())
		require.Error(t, err)
	})

	t.Run("Should fail when a composition includes a Plot element", func(t *testing.T) {
		workload := newFakeArgElement("dacapo")
		send := newFakeSystemFilter("send", payloadTypeSpec())
		plot := newFakePlotElement("plot")
		flow := []pipeline.Edge{
			{Source: workload, Sink: send},
			{Source: workload, Sink: plot},
		}
		comp := newTestComposition(t, workload, flow)
		j := New("job.yaml", []*composition.SystemComposition{comp}, nil, 1, nil)

		err := j.Check(context.Background())
		require.Error(t, err)
	})

	t.Run("Should fail when a composition's flow has a cycle", func(t *testing.T) {
		workload := newFakeArgElement("dacapo")
		send := newFakeSystemFilter("send", payloadTypeSpec())
		a := newFakeSink("a", nil)
		flow := []pipeline.Edge{
			{Source: workload, Sink: send},
			{Source: workload, Sink: a},
			{Source: a, Sink: a},
		}
		comp := newTestComposition(t, workload, flow)
		j := New("job.yaml", []*composition.SystemComposition{comp}, nil, 1, nil)

		err := j.Check(context.Background())
		require.Error(t, err)
	})

	t.Run("Should fail when the server flow has no Receive start", func(t *testing.T) {
		workload := newFakeArgElement("dacapo")
		send := newFakeSystemFilter("send", payloadTypeSpec())
		flow := []pipeline.Edge{{Source: workload, Sink: send}}
		comp := newTestComposition(t, workload, flow)

		a := newFakeSink("a", nil)
		b := newFakeSink("b", nil)
		serverFlow := []pipeline.Edge{{Source: a, Sink: b}}

		j := New("job.yaml", []*composition.SystemComposition{comp}, serverFlow, 1, nil)
		err := j.Check(context.Background())
		require.Error(t, err)
	})

	t.Run("Should pass for a well-formed job", func(t *testing.T) {
		workload := newFakeArgElement("dacapo")
		send := newFakeSystemFilter("send", payloadTypeSpec())
		flow := []pipeline.Edge{{Source: workload, Sink: send}}
		comp := newTestComposition(t, workload, flow)

		receiveOutputs := pipeline.NewTypeSpec(pipeline.Field{Name: "results", Types: []pipeline.TypeDesc{pipeline.Map(), pipeline.Of(any(nil))}})
		recv := newFakeSystemFilterReceiver("receive", receiveOutputs)
		serverFlow := []pipeline.Edge{{Source: recv, Sink: newFakeSink("save", nil)}}

		j := New("job.yaml", []*composition.SystemComposition{comp}, serverFlow, 1, nil)
		err := j.Check(context.Background())
		require.NoError(t, err)
	})
}

// fakeResolver is a dependency.Resolver test double.
type fakeResolver struct {
	entries []dependency.Entry
	err     error
}

func (f *fakeResolver) Resolve(context.Context, []core.Dependency) ([]dependency.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

// newFakeSystemFilterReceiver is a Receive-shaped SystemFilter start: it
// consumes no inputs and emits out.results, same as filters.Receive, but
// lives here to keep engine/job independent of engine/filters.
type fakeSystemFilterReceiver struct {
	pipeline.Base
}

func newFakeSystemFilterReceiver(name string, outputs *pipeline.TypeSpec) *fakeSystemFilterReceiver {
	return &fakeSystemFilterReceiver{Base: pipeline.NewBase(name, nil, outputs)}
}

func (f *fakeSystemFilterReceiver) IsSystemFilter() bool { return true }

func (f *fakeSystemFilterReceiver) Run(ctx context.Context, kwargs map[string]any) error {
	env, ok := kwargs[pipeline.ReservedEnvironment].(pipeline.Environment)
	if !ok {
		return core.NewWrongInputError("receive requires an environment", nil)
	}
	f.Emit("results", env.Receive())
	return nil
}

func assertAnError() error {
	return core.NewJVMExecutionError(1, "boom")
}
