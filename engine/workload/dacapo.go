// Package workload implements the benchmark-harness Workload elements a
// JVM runs, grounded on original_source/penchy/jobs/workloads.py.
package workload

import (
	"context"
	"strconv"

	"github.com/google/shlex"

	"penchy/engine/core"
	"penchy/engine/pipeline"
)

// dacapoDependency is the single jar every Dacapo/ScalaBench benchmark
// resolves against, ported verbatim from workloads.py::Dacapo.DEPENDENCIES.
var dacapoDependency = core.Dependency{
	Group:    "org.scalabench.benchmarks",
	Artifact: "scala-benchmark-suite",
	Version:  "0.1.0-20110908.085753-2",
	RepoURL:  "http://repo.scalabench.org/snapshots/",
	Filename: "scala-benchmark-suite-0.1.0-SNAPSHOT.jar",
	Checksum: "fb68895a6716cc5e77f62ed7992d027b1dbea355",
}

// DacapoBenchmarks lists the DaCapo suite's own benchmark names.
var DacapoBenchmarks = map[string]bool{
	"avrora": true, "batik": true, "eclipse": true, "fop": true, "h2": true,
	"jython": true, "luindex": true, "lusearch": true, "pmd": true,
	"sunflow": true, "tomcat": true, "tradebeans": true, "tradesoap": true,
	"xalan": true,
}

// ScalaBenchBenchmarks extends DacapoBenchmarks with Scalabench's own set,
// ported from workloads.py::ScalaBench.BENCHMARKS.
var ScalaBenchBenchmarks = func() map[string]bool {
	m := map[string]bool{
		"actors": true, "apparat": true, "dummy": true, "factorie": true,
		"kiama": true, "scalac": true, "scaladoc": true, "scalap": true,
		"scalariform": true, "scalatest": true, "scalaxb": true, "specs": true,
		"tmt": true,
	}
	for k := range DacapoBenchmarks {
		m[k] = true
	}
	return m
}()

var dacapoOutputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "exit_code", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of(0)}},
	pipeline.Field{Name: "stdout", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of("")}},
	pipeline.Field{Name: "stderr", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of("")}},
)

// Dacapo is a pipeline.Element/jvm.ArgumentElement wrapping one DaCapo (or,
// via ScalaBench below, Scalabench) harness invocation. A JVM's Run
// populates its exit_code/stdout/stderr outputs directly (engine/jvm/run.go);
// Dacapo itself only contributes Arguments() and declares what it depends
// on, matching the original's "Workload declares arguments, JVM.run fills
// out" split.
type Dacapo struct {
	pipeline.Base

	benchmark  string
	iterations int
	args       string
	scalabench bool
}

// NewDacapo builds a DaCapo workload for benchmark, running iterations
// times per invocation with extra shell-escaped harness args.
func NewDacapo(name, benchmark string, iterations int, args string) (*Dacapo, error) {
	return newDacapo(name, benchmark, iterations, args, false, DacapoBenchmarks)
}

// NewScalaBench builds a ScalaBench workload, accepting both DaCapo's and
// Scalabench's own benchmark names (workloads.py::ScalaBench subclasses
// Dacapo and only widens BENCHMARKS).
func NewScalaBench(name, benchmark string, iterations int, args string) (*Dacapo, error) {
	return newDacapo(name, benchmark, iterations, args, true, ScalaBenchBenchmarks)
}

func newDacapo(name, benchmark string, iterations int, args string, scalabench bool, valid map[string]bool) (*Dacapo, error) {
	if !valid[benchmark] {
		return nil, core.NewWrongInputError("unknown benchmark", map[string]any{"benchmark": benchmark})
	}
	if iterations < 1 {
		iterations = 1
	}
	if name == "" {
		name = benchmark
	}
	d := &Dacapo{
		Base:       pipeline.NewBase(name, nil, dacapoOutputs, dacapoDependency),
		benchmark:  benchmark,
		iterations: iterations,
		args:       args,
		scalabench: scalabench,
	}
	d.Fingerprint = core.SHA1Hex(name, benchmark, strconv.Itoa(iterations), args, strconv.FormatBool(scalabench))
	return d, nil
}

// Arguments returns ["Harness", "-n", iterations, <shell-split args>,
// benchmark], exactly workloads.py::Dacapo.arguments.
func (d *Dacapo) Arguments() []string {
	extra, err := shlex.Split(d.args)
	if err != nil {
		extra = nil
	}
	args := []string{"Harness", "-n", strconv.Itoa(d.iterations)}
	args = append(args, extra...)
	return append(args, d.benchmark)
}

// InformationArguments returns the harness invocation that prints
// benchmark metadata instead of running it (workloads.py's
// information_arguments). Job.Check does not call it; benchmark names are
// checked only against the built-in name sets in the constructors.
func (d *Dacapo) InformationArguments() []string {
	return []string{"Harness", "-i", d.benchmark}
}

// Run is a no-op: the JVM executing this workload is what actually runs
// the harness process and populates Out() (engine/jvm/run.go).
func (d *Dacapo) Run(context.Context, map[string]any) error { return nil }
