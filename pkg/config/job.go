package config

import (
	"fmt"

	"penchy/engine/composition"
	"penchy/engine/core"
	"penchy/engine/filters"
	"penchy/engine/jvm"
	"penchy/engine/pipeline"
	"penchy/engine/workload"
)

// LoadJobDescriptor reads and validates a JobDescriptor YAML file.
func LoadJobDescriptor(path string) (*JobDescriptor, error) {
	var d JobDescriptor
	if err := LoadYAMLFile(path, &d); err != nil {
		return nil, err
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// JobDescriptor is the YAML-declarative equivalent of original_source's
// config.py: where the original job file was a Python module executed
// for its side effects (building SystemComposition objects by hand),
// PenchY's closed, fixed set of element types (workload/harness/filter
// variants never grow at job-authoring time, only at PenchY-release time)
// makes a declarative descriptor the idiomatic Go rendition — no dynamic
// code loading, no plugin ABI, just data a fixed registry interprets.
type JobDescriptor struct {
	Source       string            `yaml:"source" validate:"required"`
	Invocations  int               `yaml:"invocations"`
	Compositions []CompositionSpec `yaml:"compositions" validate:"required,min=1,dive"`
	ServerFlow   []EdgeSpec        `yaml:"server_flow"`
}

// CompositionSpec describes one SystemComposition: a JVM, the node it
// runs on (by host, resolved against the NodeSetting file the server was
// given), and its client-side flow.
type CompositionSpec struct {
	NodeHost string     `yaml:"node_host" validate:"required"`
	JVM      JVMSpec    `yaml:"jvm"`
	Flow     []EdgeSpec `yaml:"flow" validate:"required,min=1,dive"`
}

// JVMSpec is jvm.New's two arguments plus the hook-free fields a
// descriptor can set declaratively. Timeout accepts anything
// core.ParseHumanDuration understands ("30s", "2m", "1 hour"), not just a
// bare integer, so a job author can write a composition's JVM timeout the
// same way they'd write any other duration in this stack.
type JVMSpec struct {
	Path    string `yaml:"path" validate:"required"`
	Options string `yaml:"options"`
	Timeout string `yaml:"timeout"`
}

// ElementSpec names one pipeline.Element instance and its constructor
// arguments, keyed by Type against elementRegistry.
type ElementSpec struct {
	Name string         `yaml:"name" validate:"required"`
	Type string         `yaml:"type" validate:"required"`
	With map[string]any `yaml:"with"`
}

// EdgeSpec is a pipeline.Edge in descriptor form: Source/Sink reference
// ElementSpec.Name values declared inline (first occurrence of a name
// constructs it; later occurrences reuse the same instance, the way a
// config.py reuses a Python variable across edges).
type EdgeSpec struct {
	Source ElementSpec         `yaml:"source"`
	Sink   ElementSpec         `yaml:"sink"`
	Map    []pipeline.NamePair `yaml:"map"`
}

// Build resolves a JobDescriptor plus the NodeSetting records it
// references by host into a *job.Job-ready set of SystemCompositions.
// It returns the compositions directly (engine/job.New still owns
// wrapping them into a Job) since that keeps pkg/config from importing
// engine/job and creating an import cycle through engine/dependency.
func (d *JobDescriptor) Build(nodesByHost map[string]*composition.NodeSetting) ([]*composition.SystemComposition, []pipeline.Edge, error) {
	var compositions []*composition.SystemComposition
	for i := range d.Compositions {
		comp, err := buildComposition(&d.Compositions[i], nodesByHost)
		if err != nil {
			return nil, nil, fmt.Errorf("composition %d: %w", i, err)
		}
		compositions = append(compositions, comp)
	}

	serverFlow, err := buildEdges(d.ServerFlow, make(map[string]pipeline.Element))
	if err != nil {
		return nil, nil, fmt.Errorf("server_flow: %w", err)
	}
	return compositions, serverFlow, nil
}

func buildComposition(spec *CompositionSpec, nodesByHost map[string]*composition.NodeSetting) (*composition.SystemComposition, error) {
	ns, ok := nodesByHost[spec.NodeHost]
	if !ok {
		return nil, core.NewWrongInputError("composition references unknown node host", map[string]any{"host": spec.NodeHost})
	}

	j, err := jvm.New(spec.JVM.Path, spec.JVM.Options)
	if err != nil {
		return nil, err
	}
	if spec.JVM.Timeout != "" {
		d, err := core.ParseHumanDuration(spec.JVM.Timeout)
		if err != nil {
			return nil, core.NewWrongInputError("invalid jvm timeout", map[string]any{"timeout": spec.JVM.Timeout, "cause": err.Error()})
		}
		j.Timeout = int(d.Seconds())
	}

	elements := make(map[string]pipeline.Element)
	flow, err := buildEdges(spec.Flow, elements)
	if err != nil {
		return nil, err
	}

	for name, el := range elements {
		arg, ok := el.(jvm.ArgumentElement)
		if !ok {
			continue
		}
		switch name {
		case "workload":
			j.SetWorkload(arg)
		case "tool":
			j.SetTool(arg)
		}
	}

	return composition.New(j, ns, flow), nil
}

func buildEdges(specs []EdgeSpec, elements map[string]pipeline.Element) ([]pipeline.Edge, error) {
	var edges []pipeline.Edge
	for i, es := range specs {
		src, err := resolveElement(es.Source, elements)
		if err != nil {
			return nil, fmt.Errorf("edge %d source: %w", i, err)
		}
		sink, err := resolveElement(es.Sink, elements)
		if err != nil {
			return nil, fmt.Errorf("edge %d sink: %w", i, err)
		}
		edges = append(edges, pipeline.Edge{Source: src, Sink: sink, Map: es.Map})
	}
	return edges, nil
}

func resolveElement(spec ElementSpec, elements map[string]pipeline.Element) (pipeline.Element, error) {
	if el, ok := elements[spec.Name]; ok {
		return el, nil
	}
	build, ok := elementRegistry[spec.Type]
	if !ok {
		return nil, core.NewWrongInputError("unknown element type", map[string]any{"type": spec.Type, "name": spec.Name})
	}
	el, err := build(spec.Name, spec.With)
	if err != nil {
		return nil, fmt.Errorf("element %q: %w", spec.Name, err)
	}
	elements[spec.Name] = el
	return el, nil
}

type elementBuilder func(name string, with map[string]any) (pipeline.Element, error)

// elementRegistry is the closed set of element types a JobDescriptor can
// instantiate — the Go analogue of config.py's import surface
// (penchy.jobs.{workloads,filters}).
var elementRegistry = map[string]elementBuilder{
	"dacapo": func(name string, with map[string]any) (pipeline.Element, error) {
		return workload.NewDacapo(name, stringArg(with, "benchmark"), intArg(with, "iterations", 1), stringArg(with, "args"))
	},
	"scalabench": func(name string, with map[string]any) (pipeline.Element, error) {
		return workload.NewScalaBench(name, stringArg(with, "benchmark"), intArg(with, "iterations", 1), stringArg(with, "args"))
	},
	"dacapo_harness": func(name string, _ map[string]any) (pipeline.Element, error) {
		return filters.NewDacapoHarness(name), nil
	},
	"stats": func(name string, _ map[string]any) (pipeline.Element, error) {
		return filters.NewStats(name), nil
	},
	"send": func(name string, _ map[string]any) (pipeline.Element, error) {
		return filters.NewSend(name), nil
	},
	"receive": func(name string, _ map[string]any) (pipeline.Element, error) {
		return filters.NewReceive(name), nil
	},
	"dump": func(name string, with map[string]any) (pipeline.Element, error) {
		return filters.NewDump(name, stringArg(with, "jvm_info")), nil
	},
	"save": func(name string, _ map[string]any) (pipeline.Element, error) {
		return filters.NewSave(name), nil
	},
	"backup_file": func(name string, _ map[string]any) (pipeline.Element, error) {
		return filters.NewBackupFile(name), nil
	},
}

func stringArg(with map[string]any, key string) string {
	v, _ := with[key].(string)
	return v
}

func intArg(with map[string]any, key string, fallback int) int {
	switch v := with[key].(type) {
	case int:
		return v
	case float64: // yaml.v3 decodes bare integers into map[string]any as int, but be defensive
		return int(v)
	default:
		return fallback
	}
}
