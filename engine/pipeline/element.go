package pipeline

import (
	"context"

	"penchy/engine/core"
)

// Hook runs before or after an element's Run, outside of the typed
// input/output contract (spec.md §3's prehooks/posthooks).
type Hook func(ctx context.Context) error

// Element is the closed set of pipeline-graph participants: Workload, Tool,
// Filter, SystemFilter and WrappedJVM all implement it. spec.md §9 prefers
// this closed interface over open inheritance, since every variant is known
// up front and the DAG scheduler only ever needs this shared surface.
type Element interface {
	// Name identifies the element in logs and DAG diagnostics.
	Name() string
	// Inputs describes the element's named, nested-typed inputs. A nil
	// TypeSpec disables checking.
	Inputs() *TypeSpec
	// Outputs describes the element's named, nested-typed outputs.
	Outputs() *TypeSpec
	// Out returns the live accumulator map: output name to the ordered
	// sequence of values produced so far. Downstream sinks read from it
	// after Run returns.
	Out() map[string][]any
	// Dependencies lists the external artifacts this element needs
	// resolved onto the classpath.
	Dependencies() []core.Dependency
	// FingerprintComponent returns a stable string derived from the
	// element's configured identity (name and fixed parameters), never
	// from its mutable Out(). JVM.Hash folds every configured element's
	// FingerprintComponent in, alongside (path, options), so that
	// SystemComposition.Hash (SHA1(jvm.Hash ++ nodeSetting.Hash)) changes
	// whenever the workload or tool changes — spec.md §9's Open Question.
	FingerprintComponent() string
	// Run executes the element against a validated input bundle, and
	// appends produced values to Out().
	Run(ctx context.Context, kwargs map[string]any) error
	// Reset clears Out() so the element can be reused by a later job run.
	// Constructed once per composition per spec.md §3's lifecycle note.
	Reset()
}

// Base implements the bookkeeping shared by every Element variant: the
// named TypeSpecs, the out accumulator, hooks and dependencies. Concrete
// elements embed Base and only implement Run.
type Base struct {
	ElemName      string
	InputSpec     *TypeSpec
	OutputSpec    *TypeSpec
	Prehooks      []Hook
	Posthooks     []Hook
	DependencySet []core.Dependency
	// Fingerprint is the element's stable identity string, set once at
	// construction from its configured (immutable) parameters.
	Fingerprint string

	out map[string][]any
}

// NewBase constructs a Base with its output accumulators pre-seeded to
// empty ordered sequences, per spec.md §3's "initially each name maps to an
// empty ordered sequence" invariant.
func NewBase(name string, inputs, outputs *TypeSpec, deps ...core.Dependency) Base {
	b := Base{
		ElemName:      name,
		InputSpec:     inputs,
		OutputSpec:    outputs,
		DependencySet: deps,
		Fingerprint:   name,
	}
	b.Reset()
	return b
}

func (b *Base) Name() string                   { return b.ElemName }
func (b *Base) Inputs() *TypeSpec               { return b.InputSpec }
func (b *Base) Outputs() *TypeSpec              { return b.OutputSpec }
func (b *Base) Dependencies() []core.Dependency { return b.DependencySet }
func (b *Base) Out() map[string][]any           { return b.out }
func (b *Base) FingerprintComponent() string    { return b.Fingerprint }

// AsBase exposes the embedding element's Base, so generic helpers (e.g.
// engine/jvm's workload output wiring) can reach Emit without knowing the
// concrete element type.
func (b *Base) AsBase() *Base { return b }

// ElementHooks returns this element's own prehooks/posthooks, letting
// engine/jvm fold workload- and tool-level hooks into a JVM run without
// importing the concrete element packages.
func (b *Base) ElementHooks() (pre, post []Hook) { return b.Prehooks, b.Posthooks }

// Reset clears every declared output back to an empty ordered sequence.
func (b *Base) Reset() {
	names := b.OutputSpec.Names()
	b.out = make(map[string][]any, len(names))
	for _, n := range names {
		b.out[n] = []any{}
	}
}

// Emit appends a value to a declared output's accumulator. Emitting to a
// name not in Outputs() is a programmer error in the element and panics,
// matching spec.md §3's invariant that every runtime-produced name appears
// in outputs.
func (b *Base) Emit(name string, value any) {
	if b.OutputSpec != nil && !b.OutputSpec.Has(name) {
		panic("pipeline: element " + b.ElemName + " emitted undeclared output " + name)
	}
	b.out[name] = append(b.out[name], value)
}

// RunHooks runs hooks in order, stopping and returning the first error.
func RunHooks(ctx context.Context, hooks []Hook) error {
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}
