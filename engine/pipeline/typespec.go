// Package pipeline implements the typed dataflow DAG that PenchY wires
// workloads, tools, filters and sinks into: TypeSpec (§4.1 of SPEC_FULL.md),
// the Element capability set, Edge/Pipeline DSL (§9) and the DAG scheduler
// (§4.2).
package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"penchy/engine/core"
	"penchy/pkg/logger"
)

// Kind describes how a TypeDesc participates in the nested-type walk that
// TypeSpec.CheckInput performs.
type Kind int

const (
	// KindScalar matches a concrete Go type (or anything assignable to it).
	KindScalar Kind = iota
	// KindSlice matches any slice or array value, and flattens to its
	// elements for the next type in the walk.
	KindSlice
	// KindMap matches any map value, and flattens to its values (never its
	// keys) for the next type in the walk.
	KindMap
)

// TypeDesc is one element of a Field's nested type description, e.g. the
// `list` in `("times", list, list, int)`.
type TypeDesc struct {
	Kind   Kind
	Scalar reflect.Type
}

// Slice describes a sequence container.
func Slice() TypeDesc { return TypeDesc{Kind: KindSlice} }

// Map describes a mapping container whose values (not keys) are descended
// into by the next type in the walk.
func Map() TypeDesc { return TypeDesc{Kind: KindMap} }

// Of describes a concrete scalar type, inferred from a zero-value sample,
// e.g. Of(0) for int, Of("") for string.
func Of(sample any) TypeDesc { return TypeDesc{Kind: KindScalar, Scalar: reflect.TypeOf(sample)} }

func (d TypeDesc) String() string {
	switch d.Kind {
	case KindSlice:
		return "sequence"
	case KindMap:
		return "mapping"
	default:
		if d.Scalar == nil {
			return "any"
		}
		return d.Scalar.String()
	}
}

// Field is one named, nested-typed input or output description.
type Field struct {
	Name  string
	Types []TypeDesc
}

// TypeSpec is an ordered collection of Fields. A nil *TypeSpec disables
// checking entirely, matching spec.md's "None spec disables checking".
type TypeSpec struct {
	fields []Field
	index  map[string]int
}

// NewTypeSpec builds a TypeSpec from an ordered list of fields. Field names
// must be unique.
func NewTypeSpec(fields ...Field) *TypeSpec {
	ts := &TypeSpec{fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		ts.index[f.Name] = i
	}
	return ts
}

// Names returns the declared input/output names in declaration order.
func (ts *TypeSpec) Names() []string {
	if ts == nil {
		return nil
	}
	names := make([]string, len(ts.fields))
	for i, f := range ts.fields {
		names[i] = f.Name
	}
	return names
}

// Has reports whether name is declared on this spec.
func (ts *TypeSpec) Has(name string) bool {
	if ts == nil {
		return false
	}
	_, ok := ts.index[name]
	return ok
}

// CheckInput validates kwargs against the spec per spec.md §4.1 and returns
// the count of kwargs not described by the spec (each of which is logged as
// a warning, never an error).
func (ts *TypeSpec) CheckInput(ctx context.Context, kwargs map[string]any) (int, error) {
	if ts == nil || len(ts.fields) == 0 {
		return 0, nil
	}
	seen := make(map[string]bool, len(ts.fields))
	for _, f := range ts.fields {
		seen[f.Name] = true
		v, ok := kwargs[f.Name]
		if !ok {
			return 0, core.NewMissingArgError(f.Name)
		}
		if err := checkNestedType(v, f.Types); err != nil {
			return 0, core.NewTypeMismatchError(f.Name, typesString(f.Types))
		}
	}
	unused := 0
	unusedNames := make([]string, 0)
	for k := range kwargs {
		if !seen[k] {
			unused++
			unusedNames = append(unusedNames, k)
		}
	}
	if unused > 0 {
		sort.Strings(unusedNames)
		logger.FromContext(ctx).Warn("unused arguments passed to pipeline element", "names", unusedNames)
	}
	return unused, nil
}

// checkNestedType walks types left to right, verifying every current value
// matches the current type, then flattening one level for the next type
// (descending into map values for a Map type, into elements otherwise).
// The final type in the walk is never flattened past.
func checkNestedType(v any, types []TypeDesc) error {
	current := []any{v}
	for i, td := range types {
		for _, cv := range current {
			if !isInstance(cv, td) {
				return fmt.Errorf("value %#v is not of type %s", cv, td)
			}
		}
		if i == len(types)-1 {
			return nil
		}
		current = flattenOneLevel(current, td)
	}
	return nil
}

func isInstance(v any, td TypeDesc) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return false
	}
	switch td.Kind {
	case KindSlice:
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	case KindMap:
		return rv.Kind() == reflect.Map
	default:
		if td.Scalar == nil {
			return true
		}
		return rv.Type() == td.Scalar || rv.Type().AssignableTo(td.Scalar)
	}
}

func flattenOneLevel(current []any, td TypeDesc) []any {
	next := make([]any, 0, len(current))
	for _, cv := range current {
		rv := reflect.ValueOf(cv)
		switch td.Kind {
		case KindMap:
			iter := rv.MapRange()
			for iter.Next() {
				next = append(next, iter.Value().Interface())
			}
		case KindSlice:
			for i := 0; i < rv.Len(); i++ {
				next = append(next, rv.Index(i).Interface())
			}
		default:
			next = append(next, cv)
		}
	}
	return next
}

func typesString(types []TypeDesc) string {
	s := ""
	for i, t := range types {
		if i > 0 {
			s += ">"
		}
		s += t.String()
	}
	return s
}

// CheckPipe validates that an edge from this spec (as source) to other (as
// sink), with the given name map, can legally carry data — spec.md §4.1.
// A nil map defaults to identity over the source's declared output names.
func (ts *TypeSpec) CheckPipe(ctx context.Context, other *TypeSpec, nameMap []NamePair) (bool, error) {
	if ts == nil || other == nil {
		return true, nil
	}
	if nameMap == nil {
		nameMap = identityMap(ts.Names())
	}
	saturated := make(map[string]bool, len(nameMap))
	for _, p := range nameMap {
		if !ts.Has(p.Source) {
			return false, fmt.Errorf("pipe source %q is not a declared output", p.Source)
		}
		if !other.Has(p.Sink) {
			logger.FromContext(ctx).Warn("pipe targets an undeclared sink input", "sink_input", p.Sink)
		}
		saturated[p.Sink] = true
	}
	for _, name := range other.Names() {
		if name == ReservedEnvironment {
			continue
		}
		if !saturated[name] {
			return false, fmt.Errorf("sink input %q is not saturated by any incoming edge", name)
		}
	}
	return true, nil
}

func identityMap(names []string) []NamePair {
	pairs := make([]NamePair, len(names))
	for i, n := range names {
		pairs[i] = NamePair{Source: n, Sink: n}
	}
	return pairs
}

// ReservedEnvironment is the input name carved out of the user namespace for
// SystemFilters (spec.md §9): it must never clash with a declared input and
// is recognized via exact match.
const ReservedEnvironment = "environment"
