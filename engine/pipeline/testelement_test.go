package pipeline

import "context"

// fakeElement is a minimal Element used across this package's tests. It
// records Run calls and lets tests seed Out() directly to exercise
// BuildKeys/EdgeSort without a real Workload/Tool/Filter.
type fakeElement struct {
	Base
	runErr  error
	runCall int
}

func newFakeElement(name string, inputs, outputs *TypeSpec) *fakeElement {
	return &fakeElement{Base: NewBase(name, inputs, outputs)}
}

func (f *fakeElement) Run(_ context.Context, _ map[string]any) error {
	f.runCall++
	return f.runErr
}
