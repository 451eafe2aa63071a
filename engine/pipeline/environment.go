package pipeline

// Environment is the per-invocation record spec.md §3 injects into
// SystemFilters under the reserved "environment" input: {send, receive,
// job, current_composition}. It is an interface (rather than a concrete
// struct living here) so engine/job can own the real implementation
// without engine/pipeline depending on engine/composition.
type Environment interface {
	// Send hands payload to the transport back to the server (spec.md
	// §4.9's Send SystemFilter).
	Send(payload any) error
	// Receive returns every composition hash's published result so far
	// (spec.md §4.9's Receive SystemFilter).
	Receive() map[string]any
	// JobSource identifies the running job, e.g. its source filename.
	JobSource() string
	// CurrentNodeBasepath returns the current composition's node
	// setting's path, and whether a composition is currently set — used
	// to resolve relative Save/BackupFile destinations (spec.md §4.9).
	CurrentNodeBasepath() (string, bool)
}

// SystemFilter marks the closed set of elements (Send, Receive, Dump,
// Save, BackupFile) that additionally receive the environment bundle
// under the reserved "environment" input (spec.md §4.4 step 5, §4.9).
// Ordinary Filter/Workload/Tool elements do not implement this.
type SystemFilter interface {
	Element
	IsSystemFilter() bool
}

// PlotElement marks a server-side-only plotting sink. spec.md §4.6
// requires a client composition to never include one; no PenchY element
// currently implements it; the interface exists so Job.Check's "no Plot"
// rule has something concrete to test against.
type PlotElement interface {
	Element
	IsPlot() bool
}
