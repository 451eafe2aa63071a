package pipeline

// NamePair renames a source element's output into a sink element's input
// as it crosses an Edge — spec.md §3's `(sourceName, sinkName)` pair.
type NamePair struct {
	Source string
	Sink   string
}

// Edge connects a source element to a sink element, optionally renaming
// outputs to inputs along the way. A nil Map means identity on the source's
// declared output names (resolved lazily, since the source's TypeSpec may
// not exist yet when the edge is built).
//
// Two edges are equal iff Source, Sink and Map all compare equal (§3).
type Edge struct {
	Source Element
	Sink   Element
	Map    []NamePair
}

// Equal reports whether e and other describe the same wiring.
func (e Edge) Equal(other Edge) bool {
	if e.Source != other.Source || e.Sink != other.Sink {
		return false
	}
	if len(e.Map) != len(other.Map) {
		return false
	}
	for i := range e.Map {
		if e.Map[i] != other.Map[i] {
			return false
		}
	}
	return true
}
