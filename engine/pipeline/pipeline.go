package pipeline

// Pipeline is an ordered list of edges built incrementally by a left-to-right
// connector (spec.md §3). Go has no operator overloading, so the connector
// is the Pipe method; chaining Pipe calls reads left-to-right the same way
// the spec's `a >> b >> c` sugar does.
type Pipeline struct {
	edges      []Edge
	cursor     Element
	pendingMap []NamePair
}

// From starts a pipeline at source. source becomes the cursor: the next
// Pipe call wires an edge from it.
func From(source Element) *Pipeline {
	return &Pipeline{cursor: source}
}

// Rename attaches a pending name map to the next edge Pipe adds. Per
// spec.md §3, "a pending mapping is attached to the next edge added" — it
// is consumed and cleared by that call, not reused for later edges.
func (p *Pipeline) Rename(items ...any) *Pipeline {
	p.pendingMap = Rename(items...)
	return p
}

// Pipe connects the current cursor to sink, consuming any pending name map,
// and advances the cursor to sink so further Pipe calls chain from it.
func (p *Pipeline) Pipe(sink Element) *Pipeline {
	p.edges = append(p.edges, Edge{Source: p.cursor, Sink: sink, Map: p.pendingMap})
	p.pendingMap = nil
	p.cursor = sink
	return p
}

// Fork wires the current cursor to every sink in sinks without advancing
// the cursor, for elements with more than one direct downstream consumer.
// Any pending name map applies to the first sink only, matching "a pending
// mapping is attached to the next edge added" read literally for a single
// pending map shared across a fan-out declaration.
func (p *Pipeline) Fork(sinks ...Element) *Pipeline {
	for i, sink := range sinks {
		var m []NamePair
		if i == 0 {
			m = p.pendingMap
		}
		p.edges = append(p.edges, Edge{Source: p.cursor, Sink: sink, Map: m})
	}
	p.pendingMap = nil
	return p
}

// Merge appends additional already-built edges verbatim, for composing
// sub-pipelines built separately.
func (p *Pipeline) Merge(edges ...Edge) *Pipeline {
	p.edges = append(p.edges, edges...)
	return p
}

// Edges returns the pipeline's edges in declaration order.
func (p *Pipeline) Edges() []Edge {
	return p.edges
}

// Rename is the syntax-sugar constructor for an Edge.Map (spec.md §3):
//   - a lone string "x" means [("x","x")]
//   - a NamePair or [2]string means one rename pair
//   - a []string, []NamePair or [][2]string is merged in order
func Rename(items ...any) []NamePair {
	var pairs []NamePair
	for _, item := range items {
		switch v := item.(type) {
		case string:
			pairs = append(pairs, NamePair{Source: v, Sink: v})
		case NamePair:
			pairs = append(pairs, v)
		case [2]string:
			pairs = append(pairs, NamePair{Source: v[0], Sink: v[1]})
		case []string:
			for _, s := range v {
				pairs = append(pairs, NamePair{Source: s, Sink: s})
			}
		case []NamePair:
			pairs = append(pairs, v...)
		case [][2]string:
			for _, p := range v {
				pairs = append(pairs, NamePair{Source: p[0], Sink: p[1]})
			}
		}
	}
	return pairs
}
