package pipeline

import (
	"fmt"

	"penchy/engine/core"
)

// EdgeSort topologically sorts edges reachable from starts (spec.md §4.2).
// It returns the sinks in resolution order and the edges grouped by the
// sink they satisfy, in the same order. starts themselves never appear in
// sinkOrder. Iteration proceeds in layers: a layer resolves every sink
// whose incoming edges all have an already-resolved source; if a layer
// resolves nothing, the remaining edges form a cycle or reference a
// missing source and EdgeSort fails.
func EdgeSort(starts []Element, edges []Edge) ([]Element, []Edge, error) {
	resolved := make(map[Element]bool, len(starts))
	for _, s := range starts {
		resolved[s] = true
	}

	remaining := append([]Edge(nil), edges...)
	var sinkOrder []Element
	var edgeOrder []Edge

	for len(remaining) > 0 {
		sinksInOrder, seen := []Element{}, map[Element]bool{}
		for _, e := range remaining {
			if !seen[e.Sink] {
				seen[e.Sink] = true
				sinksInOrder = append(sinksInOrder, e.Sink)
			}
		}

		type decision struct {
			sink  Element
			edges []Edge
		}
		var layer []decision
		for _, sink := range sinksInOrder {
			if resolved[sink] {
				continue
			}
			allResolved := true
			var edgesForSink []Edge
			for _, e := range remaining {
				if e.Sink != sink {
					continue
				}
				edgesForSink = append(edgesForSink, e)
				if !resolved[e.Source] {
					allResolved = false
				}
			}
			if allResolved {
				layer = append(layer, decision{sink: sink, edges: edgesForSink})
			}
		}

		if len(layer) == 0 {
			return nil, nil, core.NewNoTopologicalSortError(
				"no topological sort possible: cycle or missing source in pipeline flow",
			)
		}

		consumed := make(map[Element]bool, len(layer))
		for _, d := range layer {
			resolved[d.sink] = true
			consumed[d.sink] = true
			sinkOrder = append(sinkOrder, d.sink)
			edgeOrder = append(edgeOrder, d.edges...)
		}

		next := remaining[:0:0]
		for _, e := range remaining {
			if !consumed[e.Sink] {
				next = append(next, e)
			}
		}
		remaining = next
	}

	return sinkOrder, edgeOrder, nil
}

// BuildKeys assembles the input bundle for one sink from its incoming
// edges (spec.md §4.2). Every edge must share the same sink. When an edge
// carries no name map, every declared output of its source is copied into
// the bundle under its own name; otherwise each (sourceName, sinkName)
// pair is copied. Edges are applied in order, so a later edge's key
// overwrites an earlier one with the same name.
func BuildKeys(edgesForOneSink []Edge) (map[string]any, error) {
	bundle := make(map[string]any)
	if len(edgesForOneSink) == 0 {
		return bundle, nil
	}
	sink := edgesForOneSink[0].Sink
	for _, e := range edgesForOneSink {
		if e.Sink != sink {
			return nil, fmt.Errorf("build_keys: edges do not share a single sink")
		}
		if e.Map == nil {
			for _, name := range e.Source.Outputs().Names() {
				bundle[name] = e.Source.Out()[name]
			}
			continue
		}
		for _, p := range e.Map {
			bundle[p.Sink] = e.Source.Out()[p.Source]
		}
	}
	return bundle, nil
}
