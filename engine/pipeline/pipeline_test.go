package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_Pipe(t *testing.T) {
	t.Run("Should chain edges left to right and advance the cursor", func(t *testing.T) {
		workload := newFakeElement("workload", nil, nil)
		filter := newFakeElement("filter", nil, nil)
		send := newFakeElement("send", nil, nil)

		p := From(workload).Pipe(filter).Pipe(send)

		require.Len(t, p.Edges(), 2)
		assert.Equal(t, workload, p.Edges()[0].Source)
		assert.Equal(t, filter, p.Edges()[0].Sink)
		assert.Equal(t, filter, p.Edges()[1].Source)
		assert.Equal(t, send, p.Edges()[1].Sink)
	})

	t.Run("Should attach a pending rename to only the next edge", func(t *testing.T) {
		workload := newFakeElement("workload", nil, nil)
		filter := newFakeElement("filter", nil, nil)
		send := newFakeElement("send", nil, nil)

		p := From(workload).
			Rename(NamePair{Source: "exit_code", Sink: "status"}).
			Pipe(filter).
			Pipe(send)

		require.Len(t, p.Edges(), 2)
		assert.Equal(t, []NamePair{{Source: "exit_code", Sink: "status"}}, p.Edges()[0].Map)
		assert.Nil(t, p.Edges()[1].Map)
	})
}

func TestPipeline_Fork(t *testing.T) {
	t.Run("Should wire the cursor to every sink without advancing it", func(t *testing.T) {
		workload := newFakeElement("workload", nil, nil)
		send := newFakeElement("send", nil, nil)
		dump := newFakeElement("dump", nil, nil)

		p := From(workload).Fork(send, dump).Pipe(newFakeElement("next", nil, nil))

		require.Len(t, p.Edges(), 3)
		assert.Equal(t, workload, p.Edges()[0].Source)
		assert.Equal(t, workload, p.Edges()[1].Source)
		assert.Equal(t, workload, p.Edges()[2].Source, "Pipe after Fork chains from the original cursor, not a fork target")
	})
}

func TestRename(t *testing.T) {
	t.Run("Should treat a lone string as an identity pair", func(t *testing.T) {
		assert.Equal(t, []NamePair{{Source: "x", Sink: "x"}}, Rename("x"))
	})

	t.Run("Should treat a two-element array as one rename pair", func(t *testing.T) {
		assert.Equal(t, []NamePair{{Source: "a", Sink: "b"}}, Rename([2]string{"a", "b"}))
	})

	t.Run("Should merge a mixed list of strings and pairs in order", func(t *testing.T) {
		got := Rename("x", [2]string{"a", "b"}, "y")
		want := []NamePair{
			{Source: "x", Sink: "x"},
			{Source: "a", Sink: "b"},
			{Source: "y", Sink: "y"},
		}
		assert.Equal(t, want, got)
	})
}

func TestEdge_Equal(t *testing.T) {
	t.Run("Should compare source, sink and map for equality", func(t *testing.T) {
		a := newFakeElement("a", nil, nil)
		b := newFakeElement("b", nil, nil)
		e1 := Edge{Source: a, Sink: b, Map: []NamePair{{Source: "x", Sink: "y"}}}
		e2 := Edge{Source: a, Sink: b, Map: []NamePair{{Source: "x", Sink: "y"}}}
		e3 := Edge{Source: a, Sink: b, Map: []NamePair{{Source: "x", Sink: "z"}}}
		assert.True(t, e1.Equal(e2))
		assert.False(t, e1.Equal(e3))
	})
}
