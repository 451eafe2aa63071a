package dependency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penchy/engine/core"
)

type countingResolver struct {
	calls   int
	entries []Entry
}

func (c *countingResolver) Resolve(context.Context, []core.Dependency) ([]Entry, error) {
	c.calls++
	return c.entries, nil
}

func TestCachingResolver_Resolve(t *testing.T) {
	t.Run("Should only call the inner resolver once for the same dependency set", func(t *testing.T) {
		inner := &countingResolver{entries: []Entry{{Path: "/tmp/a.jar"}}}
		c, err := NewCachingResolver(inner, 8)
		require.NoError(t, err)

		deps := []core.Dependency{{Group: "g", Artifact: "a", Version: "1"}}
		e1, err := c.Resolve(context.Background(), deps)
		require.NoError(t, err)
		e2, err := c.Resolve(context.Background(), deps)
		require.NoError(t, err)

		assert.Equal(t, 1, inner.calls)
		assert.Equal(t, e1, e2)
	})

	t.Run("Should call the inner resolver again for a different dependency set", func(t *testing.T) {
		inner := &countingResolver{entries: []Entry{{Path: "/tmp/a.jar"}}}
		c, err := NewCachingResolver(inner, 8)
		require.NoError(t, err)

		_, err = c.Resolve(context.Background(), []core.Dependency{{Group: "g", Artifact: "a", Version: "1"}})
		require.NoError(t, err)
		_, err = c.Resolve(context.Background(), []core.Dependency{{Group: "g", Artifact: "b", Version: "1"}})
		require.NoError(t, err)

		assert.Equal(t, 2, inner.calls)
	})
}

func TestClasspath(t *testing.T) {
	t.Run("Should join resolved entries with the OS path-list separator", func(t *testing.T) {
		entries := []Entry{{Path: "/a.jar"}, {Path: "/b.jar"}}
		assert.Equal(t, joinPathList([]string{"/a.jar", "/b.jar"}), Classpath(entries))
	})
}
