package dependency

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"penchy/engine/core"
)

// CachingResolver memoizes an inner Resolver's result by the joined key of
// a dependency set, so repeated invocations of the same composition (or
// compositions sharing a workload) skip re-resolving identical
// dependencies. Grounded on the teacher's golang-lru-family memoization
// idiom (engine/infra/cache).
type CachingResolver struct {
	inner Resolver
	cache *lru.Cache[string, []Entry]
}

// NewCachingResolver wraps inner with an LRU cache holding up to size
// distinct dependency sets.
func NewCachingResolver(inner Resolver, size int) (*CachingResolver, error) {
	c, err := lru.New[string, []Entry](size)
	if err != nil {
		return nil, core.NewWrongInputError("failed to construct dependency cache", map[string]any{"cause": err.Error()})
	}
	return &CachingResolver{inner: inner, cache: c}, nil
}

// Resolve returns the cached result for this exact set of dependencies, or
// delegates to the inner resolver and caches the result.
func (c *CachingResolver) Resolve(ctx context.Context, deps []core.Dependency) ([]Entry, error) {
	key := setKey(deps)
	if entries, ok := c.cache.Get(key); ok {
		return entries, nil
	}
	entries, err := c.inner.Resolve(ctx, deps)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, entries)
	return entries, nil
}

func setKey(deps []core.Dependency) string {
	keys := make([]string, 0, len(deps))
	for _, d := range deps {
		keys = append(keys, d.Key())
	}
	return strings.Join(keys, "|")
}
