package node

import (
	"context"
	"time"

	"github.com/slok/goresilience"
	"github.com/slok/goresilience/retry"
	"github.com/slok/goresilience/timeout"
)

// connectRunner wraps a single SSH connect attempt with retry and an
// overall deadline (spec.md §4.7's "connection_required context" is
// transport-level resilience, never a JVM-invocation retry, which §1's
// Non-goals forbid). The teacher lists goresilience as a direct
// dependency but never calls it; this is where PenchY exercises it.
var connectRunner = goresilience.RunnerChain(
	timeout.NewMiddleware(timeout.Config{Timeout: 30 * time.Second}),
	retry.NewMiddleware(retry.Config{Times: 2}),
)

func withResilience(ctx context.Context, fn func(ctx context.Context) error) error {
	return connectRunner.Run(ctx, fn)
}
