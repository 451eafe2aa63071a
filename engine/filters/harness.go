package filters

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"

	"penchy/engine/core"
	"penchy/engine/pipeline"
)

// timeRE matches a DaCapo/ScalaBench harness log line reporting either a
// warmup iteration or a final result, ported from
// original_source/penchy/jobs/filters.py::DacapoHarness.TIME_RE:
//
//	completed warmup 1 in 204 msec
//	===== DaCapo fop PASSED in 812 msec =====
//	===== DaCapo fop FAILED in 812 msec =====
var timeRE = regexp.MustCompile(`(?:completed warmup \d+|(?P<success>FAILED|PASSED)) in (?P<time>\d+) msec`)

var dacapoHarnessInputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "stderr", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of("")}},
	pipeline.Field{Name: "exit_code", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of(0)}},
)

var dacapoHarnessOutputs = pipeline.NewTypeSpec(
	pipeline.Field{Name: "failures", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of(0)}},
	pipeline.Field{Name: "times", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Slice(), pipeline.Of(0)}},
	pipeline.Field{Name: "valid", Types: []pipeline.TypeDesc{pipeline.Slice(), pipeline.Of(false)}},
)

// DacapoHarness parses a DaCapo/ScalaBench harness's stderr log per
// invocation, ported from filters.py::DacapoHarness.
type DacapoHarness struct {
	pipeline.Base
}

// NewDacapoHarness builds the harness-output parsing filter.
func NewDacapoHarness(name string) *DacapoHarness {
	return &DacapoHarness{Base: pipeline.NewBase(name, dacapoHarnessInputs, dacapoHarnessOutputs)}
}

func (h *DacapoHarness) Run(ctx context.Context, kwargs map[string]any) error {
	stderrPaths := kwargs["stderr"].([]any)
	exitCodes := kwargs["exit_code"].([]any)

	n := len(stderrPaths)
	if len(exitCodes) < n {
		n = len(exitCodes)
	}
	for i := 0; i < n; i++ {
		path, _ := stderrPaths[i].(string)
		exitCode, _ := exitCodes[i].(int)

		buf, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(string(buf), "===== DaCapo") {
			return core.NewWrongInputError("harness output does not start with the DaCapo banner", map[string]any{"file": path})
		}
		failures, times := parseHarnessOutput(string(buf))

		h.Emit("failures", failures)
		h.Emit("times", times)
		h.Emit("valid", exitCode == 0 && failures == 0)
	}
	return nil
}

func parseHarnessOutput(buf string) (failures int, times []int) {
	for _, m := range timeRE.FindAllStringSubmatch(buf, -1) {
		success, timeStr := m[1], m[2]
		if success == "FAILED" {
			failures++
		}
		t, err := strconv.Atoi(timeStr)
		if err == nil {
			times = append(times, t)
		}
	}
	return failures, times
}
